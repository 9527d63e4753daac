package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harun/switchboard/pkg/orchestrator"
)

func newCollaborateCmd(root *rootOptions) *cobra.Command {
	var agents []string

	cmd := &cobra.Command{
		Use:   "collaborate --agents a,b <query>",
		Short: "Run one query on several agents and merge their answers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollaborate(cmd, root, agents, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringSliceVar(&agents, "agents", nil, "comma separated agent ids, run in order")
	_ = cmd.MarkFlagRequired("agents")

	return cmd
}

func runCollaborate(cmd *cobra.Command, root *rootOptions, agents []string, query string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rt, err := newRuntime(ctx, root, runtimeOptions{logOutput: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.Close(context.Background()); cerr != nil {
			rt.logger.Warn().Err(cerr).Msg("Shutdown incomplete")
		}
	}()

	res, err := rt.orch.CollaborateAgents(ctx, query, agents, orchestrator.RouteOptions{})
	if err != nil {
		return fmt.Errorf("collaboration failed: %w", err)
	}

	printCollaboration(cmd.OutOrStdout(), res)
	if !res.Success {
		return fmt.Errorf("no agent contributed to the answer")
	}
	return nil
}
