package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harun/switchboard/pkg/orchestrator"
)

type routeOptions struct {
	agent      string
	noFallback bool
	taskType   string
	quiet      bool
}

func newRouteCmd(root *rootOptions) *cobra.Command {
	opts := &routeOptions{}

	cmd := &cobra.Command{
		Use:   "route <query>",
		Short: "Route one query to the best suited agent",
		Long: `Profile the query, score every active agent and execute it on the winner.
If the selected agent fails, the query is retried once on the fallback agent
unless --no-fallback is set. Execution steps are streamed as they happen.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoute(cmd, root, opts, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVar(&opts.agent, "agent", "", "preferred agent id")
	cmd.Flags().BoolVar(&opts.noFallback, "no-fallback", false, "do not retry on the fallback agent")
	cmd.Flags().StringVar(&opts.taskType, "task-type", "", "task type recorded in the execution ledger")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "do not stream execution steps")

	return cmd
}

func runRoute(cmd *cobra.Command, root *rootOptions, opts *routeOptions, query string) error {
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

	out := cmd.OutOrStdout()
	routeOpts := orchestrator.RouteOptions{
		PreferredAgent:  opts.agent,
		DisableFallback: opts.noFallback,
		TaskType:        opts.taskType,
	}
	if !opts.quiet {
		routeOpts.Callbacks = stepPrinter(out)
	}

	res, err := rt.orch.RouteQuery(ctx, query, routeOpts)
	if err != nil {
		return fmt.Errorf("route failed: %w", err)
	}

	printRouteResult(out, res)
	if !res.Success {
		return fmt.Errorf("agent %s could not answer the query", res.AgentID)
	}
	return nil
}
