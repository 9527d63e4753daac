package cli

import (
	"context"

	"github.com/spf13/cobra"
)

func newAgentsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List registered agents with capabilities, engine kind and health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			rt, err := newRuntime(ctx, root, runtimeOptions{logOutput: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer rt.Close(context.Background())

			printAgents(cmd.OutOrStdout(), rt.orch.Agents())
			return nil
		},
	}
}
