package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/switchboard/internal/config"
)

func newMetricsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Print per-agent performance stats from the stats store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			if cfg.Stats.Store == config.StatsStoreNone {
				return fmt.Errorf("stats persistence is disabled (stats.store = none)")
			}

			store, err := openStatsStore(cfg.Stats)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Load()
			if err != nil {
				return fmt.Errorf("failed to load stats: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(stats) == 0 {
				fmt.Fprintln(out, "No stats recorded yet")
				return nil
			}
			printStoredStats(out, stats)
			return nil
		},
	}
}
