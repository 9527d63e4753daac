package cli

import (
	"github.com/spf13/cobra"
)

const version = "0.1.0"

// rootOptions are the global flags shared by every subcommand
type rootOptions struct {
	cfgFile    string
	logLevel   string
	agentsFile string
}

// NewRootCmd builds the command tree. Each call returns fresh flag state.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "switchboard",
		Short: "Switchboard - multi-agent query routing",
		Long: `Switchboard routes queries to the best suited agent based on declared
capabilities and observed performance. Agents switch execution strategies at
runtime without losing memory, retry with backoff and fall back to alternate
strategies when one fails.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is $HOME/.switchboard/switchboard.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.agentsFile, "agents-file", "", "agent definitions file (overrides agents_file in config)")

	// Version template
	cmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)

	cmd.AddCommand(
		newRouteCmd(opts),
		newCollaborateCmd(opts),
		newAgentsCmd(opts),
		newServeCmd(opts),
		newMetricsCmd(opts),
	)

	return cmd
}

// Execute runs the root command. This is called by main.main().
func Execute() error {
	return NewRootCmd().Execute()
}

// GetRootCmd returns a root command for testing
func GetRootCmd() *cobra.Command {
	return NewRootCmd()
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}
