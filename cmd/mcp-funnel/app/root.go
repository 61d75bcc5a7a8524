// Package app wires the mcp-funnel CLI's root command, grounded on the
// teacher's cmd/thv/app/commands.go NewRootCmd: persistent --debug/--config
// flags bound through viper, logger.Initialize in PersistentPreRun, and
// subcommand registration.
package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/mcp-funnel/pkg/logger"
)

// NewRootCmd creates the root command for the mcp-funnel CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "mcp-funnel",
		DisableAutoGenTag: true,
		Short:             "mcp-funnel aggregates many MCP servers behind one endpoint",
		Long: `mcp-funnel fans many upstream MCP servers into a single logical MCP
endpoint, applying tool filtering and per-tool schema overrides, while
acting as an OAuth 2.0 authorization server for inbound clients.`,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				logger.Errorf("error displaying help: %v", err)
			}
		},
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logger.Initialize(logger.Options{Debug: viper.GetBool("debug")})
		},
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")

	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Errorf("error binding debug flag: %v", err)
	}
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		logger.Errorf("error binding config flag: %v", err)
	}

	rootCmd.AddCommand(newServeCmd())

	rootCmd.SilenceUsage = true

	return rootCmd
}
