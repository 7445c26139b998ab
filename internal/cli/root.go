// Package cli provides the command-line interface for castle.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ianyh/castle/internal/cli/commands"
	"github.com/ianyh/castle/internal/cli/config"
)

var cfgFile string

// Version information (set at build time).
var Version = "0.1.0"

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "castle",
		Short: "Castle - spreadsheet snapshot and search",
		Long: `Castle syncs a community-maintained spreadsheet into a local searchable
snapshot: full-text search, row relationships, curated specials, and an
HTTP API over the synced data.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			logger := config.NewLogger(cfg.Verbose)
			cmd.SetContext(config.WithLogger(cmd.Context(), logger))

			if cfg.Verbose {
				if configFile := config.GetConfigFileUsed(); configFile != "" {
					fmt.Fprintf(os.Stderr, "Using config file: %s\n", configFile)
				}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./castle.yaml)")
	rootCmd.PersistentFlags().String("spreadsheet-id", "", "Source spreadsheet id")
	rootCmd.PersistentFlags().String("api-key", "", "Sheets API key")
	rootCmd.PersistentFlags().String("database", "", "Path to the snapshot database")
	rootCmd.PersistentFlags().String("cache-dir", "", "Path to the image cache directory")
	rootCmd.PersistentFlags().Int("port", 0, "API server port")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewSyncCommand())
	rootCmd.AddCommand(commands.NewSearchCommand())
	rootCmd.AddCommand(commands.NewSheetsCommand())
	rootCmd.AddCommand(commands.NewRowCommand())
	rootCmd.AddCommand(commands.NewSpecialsCommand())
	rootCmd.AddCommand(commands.NewPreloadCommand())
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewStatusCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
