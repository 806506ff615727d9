// Package cmd implements the CLI commands for the pwc-deal-tracker server.
package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "pwc-deal-tracker",
	Short: "Track personal watercraft listings and spot deals",
	Long: "A single-operator service that ingests personal watercraft listings " +
		"from multiple capture devices, deduplicates them into a canonical dataset, " +
		"and values each listing against a depreciation model to surface deals.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (in-memory defaults when empty)")
	rootCmd.AddCommand(versionCommand())
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
