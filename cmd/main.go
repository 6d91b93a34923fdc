// cmd is the rosterd entry point: the roster HTTP API plus maintenance
// commands, all wired from one config file.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rosterd",
	Short: "rosterd - guild event roster service",
	Long: `rosterd schedules guild events from role compositions and lets members
claim one role slot per event, keeping each roster's event message in sync.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "rosterd.yaml", "path to the config file (optional)")
	rootCmd.AddCommand(serveCmd, migrateCmd, sweepCmd, templatesCmd)
}

func main() {
	// errors are printed by the printer package
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
