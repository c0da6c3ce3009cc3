package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the whenfree application
var rootCmd = &cobra.Command{
	Use:   "whenfree",
	Short: "Aggregates Google calendars into one schedule and finds free time",
	Long: `whenfree links one or more Google accounts and merges their calendars
into a single schedule. It can also search the merged free/busy data for
open meeting slots.

It can run as:
  - A standalone CLI tool (schedule, free)
  - An MCP (Model Context Protocol) server for AI assistants (serve)`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "whenfree version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newLinkCmd())
	rootCmd.AddCommand(newUnlinkCmd())
	rootCmd.AddCommand(newScheduleCmd())
	rootCmd.AddCommand(newFreeCmd())
}
