// Package main is the entry point for the apipoller CLI.
//
// Usage:
//
//	apipoller serve --env .env --config config.yaml # poll and publish
//	apipoller validate --config config.yaml        # check a config file
//	apipoller version                              # show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// set at build time via -ldflags "-X main.version=..."
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "apipoller",
	Short: "Poll third-party APIs and publish normalized records to Redis",
	Long: `apipoller polls the Västtrafik departure board, Skolmaten school menus
and Gothenburg traffic cameras on fixed schedules. Every source has its own
request budget; requests over budget are dropped, never queued.

Normalized records are published to Redis under slash separated paths and
announced on a change channel per path.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "apipoller %s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", commit)
		fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
