package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/kcore-analytics/cmd/kcore/commands"
	"github.com/teranos/kcore-analytics/logger"
)

var rootCmd = &cobra.Command{
	Use:   "kcore",
	Short: "kcore-analytics - on-demand social-media influence analytics service",
	Long: `kcore-analytics collects posts matching a keyword query, extracts an
interaction graph, ranks influencers by collective influence, and serves the
result over HTTP.

Available commands:
  server       - Start the HTTP front door
  topictracker - Run the long-lived fair collector over a fixed query list
  version      - Show build information`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logger.Initialize(false)
	},
}

func init() {
	rootCmd.AddCommand(commands.ServerCmd)
	rootCmd.AddCommand(commands.TopicTrackerCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
