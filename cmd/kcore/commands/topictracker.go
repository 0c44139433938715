package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/kcore-analytics/config"
	"github.com/teranos/kcore-analytics/credpool"
	"github.com/teranos/kcore-analytics/errors"
	"github.com/teranos/kcore-analytics/query"
	"github.com/teranos/kcore-analytics/topictracker"
)

var topicTrackerEvenness float64

// TopicTrackerCmd runs the long-lived fair collector over a fixed query
// list, per spec.md §4.5. Queries are given as positional arguments rather
// than a config key, for one-off collection runs against an ad hoc list.
var TopicTrackerCmd = &cobra.Command{
	Use:     "topictracker [query...]",
	Aliases: []string{"track"},
	Short:   "Run the fair round-robin collector across a fixed list of queries",
	Args:    cobra.MinimumNArgs(1),
	RunE:    runTopicTracker,
}

func init() {
	TopicTrackerCmd.Flags().Float64Var(&topicTrackerEvenness, "evenness", 0, "override topictracker.evenness from config (0 uses the configured default)")
}

func runTopicTracker(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	creds, err := credpool.LoadCredentials(cfg.Credentials.Dir, cfg.Credentials.File)
	if err != nil {
		return errors.Wrap(err, "failed to load credentials")
	}
	pool := credpool.New(cfg.Upstream.BaseURL, creds)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := pool.Next(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to acquire upstream client")
	}
	defer client.Disconnect()

	normalized := make([]string, len(args))
	for i, q := range args {
		normalized[i] = query.Normalize(q)
	}

	evenness := cfg.TopicTracker.Evenness
	if topicTrackerEvenness > 0 {
		evenness = topicTrackerEvenness
	}

	tr := topictracker.New(cfg.Archive.Root, client, normalized, evenness, cfg.Upstream.Lang)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		pterm.Info.Println("topictracker: shutting down after the current query...")
		cancel()
	}()

	pterm.Info.Printf("topictracker: tracking %d queries\n", len(normalized))
	return tr.Run(ctx)
}
