package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/kcore-analytics/analysis"
	"github.com/teranos/kcore-analytics/audit"
	"github.com/teranos/kcore-analytics/config"
	"github.com/teranos/kcore-analytics/credpool"
	"github.com/teranos/kcore-analytics/dispatcher"
	"github.com/teranos/kcore-analytics/errors"
	"github.com/teranos/kcore-analytics/logger"
	"github.com/teranos/kcore-analytics/ranking"
	"github.com/teranos/kcore-analytics/server"
	"github.com/teranos/kcore-analytics/upstream"
)

// ServerCmd starts the kcore-analytics HTTP front door.
var ServerCmd = &cobra.Command{
	Use:     "server",
	Aliases: []string{"serve"},
	Short:   "Start the HTTP server answering influencers.json queries",
	RunE:    runServer,
}

// pooledAnalyzer implements dispatcher.Analyzer by drawing a fresh Upstream
// Client from the Credential Pool for every analysis run, spreading
// rate-limit budget across accounts per spec.md §4.4. It ignores the
// client the Dispatcher would otherwise pass through.
type pooledAnalyzer struct {
	driver *analysis.Driver
	pool   *credpool.Pool
}

func (a *pooledAnalyzer) Analyze(ctx context.Context, q string, radius int, _ *upstream.Client, lang string) (*analysis.Result, error) {
	var client *upstream.Client
	if a.pool.Len() > 0 {
		c, err := a.pool.Next(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "server: failed to acquire upstream client")
		}
		defer c.Disconnect()
		client = c
	}
	return a.driver.Analyze(ctx, q, radius, client, lang)
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	creds, err := credpool.LoadCredentials(cfg.Credentials.Dir, cfg.Credentials.File)
	if err != nil {
		logger.Logger.Warnw("no credentials file found, on-demand queries will rank offline archive only", "error", err)
	}
	pool := credpool.New(cfg.Upstream.BaseURL, creds)

	store, err := audit.Open(cfg.Audit.LogPath, cfg.Audit.SQLitePath)
	if err != nil {
		return errors.Wrap(err, "failed to open audit store")
	}
	defer store.Close()

	driver := analysis.New(cfg.Archive.Root, ranking.ReferenceKernel{})
	analyzer := &pooledAnalyzer{driver: driver, pool: pool}

	workers := cfg.Dispatcher.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := dispatcher.New(
		ctx, analyzer, workers,
		time.Duration(cfg.Dispatcher.BlackboxMS)*time.Millisecond,
		time.Duration(cfg.Server.SlowQueryMS)*time.Millisecond,
		nil, cfg.Upstream.Lang, cfg.Dispatcher.Radius, store,
	)
	defer d.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.New(d),
		ReadHeaderTimeout: server.ReadHeaderTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		pterm.Info.Printf("kcore-analytics listening on :%d (%d workers, %d credentials)\n", cfg.Server.Port, workers, pool.Len())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return errors.Wrap(err, "server failed to start")
	case <-sigChan:
		pterm.Info.Println("shutting down gracefully...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown error")
		}
		pterm.Success.Println("server stopped cleanly")
		return nil
	}
}
