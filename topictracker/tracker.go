// Package topictracker runs the long-lived fair collector loop across a
// fixed list of queries, per spec.md §4.5.
package topictracker

import (
	"context"
	"time"

	"github.com/teranos/kcore-analytics/archive"
	"github.com/teranos/kcore-analytics/logger"
	"github.com/teranos/kcore-analytics/upstream"
)

// Tracker cycles archiveSearch calls across a fixed query list, sharing the
// 450-request/15-minute AT Protocol rate budget fairly between them.
type Tracker struct {
	archiveRoot string
	client      *upstream.Client
	queries     []string
	evenness    float64
	lang        string

	tier  ErrorTier
	count int
}

// New builds a Tracker over queries (already normalized), collecting into
// archiveRoot via client.
func New(archiveRoot string, client *upstream.Client, queries []string, evenness float64, lang string) *Tracker {
	return &Tracker{
		archiveRoot: archiveRoot,
		client:      client,
		queries:     queries,
		evenness:    evenness,
		lang:        lang,
	}
}

// Run executes cycles until ctx is cancelled, matching spec.md §4.5's
// "interrupt signals terminate cleanly".
func (tr *Tracker) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := tr.cycle(ctx); err != nil {
			return err
		}
	}
}

func (tr *Tracker) cycle(ctx context.Context) error {
	maxRequests, timeAlloc := perQueryBudget(len(tr.queries), tr.evenness)

	for _, q := range tr.queries {
		if ctx.Err() != nil {
			return nil
		}
		start := time.Now()

		arx, err := archive.Open(tr.archiveRoot, q, nil)
		if err != nil {
			tr.fail(TierUnexpected, err)
			if slept := tr.sleepBackoff(ctx); slept {
				continue
			}
			return err
		}

		_, searchErr := tr.client.ArchiveSearch(ctx, arx, q, maxRequests, true, false, true, tr.lang)
		if searchErr != nil {
			tr.fail(classifyError(searchErr), searchErr)
			tr.sleepBackoff(ctx)
			continue
		}

		tr.succeed()

		elapsed := time.Since(start)
		if remaining := timeAlloc - elapsed; remaining > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(remaining):
			}
		}
	}
	return nil
}

// classifyError maps an archiveSearch failure onto one of spec.md §4.5's
// error tiers, using the same classifiers searchSafe applies at the page
// level.
func classifyError(err error) ErrorTier {
	switch {
	case upstream.IsRateLimited(err):
		return TierRateLimit
	case upstream.IsNetworkError(err):
		return TierTCP
	default:
		return TierUnexpected
	}
}

func (tr *Tracker) fail(tier ErrorTier, err error) {
	if tr.tier == tier {
		tr.count++
	} else {
		tr.tier = tier
		tr.count = 1
	}
	logger.Logger.Warnw("topic tracker cycle failed", "tier", tier, "count", tr.count, "error", err)
}

func (tr *Tracker) succeed() {
	tr.tier = TierNone
	tr.count = 0
}

// sleepBackoff sleeps for the current tier/count's backoff duration,
// returning false if ctx was cancelled first.
func (tr *Tracker) sleepBackoff(ctx context.Context) bool {
	d := backoffDuration(tr.tier, tr.count)
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
