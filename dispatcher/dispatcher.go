// Package dispatcher implements the request coalescer (spec.md §4.1):
// identical in-flight queries share a single analysis run, parallelism is
// bounded by a worker pool, and every waiter observes exactly one
// resolution.
package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/teranos/kcore-analytics/analysis"
	"github.com/teranos/kcore-analytics/errors"
	"github.com/teranos/kcore-analytics/logger"
	"github.com/teranos/kcore-analytics/query"
	"github.com/teranos/kcore-analytics/upstream"
)

// Result is the single-assignment value every waiter for a query
// eventually receives.
type Result struct {
	Analysis *analysis.Result
	Err      error
}

// Analyzer is the seam Dispatcher runs jobs through; *analysis.Driver
// satisfies it. Accepting the interface (rather than the concrete type)
// keeps the coalescing logic testable without a real archive/upstream.
type Analyzer interface {
	Analyze(ctx context.Context, q string, radius int, client *upstream.Client, lang string) (*analysis.Result, error)
}

// Recorder is the Audit store's seam into the Dispatcher: LogFailed fires
// when a query has been in flight longer than the configured blackbox
// window (it may still succeed afterward); LogSlow fires once a query
// resolves past the slowQuery threshold.
type Recorder interface {
	LogFailed(query string, issuedAt time.Time)
	LogSlow(query string, elapsed time.Duration)
}

// Dispatcher coalesces identical normalized queries and runs at most one
// Analysis Driver invocation per query at a time, per spec.md §4.1's
// submit/run model.
type Dispatcher struct {
	driver   Analyzer
	client   *upstream.Client
	lang     string
	radius   int
	blackbox time.Duration
	// slowQuery matches spec.md §6.1's server.slow_query_ms threshold:
	// the original collector's "we promised this would be fast" bound,
	// past which a resolved query is logged as SLOW.
	slowQuery time.Duration
	recorder  Recorder

	mu      sync.Mutex
	pending map[string][]chan Result
	jobs    chan string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Dispatcher backed by driver, running analyses at radius
// with workers goroutines, coalescing on ctx's lifetime. client is
// optional (nil skips the archive fill step, see analysis.Driver.Analyze);
// recorder is optional (nil disables blackbox/slow-query logging).
func New(ctx context.Context, driver Analyzer, workers int, blackbox, slowQuery time.Duration, client *upstream.Client, lang string, radius int, recorder Recorder) *Dispatcher {
	dctx, cancel := context.WithCancel(ctx)
	d := &Dispatcher{
		driver:    driver,
		client:    client,
		lang:      lang,
		radius:    radius,
		blackbox:  blackbox,
		slowQuery: slowQuery,
		recorder:  recorder,
		pending:   make(map[string][]chan Result),
		jobs:      make(chan string, workers*4),
		ctx:       dctx,
		cancel:    cancel,
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Stop cancels the run loop and waits for in-flight workers to finish
// their current job before returning.
func (d *Dispatcher) Stop() {
	d.cancel()
	d.wg.Wait()
}

// Submit implements spec.md §4.1's submit(Q, waiter): normalizes the raw
// query, registers a waiter, and enqueues exactly one worker job per
// distinct in-flight query. The returned channel receives exactly one
// Result and is then closed.
func (d *Dispatcher) Submit(rawQuery string) (<-chan Result, string, error) {
	q := query.Normalize(rawQuery)
	if !query.Valid(q) {
		return nil, q, errors.New("dispatcher: empty or invalid query")
	}

	issuedAt := time.Now()
	raw := make(chan Result, 1)

	d.mu.Lock()
	_, inFlight := d.pending[q]
	d.pending[q] = append(d.pending[q], raw)
	d.mu.Unlock()

	if !inFlight {
		select {
		case d.jobs <- q:
		case <-d.ctx.Done():
			d.resolve(q, Result{Err: d.ctx.Err()})
		}
	}

	out := make(chan Result, 1)
	go d.trackWaiter(q, issuedAt, raw, out)
	return out, q, nil
}

// trackWaiter bridges the coalesced worker result to one caller's waiter,
// applying the blackbox/slow-query audit hooks around the wait.
func (d *Dispatcher) trackWaiter(q string, issuedAt time.Time, raw <-chan Result, out chan<- Result) {
	var timer *time.Timer
	if d.recorder != nil && d.blackbox > 0 {
		timer = time.AfterFunc(d.blackbox, func() {
			d.recorder.LogFailed(q, issuedAt)
		})
	}

	res := <-raw

	if timer != nil {
		timer.Stop()
	}
	if d.recorder != nil && d.slowQuery > 0 {
		if elapsed := time.Since(issuedAt); elapsed > d.slowQuery {
			d.recorder.LogSlow(q, elapsed)
		}
	}
	out <- res
	close(out)
}

// worker drains jobs and runs one analysis at a time per job, per spec.md
// §4.1's "at most one worker per Q runs concurrently" (enforced by Submit
// only enqueuing Q once while it's in flight).
func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case q := <-d.jobs:
			d.runOne(q)
		}
	}
}

func (d *Dispatcher) runOne(q string) {
	result, err := d.driver.Analyze(d.ctx, q, d.radius, d.client, d.lang)
	if err != nil {
		logger.Logger.Warnw("dispatcher: analysis failed", "query", q, "error", err)
	}
	d.resolve(q, Result{Analysis: result, Err: err})
}

// resolve pops every waiter registered for q and delivers res to each,
// per spec.md §8 invariant 6: every waiter observes exactly one
// resolution, delivery order unspecified.
func (d *Dispatcher) resolve(q string, res Result) {
	d.mu.Lock()
	waiters := d.pending[q]
	delete(d.pending, q)
	d.mu.Unlock()

	for _, w := range waiters {
		w <- res
		close(w)
	}
}
