package dispatcher

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/kcore-analytics/analysis"
	"github.com/teranos/kcore-analytics/upstream"
)

// countingAnalyzer blocks on a gate channel until released, letting tests
// observe exactly how many real analyses ran for N coalesced submissions.
type countingAnalyzer struct {
	calls int32
	gate  chan struct{}
}

func (a *countingAnalyzer) Analyze(ctx context.Context, q string, radius int, client *upstream.Client, lang string) (*analysis.Result, error) {
	atomic.AddInt32(&a.calls, 1)
	<-a.gate
	return &analysis.Result{Query: q}, nil
}

func TestDispatcher_CoalescesConcurrentIdenticalQueries(t *testing.T) {
	az := &countingAnalyzer{gate: make(chan struct{})}
	d := New(t.Context(), az, 2, 0, 0, nil, "en", 2, nil)
	defer d.Stop()

	const waiters = 5
	var wg sync.WaitGroup
	results := make([]Result, waiters)
	for i := 0; i < waiters; i++ {
		out, _, err := d.Submit("Clinton OR hillary")
		require.NoError(t, err)
		wg.Add(1)
		go func(idx int, ch <-chan Result) {
			defer wg.Done()
			results[idx] = <-ch
		}(i, out)
	}

	// Give Submit goroutines time to register before releasing the gate.
	time.Sleep(20 * time.Millisecond)
	close(az.gate)
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&az.calls), "exactly one worker should have executed")
	for _, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, "clinton OR hillary", r.Analysis.Query)
	}
}

func TestDispatcher_QueryCaseAndOrderVariantsShareOneBucket(t *testing.T) {
	az := &countingAnalyzer{gate: make(chan struct{})}
	close(az.gate) // don't bother blocking; just check the bucket key
	d := New(t.Context(), az, 1, 0, 0, nil, "en", 2, nil)
	defer d.Stop()

	_, q1, err := d.Submit("Hillary OR clinton")
	require.NoError(t, err)
	_, q2, err := d.Submit("CLINTON or hillary")
	require.NoError(t, err)
	assert.Equal(t, q1, q2)
}

func TestDispatcher_RejectsEmptyQuery(t *testing.T) {
	az := &countingAnalyzer{gate: make(chan struct{})}
	d := New(t.Context(), az, 1, 0, 0, nil, "en", 2, nil)
	defer d.Stop()

	_, _, err := d.Submit("%()*,/")
	assert.Error(t, err)
}

type recordingRecorder struct {
	mu     sync.Mutex
	failed []string
	slow   []string
}

func (r *recordingRecorder) LogFailed(query string, issuedAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, query)
}

func (r *recordingRecorder) LogSlow(query string, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slow = append(r.slow, query)
}

func TestDispatcher_BlackboxFiresForStuckQuery(t *testing.T) {
	az := &countingAnalyzer{gate: make(chan struct{})}
	rec := &recordingRecorder{}
	d := New(t.Context(), az, 1, 10*time.Millisecond, 0, nil, "en", 2, rec)

	out, q, err := d.Submit("stuck query")
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	rec.mu.Lock()
	assert.Contains(t, rec.failed, q)
	rec.mu.Unlock()

	close(az.gate)
	<-out
	d.Stop()
}
