package topictracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDuration_TCPLinear(t *testing.T) {
	assert.Equal(t, 250*time.Millisecond, backoffDuration(TierTCP, 1))
	assert.Equal(t, 2500*time.Millisecond, backoffDuration(TierTCP, 10))
	// Capped at count=64.
	assert.Equal(t, backoffDuration(TierTCP, 64), backoffDuration(TierTCP, 200))
}

func TestBackoffDuration_HTTPExponentialCapped(t *testing.T) {
	assert.Equal(t, 5*time.Second, backoffDuration(TierHTTP, 1))
	assert.Equal(t, 10*time.Second, backoffDuration(TierHTTP, 2))
	assert.Equal(t, 20*time.Second, backoffDuration(TierHTTP, 3))
	// Capped at count=7: 5*2^6 = 320s.
	assert.Equal(t, 320*time.Second, backoffDuration(TierHTTP, 7))
	assert.Equal(t, backoffDuration(TierHTTP, 7), backoffDuration(TierHTTP, 20))
}

func TestBackoffDuration_RateLimitExponentialUncapped(t *testing.T) {
	assert.Equal(t, 60*time.Second, backoffDuration(TierRateLimit, 1))
	assert.Equal(t, 120*time.Second, backoffDuration(TierRateLimit, 2))
	assert.Equal(t, 240*time.Second, backoffDuration(TierRateLimit, 3))
}

func TestBackoffDuration_UnexpectedLinearCapped(t *testing.T) {
	assert.Equal(t, 5*time.Second, backoffDuration(TierUnexpected, 1))
	assert.Equal(t, 25*time.Second, backoffDuration(TierUnexpected, 5))
	assert.Equal(t, backoffDuration(TierUnexpected, 10), backoffDuration(TierUnexpected, 50))
}

func TestBackoffDuration_None(t *testing.T) {
	assert.Zero(t, backoffDuration(TierNone, 5))
}

func TestPerQueryBudget_EvennessClampedToOne(t *testing.T) {
	maxRequests, timeAlloc := perQueryBudget(5, 0.1)
	// evenness below 1 clamps to 1: max_requests = 450/5 = 90.
	assert.Equal(t, 90, maxRequests)
	assert.Equal(t, 180*time.Second, timeAlloc)
}

func TestPerQueryBudget_EvennessClampedToUpperBound(t *testing.T) {
	// upper bound is 450/n; requesting far above it clamps down.
	maxRequests, _ := perQueryBudget(5, 1000)
	assert.Equal(t, 1, maxRequests)
}

func TestPerQueryBudget_ZeroQueries(t *testing.T) {
	maxRequests, timeAlloc := perQueryBudget(0, 1)
	assert.Zero(t, maxRequests)
	assert.Zero(t, timeAlloc)
}
