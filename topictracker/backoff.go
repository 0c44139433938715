package topictracker

import (
	"math"
	"time"
)

// ErrorTier classifies a cycle failure for backoff purposes, per spec.md
// §4.5's four error tiers.
type ErrorTier int

const (
	TierNone ErrorTier = iota
	TierTCP
	TierHTTP
	TierRateLimit
	TierUnexpected
)

// backoffDuration computes the sleep for count consecutive failures of tier,
// matching spec.md §4.5's exact formulas. count is 1-indexed (the first
// failure already counts as count=1).
func backoffDuration(tier ErrorTier, count int) time.Duration {
	switch tier {
	case TierTCP:
		return secondsToDuration(0.25 * math.Min(float64(count), 64))
	case TierHTTP:
		exp := math.Min(float64(count), 7) - 1
		return secondsToDuration(5 * math.Pow(2, exp))
	case TierRateLimit:
		return secondsToDuration(60 * math.Pow(2, float64(count-1)))
	case TierUnexpected:
		return secondsToDuration(5 * math.Min(float64(count), 10))
	default:
		return 0
	}
}

// secondsToDuration converts a fractional second count to a time.Duration
// without truncating sub-second precision (a plain `time.Duration(secs) *
// time.Second` cast would floor to whole seconds first).
func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// perQueryBudget returns (maxRequests, timeAlloc) for n queries at the given
// evenness, clamping evenness to [1, 450/n] per spec.md §4.5.
func perQueryBudget(n int, evenness float64) (maxRequests int, timeAlloc time.Duration) {
	if n <= 0 {
		return 0, 0
	}
	upper := 450.0 / float64(n)
	if evenness < 1 {
		evenness = 1
	}
	if evenness > upper {
		evenness = upper
	}
	maxRequests = int(450.0 / (float64(n) * evenness))
	timeAlloc = time.Duration(15*60/(float64(n)*evenness)*float64(time.Second))
	return maxRequests, timeAlloc
}
