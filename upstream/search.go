package upstream

import (
	"context"
	"strings"
	"time"

	appbsky "github.com/bluesky-social/indigo/api/bsky"

	"github.com/teranos/kcore-analytics/adapter"
	"github.com/teranos/kcore-analytics/archive"
	"github.com/teranos/kcore-analytics/errors"
	"github.com/teranos/kcore-analytics/logger"
)

const (
	rateLimitWait       = 60 * time.Second
	rateLimitMaxWaits   = 15
	jsonParseRetries    = 3
	shortPageThreshold  = 10
	consecutiveShortCap = 3
)

// IsRateLimited maps an XRPC error onto the abstract "HTTP 429" contract
// spec.md §4.3 describes, per SPEC_FULL.md §1.1's cursor/rate-limit binding.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "ratelimitexceeded") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "429")
}

// searchSafe wraps a single page request per spec.md §4.3: JSON-parse retry,
// rate-limit detection with an optional fixed wait loop, and
// reconnect-and-retry on network errors within the same attempt.
func (c *Client) searchSafe(ctx context.Context, query, lang, cursor string, until *time.Time, retryOnRateLimit bool) (posts []adapter.Post, nextCursor string, rateLimited bool, err error) {
	var untilStr string
	if until != nil {
		untilStr = until.UTC().Format(time.RFC3339)
	}

	waits := 0
	for attempt := 0; attempt < jsonParseRetries; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, cursor, false, err
			}
		}
		out, reqErr := appbsky.FeedSearchPosts(ctx, c.xrpc, "", cursor, "", lang, 100, "", query, "", "", nil, untilStr)
		if reqErr != nil {
			if IsRateLimited(reqErr) {
				if !retryOnRateLimit {
					return nil, cursor, true, nil
				}
				if waits >= rateLimitMaxWaits {
					return nil, cursor, true, errors.Newf("searchSafe: exceeded %d rate-limit waits", rateLimitMaxWaits)
				}
				waits++
				logger.Logger.Warnw("upstream rate limited, waiting", "wait_number", waits)
				select {
				case <-ctx.Done():
					return nil, cursor, true, ctx.Err()
				case <-time.After(rateLimitWait):
				}
				// retry the same attempt slot against the rate limit, not the JSON-parse budget
				attempt--
				continue
			}
			if IsNetworkError(reqErr) {
				if refreshErr := c.refresh(ctx); refreshErr != nil {
					logger.Logger.Warnw("upstream reconnect failed", "error", refreshErr)
				}
				// reconnect-and-retry stays within the same attempt slot
				attempt--
				continue
			}
			// Treat anything else (including malformed-response decode
			// failures surfaced by the xrpc layer) as the transient
			// malformed-JSON case and retry up to jsonParseRetries.
			logger.Logger.Debugw("searchSafe transient failure, retrying", "attempt", attempt, "error", reqErr)
			continue
		}

		converted := make([]adapter.Post, 0, len(out.Posts))
		for _, pv := range out.Posts {
			converted = append(converted, c.ConvertPost(pv))
		}
		next := ""
		if out.Cursor != nil {
			next = *out.Cursor
		}
		return converted, next, false, nil
	}
	return nil, cursor, false, errors.Newf("searchSafe: exhausted %d retries for transient errors", jsonParseRetries)
}

func IsNetworkError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "eof")
}

// nextExhaustionCount and isExhaustedPage implement spec.md §4.3's
// "three consecutive short pages, or any empty page" exhaustion rule as
// pure functions, independent of the network, so the policy is directly
// testable (S5).
func nextExhaustionCount(prevCount, pageLen int) int {
	if pageLen < shortPageThreshold {
		return prevCount + 1
	}
	return 0
}

func isExhaustedPage(pageLen, exhaustionCount int) bool {
	return pageLen == 0 || exhaustionCount >= consecutiveShortCap
}

// finalExhausted folds the real exhaustion signal together with the
// rate-limit and auto-exhaust overrides per spec.md §4.3's final clause.
func finalExhausted(realExhausted, rateLimited, exhaustOnRatelimit, autoExhaust bool) bool {
	return realExhausted || (rateLimited && exhaustOnRatelimit) || autoExhaust
}

// ArchiveSearchResult reports the outcome of one archiveSearch run.
type ArchiveSearchResult struct {
	Exhausted   bool
	RateLimited bool
	PagesFetched int
}

// ArchiveSearch pages through the archive's current gap (bounds()),
// appending every page. See spec.md §4.3 for the full page-accounting and
// exhaustion semantics.
func (c *Client) ArchiveSearch(ctx context.Context, arx *archive.Archive, query string, requestLimit int, waitOnRateLimit, exhaustOnRatelimit, autoExhaust bool, lang string) (ArchiveSearchResult, error) {
	if requestLimit == 0 && waitOnRateLimit {
		return ArchiveSearchResult{}, errors.New("archiveSearch: request_limit=0 forbids wait_on_rate_limit=true")
	}

	bounds := arx.Bounds()
	until := bounds.MaxTS

	cursor := ""
	exhaustionCount := 0
	pages := 0
	realExhausted := false
	rateLimited := false

	for requestLimit == 0 || pages < requestLimit {
		posts, next, rl, err := c.searchSafe(ctx, query, lang, cursor, until, waitOnRateLimit)
		if err != nil {
			return ArchiveSearchResult{PagesFetched: pages}, err
		}
		if rl {
			rateLimited = true
			break
		}
		pages++

		exhaustionCount = nextExhaustionCount(exhaustionCount, len(posts))
		realExhausted = isExhaustedPage(len(posts), exhaustionCount)
		last := realExhausted || (requestLimit != 0 && pages >= requestLimit)

		if err := arx.Append(posts, last && finalExhausted(realExhausted, rateLimited, exhaustOnRatelimit, autoExhaust)); err != nil {
			return ArchiveSearchResult{PagesFetched: pages}, errors.Wrap(err, "archiveSearch: append failed")
		}

		if last {
			break
		}

		cursor = next
		until = tightenUntil(posts, until)
	}

	return ArchiveSearchResult{
		Exhausted:    finalExhausted(realExhausted, rateLimited, exhaustOnRatelimit, autoExhaust),
		RateLimited:  rateLimited,
		PagesFetched: pages,
	}, nil
}

// tightenUntil narrows the page boundary to just before the oldest post
// seen in this page, so the next page can't re-fetch the same content.
func tightenUntil(posts []adapter.Post, prev *time.Time) *time.Time {
	if len(posts) == 0 {
		return prev
	}
	oldest := posts[len(posts)-1].Timestamp
	t := oldest.Add(-time.Nanosecond)
	return &t
}
