package upstream

import (
	"context"

	appbsky "github.com/bluesky-social/indigo/api/bsky"

	"github.com/teranos/kcore-analytics/logger"
)

// maxProfileBatch matches app.bsky.actor.getProfiles's documented limit.
const maxProfileBatch = 100

// UserInfo is the per-ID lookup result spec.md §4.3 describes.
type UserInfo struct {
	ScreenName     string
	FollowersCount int
}

// placeholderUser fills an ID that resolveUsers couldn't look up.
var placeholderUser = UserInfo{ScreenName: "@???????", FollowersCount: 0}

// ResolveUsers batches ids into groups of at most maxProfileBatch and looks
// them up via app.bsky.actor.getProfiles, matching spec.md §4.3. Any ID
// missing from the response (deleted/suspended account, or a batch that
// failed outright) is filled with placeholderUser rather than omitted.
func (c *Client) ResolveUsers(ctx context.Context, ids []string) (map[string]UserInfo, error) {
	out := withPlaceholders(ids)

	for _, batch := range batchIDs(ids, maxProfileBatch) {
		resp, err := appbsky.ActorGetProfiles(ctx, c.xrpc, batch)
		if err != nil {
			logger.Logger.Warnw("resolveUsers: batch lookup failed, leaving placeholders", "batch_size", len(batch), "error", err)
			continue
		}
		applyProfiles(out, resp.Profiles)
	}
	return out, nil
}

// withPlaceholders seeds every ID with the placeholder result, so an ID that
// never appears in any successful batch response still resolves to one.
func withPlaceholders(ids []string) map[string]UserInfo {
	out := make(map[string]UserInfo, len(ids))
	for _, id := range ids {
		out[id] = placeholderUser
	}
	return out
}

// batchIDs splits ids into groups of at most size, matching spec.md §4.3's
// "POST a batch of ≤100 IDs".
func batchIDs(ids []string, size int) [][]string {
	var batches [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[start:end])
	}
	return batches
}

func applyProfiles(out map[string]UserInfo, profiles []*appbsky.ActorDefs_ProfileViewDetailed) {
	for _, p := range profiles {
		if p == nil {
			continue
		}
		followers := 0
		if p.FollowersCount != nil {
			followers = int(*p.FollowersCount)
		}
		out[p.Did] = UserInfo{ScreenName: p.Handle, FollowersCount: followers}
	}
}
