package upstream

import (
	"testing"

	appbsky "github.com/bluesky-social/indigo/api/bsky"
	"github.com/stretchr/testify/assert"
)

func TestBatchIDs_SplitsAtBoundary(t *testing.T) {
	ids := make([]string, 250)
	for i := range ids {
		ids[i] = "id"
	}
	batches := batchIDs(ids, maxProfileBatch)
	assert.Len(t, batches, 3)
	assert.Len(t, batches[0], 100)
	assert.Len(t, batches[1], 100)
	assert.Len(t, batches[2], 50)
}

func TestBatchIDs_Empty(t *testing.T) {
	assert.Empty(t, batchIDs(nil, maxProfileBatch))
}

func TestWithPlaceholders_FillsEveryID(t *testing.T) {
	out := withPlaceholders([]string{"a", "b"})
	assert.Equal(t, placeholderUser, out["a"])
	assert.Equal(t, placeholderUser, out["b"])
}

func TestApplyProfiles_OverridesPlaceholderAndLeavesMissing(t *testing.T) {
	out := withPlaceholders([]string{"did:plc:a", "did:plc:b"})
	followers := int64(42)
	applyProfiles(out, []*appbsky.ActorDefs_ProfileViewDetailed{
		{Did: "did:plc:a", Handle: "alice.bsky.social", FollowersCount: &followers},
		nil,
	})

	assert.Equal(t, UserInfo{ScreenName: "alice.bsky.social", FollowersCount: 42}, out["did:plc:a"])
	assert.Equal(t, placeholderUser, out["did:plc:b"])
}
