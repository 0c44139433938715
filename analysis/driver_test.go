package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/teranos/kcore-analytics/adapter"
	"github.com/teranos/kcore-analytics/archive"
	"github.com/teranos/kcore-analytics/ranking"
)

func mkPost(id int64, author, retweetOf string, ts time.Time) adapter.Post {
	return adapter.Post{TweetID: id, Author: author, RetweetOf: retweetOf, Timestamp: ts}
}

func TestDriver_AnalyzeOfflineRanksAndAnnotatesSubgraph(t *testing.T) {
	dir := t.TempDir()
	a, err := archive.Open(dir, "hub-test", nil)
	require.NoError(t, err)

	base := time.Unix(1700000000, 0).UTC()
	posts := []adapter.Post{
		mkPost(1, "hub", "", base),
		mkPost(2, "a", "hub", base.Add(time.Second)),
		mkPost(3, "b", "hub", base.Add(2*time.Second)),
		mkPost(4, "c", "hub", base.Add(3*time.Second)),
	}
	require.NoError(t, a.Append(posts, true))

	d := New(dir, ranking.ReferenceKernel{})
	result, err := d.Analyze(t.Context(), "hub-test", 1, nil, "en")
	require.NoError(t, err)

	require.Contains(t, result.Influencers, "hub")
	hub := result.Influencers["hub"]
	require.Equal(t, 1, hub.Rank)
	require.Equal(t, 3, hub.Connections)

	require.NotEmpty(t, result.Subgraph.Nodes)
	found := false
	for _, n := range result.Subgraph.Nodes {
		if n.ID == "hub" {
			found = true
			require.Equal(t, 2, n.Group, "top 10 of 4 ranked nodes must carry group 2")
		}
	}
	require.True(t, found)
}

func TestDriver_AnalyzeEmptyArchiveReturnsEmptyResult(t *testing.T) {
	dir := t.TempDir()
	_, err := archive.Open(dir, "empty-test", nil)
	require.NoError(t, err)

	d := New(dir, ranking.ReferenceKernel{})
	result, err := d.Analyze(t.Context(), "empty-test", 1, nil, "en")
	require.NoError(t, err)
	require.Empty(t, result.Influencers)
	require.Empty(t, result.Subgraph.Nodes)
}
