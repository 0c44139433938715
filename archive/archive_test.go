package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/kcore-analytics/adapter"
)

func mkPost(id int64, author string, retweetOf string, mentions []string, secsAgo int) adapter.Post {
	return adapter.Post{
		TweetID:   id,
		Timestamp: time.Unix(1700000000+int64(secsAgo), 0).UTC(),
		Author:    author,
		RetweetOf: retweetOf,
		Mentions:  mentions,
	}
}

func openTestArchive(t *testing.T, query string) *Archive {
	t.Helper()
	root := t.TempDir()
	a, err := Open(root, query, nil)
	require.NoError(t, err)
	return a
}

func TestArchive_OpenCreatesEmptyIndex(t *testing.T) {
	a := openTestArchive(t, "golang")
	b := a.Bounds()
	assert.Nil(t, b.MinID)
	assert.Nil(t, b.MaxID)

	idxPath := filepath.Join(a.Dir(), "index.arx")
	_, err := os.Stat(idxPath)
	require.NoError(t, err)
}

func TestArchive_AppendUnfinishedAgainstNewestTail(t *testing.T) {
	a := openTestArchive(t, "golang")

	// Posts arrive newest-first.
	posts := []adapter.Post{
		mkPost(300, "carol", "", nil, 0),
		mkPost(200, "bob", "", nil, 10),
		mkPost(100, "alice", "", nil, 20),
	}
	require.NoError(t, a.Append(posts, false))

	b := a.Bounds()
	require.NotNil(t, b.MaxID)
	assert.Equal(t, int64(100), *b.MaxID)
	assert.Nil(t, b.MinID)

	require.NotNil(t, a.arx.Unfinished)
	assert.Equal(t, 3, a.arx.Unfinished.Count)
}

func TestArchive_AppendFinishedAgainstNewestTail(t *testing.T) {
	a := openTestArchive(t, "golang")

	posts := []adapter.Post{
		mkPost(300, "carol", "bob", nil, 0),
		mkPost(200, "bob", "", nil, 10),
		mkPost(100, "alice", "", nil, 20),
	}
	require.NoError(t, a.Append(posts, true))

	require.Len(t, a.arx.Finished, 1)
	fin := a.arx.Finished[0]
	require.NotNil(t, fin.MinID)
	require.NotNil(t, fin.MaxID)
	assert.Equal(t, int64(100), *fin.MinID)
	assert.Equal(t, int64(300), *fin.MaxID)
	assert.Equal(t, 3, fin.Count)

	// Finished segments are stored oldest-first on disk.
	data, err := os.ReadFile(filepath.Join(a.Dir(), fin.Name))
	require.NoError(t, err)
	var firstPost adapter.Post
	firstLine := data[:indexOfNewline(data)]
	require.NoError(t, json.Unmarshal(firstLine, &firstPost))
	assert.Equal(t, int64(100), firstPost.TweetID)
}

func indexOfNewline(b []byte) int {
	for i, c := range b {
		if c == '\n' {
			return i
		}
	}
	return len(b)
}

func TestArchive_AppendUnfinishedThenFinishedMigratesGap(t *testing.T) {
	a := openTestArchive(t, "golang")

	// First: a gap collected against the newest tail, left unfinished.
	require.NoError(t, a.Append([]adapter.Post{
		mkPost(300, "carol", "", nil, 0),
		mkPost(200, "bob", "", nil, 10),
	}, false))
	require.NotNil(t, a.arx.Unfinished)

	// Then: an older, now-exhausted gap that abuts the unfinished segment's
	// floor, which must fold the unfinished segment into the finished chain.
	require.NoError(t, a.Append([]adapter.Post{
		mkPost(199, "alice", "", nil, 20),
		mkPost(100, "dan", "", nil, 30),
	}, true))

	assert.Nil(t, a.arx.Unfinished)
	require.Len(t, a.arx.Finished, 1)
	fin := a.arx.Finished[0]
	require.NotNil(t, fin.MinID)
	require.NotNil(t, fin.MaxID)
	// The exhausted batch (100, 199) and the folded-in unfinished segment
	// (200, 300) together cover the full contiguous range.
	assert.Equal(t, int64(100), *fin.MinID)
	assert.Equal(t, int64(300), *fin.MaxID)
	assert.Equal(t, 4, fin.Count)

	lines, err := bufioLines(mustOpen(t, filepath.Join(a.Dir(), fin.Name)))
	require.NoError(t, err)
	require.Len(t, lines, 4)
	var ids []int64
	for _, l := range lines {
		p, ok := parsePostLine(l)
		require.True(t, ok)
		ids = append(ids, p.TweetID)
	}
	assert.Equal(t, []int64{100, 199, 200, 300}, ids)
}

func mustOpen(t *testing.T, path string) *os.File {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestArchive_BoundsMonotonicAcrossAppends(t *testing.T) {
	a := openTestArchive(t, "golang")

	// With no unfinished segment yet, each exhausted batch extends the
	// latest finished segment's forward edge; the gap floor can only move
	// forward, never back into territory already sealed.
	require.NoError(t, a.Append([]adapter.Post{mkPost(500, "a", "", nil, 20)}, true))
	b1 := a.Bounds()
	require.NoError(t, a.Append([]adapter.Post{mkPost(600, "b", "", nil, 0)}, true))
	b2 := a.Bounds()

	require.NotNil(t, b1.MinID)
	require.NotNil(t, b2.MinID)
	assert.Greater(t, *b2.MinID, *b1.MinID)
}

func TestArchive_BuildGraphInfluenceUnion(t *testing.T) {
	a := openTestArchive(t, "golang")

	posts := []adapter.Post{
		mkPost(300, "carol", "bob", nil, 0),
		mkPost(200, "bob", "", []string{"alice"}, 10),
		mkPost(100, "alice", "", nil, 20),
	}
	require.NoError(t, a.Append(posts, true))

	g, err := a.BuildGraph(nil, nil, GraphInfluence, false)
	require.NoError(t, err)

	found := map[[2]string]bool{}
	for _, l := range g.Links {
		found[[2]string{l.Source, l.Target}] = true
	}
	assert.True(t, found[[2]string{"bob", "carol"}])
	assert.True(t, found[[2]string{"alice", "bob"}])
}

func TestArchive_BuildGraphBoundaryReparseFiltersOutOfRange(t *testing.T) {
	a := openTestArchive(t, "golang")

	posts := []adapter.Post{
		mkPost(300, "carol", "bob", nil, 0),
		mkPost(200, "bob", "dan", nil, 10),
		mkPost(100, "alice", "", nil, 20),
	}
	require.NoError(t, a.Append(posts, true))

	min := int64(250)
	g, err := a.BuildGraph(&min, nil, GraphRetweet, false)
	require.NoError(t, err)

	var sources []string
	for _, l := range g.Links {
		sources = append(sources, l.Source+"->"+l.Target)
	}
	assert.Contains(t, sources, "bob->carol")
	assert.NotContains(t, sources, "dan->bob")
}

func TestArchive_IterateForwardAndBackward(t *testing.T) {
	a := openTestArchive(t, "golang")

	require.NoError(t, a.Append([]adapter.Post{
		mkPost(300, "c", "", nil, 0),
		mkPost(200, "b", "", nil, 10),
		mkPost(100, "a", "", nil, 20),
	}, true))
	require.NoError(t, a.Append([]adapter.Post{
		mkPost(500, "e", "", nil, 0),
		mkPost(400, "d", "", nil, 5),
	}, false))

	fwd, err := a.Iterate(nil, nil, Forward)
	require.NoError(t, err)
	var fwdIDs []int64
	for _, p := range fwd {
		fwdIDs = append(fwdIDs, p.TweetID)
	}
	assert.Equal(t, []int64{100, 200, 300, 400, 500}, fwdIDs)

	back, err := a.Iterate(nil, nil, Backward)
	require.NoError(t, err)
	var backIDs []int64
	for _, p := range back {
		backIDs = append(backIDs, p.TweetID)
	}
	assert.Equal(t, []int64{500, 400, 300, 200, 100}, backIDs)
}

func TestArchive_VerifyIndexRepairsDamagedEntry(t *testing.T) {
	a := openTestArchive(t, "golang")
	require.NoError(t, a.Append([]adapter.Post{
		mkPost(300, "c", "", nil, 0),
		mkPost(100, "a", "", nil, 20),
	}, true))

	// Simulate a crash between writing the segment and persisting bounds.
	a.arx.Finished[0].MinID = nil
	a.arx.Finished[0].MaxID = nil

	require.NoError(t, a.VerifyIndex())

	require.NotNil(t, a.arx.Finished[0].MinID)
	require.NotNil(t, a.arx.Finished[0].MaxID)
	assert.Equal(t, int64(100), *a.arx.Finished[0].MinID)
	assert.Equal(t, int64(300), *a.arx.Finished[0].MaxID)

	// The repair must also have been persisted to disk atomically.
	data, err := os.ReadFile(filepath.Join(a.Dir(), "index.arx"))
	require.NoError(t, err)
	var reloaded Arx
	require.NoError(t, json.Unmarshal(data, &reloaded))
	require.NotNil(t, reloaded.Finished[0].MinID)
	assert.Equal(t, int64(100), *reloaded.Finished[0].MinID)
}

func TestArchive_GnipQuerySelectsGenericAdapterAndRoundTripsStorage(t *testing.T) {
	a := openTestArchive(t, "gnip_election2026")

	require.NoError(t, a.Append([]adapter.Post{
		mkPost(200, "b", "a", nil, 0),
		mkPost(100, "a", "", nil, 10),
	}, true))

	// Segments always hold adapter.Post JSON regardless of adapter choice,
	// so reading the gnip-selected archive's own segments back must still
	// recover real bounds rather than silently zero-valuing everything.
	require.Len(t, a.arx.Finished, 1)
	require.NotNil(t, a.arx.Finished[0].MinID)
	assert.Equal(t, int64(100), *a.arx.Finished[0].MinID)

	g, err := a.BuildGraph(nil, nil, GraphRetweet, false)
	require.NoError(t, err)
	require.Len(t, g.Links, 1)
	assert.Equal(t, "a", g.Links[0].Source)
	assert.Equal(t, "b", g.Links[0].Target)
}
