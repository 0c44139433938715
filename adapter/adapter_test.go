package adapter

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestATProto_RoundTrip(t *testing.T) {
	p := Post{TweetID: 42, Author: "alice.bsky.social", RetweetOf: "bob.bsky.social", Mentions: []string{"carol.bsky.social"}}
	raw, err := json.Marshal(p)
	require.NoError(t, err)

	a := ATProto{}
	got, err := a.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, p.TweetID, got.TweetID)
	assert.Equal(t, p.Author, got.Author)

	author, infl := a.RetweetInfluencers(got)
	assert.Equal(t, "alice.bsky.social", author)
	assert.Equal(t, []string{"bob.bsky.social"}, infl)
}

func TestAdapter_TotalOnMalformedInput(t *testing.T) {
	a := ATProto{}
	got, err := a.Parse([]byte("not json"))
	require.NoError(t, err)
	assert.Equal(t, Post{}, got)

	g := GenericJSON{}
	got2, err := g.Parse([]byte("{"))
	require.NoError(t, err)
	assert.Equal(t, Post{}, got2)
}

func TestInfluencers_Union(t *testing.T) {
	a := ATProto{}
	p := Post{Author: "a", RetweetOf: "b", ReplyTo: "c", Mentions: []string{"d"}, QuoteOf: "e"}
	author, infl := Influencers(a, p)
	assert.Equal(t, "a", author)
	assert.ElementsMatch(t, []string{"b", "c", "d", "e"}, infl)
}

func TestForQuery_SelectsByPrefix(t *testing.T) {
	_, isGeneric := ForQuery("gnip-archive").(GenericJSON)
	assert.True(t, isGeneric)

	_, isATProto := ForQuery("some query").(ATProto)
	assert.True(t, isATProto)
}
