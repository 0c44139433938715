package upstream

import (
	"time"

	appbsky "github.com/bluesky-social/indigo/api/bsky"

	"github.com/teranos/kcore-analytics/adapter"
)

// mintTweetID derives a strictly-increasing synthetic 64-bit ID from a
// timestamp: the high 44 bits are unix milliseconds, the low 20 bits are a
// per-millisecond sequence counter. See SPEC_FULL.md §9.1 (Open Question 4)
// — AT Protocol identifies posts by DID+rkey, not a sortable integer, but
// the archive's entire index model is keyed on one.
func (c *Client) mintTweetID(t time.Time) int64 {
	c.seqMu <- struct{}{}
	defer func() { <-c.seqMu }()

	ms := t.UnixMilli()
	if ms == c.seqMS {
		c.seqCtr++
	} else {
		c.seqMS = ms
		c.seqCtr = 0
	}
	if c.seqCtr >= 1<<20 {
		panic("upstream: more than 2^20 posts minted in a single millisecond")
	}
	return (ms << 20) | c.seqCtr
}

// ConvertPost normalizes one AT Protocol post view into a Post. Best-effort
// by construction: a post whose record isn't a recognizable app.bsky.feed.post
// still yields a Post carrying only the ID/timestamp/author, matching the
// adapter contract that field extraction never errors.
func (c *Client) ConvertPost(view *appbsky.FeedDefs_PostView) adapter.Post {
	ts := parsePostTime(view.IndexedAt)

	p := adapter.Post{
		TweetID:   c.mintTweetID(ts),
		Timestamp: ts,
	}
	if view.Author != nil {
		p.Author = view.Author.Handle
	}

	rec, ok := view.Record.Val.(*appbsky.FeedPost)
	if !ok || rec == nil {
		return p
	}
	if rec.CreatedAt != "" {
		p.Timestamp = parsePostTime(rec.CreatedAt)
	}
	if rec.Reply != nil && rec.Reply.Parent != nil {
		p.ReplyTo = rec.Reply.Parent.Uri
	}
	p.Mentions = extractMentions(rec.Facets)
	p.QuoteOf = extractQuoteOf(rec.Embed)
	return p
}

func parsePostTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

// extractMentions collects the DIDs of every mention-type facet on a post,
// matching spec.md §3's mentions field and SPEC_FULL.md §3.1's binding.
func extractMentions(facets []*appbsky.RichtextFacet) []string {
	var out []string
	for _, f := range facets {
		if f == nil {
			continue
		}
		for _, feat := range f.Features {
			if feat == nil {
				continue
			}
			if m, ok := feat.Val.(*appbsky.RichtextFacet_Mention); ok && m != nil {
				out = append(out, m.Did)
			}
		}
	}
	return out
}

// extractQuoteOf returns the quoted post's URI when the embed is a record
// embed (app.bsky.embed.record), empty otherwise. Reposts don't carry a
// first-class field on app.bsky.feed.post itself — AT Protocol represents a
// repost as a separate app.bsky.feed.repost record, which doesn't surface on
// app.bsky.feed.searchPosts results — so retweet-of is left to whatever the
// caller already knows from a feed-view wrapper, if any; searchSafe never
// populates it.
func extractQuoteOf(embed *appbsky.FeedPost_Embed) string {
	if embed == nil || embed.EmbedRecord == nil || embed.EmbedRecord.Record == nil {
		return ""
	}
	return embed.EmbedRecord.Record.Uri
}
