// Package adapter extracts IDs, timestamps, and influencer edges from raw
// post records. Implementations must be total: a missing field yields an
// empty result, never an error.
package adapter

import "time"

// Post is the normalized view of an upstream record that the rest of the
// system (archive, ranking, analysis) operates on.
type Post struct {
	TweetID    int64     `json:"tweet_id"`
	Timestamp  time.Time `json:"timestamp"`
	Author     string    `json:"author"`
	RetweetOf  string    `json:"retweet_of,omitempty"`
	ReplyTo    string    `json:"reply_to,omitempty"`
	Mentions   []string  `json:"mentions,omitempty"`
	QuoteOf    string    `json:"quote_of,omitempty"`
	Raw        []byte    `json:"-"`
}

// Adapter is the narrow capability set a post-schema parser must provide.
// Two implementations exist: atproto (the concrete upstream binding) and
// genericjson (an already-flattened record, the "Gnip"-equivalent format
// for replaying archived corpora without a live upstream).
type Adapter interface {
	// Parse turns a single raw record into a normalized Post. Parse must
	// never return an error for a merely-incomplete record; fields that
	// cannot be extracted are left at their zero value.
	Parse(raw []byte) (Post, error)

	// RetweetInfluencers returns (author, influencers) for the repost edge.
	RetweetInfluencers(p Post) (string, []string)
	// ReplyInfluencers returns (author, influencers) for the reply edge.
	ReplyInfluencers(p Post) (string, []string)
	// MentionInfluencers returns (author, influencers) for mention edges.
	MentionInfluencers(p Post) (string, []string)
	// QuoteInfluencers returns (author, influencers) for the quote edge.
	QuoteInfluencers(p Post) (string, []string)
}

// Influencers returns the union of all four influencer relations for p,
// matching the original getInfluencers aggregate operation.
func Influencers(a Adapter, p Post) (string, []string) {
	seen := make(map[string]struct{})
	var author string
	add := func(auth string, infls []string) {
		author = auth
		for _, i := range infls {
			seen[i] = struct{}{}
		}
	}
	add(a.RetweetInfluencers(p))
	add(a.ReplyInfluencers(p))
	add(a.MentionInfluencers(p))
	add(a.QuoteInfluencers(p))

	out := make([]string, 0, len(seen))
	for i := range seen {
		out = append(out, i)
	}
	return author, out
}

// ForQuery selects an adapter by query prefix, matching the original
// "query[:4] == 'gnip'" format-selection switch.
func ForQuery(q string) Adapter {
	if len(q) >= 4 && q[:4] == "gnip" {
		return GenericJSON{}
	}
	return ATProto{}
}
