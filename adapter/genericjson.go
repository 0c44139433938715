package adapter

import (
	"encoding/json"
	"time"
)

// genericRecord is the flat wire schema this adapter accepts: an
// already-normalized record not sourced from a live upstream. This is the
// "Gnip"-equivalent alternate schema from the original source, used to
// replay archived or vendor-normalized corpora.
type genericRecord struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Author    string    `json:"author"`
	RetweetOf string    `json:"retweet_of,omitempty"`
	ReplyTo   string    `json:"reply_to,omitempty"`
	Mentions  []string  `json:"mentions,omitempty"`
	QuoteOf   string    `json:"quote_of,omitempty"`
}

// GenericJSON parses the flat {id, timestamp, author, retweet_of, reply_to,
// mentions[], quote_of} record format, selected when a query carries the
// "gnip" prefix.
type GenericJSON struct{}

func (GenericJSON) Parse(raw []byte) (Post, error) {
	var r genericRecord
	if len(raw) == 0 {
		return Post{}, nil
	}
	if err := json.Unmarshal(raw, &r); err != nil {
		return Post{}, nil
	}
	return Post{
		TweetID:   r.ID,
		Timestamp: r.Timestamp,
		Author:    r.Author,
		RetweetOf: r.RetweetOf,
		ReplyTo:   r.ReplyTo,
		Mentions:  r.Mentions,
		QuoteOf:   r.QuoteOf,
	}, nil
}

func (GenericJSON) RetweetInfluencers(p Post) (string, []string) {
	if p.RetweetOf == "" {
		return p.Author, nil
	}
	return p.Author, []string{p.RetweetOf}
}

func (GenericJSON) ReplyInfluencers(p Post) (string, []string) {
	if p.ReplyTo == "" {
		return p.Author, nil
	}
	return p.Author, []string{p.ReplyTo}
}

func (GenericJSON) MentionInfluencers(p Post) (string, []string) {
	return p.Author, p.Mentions
}

func (GenericJSON) QuoteInfluencers(p Post) (string, []string) {
	if p.QuoteOf == "" {
		return p.Author, nil
	}
	return p.Author, []string{p.QuoteOf}
}
