// Package archive implements the segmented, append-only post store: one
// directory per normalized query, holding an index (.arx), newline-delimited
// post segments (.taj), and derived graph artifacts (.jnld).
package archive

import "time"

// SizeLimit bounds a single finished segment, matching the original
// archiver's 400 MiB cutoff.
const SizeLimit = 400 * 1024 * 1024

// Entry describes one segment file's tweet-ID and timestamp range.
// A nil MinID/MaxID/MinTS/MaxTS marks a damaged entry that VerifyIndex
// must repair by rescanning the segment.
type Entry struct {
	Name  string     `json:"name"`
	MinID *int64     `json:"min_id"`
	MaxID *int64     `json:"max_id"`
	MinTS *time.Time `json:"min_ts"`
	MaxTS *time.Time `json:"max_ts"`
	Count int        `json:"count"`
}

// Arx is the on-disk index for one query/filter combination.
type Arx struct {
	Query      string            `json:"query"`
	Filters    map[string]string `json:"filters"`
	Unfinished *Entry            `json:"unfinished"`
	Finished   []Entry           `json:"finished"`
}

// Bounds is the 4-tuple describing the next interval to collect. A nil
// field means that end of the range is open.
type Bounds struct {
	MinID *int64
	MaxID *int64
	MinTS *time.Time
	MaxTS *time.Time
}

// GraphType selects which influencer relation buildGraph materializes.
type GraphType string

const (
	GraphRetweet   GraphType = "retweet"
	GraphReply     GraphType = "reply"
	GraphMention   GraphType = "mention"
	GraphQuote     GraphType = "quote"
	GraphInfluence GraphType = "influence"
)

func ptrInt64(v int64) *int64        { return &v }
func ptrTime(v time.Time) *time.Time { return &v }
