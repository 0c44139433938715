package archive

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teranos/kcore-analytics/adapter"
	"github.com/teranos/kcore-analytics/errors"
	"github.com/teranos/kcore-analytics/logger"
)

// Archive is a segmented, append-only post store for one normalized query.
type Archive struct {
	root    string
	dir     string
	idxPath string
	adapter adapter.Adapter

	mu  sync.Mutex
	arx *Arx
}

// Open loads (or creates) the archive for normalizedQuery under root, with
// the given filters selecting an index file suffix.
func Open(root, normalizedQuery string, filters map[string]string) (*Archive, error) {
	dir := filepath.Join(root, normalizedQuery)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create archive directory %s", dir)
	}
	idxPath := filepath.Join(dir, indexFileName(filters))
	arx, err := loadOrCreateArx(idxPath, normalizedQuery, filters)
	if err != nil {
		return nil, err
	}
	return &Archive{
		root:    root,
		dir:     dir,
		idxPath: idxPath,
		adapter: adapter.ForQuery(normalizedQuery),
		arx:     arx,
	}, nil
}

// Query returns the normalized query this archive was opened for.
func (a *Archive) Query() string { return a.arx.Query }

// Dir returns the archive's on-disk directory.
func (a *Archive) Dir() string { return a.dir }

// Bounds reports the interval the caller should next attempt to collect.
func (a *Archive) Bounds() Bounds {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.boundsLocked()
}

func (a *Archive) boundsLocked() Bounds {
	var b Bounds
	if n := len(a.arx.Finished); n > 0 {
		last := a.arx.Finished[n-1]
		b.MinID = last.MaxID
		b.MinTS = last.MaxTS
	}
	if a.arx.Unfinished != nil {
		b.MaxID = a.arx.Unfinished.MinID
		b.MaxTS = a.arx.Unfinished.MinTS
	}
	return b
}

func fileSize(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return fi.Size(), nil
}

// parsePostLine decodes one stored segment line. Segments always hold
// adapter.Post JSON regardless of which Adapter produced it — normalization
// to Post happens once, at ingestion — so reading a segment back never goes
// through Adapter.Parse (which expects each adapter's own raw wire schema).
func parsePostLine(line string) (adapter.Post, bool) {
	var p adapter.Post
	if err := json.Unmarshal([]byte(line), &p); err != nil {
		return adapter.Post{}, false
	}
	return p, true
}

func appendLines(path string, posts []adapter.Post) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "failed to open segment %s", path)
	}
	defer f.Close()
	for _, p := range posts {
		line, err := json.Marshal(p)
		if err != nil {
			return errors.Wrap(err, "failed to marshal post")
		}
		line = append(line, '\n')
		if _, err := f.Write(line); err != nil {
			return errors.Wrapf(err, "failed to write to segment %s", path)
		}
	}
	return nil
}

// Append integrates a batch of newly collected posts, in upstream-delivery
// order (newest-first), into the gap described by Bounds(). See spec.md
// §4.2 for the full semantics this implements.
func (a *Archive) Append(posts []adapter.Post, exhausted bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(posts) == 0 && !exhausted {
		return nil
	}

	bounds := a.boundsLocked()
	tweetsRecent := bounds.MaxID == nil

	var err error
	if exhausted {
		err = a.commitFinished(posts, tweetsRecent)
	} else {
		err = a.commitUnfinished(posts, tweetsRecent)
	}
	if err != nil {
		return err
	}
	return writeArxAtomic(a.idxPath, a.arx)
}

func (a *Archive) commitUnfinished(posts []adapter.Post, tweetsRecent bool) error {
	var name string
	if tweetsRecent {
		name = "new-tweets-" + uuid.NewString() + ".taj"
	} else if a.arx.Unfinished != nil {
		name = a.arx.Unfinished.Name
	} else {
		return errors.New("archive: no unfinished segment to append to and batch is not against the newest tail")
	}
	path := filepath.Join(a.dir, name)

	// Posts arrive newest-first; the unfinished segment is stored newest-first too.
	if err := appendLines(path, posts); err != nil {
		return err
	}

	var minID, maxID *int64
	var minTS, maxTS *time.Time
	if len(posts) > 0 {
		maxID, maxTS = ptrInt64(posts[0].TweetID), ptrTime(posts[0].Timestamp)
		minID, minTS = ptrInt64(posts[len(posts)-1].TweetID), ptrTime(posts[len(posts)-1].Timestamp)
	}

	if tweetsRecent {
		a.arx.Unfinished = &Entry{Name: name, MinID: minID, MaxID: maxID, MinTS: minTS, MaxTS: maxTS, Count: len(posts)}
		return nil
	}
	u := a.arx.Unfinished
	if minID != nil {
		u.MinID, u.MinTS = minID, minTS
	}
	u.Count += len(posts)
	return nil
}

func (a *Archive) commitFinished(posts []adapter.Post, tweetsRecent bool) error {
	finFull := true
	var finEntry *Entry
	if n := len(a.arx.Finished); n > 0 {
		finEntry = &a.arx.Finished[n-1]
		sz, err := fileSize(filepath.Join(a.dir, finEntry.Name))
		if err != nil {
			return errors.Wrap(err, "failed to stat finished segment")
		}
		finFull = sz > SizeLimit
	}

	mustCreateFin := finFull
	var finName string
	if mustCreateFin {
		finName = "tweets-" + uuid.NewString() + ".taj"
	} else {
		finName = finEntry.Name
	}
	path := filepath.Join(a.dir, finName)

	// Posts arrive newest-first; finished segments are written oldest-first.
	reversed := make([]adapter.Post, len(posts))
	for i, p := range posts {
		reversed[len(posts)-1-i] = p
	}
	if err := appendLines(path, reversed); err != nil {
		return err
	}

	var minID, maxID *int64
	var minTS, maxTS *time.Time
	if len(reversed) > 0 {
		minID, minTS = ptrInt64(reversed[0].TweetID), ptrTime(reversed[0].Timestamp)
		maxID, maxTS = ptrInt64(reversed[len(reversed)-1].TweetID), ptrTime(reversed[len(reversed)-1].Timestamp)
	}

	if mustCreateFin {
		if len(a.arx.Finished) > 0 {
			sealedName := a.arx.Finished[len(a.arx.Finished)-1].Name
			if err := a.buildAndCacheSegmentGraphs(sealedName); err != nil {
				logger.Logger.Warnw("failed to build graph artifacts for sealed segment", "segment", sealedName, "error", err)
			}
		}
		a.arx.Finished = append(a.arx.Finished, Entry{Name: finName})
		finEntry = &a.arx.Finished[len(a.arx.Finished)-1]
	}

	if finEntry.MinID == nil {
		finEntry.MinID, finEntry.MinTS = minID, minTS
	}
	if maxID != nil {
		finEntry.MaxID, finEntry.MaxTS = maxID, maxTS
	}
	finEntry.Count += len(posts)

	if !tweetsRecent && a.arx.Unfinished != nil {
		return a.finalizeUnfinished()
	}
	return nil
}

// finalizeUnfinished migrates the unfinished segment's content into the
// finished chain, oldest-first, splitting into a new finished segment when
// the current one crosses SizeLimit. Reads the unfinished file (stored
// newest-first) in reverse, so output is oldest-first without buffering the
// whole file in memory.
func (a *Archive) finalizeUnfinished() error {
	unfin := a.arx.Unfinished
	unfinPath := filepath.Join(a.dir, unfin.Name)

	f, err := os.Open(unfinPath)
	if err != nil {
		return errors.Wrapf(err, "failed to open unfinished segment %s", unfinPath)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return errors.Wrap(err, "failed to stat unfinished segment")
	}
	rr := NewReverseLineReader(f, fi.Size())

	finEntry := &a.arx.Finished[len(a.arx.Finished)-1]
	finPath := filepath.Join(a.dir, finEntry.Name)

	const flushEvery = 1000
	buf := make([]string, 0, flushEvery)
	total := 0

	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		out, err := os.OpenFile(finPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return errors.Wrapf(err, "failed to open finished segment %s", finPath)
		}
		for _, l := range buf {
			if _, err := out.WriteString(l + "\n"); err != nil {
				out.Close()
				return errors.Wrap(err, "failed to write finalized line")
			}
		}
		out.Close()
		buf = buf[:0]

		sz, err := fileSize(finPath)
		if err != nil {
			return err
		}
		if sz > SizeLimit {
			if err := a.recomputeEntryBounds(finEntry, finPath); err != nil {
				return err
			}
			if err := a.buildAndCacheSegmentGraphs(finEntry.Name); err != nil {
				logger.Logger.Warnw("failed to build graph artifacts", "segment", finEntry.Name, "error", err)
			}
			newName := "tweets-" + uuid.NewString() + ".taj"
			a.arx.Finished = append(a.arx.Finished, Entry{Name: newName})
			finEntry = &a.arx.Finished[len(a.arx.Finished)-1]
			finPath = filepath.Join(a.dir, finEntry.Name)
		}
		return nil
	}

	for {
		line, err := rr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "failed to read unfinished segment in reverse")
		}
		buf = append(buf, line)
		total++
		if len(buf) >= flushEvery {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}
	if err := a.recomputeEntryBounds(finEntry, finPath); err != nil {
		return err
	}
	finEntry.Count += total

	f.Close()
	if err := os.Remove(unfinPath); err != nil {
		logger.Logger.Warnw("failed to remove finalized unfinished segment", "path", unfinPath, "error", err)
	}
	a.arx.Unfinished = nil
	return nil
}

// recomputeEntryBounds rescans a finished segment (oldest-first on disk) to
// recover min/max ID and timestamp, used after a rollover split and by
// VerifyIndex.
func (a *Archive) recomputeEntryBounds(entry *Entry, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "failed to open segment %s for bounds recompute", path)
	}
	defer f.Close()

	lines, err := bufioLines(f)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	if first, ok := parsePostLine(lines[0]); ok {
		entry.MinID, entry.MinTS = ptrInt64(first.TweetID), ptrTime(first.Timestamp)
	}
	if last, ok := parsePostLine(lines[len(lines)-1]); ok {
		entry.MaxID, entry.MaxTS = ptrInt64(last.TweetID), ptrTime(last.Timestamp)
	}
	return nil
}

// buildAndCacheSegmentGraphs parses a finished segment once and writes its
// four graph artifacts (retweet/reply/mention/influence) under
// graphs/<segment-basename>/.
func (a *Archive) buildAndCacheSegmentGraphs(segmentName string) error {
	base := strings.TrimSuffix(segmentName, ".taj")
	graphDir := filepath.Join(a.dir, "graphs", base)

	path := filepath.Join(a.dir, segmentName)
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "failed to open segment %s", path)
	}
	defer f.Close()
	lines, err := bufioLines(f)
	if err != nil {
		return err
	}

	retweet := newNodeLinkBuilder(false)
	reply := newNodeLinkBuilder(false)
	mention := newNodeLinkBuilder(false)

	for _, line := range lines {
		p, ok := parsePostLine(line)
		if !ok {
			continue
		}
		if author, infl := a.adapter.RetweetInfluencers(p); len(infl) > 0 {
			for _, i := range infl {
				retweet.addEdge(i, author)
			}
		}
		if author, infl := a.adapter.ReplyInfluencers(p); len(infl) > 0 {
			for _, i := range infl {
				reply.addEdge(i, author)
			}
		}
		if author, infl := a.adapter.MentionInfluencers(p); len(infl) > 0 {
			for _, i := range infl {
				mention.addEdge(i, author)
			}
		}
	}

	if err := writeGraphJSON(filepath.Join(graphDir, "retweet_graph.jnld"), retweet); err != nil {
		return err
	}
	if err := writeGraphJSON(filepath.Join(graphDir, "reply_graph.jnld"), reply); err != nil {
		return err
	}
	if err := writeGraphJSON(filepath.Join(graphDir, "mention_graph.jnld"), mention); err != nil {
		return err
	}
	influence := mergeBuilders(false, retweet, reply, mention)
	return writeGraphJSON(filepath.Join(graphDir, "influence_graph.jnld"), influence)
}
