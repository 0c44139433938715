package archive

import (
	"os"
	"path/filepath"

	"github.com/teranos/kcore-analytics/adapter"
	"github.com/teranos/kcore-analytics/errors"
)

// Direction selects the order Iterate walks posts in.
type Direction int

const (
	// Forward walks oldest-to-newest.
	Forward Direction = iota
	// Backward walks newest-to-oldest.
	Backward
)

// Iterate returns every post in (minID, maxID] (minID exclusive, maxID
// inclusive; either bound nil means open), in the order Direction requests. Finished segments are stored
// oldest-first on disk; the unfinished segment is stored newest-first.
// Iterate picks whichever of ReverseLineReader or a forward scan matches
// the requested direction for each segment's on-disk order, so it never
// buffers more than one segment in memory beyond the returned slice.
func (a *Archive) Iterate(minID, maxID *int64, dir Direction) ([]adapter.Post, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	segs := a.allSegments()
	if dir == Backward {
		for i, j := 0, len(segs)-1; i < j; i, j = i+1, j-1 {
			segs[i], segs[j] = segs[j], segs[i]
		}
	}

	var out []adapter.Post
	for _, ref := range segs {
		if !entryIntersects(ref.entry, minID, maxID) {
			continue
		}
		posts, err := a.readSegment(ref, dir)
		if err != nil {
			return nil, err
		}
		for _, p := range posts {
			if inIDRange(p.TweetID, minID, maxID) {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

// readSegment returns ref's posts in the order dir requests, regardless of
// the segment's on-disk storage order.
func (a *Archive) readSegment(ref segmentRef, dir Direction) ([]adapter.Post, error) {
	path := filepath.Join(a.dir, ref.entry.Name)

	// Finished segments are stored oldest-first; unfinished is newest-first.
	// "native" means the on-disk order already matches dir.
	native := (dir == Forward) != ref.unfinished

	if native {
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, errors.Wrapf(err, "failed to open segment %s", path)
		}
		defer f.Close()
		lines, err := bufioLines(f)
		if err != nil {
			return nil, err
		}
		return a.parseLines(lines)
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to open segment %s", path)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "failed to stat segment")
	}
	rr := NewReverseLineReader(f, fi.Size())
	lines, err := ReadAllReverse(rr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to reverse-read segment %s", path)
	}
	return a.parseLines(lines)
}

func (a *Archive) parseLines(lines []string) ([]adapter.Post, error) {
	posts := make([]adapter.Post, 0, len(lines))
	for _, l := range lines {
		if p, ok := parsePostLine(l); ok {
			posts = append(posts, p)
		}
	}
	return posts, nil
}
