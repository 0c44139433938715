package archive

import (
	"path/filepath"

	"github.com/teranos/kcore-analytics/logger"
)

// VerifyIndex rescans any finished entry with a missing bound (a crash
// between appending a segment and persisting its index entry leaves exactly
// this shape) and rewrites the index atomically once repaired. See spec.md
// §7's ArchiveCorruption handling.
func (a *Archive) VerifyIndex() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	dirty := false
	for i := range a.arx.Finished {
		entry := &a.arx.Finished[i]
		if entry.MinID != nil && entry.MaxID != nil && entry.MinTS != nil && entry.MaxTS != nil {
			continue
		}
		path := filepath.Join(a.dir, entry.Name)
		if err := a.recomputeEntryBounds(entry, path); err != nil {
			logger.Logger.Warnw("failed to repair archive entry", "segment", entry.Name, "error", err)
			continue
		}
		dirty = true
	}

	if u := a.arx.Unfinished; u != nil && (u.MinID == nil || u.MaxID == nil || u.MinTS == nil || u.MaxTS == nil) {
		if err := a.recomputeUnfinishedBounds(); err != nil {
			logger.Logger.Warnw("failed to repair unfinished archive entry", "segment", a.arx.Unfinished.Name, "error", err)
		} else {
			dirty = true
		}
	}

	if !dirty {
		return nil
	}
	return writeArxAtomic(a.idxPath, a.arx)
}

// recomputeUnfinishedBounds rescans the unfinished segment (stored
// newest-first) to recover its min/max ID and timestamp.
func (a *Archive) recomputeUnfinishedBounds() error {
	u := a.arx.Unfinished

	posts, err := a.readSegment(segmentRef{entry: *u, unfinished: true}, Backward)
	if err != nil {
		return err
	}
	if len(posts) == 0 {
		return nil
	}
	// Backward returns newest-to-oldest; first element is the maximum,
	// last is the minimum.
	u.MaxID, u.MaxTS = ptrInt64(posts[0].TweetID), ptrTime(posts[0].Timestamp)
	u.MinID, u.MinTS = ptrInt64(posts[len(posts)-1].TweetID), ptrTime(posts[len(posts)-1].Timestamp)
	return nil
}
