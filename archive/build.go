package archive

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/teranos/kcore-analytics/adapter"
	"github.com/teranos/kcore-analytics/errors"
	kgraph "github.com/teranos/kcore-analytics/graph"
)

type segmentRef struct {
	entry      Entry
	unfinished bool
}

func (a *Archive) allSegments() []segmentRef {
	refs := make([]segmentRef, 0, len(a.arx.Finished)+1)
	for _, e := range a.arx.Finished {
		refs = append(refs, segmentRef{entry: e})
	}
	if a.arx.Unfinished != nil {
		refs = append(refs, segmentRef{entry: *a.arx.Unfinished, unfinished: true})
	}
	return refs
}

// entryFullyInside reports whether entry's entire ID range lies within
// (qMin, qMax], meaning its cached graph artifact can be reused verbatim.
func entryFullyInside(e Entry, qMin, qMax *int64) bool {
	if qMin != nil && (e.MinID == nil || *e.MinID <= *qMin) {
		return false
	}
	if qMax != nil && (e.MaxID == nil || *e.MaxID > *qMax) {
		return false
	}
	return true
}

// entryIntersects reports whether entry's range overlaps (qMin, qMax] at all.
func entryIntersects(e Entry, qMin, qMax *int64) bool {
	if qMax != nil && e.MinID != nil && *e.MinID > *qMax {
		return false
	}
	if qMin != nil && e.MaxID != nil && *e.MaxID <= *qMin {
		return false
	}
	return true
}

func inIDRange(id int64, qMin, qMax *int64) bool {
	if qMin != nil && id <= *qMin {
		return false
	}
	if qMax != nil && id > *qMax {
		return false
	}
	return true
}

func influencersFor(a adapter.Adapter, graphType GraphType, p adapter.Post) (string, []string) {
	switch graphType {
	case GraphRetweet:
		return a.RetweetInfluencers(p)
	case GraphReply:
		return a.ReplyInfluencers(p)
	case GraphMention:
		return a.MentionInfluencers(p)
	case GraphQuote:
		return a.QuoteInfluencers(p)
	default:
		return adapter.Influencers(a, p)
	}
}

// BuildGraph materializes the union graph for graphType over (minID, maxID]
// (minID exclusive, maxID inclusive; either bound nil means open). Interior finished segments reuse their
// cached artifact; segments straddling the range boundary are re-parsed and
// filtered to posts whose ID falls inside the range. See spec.md §4.2.
func (a *Archive) BuildGraph(minID, maxID *int64, graphType GraphType, saveTweetIDs bool) (*kgraph.Graph, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	merged := newNodeLinkBuilder(saveTweetIDs)
	for _, ref := range a.allSegments() {
		if !entryIntersects(ref.entry, minID, maxID) {
			continue
		}

		var part *nodeLinkBuilder
		var err error
		if artifact, cacheable := graphArtifactName(graphType); cacheable && !ref.unfinished && entryFullyInside(ref.entry, minID, maxID) {
			part, err = a.loadCachedOrBuild(ref.entry, artifact)
		} else {
			part, err = a.reparseSegment(ref.entry, graphType, minID, maxID, saveTweetIDs)
		}
		if err != nil {
			return nil, err
		}
		merged.merge(part)
	}
	g := merged.toGraph()
	return &g, nil
}

// graphArtifactName returns the per-segment cache filename
// buildAndCacheSegmentGraphs writes for graphType, and whether that graph
// type has a cached artifact at all (GraphQuote does not, since
// buildAndCacheSegmentGraphs only precomputes retweet/reply/mention/
// influence).
func graphArtifactName(graphType GraphType) (string, bool) {
	switch graphType {
	case GraphRetweet:
		return "retweet_graph.jnld", true
	case GraphReply:
		return "reply_graph.jnld", true
	case GraphMention:
		return "mention_graph.jnld", true
	case GraphInfluence:
		return "influence_graph.jnld", true
	default:
		return "", false
	}
}

func (a *Archive) loadCachedOrBuild(entry Entry, artifact string) (*nodeLinkBuilder, error) {
	base := strings.TrimSuffix(entry.Name, ".taj")
	path := filepath.Join(a.dir, "graphs", base, artifact)

	b, err := readGraphJSON(path)
	if err == nil {
		return b, nil
	}
	if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "failed to read cached graph artifact %s", path)
	}
	if err := a.buildAndCacheSegmentGraphs(entry.Name); err != nil {
		return nil, err
	}
	return readGraphJSON(path)
}

func (a *Archive) reparseSegment(entry Entry, graphType GraphType, qMin, qMax *int64, saveTweetIDs bool) (*nodeLinkBuilder, error) {
	path := filepath.Join(a.dir, entry.Name)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return newNodeLinkBuilder(saveTweetIDs), nil
		}
		return nil, errors.Wrapf(err, "failed to open segment %s", path)
	}
	defer f.Close()

	lines, err := bufioLines(f)
	if err != nil {
		return nil, err
	}

	b := newNodeLinkBuilder(saveTweetIDs)
	for _, line := range lines {
		p, ok := parsePostLine(line)
		if !ok {
			continue
		}
		if !inIDRange(p.TweetID, qMin, qMax) {
			continue
		}
		author, infl := influencersFor(a.adapter, graphType, p)
		for _, i := range infl {
			b.addEdgeWithTweet(i, author, p.TweetID, saveTweetIDs)
		}
	}
	return b, nil
}
