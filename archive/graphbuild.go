package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/teranos/kcore-analytics/errors"
	kgraph "github.com/teranos/kcore-analytics/graph"
)

// nodeLinkBuilder accumulates a directed adjacency map keyed by author
// string id, deduplicating repeated edges by summing their weight (and,
// when tracking tweet IDs, unioning the originating post IDs). Sorted-ID
// iteration on export keeps output deterministic.
type nodeLinkBuilder struct {
	nodes     map[string]struct{}
	edges     map[[2]string]float64
	tweetIDs  map[[2]string]map[int64]struct{}
	withTweet bool
}

func newNodeLinkBuilder(withTweetIDs bool) *nodeLinkBuilder {
	return &nodeLinkBuilder{
		nodes:     make(map[string]struct{}),
		edges:     make(map[[2]string]float64),
		tweetIDs:  make(map[[2]string]map[int64]struct{}),
		withTweet: withTweetIDs,
	}
}

func (b *nodeLinkBuilder) addEdge(from, to string) {
	b.addEdgeWithTweet(from, to, 0, false)
}

func (b *nodeLinkBuilder) addEdgeWithTweet(from, to string, tweetID int64, haveTweetID bool) {
	if from == "" || to == "" {
		return
	}
	b.nodes[from] = struct{}{}
	b.nodes[to] = struct{}{}
	key := [2]string{from, to}
	b.edges[key]++
	if b.withTweet && haveTweetID {
		if b.tweetIDs[key] == nil {
			b.tweetIDs[key] = make(map[int64]struct{})
		}
		b.tweetIDs[key][tweetID] = struct{}{}
	}
}

// merge folds other's edges/nodes into b, summing shared edge weights and
// unioning tweet-ID sets.
func (b *nodeLinkBuilder) merge(other *nodeLinkBuilder) {
	for n := range other.nodes {
		b.nodes[n] = struct{}{}
	}
	for k, w := range other.edges {
		b.edges[k] += w
		if b.withTweet {
			for id := range other.tweetIDs[k] {
				if b.tweetIDs[k] == nil {
					b.tweetIDs[k] = make(map[int64]struct{})
				}
				b.tweetIDs[k][id] = struct{}{}
			}
		}
	}
}

func mergeBuilders(withTweetIDs bool, parts ...*nodeLinkBuilder) *nodeLinkBuilder {
	merged := newNodeLinkBuilder(withTweetIDs)
	for _, p := range parts {
		merged.merge(p)
	}
	return merged
}

// toGraph exports a deterministic node-link graph: nodes and edges sorted
// by ID, so repeated builds of the same corpus list nodes and edges in the
// same order (meta.generated_at still differs between builds).
func (b *nodeLinkBuilder) toGraph() kgraph.Graph {
	nodeIDs := make([]string, 0, len(b.nodes))
	for n := range b.nodes {
		nodeIDs = append(nodeIDs, n)
	}
	sort.Strings(nodeIDs)

	nodes := make([]kgraph.Node, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		nodes = append(nodes, kgraph.Node{ID: id, Type: "account", Label: id, Visible: true})
	}

	edgeKeys := make([][2]string, 0, len(b.edges))
	for k := range b.edges {
		edgeKeys = append(edgeKeys, k)
	}
	sort.Slice(edgeKeys, func(i, j int) bool {
		if edgeKeys[i][0] != edgeKeys[j][0] {
			return edgeKeys[i][0] < edgeKeys[j][0]
		}
		return edgeKeys[i][1] < edgeKeys[j][1]
	})

	links := make([]kgraph.Link, 0, len(edgeKeys))
	for _, k := range edgeKeys {
		links = append(links, kgraph.Link{Source: k[0], Target: k[1], Type: "influence", Weight: b.edges[k]})
	}

	return kgraph.Graph{
		Nodes: nodes,
		Links: links,
		Meta: kgraph.Meta{
			GeneratedAt: time.Now().UTC(),
			Stats:       kgraph.Stats{TotalNodes: len(nodes), TotalEdges: len(links)},
			Config:      map[string]string{},
		},
	}
}

func writeGraphJSON(path string, b *nodeLinkBuilder) error {
	g := b.toGraph()
	data, err := json.Marshal(g)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal graph artifact %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create graph directory for %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write graph artifact %s", path)
	}
	return nil
}

func readGraphJSON(path string) (*nodeLinkBuilder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var g kgraph.Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, errors.Wrapf(err, "failed to parse graph artifact %s", path)
	}
	b := newNodeLinkBuilder(false)
	for _, n := range g.Nodes {
		b.nodes[n.ID] = struct{}{}
	}
	for _, l := range g.Links {
		b.edges[[2]string{l.Source, l.Target}] = l.Weight
	}
	return b, nil
}
