// Package analysis implements the Analysis Driver (spec.md §4.6): given a
// query and radius, it fills the archive, builds the full influence graph,
// ranks it, and reduces the result to a top-N annotated subgraph.
package analysis

import (
	"context"
	"sort"

	"github.com/teranos/kcore-analytics/archive"
	kgraph "github.com/teranos/kcore-analytics/graph"
	"github.com/teranos/kcore-analytics/ranking"
	"github.com/teranos/kcore-analytics/upstream"
)

const (
	// topN is spec.md §4.6's fixed "take top 100" cutoff.
	topN = 100
	// group2Cutoff and group1Cutoff assign the "CI, group" annotation
	// spec.md §4.6 describes: 2 for top 10, 1 for top 100, 0 otherwise.
	group2Cutoff = 10
	group1Cutoff = 100
	// fillPageBudget bounds the archiveSearch call the driver issues
	// before ranking: spec.md §4.6 says "bounded page budget, no
	// rate-limit waiting".
	fillPageBudget = 10
)

// Influencer is one entry of the name-keyed result map spec.md §4.6
// describes as `{name → {rank, influence, magnification, connections,
// followers}}`.
type Influencer struct {
	Rank          int     `json:"rank"`
	Influence     float64 `json:"influence"`
	Magnification float64 `json:"magnification"`
	Connections   int     `json:"connections"`
	Followers     int     `json:"followers"`
}

// Result is the Analysis Driver's output for one query.
type Result struct {
	Query       string
	Influencers map[string]Influencer
	Subgraph    kgraph.Graph
}

// rankedNode is one post-processed SiteCI result, carrying everything
// downstream steps (follower resolution, subgraph annotation) need.
type rankedNode struct {
	id            string
	degree        int
	ci            float64
	influence     float64
	magnification float64
}

// Driver wraps an archive root and a ranking kernel. The client passed to
// Analyze is optional: when nil, the driver skips the archiveSearch fill step and ranks
// whatever is already archived (used for replay/offline analysis against
// a genericjson-ingested corpus).
type Driver struct {
	archiveRoot string
	kernel      ranking.Kernel
}

// New builds a Driver over archiveRoot using kernel (typically
// ranking.ReferenceKernel{}).
func New(archiveRoot string, kernel ranking.Kernel) *Driver {
	return &Driver{archiveRoot: archiveRoot, kernel: kernel}
}

// Analyze implements spec.md §4.6's full pipeline for query Q at radius r.
// client is optional; when non-nil it is used to fill the archive's
// current gap before ranking.
func (d *Driver) Analyze(ctx context.Context, q string, radius int, client *upstream.Client, lang string) (*Result, error) {
	arx, err := archive.Open(d.archiveRoot, q, nil)
	if err != nil {
		return nil, err
	}

	if client != nil {
		if _, err := client.ArchiveSearch(ctx, arx, q, fillPageBudget, false, false, false, lang); err != nil {
			return nil, err
		}
	}

	g, err := arx.BuildGraph(nil, nil, archive.GraphInfluence, false)
	if err != nil {
		return nil, err
	}

	ids, degrees, scores := d.kernel.SiteCI(g, radius, true)

	total := 0.0
	for _, s := range scores {
		total += s
	}

	ranked := make([]rankedNode, len(ids))
	for i, id := range ids {
		mag := scores[i]
		if degrees[i] > 1 {
			mag = scores[i] / (float64(degrees[i]-1) * float64(degrees[i]))
		}
		influence := 0.0
		if total > 0 {
			influence = scores[i] / total * 100
		}
		ranked[i] = rankedNode{id: id, degree: degrees[i], ci: scores[i], influence: influence, magnification: mag}
	}
	// SiteCI already returns descending-CI order; this sort is a no-op in
	// the common case but keeps Analyze's contract independent of the
	// kernel's internal ordering guarantee.
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].ci > ranked[j].ci })

	if len(ranked) > topN {
		ranked = ranked[:topN]
	}

	followers, err := resolveFollowers(ctx, client, ranked)
	if err != nil {
		return nil, err
	}

	keep := make(map[string]struct{}, len(ranked))
	influencers := make(map[string]Influencer, len(ranked))
	for i, r := range ranked {
		name := r.id
		if info, ok := followers[r.id]; ok {
			name = info.ScreenName
		}
		keep[r.id] = struct{}{}
		influencers[name] = Influencer{
			Rank:          i + 1,
			Influence:     r.influence,
			Magnification: r.magnification,
			Connections:   r.degree,
			Followers:     followerCountOf(followers, r.id),
		}
	}

	sub := inducedSubgraph(g, keep, followers, ranked)

	return &Result{Query: q, Influencers: influencers, Subgraph: sub}, nil
}

func followerCountOf(followers map[string]upstream.UserInfo, id string) int {
	if info, ok := followers[id]; ok {
		return info.FollowersCount
	}
	return 0
}

// resolveFollowers looks up screen names and follower counts for the
// ranked node IDs via the Upstream Client's resolveUsers, per spec.md
// §4.6. With no client (offline/replay analysis), every node keeps its
// raw archive ID as its label.
func resolveFollowers(ctx context.Context, client *upstream.Client, ranked []rankedNode) (map[string]upstream.UserInfo, error) {
	if client == nil || len(ranked) == 0 {
		return map[string]upstream.UserInfo{}, nil
	}
	ids := make([]string, len(ranked))
	for i, r := range ranked {
		ids[i] = r.id
	}
	return client.ResolveUsers(ctx, ids)
}

// inducedSubgraph relabels kept nodes by screen name, annotates each with
// CI (fraction of total) and group (2 for top 10, 1 for top 100, 0
// otherwise), and keeps only edges between two kept nodes.
func inducedSubgraph(g *kgraph.Graph, keep map[string]struct{}, followers map[string]upstream.UserInfo, ranked []rankedNode) kgraph.Graph {
	rankOf := make(map[string]int, len(ranked))
	ciOf := make(map[string]float64, len(ranked))
	for i, r := range ranked {
		rankOf[r.id] = i + 1
		ciOf[r.id] = r.influence / 100
	}

	label := func(id string) string {
		if info, ok := followers[id]; ok && info.ScreenName != "" {
			return info.ScreenName
		}
		return id
	}
	groupOf := func(rank int) int {
		switch {
		case rank <= group2Cutoff:
			return 2
		case rank <= group1Cutoff:
			return 1
		default:
			return 0
		}
	}

	nodes := make([]kgraph.Node, 0, len(keep))
	for _, n := range g.Nodes {
		if _, ok := keep[n.ID]; !ok {
			continue
		}
		nodes = append(nodes, kgraph.Node{
			ID:      label(n.ID),
			Type:    n.Type,
			Label:   label(n.ID),
			Visible: true,
			Group:   groupOf(rankOf[n.ID]),
			Metadata: map[string]interface{}{
				"CI": ciOf[n.ID],
			},
		})
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	links := make([]kgraph.Link, 0)
	for _, l := range g.Links {
		_, srcOK := keep[l.Source]
		_, dstOK := keep[l.Target]
		if !srcOK || !dstOK {
			continue
		}
		links = append(links, kgraph.Link{
			Source: label(l.Source),
			Target: label(l.Target),
			Type:   l.Type,
			Weight: l.Weight,
		})
	}
	sort.Slice(links, func(i, j int) bool {
		if links[i].Source != links[j].Source {
			return links[i].Source < links[j].Source
		}
		return links[i].Target < links[j].Target
	})

	return kgraph.Graph{
		Nodes: nodes,
		Links: links,
		Meta: kgraph.Meta{
			Stats:  kgraph.Stats{TotalNodes: len(nodes), TotalEdges: len(links)},
			Config: map[string]string{},
		},
	}
}
