// Package ranking defines the collective-influence ranking seam (spec.md
// §4.6, SPEC_FULL.md §4.8) and ships a deterministic reference kernel.
package ranking

import (
	"sort"

	kgraph "github.com/teranos/kcore-analytics/graph"
)

// Kernel computes collective influence over a graph within a ball of the
// given radius. Implementations may be swapped in for a faster or
// production numerical kernel without touching the Analysis Driver; only
// the contract below is load-bearing.
//
// SiteCI returns, for every node reachable in the graph, its ID, degree,
// and CI score, all three slices index-aligned and sorted by descending
// CI score (ties broken by descending degree, then ascending node ID, for
// reproducibility).
type Kernel interface {
	SiteCI(g *kgraph.Graph, radius int, directed bool) (influencers []string, degrees []int, ciScores []float64)
}

// ReferenceKernel is the deterministic reference implementation named in
// SPEC_FULL.md §4.8: collective influence over a radius-ball using
// CI_l(v) = (deg(v)-1) * Σ_{u ∈ ∂Ball(v,l)} (deg(u)-1).
type ReferenceKernel struct{}

var _ Kernel = ReferenceKernel{}

// SiteCI implements Kernel.
func (ReferenceKernel) SiteCI(g *kgraph.Graph, radius int, directed bool) ([]string, []int, []float64) {
	adj := buildAdjacency(g, directed)

	ids := make([]string, 0, len(adj))
	for id := range adj {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	degree := make(map[string]int, len(adj))
	for _, id := range ids {
		degree[id] = len(adj[id])
	}

	ci := make(map[string]float64, len(adj))
	for _, v := range ids {
		frontier := ballFrontier(adj, v, radius)
		sum := 0.0
		for u := range frontier {
			sum += float64(degree[u] - 1)
		}
		ci[v] = float64(degree[v]-1) * sum
	}

	sort.Slice(ids, func(i, j int) bool {
		if ci[ids[i]] != ci[ids[j]] {
			return ci[ids[i]] > ci[ids[j]]
		}
		if degree[ids[i]] != degree[ids[j]] {
			return degree[ids[i]] > degree[ids[j]]
		}
		return ids[i] < ids[j]
	})

	degrees := make([]int, len(ids))
	scores := make([]float64, len(ids))
	for i, id := range ids {
		degrees[i] = degree[id]
		scores[i] = ci[id]
	}
	return ids, degrees, scores
}

// buildAdjacency collapses a node-link graph into an undirected adjacency
// set, which is what collective influence's ball/frontier traversal
// operates over regardless of the directed flag. directed is accepted for
// the Kernel signature and does not change the result; the topology
// consulted for the ball is always symmetric, matching standard CI
// literature.
func buildAdjacency(g *kgraph.Graph, directed bool) map[string]map[string]struct{} {
	adj := make(map[string]map[string]struct{})
	ensure := func(id string) {
		if _, ok := adj[id]; !ok {
			adj[id] = make(map[string]struct{})
		}
	}
	for _, n := range g.Nodes {
		ensure(n.ID)
	}
	for _, l := range g.Links {
		ensure(l.Source)
		ensure(l.Target)
		if l.Source == l.Target {
			continue
		}
		adj[l.Source][l.Target] = struct{}{}
		adj[l.Target][l.Source] = struct{}{}
	}
	_ = directed // topology is symmetric either way; see doc comment
	return adj
}

// ballFrontier returns the set of nodes at exactly distance `radius` from
// v (the outer shell ∂Ball(v,l)), via breadth-first search. Radius 0
// yields an empty frontier (deg(v)-1 then contributes zero, matching the
// degenerate single-node case).
func ballFrontier(adj map[string]map[string]struct{}, v string, radius int) map[string]struct{} {
	if radius <= 0 {
		return map[string]struct{}{}
	}
	visited := map[string]struct{}{v: {}}
	frontier := map[string]struct{}{v: {}}
	for d := 0; d < radius; d++ {
		next := map[string]struct{}{}
		for u := range frontier {
			for w := range adj[u] {
				if _, seen := visited[w]; seen {
					continue
				}
				next[w] = struct{}{}
				visited[w] = struct{}{}
			}
		}
		frontier = next
		if len(frontier) == 0 {
			break
		}
	}
	return frontier
}

