package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kgraph "github.com/teranos/kcore-analytics/graph"
)

func star(center string, leaves ...string) *kgraph.Graph {
	g := &kgraph.Graph{Nodes: []kgraph.Node{{ID: center}}}
	for _, l := range leaves {
		g.Nodes = append(g.Nodes, kgraph.Node{ID: l})
		g.Links = append(g.Links, kgraph.Link{Source: center, Target: l, Weight: 1})
	}
	return g
}

func TestSiteCI_StarGraphCenterRanksHighest(t *testing.T) {
	g := star("hub", "a", "b", "c", "d")
	ids, degrees, scores := ReferenceKernel{}.SiteCI(g, 1, true)

	require.Len(t, ids, 5)
	assert.Equal(t, "hub", ids[0], "every CI is zero at radius 1; the hub wins the tie on degree")

	hubIdx := indexOf(ids, "hub")
	assert.Equal(t, 4, degrees[hubIdx])
	// CI_1(hub) = (4-1) * sum_{leaf}(deg(leaf)-1) = 3 * (0+0+0+0) = 0.
	assert.Equal(t, 0.0, scores[hubIdx])
}

func TestSiteCI_TiesBreakByAscendingNodeID(t *testing.T) {
	// Two disconnected edges: every node has degree 1, so every CI score
	// is zero and the only remaining order is node ID.
	g := &kgraph.Graph{
		Nodes: []kgraph.Node{{ID: "b"}, {ID: "a"}, {ID: "d"}, {ID: "c"}},
		Links: []kgraph.Link{
			{Source: "b", Target: "a"},
			{Source: "d", Target: "c"},
		},
	}
	ids, _, _ := ReferenceKernel{}.SiteCI(g, 1, true)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)
}

func TestSiteCI_RadiusZeroYieldsZeroForEveryNode(t *testing.T) {
	g := star("hub", "a", "b")
	_, _, scores := ReferenceKernel{}.SiteCI(g, 0, true)
	for _, s := range scores {
		assert.Zero(t, s)
	}
}

func TestSiteCI_LargerRadiusReachesSecondHop(t *testing.T) {
	// path: a - b - c - d. CI_2(a) sees frontier {c} only (b is within
	// radius 1, excluded from the radius-2 outer shell).
	g := &kgraph.Graph{
		Nodes: []kgraph.Node{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}},
		Links: []kgraph.Link{
			{Source: "a", Target: "b"},
			{Source: "b", Target: "c"},
			{Source: "c", Target: "d"},
		},
	}
	ids, degrees, scores := ReferenceKernel{}.SiteCI(g, 2, true)
	aIdx := indexOf(ids, "a")
	// deg(a)=1, deg(c)=2 -> CI_2(a) = (1-1) * (2-1) = 0, degenerate but
	// exercises the two-hop frontier path distinctly from radius 1.
	assert.Equal(t, 1, degrees[aIdx])
	assert.Equal(t, 0.0, scores[aIdx])
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
