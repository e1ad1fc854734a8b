package viewport

import (
	"testing"

	"atlas/core"
	"atlas/spatial"
)

// mapStub implements Graph over plain maps.
type mapStub struct {
	nodes map[string]core.Node
	edges map[string]core.Edge
}

func (s *mapStub) Node(id string) (core.Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

func (s *mapStub) Edge(id string) (core.Edge, bool) {
	e, ok := s.edges[id]
	return e, ok
}

func buildStub() (*mapStub, *spatial.Index) {
	s := &mapStub{nodes: map[string]core.Node{}, edges: map[string]core.Edge{}}
	ix := spatial.NewIndex(500)

	add := func(id string, x, y float64) {
		n := core.Node{ID: id, X: x, Y: y, Width: 240, Height: 120}
		s.nodes[id] = n
		ix.InsertNode(id, n.Bounds())
	}
	add("in", 100, 100)
	add("edge-straddler", -200, 100) // origin off-screen, rect partially visible
	add("out", 5000, 5000)
	return s, ix
}

func TestVisibleNodesUsesFullRect(t *testing.T) {
	s, ix := buildStub()
	c := NewCuller(ix, 1) // near-zero buffer to make the rect check decisive

	nodes := c.VisibleNodes(s, core.Identity(), 800, 600)

	seen := map[string]bool{}
	for _, n := range nodes {
		seen[n.ID] = true
	}
	if !seen["in"] {
		t.Error("fully visible node missing")
	}
	if !seen["edge-straddler"] {
		t.Error("node with off-screen origin but intersecting rect was culled")
	}
	if seen["out"] {
		t.Error("far off-screen node not culled")
	}
}

func TestVisibleEdgesCrossingViewport(t *testing.T) {
	s := &mapStub{nodes: map[string]core.Node{}, edges: map[string]core.Edge{}}
	ix := spatial.NewIndex(500)

	// An edge spanning the viewport with both endpoints far outside it.
	s.edges["cross"] = core.Edge{ID: "cross", From: "a", To: "b"}
	ix.InsertEdge("cross", core.Point{X: -3000, Y: 300}, core.Point{X: 3000, Y: 300})

	// And one entirely elsewhere.
	s.edges["away"] = core.Edge{ID: "away", From: "c", To: "d"}
	ix.InsertEdge("away", core.Point{X: 8000, Y: 8000}, core.Point{X: 9000, Y: 9000})

	c := NewCuller(ix, 1)
	edges := c.VisibleEdges(s, core.Identity(), 800, 600)

	if len(edges) != 1 || edges[0].ID != "cross" {
		t.Errorf("expected only the crossing edge, got %v", edges)
	}
}

func TestAdaptiveBufferGrowsWhenZoomedOut(t *testing.T) {
	ix := spatial.NewIndex(500)
	c := NewCuller(ix, 100)

	atFull := c.VisibleRect(core.Transform{Scale: 1}, 800, 600)
	zoomedOut := c.VisibleRect(core.Transform{Scale: 0.25}, 800, 600)

	if zoomedOut.Width() <= atFull.Width() {
		t.Errorf("buffered rect should widen as scale shrinks: %v vs %v",
			zoomedOut.Width(), atFull.Width())
	}
}

func TestStaleIdsSkipped(t *testing.T) {
	s, ix := buildStub()
	// Simulate external deletion without an index update yet.
	delete(s.nodes, "in")

	c := NewCuller(ix, 100)
	for _, n := range c.VisibleNodes(s, core.Identity(), 800, 600) {
		if n.ID == "in" {
			t.Error("deleted node must not be reported visible")
		}
	}
}

func TestLODLevels(t *testing.T) {
	tests := []struct {
		scale float64
		want  LOD
	}{
		{5, LODHigh},
		{0.8, LODHigh},
		{0.79, LODMedium},
		{0.4, LODMedium},
		{0.39, LODLow},
		{0.2, LODLow},
		{0.19, LODMinimal},
		{0.1, LODMinimal},
	}
	for _, tt := range tests {
		if got := LevelForScale(tt.scale); got != tt.want {
			t.Errorf("LevelForScale(%v) = %v, want %v", tt.scale, got, tt.want)
		}
	}
}
