package viewport

import (
	"atlas/core"
	"atlas/spatial"
)

// DefaultCullBuffer is the extra margin around the viewport, in screen
// pixels, inside which elements still count as visible. The margin is
// converted to canvas units through the current scale, so it grows as the
// user zooms out and more content becomes visible per pixel.
const DefaultCullBuffer = 100.0

// Graph supplies current node and edge records to the culler. The document
// layer implements it.
type Graph interface {
	Node(id string) (core.Node, bool)
	Edge(id string) (core.Edge, bool)
}

// Culler restricts rendering and interaction work to elements visible in
// the current viewport, at the appropriate detail tier.
type Culler struct {
	index  *spatial.Index
	buffer float64
}

// NewCuller creates a culler over the given index. A non-positive buffer
// falls back to DefaultCullBuffer.
func NewCuller(index *spatial.Index, buffer float64) *Culler {
	if buffer <= 0 {
		buffer = DefaultCullBuffer
	}
	return &Culler{index: index, buffer: buffer}
}

// VisibleRect returns the canvas-space rectangle covered by the screen
// viewport, expanded by the adaptive buffer.
func (c *Culler) VisibleRect(t core.Transform, viewportW, viewportH float64) core.Bounds {
	topLeft := t.ScreenToCanvas(core.Point{})
	bottomRight := t.ScreenToCanvas(core.Point{X: viewportW, Y: viewportH})
	return core.BoundsOf(topLeft, bottomRight).Expand(c.buffer / t.Scale)
}

// VisibleNodes returns the nodes whose full rectangle intersects the
// buffered viewport. Checking the rectangle rather than the origin point
// avoids pop-in at node edges. Ids no longer present in the graph are
// skipped.
func (c *Culler) VisibleNodes(g Graph, t core.Transform, viewportW, viewportH float64) []core.Node {
	rect := c.VisibleRect(t, viewportW, viewportH)
	var out []core.Node
	for _, el := range c.index.QueryRect(rect) {
		if el.Kind != spatial.KindNode {
			continue
		}
		n, ok := g.Node(el.ID)
		if !ok || !n.Valid() {
			continue
		}
		if n.Bounds().Intersects(rect) {
			out = append(out, n)
		}
	}
	return out
}

// VisibleEdges returns the edges whose endpoint bounding box intersects the
// buffered viewport. A long edge crossing the viewport stays visible even
// when both endpoints are off-screen.
func (c *Culler) VisibleEdges(g Graph, t core.Transform, viewportW, viewportH float64) []core.Edge {
	rect := c.VisibleRect(t, viewportW, viewportH)
	var out []core.Edge
	for _, el := range c.index.QueryRect(rect) {
		if el.Kind != spatial.KindEdge {
			continue
		}
		e, ok := g.Edge(el.ID)
		if !ok {
			continue
		}
		if core.BoundsOf(el.A, el.B).Intersects(rect) {
			out = append(out, e)
		}
	}
	return out
}
