// Package spatial provides a grid-backed index over node and edge geometry.
// It answers proximity and range queries in sub-linear time so that
// hit-testing and viewport culling never rescan the whole map.
//
// The index is an arena plus grid: elements live in an id-keyed arena and
// each grid cell holds only ids. Queries over cells may produce false
// positives from coarse cell granularity; callers refine. False negatives
// never occur for elements whose bounds intersect the query.
package spatial

import (
	"math"
	"sort"

	"atlas/core"
	"atlas/geometry"
)

// DefaultCellSize is the grid cell edge length in canvas units.
const DefaultCellSize = 500.0

// Kind distinguishes indexed element types.
type Kind int

const (
	KindNode Kind = iota
	KindEdge
)

// Element is an indexed entry: an id, its kind, and its bounding box.
// For edges, A and B hold the anchored segment endpoints.
type Element struct {
	ID     string
	Kind   Kind
	Bounds core.Bounds
	A, B   core.Point
}

type cellKey struct {
	X, Y int
}

// Index is the grid-based spatial index. It has a single writer (the
// document layer) and is read by the interaction machine and the culler.
type Index struct {
	cellSize float64
	cells    map[cellKey]map[string]struct{}
	arena    map[string]Element
}

// NewIndex creates an index with the given cell size in canvas units.
// A non-positive cell size falls back to DefaultCellSize.
func NewIndex(cellSize float64) *Index {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	return &Index{
		cellSize: cellSize,
		cells:    make(map[cellKey]map[string]struct{}),
		arena:    make(map[string]Element),
	}
}

// Len returns the number of indexed elements.
func (ix *Index) Len() int {
	return len(ix.arena)
}

// InsertNode indexes a node by its full rectangle.
func (ix *Index) InsertNode(id string, bounds core.Bounds) {
	ix.put(Element{ID: id, Kind: KindNode, Bounds: bounds})
}

// InsertEdge indexes an edge by its anchored segment.
func (ix *Index) InsertEdge(id string, a, b core.Point) {
	ix.put(Element{ID: id, Kind: KindEdge, Bounds: core.BoundsOf(a, b), A: a, B: b})
}

// Update replaces a node's bounds. Unknown ids are ignored.
func (ix *Index) Update(id string, bounds core.Bounds) {
	el, ok := ix.arena[id]
	if !ok {
		return
	}
	ix.Remove(id)
	el.Bounds = bounds
	ix.put(el)
}

// UpdateEdge replaces an edge's anchored segment. Unknown ids are ignored.
func (ix *Index) UpdateEdge(id string, a, b core.Point) {
	el, ok := ix.arena[id]
	if !ok {
		return
	}
	ix.Remove(id)
	el.A, el.B = a, b
	el.Bounds = core.BoundsOf(a, b)
	ix.put(el)
}

// Remove deletes an element from the index. Unknown ids are ignored.
func (ix *Index) Remove(id string) {
	el, ok := ix.arena[id]
	if !ok {
		return
	}
	ix.eachCell(el.Bounds, func(k cellKey) {
		if set, ok := ix.cells[k]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(ix.cells, k)
			}
		}
	})
	delete(ix.arena, id)
}

// Get returns the indexed element for an id.
func (ix *Index) Get(id string) (Element, bool) {
	el, ok := ix.arena[id]
	return el, ok
}

// QueryRect returns every element whose bounds intersect the rectangle.
// Completeness is guaranteed; callers refine any coarse-cell false positives.
func (ix *Index) QueryRect(rect core.Bounds) []Element {
	seen := make(map[string]struct{})
	var out []Element
	ix.eachCell(rect, func(k cellKey) {
		for id := range ix.cells[k] {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			el := ix.arena[id]
			if el.Bounds.Intersects(rect) {
				out = append(out, el)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// QueryNear returns elements within radius of the point, sorted by distance
// ascending. Node distance is measured to the rectangle, edge distance to
// the anchored segment.
func (ix *Index) QueryNear(p core.Point, radius float64) []Element {
	rect := core.Bounds{Min: p, Max: p}.Expand(radius)
	candidates := ix.QueryRect(rect)

	type hit struct {
		el   Element
		dist float64
	}
	var hits []hit
	for _, el := range candidates {
		d := ix.distanceTo(el, p)
		if d <= radius {
			hits = append(hits, hit{el, d})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].dist != hits[j].dist {
			return hits[i].dist < hits[j].dist
		}
		return hits[i].el.ID < hits[j].el.ID
	})
	out := make([]Element, len(hits))
	for i, h := range hits {
		out[i] = h.el
	}
	return out
}

// NodeAt returns the topmost node whose rectangle contains the point.
func (ix *Index) NodeAt(p core.Point) (string, bool) {
	for _, el := range ix.QueryNear(p, 0) {
		if el.Kind == KindNode && el.Bounds.Contains(p) {
			return el.ID, true
		}
	}
	return "", false
}

// NearestEdge returns the edge whose anchored segment is closest to the
// point, if any lies within the threshold.
func (ix *Index) NearestEdge(p core.Point, threshold float64) (string, bool) {
	best := ""
	bestDist := math.Inf(1)
	rect := core.Bounds{Min: p, Max: p}.Expand(threshold)
	for _, el := range ix.QueryRect(rect) {
		if el.Kind != KindEdge {
			continue
		}
		d := geometry.PointSegmentDistance(p, el.A, el.B)
		if d <= threshold && d < bestDist {
			best, bestDist = el.ID, d
		}
	}
	return best, best != ""
}

// EdgeEndpointNear returns the edge endpoint anchor within threshold of the
// point, preferring the closer end when both qualify.
func (ix *Index) EdgeEndpointNear(p core.Point, threshold float64) (string, core.EdgeEnd, bool) {
	best := ""
	bestEnd := core.FromEnd
	bestDist := math.Inf(1)
	rect := core.Bounds{Min: p, Max: p}.Expand(threshold)
	for _, el := range ix.QueryRect(rect) {
		if el.Kind != KindEdge {
			continue
		}
		if d := geometry.Dist(p, el.A); d <= threshold && d < bestDist {
			best, bestEnd, bestDist = el.ID, core.FromEnd, d
		}
		if d := geometry.Dist(p, el.B); d <= threshold && d < bestDist {
			best, bestEnd, bestDist = el.ID, core.ToEnd, d
		}
	}
	return best, bestEnd, best != ""
}

// NearestConnectionPoint returns the closest node-perimeter anchor within
// radius of the point. Anchors on the excluded node id are skipped; pass ""
// to consider every node.
func (ix *Index) NearestConnectionPoint(p core.Point, radius float64, exclude string) (core.SnapTarget, bool) {
	var best core.SnapTarget
	found := false
	rect := core.Bounds{Min: p, Max: p}.Expand(radius)
	for _, el := range ix.QueryRect(rect) {
		if el.Kind != KindNode || el.ID == exclude {
			continue
		}
		for _, cp := range anchorsOf(el) {
			d := geometry.Dist(p, cp.Position())
			if d > radius {
				continue
			}
			if !found || d < best.Distance {
				best = core.SnapTarget{Point: cp, Distance: d}
				found = true
			}
		}
	}
	return best, found
}

// anchorsOf derives the four cardinal-midpoint anchors from a node
// element's indexed bounds.
func anchorsOf(el Element) [4]core.ConnectionPoint {
	n := core.Node{
		ID:     el.ID,
		X:      el.Bounds.Min.X,
		Y:      el.Bounds.Min.Y,
		Width:  el.Bounds.Width(),
		Height: el.Bounds.Height(),
	}
	return n.ConnectionPoints()
}

func (ix *Index) distanceTo(el Element, p core.Point) float64 {
	if el.Kind == KindEdge {
		return geometry.PointSegmentDistance(p, el.A, el.B)
	}
	return geometry.PointBoundsDistance(p, el.Bounds)
}

func (ix *Index) put(el Element) {
	ix.arena[el.ID] = el
	ix.eachCell(el.Bounds, func(k cellKey) {
		set, ok := ix.cells[k]
		if !ok {
			set = make(map[string]struct{})
			ix.cells[k] = set
		}
		set[el.ID] = struct{}{}
	})
}

// eachCell visits every grid cell the bounds overlap.
func (ix *Index) eachCell(b core.Bounds, fn func(cellKey)) {
	minX := int(math.Floor(b.Min.X / ix.cellSize))
	minY := int(math.Floor(b.Min.Y / ix.cellSize))
	maxX := int(math.Floor(b.Max.X / ix.cellSize))
	maxY := int(math.Floor(b.Max.Y / ix.cellSize))
	for cy := minY; cy <= maxY; cy++ {
		for cx := minX; cx <= maxX; cx++ {
			fn(cellKey{X: cx, Y: cy})
		}
	}
}
