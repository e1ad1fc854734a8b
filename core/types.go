// Package core contains the fundamental types used throughout the atlas
// canvas engine.
//
// Two coordinate spaces exist: canvas space (logical, transform-independent,
// where node positions live) and screen space (pixels as delivered by input
// events). All conversions between the two go through a Transform.
package core

import "math"

// Point represents a 2D coordinate, in either canvas or screen space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// IsFinite reports whether both coordinates are real numbers.
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Scale limits for the viewport transform.
const (
	MinScale = 0.1
	MaxScale = 5.0
)

// Transform is the viewport transform: a pan offset in screen pixels and a
// zoom factor. Scale is always within [MinScale, MaxScale] once it has gone
// through viewport.Manager; X and Y are finite.
type Transform struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Scale float64 `json:"scale"`
}

// Identity returns the neutral transform: no pan, scale 1.
func Identity() Transform {
	return Transform{X: 0, Y: 0, Scale: 1}
}

// IsFinite reports whether all three fields are real numbers.
func (t Transform) IsFinite() bool {
	return !math.IsNaN(t.X) && !math.IsInf(t.X, 0) &&
		!math.IsNaN(t.Y) && !math.IsInf(t.Y, 0) &&
		!math.IsNaN(t.Scale) && !math.IsInf(t.Scale, 0)
}

// ScreenToCanvas converts a screen-space point to canvas space.
func (t Transform) ScreenToCanvas(p Point) Point {
	return Point{X: (p.X - t.X) / t.Scale, Y: (p.Y - t.Y) / t.Scale}
}

// CanvasToScreen converts a canvas-space point to screen space.
func (t Transform) CanvasToScreen(p Point) Point {
	return Point{X: p.X*t.Scale + t.X, Y: p.Y*t.Scale + t.Y}
}

// Default node dimensions in canvas units.
const (
	DefaultNodeWidth  = 240.0
	DefaultNodeHeight = 120.0
)

// NodeKind classifies what a node on the map represents.
type NodeKind string

const (
	NodeIdea     NodeKind = "idea"
	NodeRisk     NodeKind = "risk"
	NodeDecision NodeKind = "decision"
)

// Node is a box on the exploration map. Position is the canvas-space
// top-left corner; dimensions are fixed at creation. Position is mutated
// only through an explicit drag commit, never mid-gesture.
type Node struct {
	ID     string   `json:"id"`
	Kind   NodeKind `json:"kind,omitempty"`
	Label  string   `json:"label,omitempty"`
	X      float64  `json:"x"`
	Y      float64  `json:"y"`
	Width  float64  `json:"width"`
	Height float64  `json:"height"`
}

// Bounds returns the node's full rectangle.
func (n Node) Bounds() Bounds {
	return Bounds{
		Min: Point{X: n.X, Y: n.Y},
		Max: Point{X: n.X + n.Width, Y: n.Y + n.Height},
	}
}

// Center returns the center point of the node.
func (n Node) Center() Point {
	return Point{X: n.X + n.Width/2, Y: n.Y + n.Height/2}
}

// Contains checks if a canvas-space point is inside the node.
func (n Node) Contains(p Point) bool {
	return p.X >= n.X && p.X < n.X+n.Width &&
		p.Y >= n.Y && p.Y < n.Y+n.Height
}

// Valid reports whether the node's geometry is usable: finite coordinates
// and strictly positive dimensions. Malformed nodes are skipped by the
// engine rather than propagated.
func (n Node) Valid() bool {
	if n.ID == "" {
		return false
	}
	origin := Point{X: n.X, Y: n.Y}
	size := Point{X: n.Width, Y: n.Height}
	return origin.IsFinite() && size.IsFinite() && n.Width > 0 && n.Height > 0
}

// EdgeType classifies the relation an edge expresses.
type EdgeType string

const (
	EdgeRelated EdgeType = "related"
	EdgeLeadsTo EdgeType = "leads_to"
	EdgeBlocks  EdgeType = "blocks"
)

// Edge is a directed, typed relation between two node ids. It carries no
// geometry of its own; it is anchored to each node's current position and
// re-derived whenever a node moves.
type Edge struct {
	ID   string   `json:"id"`
	From string   `json:"from"`
	To   string   `json:"to"`
	Type EdgeType `json:"type,omitempty"`
}

// EdgeEnd identifies one endpoint of an edge.
type EdgeEnd int

const (
	FromEnd EdgeEnd = iota
	ToEnd
)

// String returns the endpoint name for display.
func (e EdgeEnd) String() string {
	switch e {
	case FromEnd:
		return "from"
	case ToEnd:
		return "to"
	default:
		return "unknown"
	}
}

// Direction represents a cardinal direction on a node's perimeter.
type Direction int

const (
	North Direction = iota
	East
	South
	West
)

// String returns the string representation of a Direction.
func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case East:
		return "east"
	case South:
		return "south"
	case West:
		return "west"
	default:
		return "unknown"
	}
}

// Opposite returns the opposite direction.
func (d Direction) Opposite() Direction {
	switch d {
	case North:
		return South
	case East:
		return West
	case South:
		return North
	case West:
		return East
	default:
		return d
	}
}

// ConnectionPoint is a canvas-space anchor on a node's perimeter, used both
// as a connection drag source and as a snap target. It is derived from node
// geometry on demand and never persisted.
type ConnectionPoint struct {
	ID     string
	NodeID string
	Side   Direction
	X      float64
	Y      float64
}

// Position returns the anchor's canvas-space point.
func (c ConnectionPoint) Position() Point {
	return Point{X: c.X, Y: c.Y}
}

// ConnectionPoints returns the node's four cardinal-midpoint anchors.
func (n Node) ConnectionPoints() [4]ConnectionPoint {
	cx := n.X + n.Width/2
	cy := n.Y + n.Height/2
	mk := func(side Direction, x, y float64) ConnectionPoint {
		return ConnectionPoint{
			ID:     n.ID + ":" + side.String(),
			NodeID: n.ID,
			Side:   side,
			X:      x,
			Y:      y,
		}
	}
	return [4]ConnectionPoint{
		mk(North, cx, n.Y),
		mk(East, n.X+n.Width, cy),
		mk(South, cx, n.Y+n.Height),
		mk(West, n.X, cy),
	}
}

// SnapTarget is the nearest eligible connection point to a drag cursor,
// found within the snap threshold.
type SnapTarget struct {
	Point    ConnectionPoint
	Distance float64
}

// Bounds represents a rectangular canvas-space area.
type Bounds struct {
	Min, Max Point
}

// Width returns the width of the bounds.
func (b Bounds) Width() float64 {
	return b.Max.X - b.Min.X
}

// Height returns the height of the bounds.
func (b Bounds) Height() float64 {
	return b.Max.Y - b.Min.Y
}

// Contains checks if a point is within the bounds.
func (b Bounds) Contains(p Point) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

// ContainsBounds checks if other lies entirely inside b.
func (b Bounds) ContainsBounds(other Bounds) bool {
	return other.Min.X >= b.Min.X && other.Max.X <= b.Max.X &&
		other.Min.Y >= b.Min.Y && other.Max.Y <= b.Max.Y
}

// Intersects checks if two bounds overlap.
func (b Bounds) Intersects(other Bounds) bool {
	return b.Min.X <= other.Max.X && b.Max.X >= other.Min.X &&
		b.Min.Y <= other.Max.Y && b.Max.Y >= other.Min.Y
}

// Union returns the smallest bounds covering both.
func (b Bounds) Union(other Bounds) Bounds {
	return Bounds{
		Min: Point{X: math.Min(b.Min.X, other.Min.X), Y: math.Min(b.Min.Y, other.Min.Y)},
		Max: Point{X: math.Max(b.Max.X, other.Max.X), Y: math.Max(b.Max.Y, other.Max.Y)},
	}
}

// Expand grows the bounds by the given margin on every side.
func (b Bounds) Expand(margin float64) Bounds {
	return Bounds{
		Min: Point{X: b.Min.X - margin, Y: b.Min.Y - margin},
		Max: Point{X: b.Max.X + margin, Y: b.Max.Y + margin},
	}
}

// BoundsOf returns the bounding box of two points in any order.
func BoundsOf(a, b Point) Bounds {
	return Bounds{
		Min: Point{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y)},
		Max: Point{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y)},
	}
}
