// Package geometry provides the float math shared by the spatial index,
// viewport and interaction packages.
package geometry

import (
	"math"

	"atlas/core"
)

// Epsilon is the tolerance used when comparing canvas-space floats.
const Epsilon = 1e-9

// Clamp limits v to the range [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// AlmostEqual reports whether a and b differ by less than Epsilon.
func AlmostEqual(a, b float64) bool {
	return math.Abs(a-b) < Epsilon
}

// Dist returns the Euclidean distance between two points.
func Dist(a, b core.Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// Dist2 returns the squared Euclidean distance between two points.
func Dist2(a, b core.Point) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	return dx*dx + dy*dy
}

// PointSegmentDistance returns the distance from p to the segment ab.
func PointSegmentDistance(p, a, b core.Point) float64 {
	abx := b.X - a.X
	aby := b.Y - a.Y
	len2 := abx*abx + aby*aby
	if len2 == 0 {
		return Dist(p, a)
	}
	t := ((p.X-a.X)*abx + (p.Y-a.Y)*aby) / len2
	t = Clamp(t, 0, 1)
	closest := core.Point{X: a.X + t*abx, Y: a.Y + t*aby}
	return Dist(p, closest)
}

// PointBoundsDistance returns the distance from p to the nearest point of b,
// or 0 if p lies inside b.
func PointBoundsDistance(p core.Point, b core.Bounds) float64 {
	dx := math.Max(math.Max(b.Min.X-p.X, 0), p.X-b.Max.X)
	dy := math.Max(math.Max(b.Min.Y-p.Y, 0), p.Y-b.Max.Y)
	return math.Hypot(dx, dy)
}
