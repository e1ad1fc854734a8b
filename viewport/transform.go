// Package viewport owns the single source of truth for the canvas viewport:
// the pan/zoom transform, its persistence, and the culling and
// level-of-detail decisions derived from it.
package viewport

import (
	"log"

	"atlas/core"
	"atlas/geometry"
)

// MaxStoredPan bounds the translation magnitude a persisted transform may
// carry. Anything larger is treated as corrupt so a stale store can never
// wedge the viewport off-screen.
const MaxStoredPan = 1e6

// maxPaddingFraction caps fit padding relative to the smaller viewport
// dimension, keeping the available space positive.
const maxPaddingFraction = 0.4

// Store persists the viewport transform between sessions.
type Store interface {
	// LoadTransform returns the stored transform and whether one exists.
	LoadTransform() (core.Transform, bool, error)
	// SaveTransform durably records the transform.
	SaveTransform(core.Transform) error
}

// Change is a partial transform update. Nil fields keep their current value.
type Change struct {
	X     *float64
	Y     *float64
	Scale *float64
}

// Pan returns a Change that sets the pan offset.
func Pan(x, y float64) Change {
	return Change{X: &x, Y: &y}
}

// Zoom returns a Change that sets the scale.
func Zoom(scale float64) Change {
	return Change{Scale: &scale}
}

// Full returns a Change that sets every field.
func Full(t core.Transform) Change {
	return Change{X: &t.X, Y: &t.Y, Scale: &t.Scale}
}

type subscriber struct {
	id int
	fn func(core.Transform)
}

// Manager is the authoritative owner of the viewport transform. Every other
// component receives value copies. It is single-threaded like the rest of
// the engine: all calls happen on the input-dispatch goroutine.
type Manager struct {
	current core.Transform
	store   Store
	subs    []subscriber
	nextSub int
	logf    func(format string, args ...any)
}

// NewManager creates a Manager, restoring a previously stored transform if
// the store holds one that passes the reasonableness check. A corrupt or
// out-of-range stored transform is discarded in favor of identity; it is
// never surfaced as an error.
func NewManager(store Store) *Manager {
	m := &Manager{
		current: core.Identity(),
		store:   store,
		logf:    log.Printf,
	}
	if store != nil {
		t, ok, err := store.LoadTransform()
		switch {
		case err != nil:
			m.logf("viewport: load stored transform: %v", err)
		case ok && reasonable(t):
			m.current = t
		case ok:
			m.logf("viewport: discarding unreasonable stored transform %+v", t)
		}
	}
	return m
}

// SetTelemetry replaces the anomaly log sink. A nil function silences it.
func (m *Manager) SetTelemetry(logf func(format string, args ...any)) {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	m.logf = logf
}

// Get returns a copy of the current transform.
func (m *Manager) Get() core.Transform {
	return m.current
}

// Set merges the change into the current transform, clamping scale to the
// valid range. Non-finite fields are dropped. If nothing actually changed
// beyond Epsilon the call is a no-op: no persistence, no notification.
func (m *Manager) Set(c Change) {
	next := m.current
	if c.X != nil && finite(*c.X) {
		next.X = *c.X
	}
	if c.Y != nil && finite(*c.Y) {
		next.Y = *c.Y
	}
	if c.Scale != nil && finite(*c.Scale) {
		next.Scale = geometry.Clamp(*c.Scale, core.MinScale, core.MaxScale)
	}

	if geometry.AlmostEqual(next.X, m.current.X) &&
		geometry.AlmostEqual(next.Y, m.current.Y) &&
		geometry.AlmostEqual(next.Scale, m.current.Scale) {
		return
	}

	m.current = next
	if m.store != nil {
		if err := m.store.SaveTransform(next); err != nil {
			m.logf("viewport: persist transform: %v", err)
		}
	}
	m.notify(next)
}

// Translate pans by the given screen-pixel delta.
func (m *Manager) Translate(dx, dy float64) {
	m.Set(Pan(m.current.X+dx, m.current.Y+dy))
}

// ScaleAt multiplies the scale by factor while keeping the canvas point
// under the screen anchor (cx, cy) stationary.
func (m *Manager) ScaleAt(factor, cx, cy float64) {
	cur := m.current
	newScale := geometry.Clamp(cur.Scale*factor, core.MinScale, core.MaxScale)
	anchor := cur.ScreenToCanvas(core.Point{X: cx, Y: cy})
	m.Set(Change{
		X:     f(cx - anchor.X*newScale),
		Y:     f(cy - anchor.Y*newScale),
		Scale: f(newScale),
	})
}

// ScreenToCanvas converts a screen point to canvas space using the current
// transform.
func (m *Manager) ScreenToCanvas(x, y float64) core.Point {
	return m.current.ScreenToCanvas(core.Point{X: x, Y: y})
}

// CanvasToScreen converts a canvas point to screen space using the current
// transform.
func (m *Manager) CanvasToScreen(x, y float64) core.Point {
	return m.current.CanvasToScreen(core.Point{X: x, Y: y})
}

// FitTransform computes the transform that fits content inside the viewport
// minus padding on all sides, preserving aspect ratio and centering the
// content midpoint on the viewport midpoint. Degenerate content or viewport
// dimensions yield the identity transform.
func FitTransform(content core.Bounds, viewportW, viewportH, padding float64) core.Transform {
	cw := content.Width()
	ch := content.Height()
	if cw <= 0 || ch <= 0 || viewportW <= 0 || viewportH <= 0 {
		return core.Identity()
	}

	smaller := viewportW
	if viewportH < smaller {
		smaller = viewportH
	}
	padding = geometry.Clamp(padding, 0, smaller*maxPaddingFraction)

	availW := viewportW - 2*padding
	availH := viewportH - 2*padding
	scale := geometry.Clamp(min(availW/cw, availH/ch), core.MinScale, core.MaxScale)

	center := core.Point{
		X: content.Min.X + cw/2,
		Y: content.Min.Y + ch/2,
	}
	return core.Transform{
		X:     viewportW/2 - center.X*scale,
		Y:     viewportH/2 - center.Y*scale,
		Scale: scale,
	}
}

// FitToContent applies FitTransform to the manager.
func (m *Manager) FitToContent(content core.Bounds, viewportW, viewportH, padding float64) {
	m.Set(Full(FitTransform(content, viewportW, viewportH, padding)))
}

// Subscribe registers a callback invoked synchronously, in subscription
// order, after every real transform change. The returned function removes
// the subscription.
func (m *Manager) Subscribe(fn func(core.Transform)) func() {
	id := m.nextSub
	m.nextSub++
	m.subs = append(m.subs, subscriber{id: id, fn: fn})
	return func() {
		for i, s := range m.subs {
			if s.id == id {
				m.subs = append(m.subs[:i], m.subs[i+1:]...)
				return
			}
		}
	}
}

// ClearSubscribers drops every subscription. Used at engine disposal.
func (m *Manager) ClearSubscribers() {
	m.subs = nil
}

// notify invokes subscribers in order. A panicking subscriber is isolated
// so the remaining subscribers still run.
func (m *Manager) notify(t core.Transform) {
	subs := make([]subscriber, len(m.subs))
	copy(subs, m.subs)
	for _, s := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logf("viewport: subscriber panic: %v", r)
				}
			}()
			s.fn(t)
		}()
	}
}

// reasonable guards against restoring a corrupted or stale transform.
func reasonable(t core.Transform) bool {
	if !t.IsFinite() {
		return false
	}
	if t.Scale < core.MinScale || t.Scale > core.MaxScale {
		return false
	}
	if t.X < -MaxStoredPan || t.X > MaxStoredPan || t.Y < -MaxStoredPan || t.Y > MaxStoredPan {
		return false
	}
	return true
}

func finite(v float64) bool {
	return (core.Point{X: v}).IsFinite()
}

func f(v float64) *float64 {
	return &v
}
