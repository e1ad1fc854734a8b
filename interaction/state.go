package interaction

import "atlas/core"

// State is the interaction mode, a sealed tagged variant: exactly one case
// is active at any instant, and every gesture both starts from and returns
// to Idle. Keeping the mode as one value (rather than independent boolean
// flags) makes overlapping concurrent modes unrepresentable.
type State interface {
	// Name returns the mode name for status display.
	Name() string

	isState()
}

// Idle is the resting state between gestures.
type Idle struct{}

// Panning is an active viewport pan. StartTransform is the transform at
// gesture start, both the pan baseline and the Escape restore point.
type Panning struct {
	Start          core.Point // screen space
	StartTransform core.Transform
}

// DraggingNode is an active node drag. Proposed is the transient canvas
// position shown while dragging; the node itself is only mutated by the
// commit intent at pointer-up.
type DraggingNode struct {
	NodeID   string
	Start    core.Point // screen space
	Offset   core.Point // pointer to node screen origin, captured at start
	Proposed core.Point // canvas space
	Moved    bool       // passed the click/drag threshold
}

// Connecting is an in-progress connection drag from a node anchor. Sticky
// marks the modifier-click variant, which survives pointer-up and completes
// on a later pointer-down on another node.
type Connecting struct {
	StartNodeID string
	StartAnchor core.ConnectionPoint
	Current     core.Point // canvas space
	Snap        *core.SnapTarget
	Sticky      bool
}

// DetachingConnection is an edge endpoint being dragged away from its node.
// Releasing over a snap target rewires the edge; releasing over empty
// canvas deletes it.
type DetachingConnection struct {
	EdgeID  string
	End     core.EdgeEnd
	Current core.Point // canvas space
	Snap    *core.SnapTarget
}

// MarqueeSelecting is a rectangular selection drag on empty canvas.
// Pending is recomputed from scratch on every move, never accumulated.
type MarqueeSelecting struct {
	Start   core.Point // canvas space
	Current core.Point // canvas space
	Pending []string
}

func (*Idle) Name() string                { return "idle" }
func (*Panning) Name() string             { return "panning" }
func (*DraggingNode) Name() string        { return "dragging" }
func (*Connecting) Name() string          { return "connecting" }
func (*DetachingConnection) Name() string { return "detaching" }
func (*MarqueeSelecting) Name() string    { return "marquee" }

func (*Idle) isState()                {}
func (*Panning) isState()             {}
func (*DraggingNode) isState()        {}
func (*Connecting) isState()          {}
func (*DetachingConnection) isState() {}
func (*MarqueeSelecting) isState()    {}
