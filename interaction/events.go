package interaction

// TargetKind classifies what sits under a pointer-down. The host classifies
// the raw event target before calling the engine, so the engine never
// inspects presentation-layer objects.
type TargetKind int

const (
	// TargetCanvas is empty canvas space.
	TargetCanvas TargetKind = iota
	// TargetNode is a node body; Target.NodeID carries the id.
	TargetNode
	// TargetChrome is any non-canvas UI affordance (field, overlay,
	// toolbar). The engine ignores these entirely.
	TargetChrome
)

// Target is a pre-classified pointer-down target.
type Target struct {
	Kind   TargetKind
	NodeID string
}

// NodeTarget builds a node target.
func NodeTarget(id string) Target {
	return Target{Kind: TargetNode, NodeID: id}
}

// CanvasTarget is the empty-canvas target.
func CanvasTarget() Target {
	return Target{Kind: TargetCanvas}
}

// ChromeTarget is the non-canvas UI target.
func ChromeTarget() Target {
	return Target{Kind: TargetChrome}
}

// Button identifies which pointer button drives a gesture.
type Button int

const (
	ButtonPrimary Button = iota
	ButtonMiddle
)

// Pointer is a raw pointer event in screen pixels, with the modifier flags
// the engine's bindings care about.
type Pointer struct {
	X, Y    float64
	Button  Button
	Shift   bool // selection toggle modifier
	Connect bool // connect-gesture modifier
}

// Key is a keyboard signal the engine reacts to.
type Key int

const (
	// KeyEscape cancels any active gesture.
	KeyEscape Key = iota
	// KeySpace, while held, turns a primary-button canvas drag into a pan.
	KeySpace
)
