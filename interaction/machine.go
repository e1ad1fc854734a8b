// Package interaction implements the canvas interaction state machine: the
// sole authority translating raw pointer and key events into viewport
// changes, selection changes, and proposed node/edge mutations.
//
// The machine is single-threaded and cooperative; every entry point runs
// synchronously on the host's input-dispatch thread and returns before the
// next event is handled. It never performs I/O and never throws: malformed
// or stale gestures degrade to no-ops reported on the telemetry side
// channel, and the machine returns to Idle.
package interaction

import (
	"log"
	"sort"

	"atlas/core"
	"atlas/geometry"
	"atlas/spatial"
	"atlas/viewport"
)

// Defaults for Options fields left zero.
const (
	DefaultSnapThreshold  = 24.0 // screen px
	DefaultClickThreshold = 3.0  // screen px separating click from drag
)

// wheelDamping converts raw wheel delta into a bounded zoom factor.
const wheelDamping = 500.0

// Graph supplies the current node/edge records. The engine only reads
// geometry through it and proposes changes via intents; the implementation
// (the document layer) stays the single writer.
type Graph interface {
	Node(id string) (core.Node, bool)
	Edge(id string) (core.Edge, bool)
}

// Intents are the engine's outbound boundary: discrete synchronous
// callbacks fired when a gesture completes. Nil fields are skipped.
type Intents struct {
	// NodePositionCommit fires at drag end with the final canvas position.
	NodePositionCommit func(nodeID string, position core.Point)
	// SelectionChange fires when the selection set is replaced or toggled.
	SelectionChange func(nodeIDs []string)
	// ConnectionCreate proposes a new edge. The anchor hint is the snap
	// target's connection point when one was involved.
	ConnectionCreate func(fromID, toID string, anchor *core.ConnectionPoint)
	// ConnectionDelete proposes removing an edge.
	ConnectionDelete func(edgeID string)
}

// Options tune the machine's thresholds and telemetry sink.
type Options struct {
	// SnapThreshold is the connection snap radius in screen pixels,
	// converted to canvas units through the current scale.
	SnapThreshold float64
	// ClickThreshold is the screen-pixel movement below which a node
	// press-release counts as a selection click instead of a drag.
	ClickThreshold float64
	// Telemetry receives anomaly reports. Defaults to log.Printf.
	Telemetry func(format string, args ...any)
}

// HoverKind classifies what the idle cursor is over.
type HoverKind int

const (
	HoverNone HoverKind = iota
	HoverNode
	HoverEdge
	HoverAnchor
)

// Hover is cursor-affordance feedback computed on idle pointer moves. It
// never mutates selection or transform.
type Hover struct {
	Kind   HoverKind
	ID     string // node or edge id
	Anchor core.ConnectionPoint
}

var idle = &Idle{}

// Machine is the interaction state machine.
type Machine struct {
	graph      Graph
	index      *spatial.Index
	transforms *viewport.Manager
	intents    Intents
	port       Port
	opts       Options

	state     State
	selection map[string]struct{}
	hover     Hover
	spaceHeld bool
	disposed  bool
}

// NewMachine creates a machine over the given collaborators. Intents, port
// and options can be set before the first event is dispatched.
func NewMachine(graph Graph, index *spatial.Index, transforms *viewport.Manager) *Machine {
	return &Machine{
		graph:      graph,
		index:      index,
		transforms: transforms,
		port:       nopPort{},
		opts: Options{
			SnapThreshold:  DefaultSnapThreshold,
			ClickThreshold: DefaultClickThreshold,
			Telemetry:      log.Printf,
		},
		state:     idle,
		selection: make(map[string]struct{}),
	}
}

// SetIntents installs the outbound callbacks.
func (m *Machine) SetIntents(in Intents) {
	m.intents = in
}

// SetPort installs the presentation port. Nil restores the no-op port.
func (m *Machine) SetPort(p Port) {
	if p == nil {
		p = nopPort{}
	}
	m.port = p
}

// SetOptions overrides thresholds and telemetry. Zero fields keep their
// defaults.
func (m *Machine) SetOptions(o Options) {
	if o.SnapThreshold > 0 {
		m.opts.SnapThreshold = o.SnapThreshold
	}
	if o.ClickThreshold > 0 {
		m.opts.ClickThreshold = o.ClickThreshold
	}
	if o.Telemetry != nil {
		m.opts.Telemetry = o.Telemetry
	}
}

// State returns the current interaction state.
func (m *Machine) State() State {
	return m.state
}

// Hover returns the current idle hover feedback.
func (m *Machine) Hover() Hover {
	return m.hover
}

// Selection returns the selected node ids, sorted.
func (m *Machine) Selection() []string {
	out := make([]string, 0, len(m.selection))
	for id := range m.selection {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// DragPreview returns the transient canvas position of the node being
// dragged, if a drag is active. Renderers overlay this position; the
// spatial index and the document keep the committed position until
// pointer-up.
func (m *Machine) DragPreview() (nodeID string, position core.Point, ok bool) {
	if st, is := m.state.(*DraggingNode); is {
		return st.NodeID, st.Proposed, true
	}
	return "", core.Point{}, false
}

// MarqueeRect returns the active marquee rectangle in canvas space.
func (m *Machine) MarqueeRect() (core.Bounds, bool) {
	if st, is := m.state.(*MarqueeSelecting); is {
		return core.BoundsOf(st.Start, st.Current), true
	}
	return core.Bounds{}, false
}

// ConnectPreview returns the endpoints of the in-progress connection line:
// the fixed anchor and the cursor (or snapped anchor) end.
func (m *Machine) ConnectPreview() (from, to core.Point, snapped, ok bool) {
	switch st := m.state.(type) {
	case *Connecting:
		to = st.Current
		if st.Snap != nil {
			to = st.Snap.Point.Position()
		}
		return st.StartAnchor.Position(), to, st.Snap != nil, true
	case *DetachingConnection:
		el, found := m.index.Get(st.EdgeID)
		if !found {
			return core.Point{}, core.Point{}, false, false
		}
		// The kept end stays anchored; the detached end follows the cursor.
		kept := el.A
		if st.End == core.FromEnd {
			kept = el.B
		}
		to = st.Current
		if st.Snap != nil {
			to = st.Snap.Point.Position()
		}
		return kept, to, st.Snap != nil, true
	}
	return core.Point{}, core.Point{}, false, false
}

// PointerDown dispatches a pre-classified pointer press. Priority order:
// chrome is ignored; a connect-modifier press starts or completes a sticky
// connection; a node press starts connecting, detaching, or dragging
// depending on anchor proximity; an empty-canvas press pans (middle button
// or space held) or clears selection and starts a marquee.
func (m *Machine) PointerDown(target Target, p Pointer) {
	if m.disposed || target.Kind == TargetChrome {
		return
	}

	// A sticky (modifier-click) connection completes on the next press on
	// a different node; any other press cancels it.
	if st, is := m.state.(*Connecting); is && st.Sticky {
		if target.Kind == TargetNode && target.NodeID != st.StartNodeID {
			m.completeConnection(st.StartNodeID, target.NodeID, nil)
		}
		m.toIdle()
		return
	}

	// Every other gesture requires the machine to be at rest.
	if _, is := m.state.(*Idle); !is {
		return
	}

	screen := core.Point{X: p.X, Y: p.Y}
	canvasPt := m.transforms.ScreenToCanvas(p.X, p.Y)
	snapRadius := m.snapRadius()

	if p.Connect && target.Kind == TargetNode {
		m.startConnecting(target.NodeID, canvasPt, true)
		return
	}

	if target.Kind == TargetNode {
		node, ok := m.graph.Node(target.NodeID)
		if !ok || !node.Valid() {
			m.opts.Telemetry("interaction: pointer-down on unknown node %q", target.NodeID)
			return
		}

		if snap, ok := m.index.NearestConnectionPoint(canvasPt, snapRadius, ""); ok && snap.Point.NodeID == target.NodeID {
			m.setState(&Connecting{
				StartNodeID: target.NodeID,
				StartAnchor: snap.Point,
				Current:     canvasPt,
			})
			m.port.SetCursor(CursorCrosshair)
			return
		}

		if edgeID, end, ok := m.index.EdgeEndpointNear(canvasPt, snapRadius); ok {
			m.setState(&DetachingConnection{EdgeID: edgeID, End: end, Current: canvasPt})
			m.port.SetCursor(CursorCrosshair)
			return
		}

		origin := m.transforms.CanvasToScreen(node.X, node.Y)
		m.setState(&DraggingNode{
			NodeID:   target.NodeID,
			Start:    screen,
			Offset:   core.Point{X: p.X - origin.X, Y: p.Y - origin.Y},
			Proposed: core.Point{X: node.X, Y: node.Y},
		})
		m.port.SetCursor(CursorGrabbing)
		return
	}

	// Empty canvas.
	if p.Button == ButtonMiddle || m.spaceHeld {
		m.setState(&Panning{Start: screen, StartTransform: m.transforms.Get()})
		m.port.SetCursor(CursorGrabbing)
		return
	}

	// Edge endpoints sit on node borders, so a detach press can arrive
	// classified as canvas.
	if edgeID, end, ok := m.index.EdgeEndpointNear(canvasPt, snapRadius); ok {
		m.setState(&DetachingConnection{EdgeID: edgeID, End: end, Current: canvasPt})
		m.port.SetCursor(CursorCrosshair)
		return
	}

	m.replaceSelection(nil)
	m.setState(&MarqueeSelecting{Start: canvasPt, Current: canvasPt})
}

// PointerMove dispatches purely on the current state. It is called at input
// frequency during drags, so everything here goes through the spatial index
// rather than scanning the node list.
func (m *Machine) PointerMove(p Pointer) {
	if m.disposed {
		return
	}

	canvasPt := m.transforms.ScreenToCanvas(p.X, p.Y)
	snapRadius := m.snapRadius()

	switch st := m.state.(type) {
	case *Idle:
		m.updateHover(canvasPt, snapRadius)

	case *Panning:
		m.transforms.Set(viewport.Pan(
			st.StartTransform.X+(p.X-st.Start.X),
			st.StartTransform.Y+(p.Y-st.Start.Y),
		))

	case *DraggingNode:
		// The node origin tracks the pointer minus the grab offset, so
		// the grab point stays under the cursor even if the host moves
		// the viewport mid-drag.
		st.Proposed = m.transforms.ScreenToCanvas(p.X-st.Offset.X, p.Y-st.Offset.Y)
		if !st.Moved {
			moved := geometry.Dist(st.Start, core.Point{X: p.X, Y: p.Y})
			st.Moved = moved > m.opts.ClickThreshold
		}

	case *Connecting:
		st.Current = canvasPt
		st.Snap = m.snapAt(canvasPt, snapRadius)

	case *DetachingConnection:
		st.Current = canvasPt
		st.Snap = m.snapAt(canvasPt, snapRadius)

	case *MarqueeSelecting:
		st.Current = canvasPt
		st.Pending = m.nodesInside(core.BoundsOf(st.Start, st.Current))
	}
}

// PointerUp finalizes the active gesture and returns to Idle. Commit
// intents for entities deleted mid-gesture degrade to telemetry no-ops.
func (m *Machine) PointerUp(p Pointer) {
	if m.disposed {
		return
	}

	switch st := m.state.(type) {
	case *Idle:
		return

	case *Panning:
		// Transform already final.
		m.toIdle()

	case *DraggingNode:
		if !st.Moved {
			if p.Shift {
				m.toggleSelection(st.NodeID)
			} else {
				m.replaceSelection([]string{st.NodeID})
			}
		} else if _, ok := m.graph.Node(st.NodeID); ok {
			m.emitNodePositionCommit(st.NodeID, st.Proposed)
		} else {
			m.opts.Telemetry("interaction: drop commit for deleted node %q", st.NodeID)
		}
		m.toIdle()

	case *Connecting:
		if st.Snap != nil && st.Snap.Point.NodeID != st.StartNodeID {
			m.completeConnection(st.StartNodeID, st.Snap.Point.NodeID, &st.Snap.Point)
			m.toIdle()
			return
		}
		if st.Sticky {
			// Modifier-click connect survives the release and waits for a
			// press on the target node.
			return
		}
		// No snap target, or released over the start node: cancel silently.
		m.toIdle()

	case *DetachingConnection:
		m.finishDetach(st)
		m.toIdle()

	case *MarqueeSelecting:
		m.replaceSelection(st.Pending)
		m.toIdle()
	}
}

// Wheel applies a zoom gesture anchored at the cursor. Zoom is only valid
// while no gesture is active.
func (m *Machine) Wheel(deltaY, x, y float64) {
	if m.disposed {
		return
	}
	switch st := m.state.(type) {
	case *Idle:
	case *Connecting:
		// A sticky connect is a resting state for zoom purposes.
		if !st.Sticky {
			return
		}
	default:
		return
	}
	factor := 1 - geometry.Clamp(deltaY/wheelDamping, -0.5, 0.5)
	m.transforms.ScaleAt(factor, x, y)
}

// KeyDown handles the engine's key signals: Escape cancels, Space arms the
// pan binding.
func (m *Machine) KeyDown(k Key) {
	if m.disposed {
		return
	}
	switch k {
	case KeyEscape:
		m.Cancel()
	case KeySpace:
		m.spaceHeld = true
		if _, is := m.state.(*Idle); is {
			m.port.SetCursor(CursorGrab)
		}
	}
}

// KeyUp releases key state.
func (m *Machine) KeyUp(k Key) {
	if m.disposed {
		return
	}
	if k == KeySpace {
		m.spaceHeld = false
		if _, is := m.state.(*Idle); is {
			m.port.SetCursor(CursorDefault)
		}
	}
}

// Cancel aborts any active gesture without emitting a commit intent,
// discarding transient state. It also covers pointer-capture loss, so the
// machine can never stay wedged in a non-idle mode.
func (m *Machine) Cancel() {
	if m.disposed {
		return
	}
	if st, is := m.state.(*Panning); is {
		// Pan applied live; restore the pre-gesture transform.
		m.transforms.Set(viewport.Full(st.StartTransform))
	}
	m.toIdle()
}

// Dispose tears the machine down: gesture state reset, selection and hover
// cleared, cursor restored, transform subscribers dropped. Subsequent
// events are ignored.
func (m *Machine) Dispose() {
	if m.disposed {
		return
	}
	m.state = idle
	m.selection = make(map[string]struct{})
	m.hover = Hover{}
	m.spaceHeld = false
	m.port.SetCursor(CursorDefault)
	m.transforms.ClearSubscribers()
	m.disposed = true
}

func (m *Machine) setState(s State) {
	m.state = s
	m.hover = Hover{}
}

func (m *Machine) toIdle() {
	m.state = idle
	if m.spaceHeld {
		m.port.SetCursor(CursorGrab)
	} else {
		m.port.SetCursor(CursorDefault)
	}
}

// snapRadius converts the screen-pixel snap threshold into canvas units.
func (m *Machine) snapRadius() float64 {
	return m.opts.SnapThreshold / m.transforms.Get().Scale
}

func (m *Machine) snapAt(p core.Point, radius float64) *core.SnapTarget {
	if snap, ok := m.index.NearestConnectionPoint(p, radius, ""); ok {
		return &snap
	}
	return nil
}

// startConnecting begins a connection from the node anchor nearest the
// press point.
func (m *Machine) startConnecting(nodeID string, canvasPt core.Point, sticky bool) {
	node, ok := m.graph.Node(nodeID)
	if !ok || !node.Valid() {
		m.opts.Telemetry("interaction: connect from unknown node %q", nodeID)
		return
	}
	anchors := node.ConnectionPoints()
	best := anchors[0]
	bestDist := geometry.Dist(canvasPt, best.Position())
	for _, cp := range anchors[1:] {
		if d := geometry.Dist(canvasPt, cp.Position()); d < bestDist {
			best, bestDist = cp, d
		}
	}
	m.setState(&Connecting{
		StartNodeID: nodeID,
		StartAnchor: best,
		Current:     canvasPt,
		Sticky:      sticky,
	})
	m.port.SetCursor(CursorCrosshair)
}

// completeConnection emits the create intent after re-checking both
// endpoints still exist.
func (m *Machine) completeConnection(fromID, toID string, anchor *core.ConnectionPoint) {
	if _, ok := m.graph.Node(fromID); !ok {
		m.opts.Telemetry("interaction: drop connection from deleted node %q", fromID)
		return
	}
	if _, ok := m.graph.Node(toID); !ok {
		m.opts.Telemetry("interaction: drop connection to deleted node %q", toID)
		return
	}
	if m.intents.ConnectionCreate != nil {
		m.intents.ConnectionCreate(fromID, toID, anchor)
	}
}

// finishDetach resolves a detach gesture: re-snap rewires the edge, empty
// space deletes it.
func (m *Machine) finishDetach(st *DetachingConnection) {
	edge, ok := m.graph.Edge(st.EdgeID)
	if !ok {
		m.opts.Telemetry("interaction: detach on deleted edge %q", st.EdgeID)
		return
	}

	if st.Snap != nil {
		from, to := edge.From, st.Snap.Point.NodeID
		if st.End == core.FromEnd {
			from, to = st.Snap.Point.NodeID, edge.To
		}
		// Rewiring onto the kept endpoint would create a self-loop; treat
		// it like a release over empty space.
		if from != to {
			if _, ok := m.graph.Node(from); ok {
				if _, ok := m.graph.Node(to); ok {
					m.completeConnection(from, to, &st.Snap.Point)
					m.emitConnectionDelete(edge.ID)
					return
				}
			}
			m.opts.Telemetry("interaction: detach target vanished for edge %q", edge.ID)
			return
		}
	}

	m.emitConnectionDelete(edge.ID)
}

// nodesInside returns ids of nodes whose full bounds lie inside the rect.
func (m *Machine) nodesInside(rect core.Bounds) []string {
	var out []string
	for _, el := range m.index.QueryRect(rect) {
		if el.Kind != spatial.KindNode {
			continue
		}
		if _, ok := m.graph.Node(el.ID); !ok {
			continue
		}
		if rect.ContainsBounds(el.Bounds) {
			out = append(out, el.ID)
		}
	}
	sort.Strings(out)
	return out
}

// updateHover recomputes cursor-affordance feedback. Read-only: it touches
// neither selection nor transform.
func (m *Machine) updateHover(p core.Point, snapRadius float64) {
	var next Hover
	var cursor Cursor

	if snap, ok := m.index.NearestConnectionPoint(p, snapRadius, ""); ok {
		next = Hover{Kind: HoverAnchor, ID: snap.Point.NodeID, Anchor: snap.Point}
		cursor = CursorCrosshair
	} else if id, ok := m.index.NodeAt(p); ok {
		next = Hover{Kind: HoverNode, ID: id}
		cursor = CursorMove
	} else if id, ok := m.index.NearestEdge(p, snapRadius); ok {
		next = Hover{Kind: HoverEdge, ID: id}
		cursor = CursorPointer
	} else if m.spaceHeld {
		cursor = CursorGrab
	} else {
		cursor = CursorDefault
	}

	m.hover = next
	m.port.SetCursor(cursor)
}

func (m *Machine) replaceSelection(ids []string) {
	next := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		next[id] = struct{}{}
	}
	if setsEqual(m.selection, next) {
		return
	}
	m.selection = next
	m.emitSelectionChange()
}

func (m *Machine) toggleSelection(id string) {
	if _, ok := m.selection[id]; ok {
		delete(m.selection, id)
	} else {
		m.selection[id] = struct{}{}
	}
	m.emitSelectionChange()
}

func (m *Machine) emitSelectionChange() {
	if m.intents.SelectionChange != nil {
		m.intents.SelectionChange(m.Selection())
	}
}

func (m *Machine) emitNodePositionCommit(id string, pos core.Point) {
	if m.intents.NodePositionCommit != nil {
		m.intents.NodePositionCommit(id, pos)
	}
}

func (m *Machine) emitConnectionDelete(id string) {
	if m.intents.ConnectionDelete != nil {
		m.intents.ConnectionDelete(id)
	}
}

func setsEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if _, ok := b[id]; !ok {
			return false
		}
	}
	return true
}
