package interaction

import (
	"fmt"
	"math"
	"reflect"
	"testing"

	"atlas/core"
	"atlas/spatial"
	"atlas/viewport"
)

type stubGraph struct {
	nodes map[string]core.Node
	edges map[string]core.Edge
}

func (g *stubGraph) Node(id string) (core.Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

func (g *stubGraph) Edge(id string) (core.Edge, bool) {
	e, ok := g.edges[id]
	return e, ok
}

type cursorRecorder struct {
	current Cursor
}

func (c *cursorRecorder) SetCursor(cur Cursor) {
	c.current = cur
}

// fixture wires a machine over a stub graph, a live spatial index, and an
// unpersisted transform manager, recording every emitted intent.
type fixture struct {
	graph  *stubGraph
	index  *spatial.Index
	tm     *viewport.Manager
	m      *Machine
	port   *cursorRecorder
	telems []string

	commits    []string // "id@x,y"
	selections [][]string
	creates    []string // "from->to"
	deletes    []string
	lastAnchor *core.ConnectionPoint
}

func newFixture() *fixture {
	f := &fixture{
		graph: &stubGraph{
			nodes: make(map[string]core.Node),
			edges: make(map[string]core.Edge),
		},
		index: spatial.NewIndex(spatial.DefaultCellSize),
		tm:    viewport.NewManager(nil),
		port:  &cursorRecorder{},
	}
	f.tm.SetTelemetry(func(string, ...any) {})
	f.m = NewMachine(f.graph, f.index, f.tm)
	f.m.SetPort(f.port)
	f.m.SetOptions(Options{
		Telemetry: func(format string, args ...any) {
			f.telems = append(f.telems, fmt.Sprintf(format, args...))
		},
	})
	f.m.SetIntents(Intents{
		NodePositionCommit: func(id string, p core.Point) {
			f.commits = append(f.commits, fmt.Sprintf("%s@%g,%g", id, p.X, p.Y))
		},
		SelectionChange: func(ids []string) {
			f.selections = append(f.selections, ids)
		},
		ConnectionCreate: func(from, to string, anchor *core.ConnectionPoint) {
			f.creates = append(f.creates, from+"->"+to)
			f.lastAnchor = anchor
		},
		ConnectionDelete: func(id string) {
			f.deletes = append(f.deletes, id)
		},
	})
	return f
}

func (f *fixture) addNode(id string, x, y float64) core.Node {
	n := core.Node{ID: id, X: x, Y: y, Width: 200, Height: 100}
	f.graph.nodes[id] = n
	f.index.InsertNode(id, n.Bounds())
	return n
}

// addEdge wires from's east anchor to to's west anchor.
func (f *fixture) addEdge(id, from, to string) core.Edge {
	e := core.Edge{ID: id, From: from, To: to}
	f.graph.edges[id] = e
	a := f.graph.nodes[from]
	b := f.graph.nodes[to]
	f.index.InsertEdge(id, core.Point{X: a.X + a.Width, Y: a.Y + a.Height/2},
		core.Point{X: b.X, Y: b.Y + b.Height/2})
	return e
}

func (f *fixture) down(t Target, x, y float64) {
	f.m.PointerDown(t, Pointer{X: x, Y: y})
}

func (f *fixture) move(x, y float64) {
	f.m.PointerMove(Pointer{X: x, Y: y})
}

func (f *fixture) up(x, y float64) {
	f.m.PointerUp(Pointer{X: x, Y: y})
}

func mustIdle(t *testing.T, m *Machine) {
	t.Helper()
	if _, ok := m.State().(*Idle); !ok {
		t.Fatalf("expected idle state, got %s", m.State().Name())
	}
}

func TestMiddleButtonPan(t *testing.T) {
	f := newFixture()

	f.m.PointerDown(CanvasTarget(), Pointer{X: 10, Y: 10, Button: ButtonMiddle})
	if _, ok := f.m.State().(*Panning); !ok {
		t.Fatalf("expected panning, got %s", f.m.State().Name())
	}
	f.move(60, 40)
	f.up(60, 40)

	got := f.tm.Get()
	want := core.Transform{X: 50, Y: 30, Scale: 1}
	if got != want {
		t.Errorf("transform after pan = %+v, want %+v", got, want)
	}
	mustIdle(t, f.m)
}

func TestSpaceTurnsPrimaryDragIntoPan(t *testing.T) {
	f := newFixture()
	f.m.KeyDown(KeySpace)

	f.down(CanvasTarget(), 0, 0)
	if _, ok := f.m.State().(*Panning); !ok {
		t.Fatalf("expected panning with space held, got %s", f.m.State().Name())
	}
	f.move(25, -5)
	f.up(25, -5)
	f.m.KeyUp(KeySpace)

	got := f.tm.Get()
	if got.X != 25 || got.Y != -5 {
		t.Errorf("transform = %+v, want pan 25,-5", got)
	}
	if len(f.selections) != 0 {
		t.Errorf("pan must not touch selection, got %v", f.selections)
	}
}

func TestEscapeRestoresPanStart(t *testing.T) {
	f := newFixture()
	f.tm.Set(viewport.Pan(100, 100))

	f.m.PointerDown(CanvasTarget(), Pointer{X: 0, Y: 0, Button: ButtonMiddle})
	f.move(300, 300)
	if got := f.tm.Get(); got.X != 400 {
		t.Fatalf("mid-pan transform = %+v", got)
	}
	f.m.KeyDown(KeyEscape)

	got := f.tm.Get()
	want := core.Transform{X: 100, Y: 100, Scale: 1}
	if got != want {
		t.Errorf("transform after escape = %+v, want %+v", got, want)
	}
	mustIdle(t, f.m)
}

func TestDragKeepsGrabPointUnderPointer(t *testing.T) {
	f := newFixture()
	f.addNode("a", 100, 100)

	// Grab 50px right and 30px below the node origin.
	f.down(NodeTarget("a"), 150, 130)

	// The host pans the viewport mid-drag; the next move must place the
	// node so the grabbed point is still under the cursor.
	f.tm.Translate(40, 0)
	f.move(160, 130)
	if _, pos, ok := f.m.DragPreview(); !ok || pos.X != 70 || pos.Y != 100 {
		t.Fatalf("proposed = %+v %v, want (70,100)", pos, ok)
	}

	f.up(160, 130)
	if !reflect.DeepEqual(f.commits, []string{"a@70,100"}) {
		t.Errorf("commits = %v", f.commits)
	}
}

func TestDragCommitsScaledDelta(t *testing.T) {
	f := newFixture()
	f.addNode("a", 100, 100)
	f.tm.Set(viewport.Zoom(0.5))

	// Press in the node body, away from any anchor.
	origin := f.tm.CanvasToScreen(200, 150)
	f.down(NodeTarget("a"), origin.X, origin.Y)
	if _, ok := f.m.State().(*DraggingNode); !ok {
		t.Fatalf("expected dragging, got %s", f.m.State().Name())
	}

	f.move(origin.X+50, origin.Y+30)
	if id, pos, ok := f.m.DragPreview(); !ok || id != "a" {
		t.Fatalf("DragPreview = %q %v %v", id, pos, ok)
	} else if pos.X != 200 || pos.Y != 160 {
		// screen delta (50,30) at scale 0.5 is canvas delta (100,60)
		t.Errorf("proposed = %+v, want (200,160)", pos)
	}

	f.up(origin.X+50, origin.Y+30)
	if !reflect.DeepEqual(f.commits, []string{"a@200,160"}) {
		t.Errorf("commits = %v", f.commits)
	}
	if len(f.selections) != 0 {
		t.Errorf("drag must not change selection, got %v", f.selections)
	}
	mustIdle(t, f.m)
}

func TestClickSelectsAndShiftToggles(t *testing.T) {
	f := newFixture()
	f.addNode("a", 100, 100)
	f.addNode("b", 600, 100)

	f.down(NodeTarget("a"), 200, 150)
	f.up(200, 150)
	if got := f.m.Selection(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("selection after click = %v", got)
	}

	f.down(NodeTarget("b"), 700, 150)
	f.m.PointerUp(Pointer{X: 700, Y: 150, Shift: true})
	if got := f.m.Selection(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("selection after shift-click = %v", got)
	}

	f.down(NodeTarget("a"), 200, 150)
	f.m.PointerUp(Pointer{X: 200, Y: 150, Shift: true})
	if got := f.m.Selection(); !reflect.DeepEqual(got, []string{"b"}) {
		t.Fatalf("selection after shift-toggle off = %v", got)
	}
	if len(f.selections) != 3 {
		t.Errorf("expected 3 selection emissions, got %d", len(f.selections))
	}
}

func TestSubThresholdMoveStillCountsAsClick(t *testing.T) {
	f := newFixture()
	f.addNode("a", 100, 100)

	f.down(NodeTarget("a"), 200, 150)
	f.move(201, 151) // under the click threshold
	f.up(201, 151)

	if len(f.commits) != 0 {
		t.Errorf("sub-threshold release must not commit, got %v", f.commits)
	}
	if got := f.m.Selection(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("selection = %v, want [a]", got)
	}
}

func TestDragOfDeletedNodeDegradesToNoop(t *testing.T) {
	f := newFixture()
	f.addNode("a", 100, 100)

	f.down(NodeTarget("a"), 200, 150)
	f.move(300, 250)
	delete(f.graph.nodes, "a")
	f.up(300, 250)

	if len(f.commits) != 0 {
		t.Errorf("stale drag must not commit, got %v", f.commits)
	}
	if len(f.telems) == 0 {
		t.Error("stale drag should report on telemetry")
	}
	mustIdle(t, f.m)
}

func TestConnectFromAnchorCreatesEdgeOnce(t *testing.T) {
	f := newFixture()
	f.addNode("a", 0, 0)
	f.addNode("b", 600, 0)

	// Press on a's east anchor (200,50), release on b's west anchor (600,50).
	f.down(NodeTarget("a"), 200, 50)
	st, ok := f.m.State().(*Connecting)
	if !ok {
		t.Fatalf("expected connecting, got %s", f.m.State().Name())
	}
	if st.StartAnchor.NodeID != "a" || st.StartAnchor.Side != core.East {
		t.Fatalf("start anchor = %+v", st.StartAnchor)
	}

	f.move(400, 50)
	if _, _, snapped, _ := f.m.ConnectPreview(); snapped {
		t.Error("mid-canvas position must not snap")
	}
	f.move(595, 50)
	if _, to, snapped, _ := f.m.ConnectPreview(); !snapped || to.X != 600 {
		t.Errorf("near b's west anchor: snapped=%v to=%+v", snapped, to)
	}

	f.up(595, 50)
	if !reflect.DeepEqual(f.creates, []string{"a->b"}) {
		t.Fatalf("creates = %v, want exactly one a->b", f.creates)
	}
	if f.lastAnchor == nil || f.lastAnchor.NodeID != "b" {
		t.Errorf("anchor hint = %+v, want b's anchor", f.lastAnchor)
	}
	mustIdle(t, f.m)
}

func TestConnectReleaseOverEmptyCancels(t *testing.T) {
	f := newFixture()
	f.addNode("a", 0, 0)

	f.down(NodeTarget("a"), 200, 50)
	f.move(400, 400)
	f.up(400, 400)

	if len(f.creates) != 0 || len(f.deletes) != 0 {
		t.Errorf("cancelled connect emitted intents: %v %v", f.creates, f.deletes)
	}
	mustIdle(t, f.m)
}

func TestConnectReleaseOverStartNodeCancels(t *testing.T) {
	f := newFixture()
	f.addNode("a", 0, 0)

	f.down(NodeTarget("a"), 200, 50)
	f.move(100, 5) // a's own north anchor
	f.up(100, 5)

	if len(f.creates) != 0 {
		t.Errorf("self-connection must cancel, got %v", f.creates)
	}
	mustIdle(t, f.m)
}

func TestStickyConnectCompletesOnSecondPress(t *testing.T) {
	f := newFixture()
	f.addNode("a", 0, 0)
	f.addNode("b", 600, 0)

	f.m.PointerDown(NodeTarget("a"), Pointer{X: 100, Y: 50, Connect: true})
	f.up(100, 50)
	st, ok := f.m.State().(*Connecting)
	if !ok || !st.Sticky {
		t.Fatalf("sticky connect must survive pointer-up, state %s", f.m.State().Name())
	}

	f.down(NodeTarget("b"), 700, 50)
	if !reflect.DeepEqual(f.creates, []string{"a->b"}) {
		t.Fatalf("creates = %v", f.creates)
	}
	mustIdle(t, f.m)
}

func TestStickyConnectCanvasPressCancels(t *testing.T) {
	f := newFixture()
	f.addNode("a", 0, 0)

	f.m.PointerDown(NodeTarget("a"), Pointer{X: 100, Y: 50, Connect: true})
	f.up(100, 50)
	f.down(CanvasTarget(), 900, 900)

	if len(f.creates) != 0 {
		t.Errorf("cancelled sticky connect created %v", f.creates)
	}
	mustIdle(t, f.m)
}

func TestDetachToEmptyDeletesEdge(t *testing.T) {
	f := newFixture()
	f.addNode("a", 0, 0)
	f.addNode("b", 600, 0)
	f.addEdge("e1", "a", "b")

	// Press just outside b's border, near the edge's to-endpoint (600,50).
	f.down(CanvasTarget(), 590, 50)
	st, ok := f.m.State().(*DetachingConnection)
	if !ok {
		t.Fatalf("expected detaching, got %s", f.m.State().Name())
	}
	if st.EdgeID != "e1" || st.End != core.ToEnd {
		t.Fatalf("detaching %q end %v", st.EdgeID, st.End)
	}

	f.move(400, 400)
	f.up(400, 400)

	if !reflect.DeepEqual(f.deletes, []string{"e1"}) {
		t.Errorf("deletes = %v, want [e1]", f.deletes)
	}
	if len(f.creates) != 0 {
		t.Errorf("detach-to-empty must not create, got %v", f.creates)
	}
	mustIdle(t, f.m)
}

func TestDetachRewiresOntoSnapTarget(t *testing.T) {
	f := newFixture()
	f.addNode("a", 0, 0)
	f.addNode("b", 600, 0)
	f.addNode("c", 600, 400)
	f.addEdge("e1", "a", "b")

	f.down(CanvasTarget(), 590, 50)
	f.move(595, 450) // c's west anchor is (600,450)
	f.up(595, 450)

	if !reflect.DeepEqual(f.creates, []string{"a->c"}) {
		t.Errorf("creates = %v, want [a->c]", f.creates)
	}
	if !reflect.DeepEqual(f.deletes, []string{"e1"}) {
		t.Errorf("deletes = %v, want [e1]", f.deletes)
	}
}

func TestDetachOntoKeptNodeDeletesOnly(t *testing.T) {
	f := newFixture()
	f.addNode("a", 0, 0)
	f.addNode("b", 600, 0)
	f.addEdge("e1", "a", "b")

	// Detach the to-end, then drop it on a's own anchor: a->a would be a
	// self-loop, so the edge is just deleted.
	f.down(CanvasTarget(), 590, 50)
	f.move(205, 50)
	f.up(205, 50)

	if len(f.creates) != 0 {
		t.Errorf("self-loop rewire must not create, got %v", f.creates)
	}
	if !reflect.DeepEqual(f.deletes, []string{"e1"}) {
		t.Errorf("deletes = %v, want [e1]", f.deletes)
	}
}

func TestMarqueeSelectsFullyContainedOnly(t *testing.T) {
	f := newFixture()
	f.addNode("a", 100, 100) // fully inside the sweep
	f.addNode("b", 350, 100) // straddles the right boundary
	f.addNode("c", 900, 900) // outside

	f.down(CanvasTarget(), 50, 50)
	f.move(400, 400)

	st, ok := f.m.State().(*MarqueeSelecting)
	if !ok {
		t.Fatalf("expected marquee, got %s", f.m.State().Name())
	}
	if !reflect.DeepEqual(st.Pending, []string{"a"}) {
		t.Errorf("pending = %v, want [a]", st.Pending)
	}
	if rect, ok := f.m.MarqueeRect(); !ok || rect.Max.X != 400 {
		t.Errorf("MarqueeRect = %+v %v", rect, ok)
	}

	// Shrinking the sweep drops nodes again.
	f.move(80, 80)
	if len(f.m.State().(*MarqueeSelecting).Pending) != 0 {
		t.Errorf("shrunk marquee still pending %v", f.m.State().(*MarqueeSelecting).Pending)
	}

	f.move(400, 400)
	f.up(400, 400)
	if got := f.m.Selection(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("selection = %v, want [a]", got)
	}
}

func TestMarqueePressClearsSelection(t *testing.T) {
	f := newFixture()
	f.addNode("a", 100, 100)
	f.down(NodeTarget("a"), 200, 150)
	f.up(200, 150)

	f.down(CanvasTarget(), 900, 900)
	if got := f.m.Selection(); len(got) != 0 {
		t.Errorf("canvas press should clear selection, got %v", got)
	}
	f.up(900, 900)
}

func TestWheelZoomsAtCursor(t *testing.T) {
	f := newFixture()

	f.m.Wheel(-500, 100, 100) // clamps to factor 1.5
	got := f.tm.Get()
	if math.Abs(got.Scale-1.5) > 1e-9 {
		t.Fatalf("scale = %g, want 1.5", got.Scale)
	}
	// The canvas point under the cursor stays put.
	anchor := f.tm.ScreenToCanvas(100, 100)
	if math.Abs(anchor.X-100) > 1e-9 || math.Abs(anchor.Y-100) > 1e-9 {
		t.Errorf("anchor drifted to %+v", anchor)
	}
}

func TestWheelIgnoredDuringGesture(t *testing.T) {
	f := newFixture()
	f.addNode("a", 100, 100)

	f.down(NodeTarget("a"), 200, 150)
	f.m.Wheel(-500, 0, 0)
	if got := f.tm.Get().Scale; got != 1 {
		t.Errorf("wheel during drag changed scale to %g", got)
	}
	f.up(200, 150)
}

func TestGestureExclusion(t *testing.T) {
	f := newFixture()
	f.addNode("a", 100, 100)

	f.m.PointerDown(CanvasTarget(), Pointer{X: 0, Y: 0, Button: ButtonMiddle})
	f.down(NodeTarget("a"), 200, 150)
	if _, ok := f.m.State().(*Panning); !ok {
		t.Errorf("second pointer-down hijacked state to %s", f.m.State().Name())
	}
	f.up(0, 0)
}

func TestChromeTargetIgnored(t *testing.T) {
	f := newFixture()
	f.down(ChromeTarget(), 10, 10)
	mustIdle(t, f.m)
}

func TestHoverAffordances(t *testing.T) {
	f := newFixture()
	f.addNode("a", 100, 100)

	f.move(200, 150) // node body
	if h := f.m.Hover(); h.Kind != HoverNode || h.ID != "a" {
		t.Errorf("hover = %+v, want node a", h)
	}
	if f.port.current != CursorMove {
		t.Errorf("cursor = %v, want move", f.port.current)
	}

	f.move(300, 150) // a's east anchor
	if h := f.m.Hover(); h.Kind != HoverAnchor || h.Anchor.Side != core.East {
		t.Errorf("hover = %+v, want east anchor", h)
	}
	if f.port.current != CursorCrosshair {
		t.Errorf("cursor = %v, want crosshair", f.port.current)
	}

	f.move(900, 900) // empty
	if h := f.m.Hover(); h.Kind != HoverNone {
		t.Errorf("hover = %+v, want none", h)
	}
	if f.port.current != CursorDefault {
		t.Errorf("cursor = %v, want default", f.port.current)
	}
}

func TestEscapeCancelsDragWithoutCommit(t *testing.T) {
	f := newFixture()
	f.addNode("a", 100, 100)

	f.down(NodeTarget("a"), 200, 150)
	f.move(400, 400)
	f.m.KeyDown(KeyEscape)

	if len(f.commits) != 0 {
		t.Errorf("escaped drag committed %v", f.commits)
	}
	mustIdle(t, f.m)

	// The released pointer-up is a stray event now.
	f.up(400, 400)
	if len(f.commits) != 0 {
		t.Errorf("stray pointer-up committed %v", f.commits)
	}
}

func TestDisposeStopsEvents(t *testing.T) {
	f := newFixture()
	f.addNode("a", 100, 100)
	f.m.Dispose()

	f.down(NodeTarget("a"), 200, 150)
	mustIdle(t, f.m)
	f.m.Wheel(-500, 0, 0)
	if f.tm.Get().Scale != 1 {
		t.Error("disposed machine still zooms")
	}
	if len(f.selections)+len(f.commits) != 0 {
		t.Error("disposed machine emitted intents")
	}
}
