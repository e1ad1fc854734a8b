package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gdamore/tcell/v2"

	"atlas/config"
	"atlas/core"
	"atlas/document"
	"atlas/export"
	"atlas/interaction"
	"atlas/session"
	"atlas/viewport"
)

// Terminal cells are mapped to a virtual pixel space so the engine works
// in the same units a graphical host would use. Cells are roughly twice as
// tall as they are wide.
const (
	cellWidth  = 10.0
	cellHeight = 20.0
	statusRows = 1
)

type viewer struct {
	screen  tcell.Screen
	doc     *document.Document
	docPath string
	cfg     *config.Config
	cfgPath string

	store   *session.Store
	tm      *viewport.Manager
	culler  *viewport.Culler
	machine *interaction.Machine

	// Gesture bindings resolved from config.
	connectMask tcell.ModMask
	panMask     tcell.ButtonMask

	cursor    interaction.Cursor
	buttons   tcell.ButtonMask
	panLocked bool
	message   string
	quit      bool
}

// configEvent carries a freshly reloaded config onto the event loop, where
// all engine mutation happens.
type configEvent struct {
	when time.Time
	cfg  *config.Config
}

func (e *configEvent) When() time.Time { return e.when }

func newViewer(doc *document.Document, docPath, cfgPath string, cfg *config.Config) (*viewer, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("create screen: %w", err)
	}
	return buildViewer(doc, docPath, cfgPath, cfg, screen)
}

func buildViewer(doc *document.Document, docPath, cfgPath string, cfg *config.Config, screen tcell.Screen) (*viewer, error) {
	v := &viewer{doc: doc, docPath: docPath, cfg: cfg, cfgPath: cfgPath}
	v.applyBindings(cfg)

	// Session persistence is best-effort: a broken database means a fresh
	// viewport, not a failed launch.
	store, err := session.Open(cfg.Session.Path, doc.ID())
	if err != nil {
		log.Printf("session unavailable: %v", err)
	} else {
		v.store = store
		if positions, err := store.NodePositions(); err == nil {
			for id, pos := range positions {
				if _, ok := doc.Node(id); ok {
					doc.MoveNode(id, pos)
				}
			}
		}
	}

	if v.store != nil {
		v.tm = viewport.NewManager(v.store)
	} else {
		v.tm = viewport.NewManager(nil)
	}
	v.culler = viewport.NewCuller(doc.Index(), cfg.Viewport.CullBuffer)

	v.machine = interaction.NewMachine(doc, doc.Index(), v.tm)
	v.machine.SetPort(v)
	v.machine.SetOptions(v.machineOptions(cfg))
	v.machine.SetIntents(interaction.Intents{
		NodePositionCommit: v.commitNodePosition,
		SelectionChange: func(ids []string) {
			if len(ids) > 0 {
				v.message = fmt.Sprintf("%d selected", len(ids))
			}
		},
		ConnectionCreate: v.createConnection,
		ConnectionDelete: func(edgeID string) {
			v.doc.RemoveEdge(edgeID)
			v.message = "connection removed"
		},
	})

	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("init screen: %w", err)
	}
	screen.EnableMouse()
	screen.Clear()
	v.screen = screen
	return v, nil
}

func (v *viewer) machineOptions(cfg *config.Config) interaction.Options {
	return interaction.Options{
		SnapThreshold:  cfg.Interaction.SnapThreshold,
		ClickThreshold: cfg.Interaction.ClickThreshold,
		Telemetry: func(format string, args ...any) {
			v.message = fmt.Sprintf(format, args...)
		},
	}
}

func (v *viewer) applyBindings(cfg *config.Config) {
	switch cfg.Interaction.ConnectModifier {
	case "alt":
		v.connectMask = tcell.ModAlt
	case "shift":
		v.connectMask = tcell.ModShift
	default:
		v.connectMask = tcell.ModCtrl
	}
	switch cfg.Interaction.PanButton {
	case "right":
		v.panMask = tcell.ButtonSecondary
	default:
		v.panMask = tcell.ButtonMiddle
	}
}

// applyConfig retunes the running engine from a reloaded config. Must run
// on the event loop.
func (v *viewer) applyConfig(cfg *config.Config) {
	v.cfg = cfg
	v.culler = viewport.NewCuller(v.doc.Index(), cfg.Viewport.CullBuffer)
	v.machine.SetOptions(v.machineOptions(cfg))
	v.applyBindings(cfg)
	v.message = "config reloaded"
}

// watchConfig feeds config file changes into the event loop until ctx is
// cancelled.
func (v *viewer) watchConfig(ctx context.Context) {
	w := config.NewWatcher(v.cfgPath, func(cfg *config.Config) {
		_ = v.screen.PostEvent(&configEvent{when: time.Now(), cfg: cfg})
	})
	if err := w.Watch(ctx); err != nil && ctx.Err() == nil {
		log.Printf("config watch: %v", err)
	}
}

// SetCursor implements interaction.Port. Terminals have no pointer cursor,
// so the affordance is surfaced in the status bar.
func (v *viewer) SetCursor(c interaction.Cursor) {
	v.cursor = c
}

func (v *viewer) commitNodePosition(nodeID string, pos core.Point) {
	if err := v.doc.MoveNode(nodeID, pos); err != nil {
		v.message = err.Error()
		return
	}
	if v.store != nil {
		if err := v.store.SaveNodePosition(nodeID, pos); err != nil {
			log.Printf("save node position: %v", err)
		}
	}
}

func (v *viewer) createConnection(fromID, toID string, _ *core.ConnectionPoint) {
	if _, err := v.doc.AddEdge(fromID, toID, core.EdgeRelated); err != nil {
		v.message = err.Error()
		return
	}
	v.message = "connected"
}

func (v *viewer) run() {
	defer func() {
		v.machine.Dispose()
		if v.store != nil {
			v.store.Close()
		}
		v.screen.Fini()
	}()

	// Live-reload the config the viewer was launched with; defaults
	// without a file have nothing to watch.
	if v.cfgPath != "" {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go v.watchConfig(ctx)
	}

	for !v.quit {
		v.draw()
		v.screen.Show()

		switch ev := v.screen.PollEvent().(type) {
		case *tcell.EventResize:
			v.screen.Sync()
		case *tcell.EventKey:
			v.handleKey(ev)
		case *tcell.EventMouse:
			v.handleMouse(ev)
		case *configEvent:
			v.applyConfig(ev.cfg)
		}
	}
}

func (v *viewer) handleKey(ev *tcell.EventKey) {
	switch ev.Key() {
	case tcell.KeyEscape:
		v.machine.KeyDown(interaction.KeyEscape)
		return
	case tcell.KeyCtrlC:
		v.quit = true
		return
	case tcell.KeyRune:
	default:
		return
	}

	switch ev.Rune() {
	case 'q':
		v.quit = true
	case ' ':
		// Terminals deliver no key-release events, so space is a toggle.
		v.panLocked = !v.panLocked
		if v.panLocked {
			v.machine.KeyDown(interaction.KeySpace)
			v.message = "pan lock on"
		} else {
			v.machine.KeyUp(interaction.KeySpace)
			v.message = "pan lock off"
		}
	case 'f':
		if content, ok := v.doc.ContentBounds(); ok {
			w, h := v.pixelSize()
			v.tm.FitToContent(content, w, h, v.cfg.Viewport.FitPadding)
		}
	case 's':
		v.save()
	case 'e':
		v.exportPNG()
	case 'n':
		v.addNodeAtCenter()
	}
}

func (v *viewer) save() {
	if v.docPath == "" {
		v.docPath = fmt.Sprintf("atlas-%s.json", time.Now().Format("20060102-150405"))
	}
	if err := v.doc.Save(v.docPath); err != nil {
		v.message = err.Error()
		return
	}
	v.message = "saved " + v.docPath
}

func (v *viewer) exportPNG() {
	path := fmt.Sprintf("atlas-%s.png", time.Now().Format("20060102-150405"))
	err := export.PNG(v.doc, path, export.Options{Padding: v.cfg.Viewport.FitPadding})
	if err != nil {
		v.message = err.Error()
		return
	}
	v.message = "exported " + path
}

func (v *viewer) addNodeAtCenter() {
	w, h := v.pixelSize()
	center := v.tm.ScreenToCanvas(w/2, h/2)
	n := v.doc.AddNode(core.NodeIdea, "new idea",
		center.X-core.DefaultNodeWidth/2, center.Y-core.DefaultNodeHeight/2)
	v.message = "added node " + n.ID[:8]
}

func (v *viewer) handleMouse(ev *tcell.EventMouse) {
	cx, cy := ev.Position()
	px, py := v.cellToPixel(cx, cy)
	mods := ev.Modifiers()

	p := interaction.Pointer{
		X:       px,
		Y:       py,
		Shift:   mods&tcell.ModShift != 0,
		Connect: mods&v.connectMask != 0,
	}

	buttons := ev.Buttons()
	if buttons&tcell.WheelUp != 0 {
		v.machine.Wheel(-120, px, py)
		return
	}
	if buttons&tcell.WheelDown != 0 {
		v.machine.Wheel(120, px, py)
		return
	}

	pressed := buttons & (tcell.ButtonPrimary | v.panMask)
	prev := v.buttons & (tcell.ButtonPrimary | v.panMask)
	v.buttons = buttons

	switch {
	case pressed != 0 && prev == 0:
		if pressed&v.panMask != 0 {
			p.Button = interaction.ButtonMiddle
		}
		v.machine.PointerDown(v.classify(cy, px, py), p)
	case pressed == 0 && prev != 0:
		v.machine.PointerUp(p)
	default:
		v.machine.PointerMove(p)
	}
}

// classify resolves what sits under a pointer-down, the way a DOM host
// would resolve an event target.
func (v *viewer) classify(cellY int, px, py float64) interaction.Target {
	if cellY < statusRows {
		return interaction.ChromeTarget()
	}
	if id, ok := v.doc.Index().NodeAt(v.tm.ScreenToCanvas(px, py)); ok {
		return interaction.NodeTarget(id)
	}
	return interaction.CanvasTarget()
}

func (v *viewer) pixelSize() (float64, float64) {
	w, h := v.screen.Size()
	return float64(w) * cellWidth, float64(h-statusRows) * cellHeight
}

func (v *viewer) cellToPixel(cx, cy int) (float64, float64) {
	return float64(cx)*cellWidth + cellWidth/2,
		float64(cy-statusRows)*cellHeight + cellHeight/2
}

func (v *viewer) pixelToCell(p core.Point) (int, int) {
	return int(p.X / cellWidth), int(p.Y/cellHeight) + statusRows
}

func (v *viewer) draw() {
	v.screen.Clear()
	w, h := v.pixelSize()
	t := v.tm.Get()
	lod := viewport.LevelForScale(t.Scale)

	for _, e := range v.culler.VisibleEdges(v.doc, t, w, h) {
		v.drawEdge(e, t)
	}

	selected := make(map[string]bool)
	for _, id := range v.machine.Selection() {
		selected[id] = true
	}
	for _, n := range v.culler.VisibleNodes(v.doc, t, w, h) {
		if id, pos, ok := v.machine.DragPreview(); ok && id == n.ID {
			n.X, n.Y = pos.X, pos.Y
		}
		v.drawNode(n, t, lod, selected[n.ID])
	}

	if from, to, snapped, ok := v.machine.ConnectPreview(); ok {
		v.drawLine(t.CanvasToScreen(from), t.CanvasToScreen(to), '·')
		if snapped {
			cx, cy := v.pixelToCell(t.CanvasToScreen(to))
			v.set(cx, cy, '◎', tcell.StyleDefault)
		}
	}
	if rect, ok := v.machine.MarqueeRect(); ok {
		v.drawRect(t.CanvasToScreen(rect.Min), t.CanvasToScreen(rect.Max), '·')
	}

	v.drawStatus(t)
}

func (v *viewer) drawEdge(e core.Edge, t core.Transform) {
	from, ok := v.doc.Node(e.From)
	if !ok {
		return
	}
	to, ok := v.doc.Node(e.To)
	if !ok {
		return
	}
	if id, pos, dragging := v.machine.DragPreview(); dragging {
		if id == from.ID {
			from.X, from.Y = pos.X, pos.Y
		}
		if id == to.ID {
			to.X, to.Y = pos.X, pos.Y
		}
	}
	v.drawLine(t.CanvasToScreen(from.Center()), t.CanvasToScreen(to.Center()), edgeRune(e.Type))
}

func edgeRune(t core.EdgeType) rune {
	switch t {
	case core.EdgeBlocks:
		return '×'
	case core.EdgeLeadsTo:
		return '»'
	default:
		return '·'
	}
}

func (v *viewer) drawNode(n core.Node, t core.Transform, lod viewport.LOD, sel bool) {
	min := t.CanvasToScreen(core.Point{X: n.X, Y: n.Y})
	max := t.CanvasToScreen(core.Point{X: n.X + n.Width, Y: n.Y + n.Height})
	x0, y0 := v.pixelToCell(min)
	x1, y1 := v.pixelToCell(max)

	style := tcell.StyleDefault
	if sel {
		style = style.Bold(true).Foreground(tcell.ColorYellow)
	}

	if lod == viewport.LODMinimal || (x1-x0 < 2 || y1-y0 < 1) {
		v.set(x0, y0, '▪', style)
		return
	}

	border := '─'
	corner := '+'
	if sel {
		corner = '#'
	}
	for x := x0; x <= x1; x++ {
		v.set(x, y0, border, style)
		v.set(x, y1, border, style)
	}
	for y := y0; y <= y1; y++ {
		v.set(x0, y, '│', style)
		v.set(x1, y, '│', style)
	}
	v.set(x0, y0, corner, style)
	v.set(x1, y0, corner, style)
	v.set(x0, y1, corner, style)
	v.set(x1, y1, corner, style)

	if lod < viewport.LODMedium {
		return
	}
	// Truncate by rune so multi-byte labels never split mid-character.
	label := []rune(n.Label)
	maxLen := x1 - x0 - 1
	if maxLen > 0 && len(label) > maxLen {
		label = label[:maxLen]
	}
	for i, r := range label {
		if x0+1+i >= x1 {
			break
		}
		v.set(x0+1+i, y0+1, r, style)
	}
}

func (v *viewer) drawLine(a, b core.Point, r rune) {
	ax, ay := v.pixelToCell(a)
	bx, by := v.pixelToCell(b)
	dx := bx - ax
	dy := by - ay
	steps := abs(dx)
	if abs(dy) > steps {
		steps = abs(dy)
	}
	if steps == 0 {
		v.set(ax, ay, r, tcell.StyleDefault)
		return
	}
	for i := 0; i <= steps; i++ {
		x := ax + dx*i/steps
		y := ay + dy*i/steps
		v.set(x, y, r, tcell.StyleDefault)
	}
}

func (v *viewer) drawRect(a, b core.Point, r rune) {
	x0, y0 := v.pixelToCell(a)
	x1, y1 := v.pixelToCell(b)
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	for x := x0; x <= x1; x++ {
		v.set(x, y0, r, tcell.StyleDefault)
		v.set(x, y1, r, tcell.StyleDefault)
	}
	for y := y0; y <= y1; y++ {
		v.set(x0, y, r, tcell.StyleDefault)
		v.set(x1, y, r, tcell.StyleDefault)
	}
}

func (v *viewer) drawStatus(t core.Transform) {
	w, _ := v.screen.Size()
	name := v.doc.Name()
	if name == "" {
		name = "untitled"
	}
	line := fmt.Sprintf(" %s | %s | %.0f%% | %s | q quit  f fit  n node  s save  e export | %s",
		name, v.machine.State().Name(), t.Scale*100, v.cursor, v.message)
	style := tcell.StyleDefault.Reverse(true)
	runes := []rune(line)
	for x := 0; x < w; x++ {
		r := ' '
		if x < len(runes) {
			r = runes[x]
		}
		v.screen.SetContent(x, 0, r, nil, style)
	}
}

func (v *viewer) set(x, y int, r rune, style tcell.Style) {
	if y < statusRows {
		return
	}
	w, h := v.screen.Size()
	if x < 0 || y < 0 || x >= w || y >= h {
		return
	}
	v.screen.SetContent(x, y, r, nil, style)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
