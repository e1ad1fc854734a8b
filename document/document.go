// Package document holds the authoritative map content: the node and edge
// records, their persistence format, and the spatial index kept in sync
// with them. The document is the only writer of the index; the interaction
// engine and the culler read it.
package document

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"

	"atlas/core"
	"atlas/geometry"
	"atlas/spatial"
)

// FormatVersion is the on-disk document format version.
const FormatVersion = 1

// Document is an exploration map: nodes, the edges between them, and the
// spatial index derived from both. Like the rest of the engine it is
// single-threaded.
type Document struct {
	id    string
	name  string
	nodes map[string]core.Node
	edges map[string]core.Edge

	// insertion order, for stable iteration and serialization
	nodeOrder []string
	edgeOrder []string

	index *spatial.Index
	logf  func(format string, args ...any)
}

// New creates an empty document with a fresh id.
func New() *Document {
	return &Document{
		id:    uuid.NewString(),
		nodes: make(map[string]core.Node),
		edges: make(map[string]core.Edge),
		index: spatial.NewIndex(spatial.DefaultCellSize),
		logf:  log.Printf,
	}
}

// SetTelemetry replaces the anomaly log sink. A nil function silences it.
func (d *Document) SetTelemetry(logf func(format string, args ...any)) {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	d.logf = logf
}

// ID returns the document id.
func (d *Document) ID() string { return d.id }

// Name returns the document display name.
func (d *Document) Name() string { return d.name }

// SetName sets the document display name.
func (d *Document) SetName(name string) { d.name = name }

// Index exposes the spatial index for read-only queries. Callers must not
// mutate it; every write goes through the document.
func (d *Document) Index() *spatial.Index { return d.index }

// Node returns the node with the given id.
func (d *Document) Node(id string) (core.Node, bool) {
	n, ok := d.nodes[id]
	return n, ok
}

// Edge returns the edge with the given id.
func (d *Document) Edge(id string) (core.Edge, bool) {
	e, ok := d.edges[id]
	return e, ok
}

// Nodes returns the nodes in insertion order.
func (d *Document) Nodes() []core.Node {
	out := make([]core.Node, 0, len(d.nodeOrder))
	for _, id := range d.nodeOrder {
		out = append(out, d.nodes[id])
	}
	return out
}

// Edges returns the edges in insertion order.
func (d *Document) Edges() []core.Edge {
	out := make([]core.Edge, 0, len(d.edgeOrder))
	for _, id := range d.edgeOrder {
		out = append(out, d.edges[id])
	}
	return out
}

// AddNode creates a node of the default size at the given canvas position.
func (d *Document) AddNode(kind core.NodeKind, label string, x, y float64) core.Node {
	n := core.Node{
		ID:     uuid.NewString(),
		Kind:   kind,
		Label:  label,
		X:      x,
		Y:      y,
		Width:  core.DefaultNodeWidth,
		Height: core.DefaultNodeHeight,
	}
	d.putNode(n)
	return n
}

// PutNode inserts or replaces a node record. Malformed geometry is
// rejected.
func (d *Document) PutNode(n core.Node) error {
	if !n.Valid() {
		return fmt.Errorf("document: invalid node %q", n.ID)
	}
	d.putNode(n)
	return nil
}

func (d *Document) putNode(n core.Node) {
	if _, exists := d.nodes[n.ID]; !exists {
		d.nodeOrder = append(d.nodeOrder, n.ID)
		d.nodes[n.ID] = n
		d.index.InsertNode(n.ID, n.Bounds())
		return
	}
	d.nodes[n.ID] = n
	d.index.Update(n.ID, n.Bounds())
	d.reanchorEdges(n.ID)
}

// MoveNode commits a new canvas position for an existing node, updating
// the index entry and re-anchoring incident edges. This is the natural
// sink for the drag-commit intent.
func (d *Document) MoveNode(id string, pos core.Point) error {
	n, ok := d.nodes[id]
	if !ok {
		return fmt.Errorf("document: move unknown node %q", id)
	}
	if !pos.IsFinite() {
		return fmt.Errorf("document: non-finite position for node %q", id)
	}
	n.X, n.Y = pos.X, pos.Y
	d.nodes[id] = n
	d.index.Update(id, n.Bounds())
	d.reanchorEdges(id)
	return nil
}

// RemoveNode deletes a node and every edge incident to it.
func (d *Document) RemoveNode(id string) {
	if _, ok := d.nodes[id]; !ok {
		return
	}
	var incident []string
	for _, eid := range d.edgeOrder {
		e := d.edges[eid]
		if e.From == id || e.To == id {
			incident = append(incident, eid)
		}
	}
	for _, eid := range incident {
		d.RemoveEdge(eid)
	}
	delete(d.nodes, id)
	d.nodeOrder = removeID(d.nodeOrder, id)
	d.index.Remove(id)
}

// AddEdge creates an edge between two existing nodes. Self-loops and
// duplicate (from, to) pairs are rejected.
func (d *Document) AddEdge(from, to string, typ core.EdgeType) (core.Edge, error) {
	if from == to {
		return core.Edge{}, fmt.Errorf("document: self-loop on node %q", from)
	}
	if _, ok := d.nodes[from]; !ok {
		return core.Edge{}, fmt.Errorf("document: edge from unknown node %q", from)
	}
	if _, ok := d.nodes[to]; !ok {
		return core.Edge{}, fmt.Errorf("document: edge to unknown node %q", to)
	}
	for _, id := range d.edgeOrder {
		e := d.edges[id]
		if e.From == from && e.To == to {
			return core.Edge{}, fmt.Errorf("document: duplicate edge %s->%s", from, to)
		}
	}

	e := core.Edge{ID: uuid.NewString(), From: from, To: to, Type: typ}
	d.edges[e.ID] = e
	d.edgeOrder = append(d.edgeOrder, e.ID)
	a, b := d.edgeAnchors(e)
	d.index.InsertEdge(e.ID, a, b)
	return e, nil
}

// RemoveEdge deletes an edge. Unknown ids are a no-op.
func (d *Document) RemoveEdge(id string) {
	if _, ok := d.edges[id]; !ok {
		return
	}
	delete(d.edges, id)
	d.edgeOrder = removeID(d.edgeOrder, id)
	d.index.Remove(id)
}

// ContentBounds returns the union of all node bounds, and whether the
// document has any nodes at all.
func (d *Document) ContentBounds() (core.Bounds, bool) {
	var total core.Bounds
	first := true
	for _, id := range d.nodeOrder {
		b := d.nodes[id].Bounds()
		if first {
			total = b
			first = false
		} else {
			total = total.Union(b)
		}
	}
	return total, !first
}

// edgeAnchors picks the closest pair of connection points between the
// edge's two nodes.
func (d *Document) edgeAnchors(e core.Edge) (core.Point, core.Point) {
	from := d.nodes[e.From]
	to := d.nodes[e.To]
	var bestA, bestB core.Point
	best := -1.0
	for _, ca := range from.ConnectionPoints() {
		for _, cb := range to.ConnectionPoints() {
			pa, pb := ca.Position(), cb.Position()
			dist := geometry.Dist2(pa, pb)
			if best < 0 || dist < best {
				best = dist
				bestA = pa
				bestB = pb
			}
		}
	}
	return bestA, bestB
}

// reanchorEdges recomputes the indexed segment of every edge touching the
// node.
func (d *Document) reanchorEdges(nodeID string) {
	for _, id := range d.edgeOrder {
		e := d.edges[id]
		if e.From != nodeID && e.To != nodeID {
			continue
		}
		a, b := d.edgeAnchors(e)
		d.index.UpdateEdge(id, a, b)
	}
}

func removeID(order []string, id string) []string {
	for i, v := range order {
		if v == id {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}

// fileFormat is the on-disk JSON shape.
type fileFormat struct {
	Version int         `json:"version"`
	ID      string      `json:"id"`
	Name    string      `json:"name,omitempty"`
	Nodes   []core.Node `json:"nodes"`
	Edges   []core.Edge `json:"edges"`
}

// Save writes the document as indented JSON.
func (d *Document) Save(path string) error {
	f := fileFormat{
		Version: FormatVersion,
		ID:      d.id,
		Name:    d.name,
		Nodes:   d.Nodes(),
		Edges:   d.Edges(),
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("document: marshal: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("document: write %s: %w", path, err)
	}
	return nil
}

// Load reads a document from disk. Malformed entries degrade instead of
// failing the whole load: invalid nodes are skipped, and edges whose
// endpoints are missing or that duplicate an earlier edge are dropped,
// each with a telemetry report.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("document: read %s: %w", path, err)
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("document: parse %s: %w", path, err)
	}
	if f.Version > FormatVersion {
		return nil, fmt.Errorf("document: %s has unsupported format version %d", path, f.Version)
	}

	d := New()
	if f.ID != "" {
		d.id = f.ID
	}
	d.name = f.Name

	for _, n := range f.Nodes {
		if !n.Valid() {
			d.logf("document: skipping invalid node %q in %s", n.ID, path)
			continue
		}
		if _, dup := d.nodes[n.ID]; dup {
			d.logf("document: skipping duplicate node id %q in %s", n.ID, path)
			continue
		}
		d.putNode(n)
	}

	for _, e := range f.Edges {
		if e.ID == "" || e.From == "" || e.To == "" {
			d.logf("document: skipping malformed edge %q in %s", e.ID, path)
			continue
		}
		if err := d.restoreEdge(e); err != nil {
			d.logf("document: %v in %s", err, path)
		}
	}
	return d, nil
}

// restoreEdge inserts an edge keeping its stored id.
func (d *Document) restoreEdge(e core.Edge) error {
	if e.From == e.To {
		return fmt.Errorf("skipping self-loop edge %q", e.ID)
	}
	if _, ok := d.nodes[e.From]; !ok {
		return fmt.Errorf("skipping edge %q from unknown node %q", e.ID, e.From)
	}
	if _, ok := d.nodes[e.To]; !ok {
		return fmt.Errorf("skipping edge %q to unknown node %q", e.ID, e.To)
	}
	if _, dup := d.edges[e.ID]; dup {
		return fmt.Errorf("skipping duplicate edge id %q", e.ID)
	}
	for _, id := range d.edgeOrder {
		prev := d.edges[id]
		if prev.From == e.From && prev.To == e.To {
			return fmt.Errorf("skipping duplicate edge %s->%s", e.From, e.To)
		}
	}
	d.edges[e.ID] = e
	d.edgeOrder = append(d.edgeOrder, e.ID)
	a, b := d.edgeAnchors(e)
	d.index.InsertEdge(e.ID, a, b)
	return nil
}
