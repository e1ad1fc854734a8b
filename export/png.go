// Package export renders a document to a PNG image. Rendering reuses the
// viewport's level-of-detail rules so a zoomed-out export degrades the
// same way the live canvas does.
package export

import (
	"fmt"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"atlas/core"
	"atlas/viewport"
)

// Options tune the exported image.
type Options struct {
	// Scale is the canvas-to-pixel factor. Defaults to 1.
	Scale float64
	// Padding is the margin around the content, in output pixels.
	Padding float64
	// Background fills the image. Defaults to white.
	Background color.Color
}

// Source is what the exporter reads: the same accessors the document
// provides.
type Source interface {
	Nodes() []core.Node
	Edges() []core.Edge
	Node(id string) (core.Node, bool)
	ContentBounds() (core.Bounds, bool)
}

const (
	fontSize      = 13.0
	arrowSize     = 9.0
	cornerRadius  = 8.0
	labelInset    = 10.0
	edgeLineWidth = 1.5
)

// PNG renders the document to a PNG file at path.
func PNG(src Source, path string, opts Options) error {
	if opts.Scale <= 0 {
		opts.Scale = 1
	}
	if opts.Padding < 0 {
		opts.Padding = 0
	}
	if opts.Background == nil {
		opts.Background = color.White
	}

	content, ok := src.ContentBounds()
	if !ok {
		return fmt.Errorf("export: nothing to export")
	}

	scale := opts.Scale
	w := int(math.Ceil(content.Width()*scale + 2*opts.Padding))
	h := int(math.Ceil(content.Height()*scale + 2*opts.Padding))
	if w < 1 || h < 1 {
		return fmt.Errorf("export: degenerate image %dx%d", w, h)
	}

	dc := gg.NewContext(w, h)
	dc.SetColor(opts.Background)
	dc.Clear()

	ttf, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return fmt.Errorf("export: parse font: %w", err)
	}
	dc.SetFontFace(truetype.NewFace(ttf, &truetype.Options{
		Size:    fontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	}))

	// Export uses the same pixel transform shape the live canvas does.
	t := core.Transform{
		X:     opts.Padding - content.Min.X*scale,
		Y:     opts.Padding - content.Min.Y*scale,
		Scale: scale,
	}
	lod := viewport.LevelForScale(scale)

	// Edges first, nodes on top.
	for _, e := range src.Edges() {
		drawEdge(dc, src, e, t)
	}
	for _, n := range src.Nodes() {
		drawNode(dc, n, t, lod)
	}

	return dc.SavePNG(path)
}

func drawEdge(dc *gg.Context, src Source, e core.Edge, t core.Transform) {
	from, ok := src.Node(e.From)
	if !ok {
		return
	}
	to, ok := src.Node(e.To)
	if !ok {
		return
	}

	a := t.CanvasToScreen(from.Center())
	b := t.CanvasToScreen(to.Center())

	dc.SetLineWidth(edgeLineWidth)
	dc.SetColor(edgeColor(e.Type))
	dc.DrawLine(a.X, a.Y, b.X, b.Y)
	dc.Stroke()

	drawArrowhead(dc, a, b)
}

func drawArrowhead(dc *gg.Context, from, to core.Point) {
	dx := to.X - from.X
	dy := to.Y - from.Y
	length := math.Hypot(dx, dy)
	if length < 0.1 {
		return
	}
	dx /= length
	dy /= length

	// Pull the tip back to the midpoint so node fills don't cover it.
	tipX := from.X + dx*length/2
	tipY := from.Y + dy*length/2

	const angle = 0.5
	dc.MoveTo(tipX, tipY)
	dc.LineTo(tipX-arrowSize*dx+arrowSize*dy*angle, tipY-arrowSize*dy-arrowSize*dx*angle)
	dc.LineTo(tipX-arrowSize*dx-arrowSize*dy*angle, tipY-arrowSize*dy+arrowSize*dx*angle)
	dc.ClosePath()
	dc.Fill()
}

func drawNode(dc *gg.Context, n core.Node, t core.Transform, lod viewport.LOD) {
	if !n.Valid() {
		return
	}
	min := t.CanvasToScreen(core.Point{X: n.X, Y: n.Y})
	w := n.Width * t.Scale
	h := n.Height * t.Scale

	if lod == viewport.LODMinimal {
		dc.SetColor(kindColor(n.Kind))
		dc.DrawRectangle(min.X, min.Y, w, h)
		dc.Fill()
		return
	}

	dc.SetColor(kindColor(n.Kind))
	dc.DrawRoundedRectangle(min.X, min.Y, w, h, cornerRadius*t.Scale)
	dc.Fill()
	dc.SetColor(color.Black)
	dc.DrawRoundedRectangle(min.X, min.Y, w, h, cornerRadius*t.Scale)
	dc.Stroke()

	if lod < viewport.LODMedium || n.Label == "" {
		return
	}
	dc.SetColor(color.Black)
	dc.DrawStringWrapped(n.Label,
		min.X+labelInset, min.Y+labelInset,
		0, 0,
		w-2*labelInset, 1.3, gg.AlignLeft)
}

func kindColor(k core.NodeKind) color.Color {
	switch k {
	case core.NodeRisk:
		return color.RGBA{R: 0xf8, G: 0xd7, B: 0xda, A: 0xff}
	case core.NodeDecision:
		return color.RGBA{R: 0xd4, G: 0xed, B: 0xda, A: 0xff}
	default:
		return color.RGBA{R: 0xdb, G: 0xe9, B: 0xf8, A: 0xff}
	}
}

func edgeColor(t core.EdgeType) color.Color {
	switch t {
	case core.EdgeBlocks:
		return color.RGBA{R: 0xb0, G: 0x2a, B: 0x37, A: 0xff}
	case core.EdgeLeadsTo:
		return color.RGBA{R: 0x14, G: 0x61, B: 0x3e, A: 0xff}
	default:
		return color.RGBA{R: 0x44, G: 0x44, B: 0x44, A: 0xff}
	}
}
