package export

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"atlas/core"
	"atlas/document"
)

func buildDoc(t *testing.T) *document.Document {
	t.Helper()
	d := document.New()
	d.SetTelemetry(nil)
	a := d.AddNode(core.NodeIdea, "first idea", 0, 0)
	b := d.AddNode(core.NodeRisk, "a risk", 500, 300)
	if _, err := d.AddEdge(a.ID, b.ID, core.EdgeLeadsTo); err != nil {
		t.Fatal(err)
	}
	return d
}

func TestPNGWritesImage(t *testing.T) {
	d := buildDoc(t)
	path := filepath.Join(t.TempDir(), "map.png")

	if err := PNG(d, path, Options{Padding: 20}); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}

	// content spans x 0..740, y 0..420 at the default node size, plus padding
	wantW := 740 + 40
	wantH := 420 + 40
	if cfg.Width != wantW || cfg.Height != wantH {
		t.Errorf("image = %dx%d, want %dx%d", cfg.Width, cfg.Height, wantW, wantH)
	}
}

func TestPNGScaledDown(t *testing.T) {
	d := buildDoc(t)
	path := filepath.Join(t.TempDir(), "map.png")

	// Scale 0.25 renders in the low-detail tier; it must still produce a
	// valid image.
	if err := PNG(d, path, Options{Scale: 0.25}); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() == 0 {
		t.Error("empty export")
	}
}

func TestPNGEmptyDocument(t *testing.T) {
	d := document.New()
	path := filepath.Join(t.TempDir(), "map.png")
	if err := PNG(d, path, Options{}); err == nil {
		t.Error("empty document export should fail")
	}
}
