package session

import (
	"path/filepath"
	"testing"

	"atlas/core"
)

func openTemp(t *testing.T, docID string) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "session.db"), docID)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTransformRoundTrip(t *testing.T) {
	s := openTemp(t, "doc-1")

	if _, ok, err := s.LoadTransform(); err != nil || ok {
		t.Fatalf("fresh store: ok=%v err=%v", ok, err)
	}

	want := core.Transform{X: -120.5, Y: 64, Scale: 1.75}
	if err := s.SaveTransform(want); err != nil {
		t.Fatal(err)
	}
	// Second save overwrites, not duplicates.
	want.Scale = 0.5
	if err := s.SaveTransform(want); err != nil {
		t.Fatal(err)
	}

	got, ok, err := s.LoadTransform()
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got != want {
		t.Errorf("transform = %+v, want %+v", got, want)
	}
}

func TestTransformScopedByDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	a, err := Open(path, "doc-a")
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	if err := a.SaveTransform(core.Transform{X: 1, Y: 2, Scale: 3}); err != nil {
		t.Fatal(err)
	}
	a.Close()

	b, err := Open(path, "doc-b")
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if _, ok, err := b.LoadTransform(); err != nil || ok {
		t.Errorf("doc-b sees doc-a transform: ok=%v err=%v", ok, err)
	}
}

func TestNodePositions(t *testing.T) {
	s := openTemp(t, "doc-1")

	if err := s.SaveNodePosition("n1", core.Point{X: 10, Y: 20}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveNodePosition("n2", core.Point{X: -5, Y: 0}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveNodePosition("n1", core.Point{X: 11, Y: 21}); err != nil {
		t.Fatal(err)
	}

	got, err := s.NodePositions()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("positions = %v", got)
	}
	if got["n1"] != (core.Point{X: 11, Y: 21}) {
		t.Errorf("n1 = %+v, want upserted position", got["n1"])
	}

	if err := s.ForgetNode("n1"); err != nil {
		t.Fatal(err)
	}
	got, err = s.NodePositions()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := got["n1"]; ok {
		t.Error("forgotten node still stored")
	}
}

func TestOpenRejectsEmptyDocumentID(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "s.db"), ""); err == nil {
		t.Error("empty document id accepted")
	}
}
