package database

import (
	"path/filepath"
	"testing"
)

func testFaces() []EnrolledFace {
	return []EnrolledFace{
		{IdentityID: 1, Name: "Alice", Code: "R001", Embedding: []float32{1, 0, 0}},
		{IdentityID: 2, Name: "Bob", Code: "R002", Embedding: []float32{0.9, 0.1, 0}},
		{IdentityID: 3, Name: "Carol", Code: "R003", Embedding: []float32{0, 1, 0}},
		{IdentityID: 4, Name: "Dave", Code: "R004", Embedding: []float32{0, 0, 1}},
	}
}

func TestIdentityIndex_Nearest(t *testing.T) {
	idx := NewIdentityIndex("VGG-Face+opencv")
	idx.Build(testFaces())

	if idx.Count() != 4 {
		t.Fatalf("expected 4 indexed identities, got %d", idx.Count())
	}

	got, err := idx.Nearest([]float32{1, 0, 0}, 2, 1)
	if err != nil {
		t.Fatalf("nearest: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 neighbours, got %d", len(got))
	}
	if got[0].Code != "R002" {
		t.Errorf("expected Bob nearest to Alice, got %s", got[0].Code)
	}
	for _, n := range got {
		if n.IdentityID == 1 {
			t.Error("expected excluded identity to be skipped")
		}
	}
	if got[0].Distance > got[1].Distance {
		t.Errorf("expected ascending distances, got %v", got)
	}
}

func TestIdentityIndex_Empty(t *testing.T) {
	idx := NewIdentityIndex("VGG-Face+opencv")
	idx.Build(nil)

	if _, err := idx.Nearest([]float32{1, 0, 0}, 3, 0); err == nil {
		t.Error("expected error for an empty index")
	}
}

func TestIdentityIndex_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identities.hnsw")
	faces := testFaces()

	idx := NewIdentityIndex("VGG-Face+opencv")
	idx.Build(faces)
	if err := idx.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	t.Run("matching metadata loads", func(t *testing.T) {
		loaded := NewIdentityIndex("VGG-Face+opencv")
		ok, err := loaded.Load(path, faces)
		if err != nil || !ok {
			t.Fatalf("expected load, got %v (%v)", ok, err)
		}
		got, err := loaded.Nearest([]float32{0, 0.9, 0.1}, 1, 0)
		if err != nil || len(got) != 1 || got[0].Code != "R003" {
			t.Errorf("expected Carol, got %v (%v)", got, err)
		}
	})

	t.Run("other model tag is stale", func(t *testing.T) {
		loaded := NewIdentityIndex("ArcFace+retinaface")
		ok, err := loaded.Load(path, faces)
		if err != nil || ok {
			t.Errorf("expected stale index, got %v (%v)", ok, err)
		}
	})

	t.Run("re-enrollment is stale", func(t *testing.T) {
		changed := testFaces()
		changed[2].Embedding = []float32{0, 0.5, 0.5}
		loaded := NewIdentityIndex("VGG-Face+opencv")
		ok, err := loaded.Load(path, changed)
		if err != nil || ok {
			t.Errorf("expected stale index, got %v (%v)", ok, err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		loaded := NewIdentityIndex("VGG-Face+opencv")
		ok, err := loaded.Load(filepath.Join(t.TempDir(), "none.hnsw"), faces)
		if err != nil || ok {
			t.Errorf("expected no load, got %v (%v)", ok, err)
		}
	})
}
