package asset

import "testing"

func TestCatalogSnapshotSortedAndOwned(t *testing.T) {
	backend := NewInMemoryBackend(
		[]MeshRecord{{ID: 3, VertexCount: 3}, {ID: 1, VertexCount: 1}, {ID: 2, VertexCount: 2}},
		[]MaterialRecord{{ID: 5}, {ID: 4}},
	)
	c := NewCatalog(backend)
	if err := c.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	snap := c.Snapshot(42)
	if snap.SimulationFrameIndex != 42 {
		t.Fatalf("expected frame index 42, got %d", snap.SimulationFrameIndex)
	}
	if len(snap.Meshes) != 3 || snap.Meshes[0].ID != 1 || snap.Meshes[1].ID != 2 || snap.Meshes[2].ID != 3 {
		t.Fatalf("expected meshes sorted by id, got %v", snap.Meshes)
	}
	if len(snap.Materials) != 2 || snap.Materials[0].ID != 4 || snap.Materials[1].ID != 5 {
		t.Fatalf("expected materials sorted by id, got %v", snap.Materials)
	}

	// Mutating the returned snapshot must not affect the catalog's cache.
	snap.Meshes[0].VertexCount = 999
	again := c.Snapshot(43)
	if again.Meshes[0].VertexCount == 999 {
		t.Fatalf("expected Snapshot to return an owned copy, mutation leaked into cache")
	}
}

func TestCatalogResolveMeshAndMaterial(t *testing.T) {
	backend := NewInMemoryBackend(
		[]MeshRecord{{ID: 1, VertexCount: 10}},
		[]MaterialRecord{{ID: 2}},
	)
	c := NewCatalog(backend)
	if err := c.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if _, ok := c.ResolveMesh(99); ok {
		t.Fatalf("expected no record for an unknown mesh id")
	}
	rec, ok := c.ResolveMesh(1)
	if !ok || rec.VertexCount != 10 {
		t.Fatalf("expected mesh 1 with vertexCount 10, got %v ok=%v", rec, ok)
	}
	if _, ok := c.ResolveMaterial(2); !ok {
		t.Fatalf("expected material 2 to resolve")
	}
}
