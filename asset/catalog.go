// Package asset is the simulation's external collaborator for mesh and
// material metadata and persistent GPU-adjacent resource bindings. The
// catalog is pull-based: callers pass the current simulation frame index
// and receive an owned, sorted snapshot rather than a live reference into
// internal state.
package asset

import (
	"sort"
	"sync"
)

// Residency mirrors the backend's view of whether a record is ready to
// draw, still loading, or failed.
type Residency uint8

const (
	ResidencyReady Residency = iota
	ResidencyLoading
	ResidencyFailed
)

// MeshRecord is one resolved mesh's metadata.
type MeshRecord struct {
	ID          uint32
	VertexCount uint32
	FirstVertex uint32
	Generation  uint64
	Residency   Residency
	Err         string
}

// MaterialRecord is one resolved material's metadata.
type MaterialRecord struct {
	ID         uint32
	Generation uint64
	Residency  Residency
	Err        string
}

// CatalogSnapshot is an owned, sorted copy of the catalog's state as of
// simulationFrameIndex.
type CatalogSnapshot struct {
	SimulationFrameIndex uint64
	Meshes               []MeshRecord
	Materials            []MaterialRecord
}

// Backend resolves the authoritative set of meshes and materials, e.g.
// from an HTTP service or a local file index. Out of scope for this
// module beyond the narrow pull interface the catalog consumes.
type Backend interface {
	Meshes() ([]MeshRecord, error)
	Materials() ([]MaterialRecord, error)
}

// InMemoryBackend is a Backend whose records are set directly by the
// caller, standing in for a real network- or file-backed service in
// tests and examples.
type InMemoryBackend struct {
	meshes    []MeshRecord
	materials []MaterialRecord
}

// NewInMemoryBackend builds a Backend serving exactly the given records.
func NewInMemoryBackend(meshes []MeshRecord, materials []MaterialRecord) *InMemoryBackend {
	return &InMemoryBackend{meshes: meshes, materials: materials}
}

func (b *InMemoryBackend) Meshes() ([]MeshRecord, error)        { return b.meshes, nil }
func (b *InMemoryBackend) Materials() ([]MaterialRecord, error) { return b.materials, nil }

// Catalog caches the last successful refresh from a Backend and serves
// pull-based, owned snapshots of it under an internal mutex.
type Catalog struct {
	mu        sync.Mutex
	backend   Backend
	meshes    map[uint32]MeshRecord
	materials map[uint32]MaterialRecord
}

// NewCatalog builds a Catalog backed by backend, with no records until
// the first Refresh.
func NewCatalog(backend Backend) *Catalog {
	return &Catalog{
		backend:   backend,
		meshes:    make(map[uint32]MeshRecord),
		materials: make(map[uint32]MaterialRecord),
	}
}

// Refresh pulls the current record set from the backend and replaces the
// catalog's cached state wholesale.
func (c *Catalog) Refresh() error {
	meshes, err := c.backend.Meshes()
	if err != nil {
		return err
	}
	materials, err := c.backend.Materials()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.meshes = make(map[uint32]MeshRecord, len(meshes))
	for _, m := range meshes {
		c.meshes[m.ID] = m
	}
	c.materials = make(map[uint32]MaterialRecord, len(materials))
	for _, m := range materials {
		c.materials[m.ID] = m
	}
	return nil
}

// ResolveMesh returns a copy of the cached mesh record for id, if any.
func (c *Catalog) ResolveMesh(id uint32) (MeshRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.meshes[id]
	return rec, ok
}

// ResolveMaterial returns a copy of the cached material record for id,
// if any.
func (c *Catalog) ResolveMaterial(id uint32) (MaterialRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.materials[id]
	return rec, ok
}

// Snapshot returns an owned copy of every cached record, sorted by id,
// stamped with simulationFrameIndex.
func (c *Catalog) Snapshot(simulationFrameIndex uint64) CatalogSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	meshes := make([]MeshRecord, 0, len(c.meshes))
	for _, m := range c.meshes {
		meshes = append(meshes, m)
	}
	sort.Slice(meshes, func(i, j int) bool { return meshes[i].ID < meshes[j].ID })

	materials := make([]MaterialRecord, 0, len(c.materials))
	for _, m := range c.materials {
		materials = append(materials, m)
	}
	sort.Slice(materials, func(i, j int) bool { return materials[i].ID < materials[j].ID })

	return CatalogSnapshot{
		SimulationFrameIndex: simulationFrameIndex,
		Meshes:               meshes,
		Materials:            materials,
	}
}
