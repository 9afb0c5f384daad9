package simcore

import (
	"reflect"

	"github.com/TheBitDrifter/mask"
	"go.uber.org/zap"
)

// World owns every entity, archetype, and registered component type for one
// simulation: the single root object a caller carries around.
type World struct {
	config Config
	logger *zap.Logger

	registry   *entityRegistry
	archetypes *archetypeIndex
	empty      *archetype

	typesByGoType map[reflect.Type]*componentTypeInfo
	typesByID     map[ComponentID]*componentTypeInfo
	coldStores    map[ComponentID]sparseStore

	globalVersions map[ComponentID]uint64

	access *accessContext
	locked bool
}

// NewWorld builds a World using cfg, materializing the empty archetype
// every freshly created entity starts in.
func NewWorld(cfg Config) *World {
	w := &World{
		config:         cfg,
		logger:         zap.NewNop(),
		registry:       newEntityRegistry(),
		typesByGoType:  make(map[reflect.Type]*componentTypeInfo),
		typesByID:      make(map[ComponentID]*componentTypeInfo),
		coldStores:     make(map[ComponentID]sparseStore),
		globalVersions: make(map[ComponentID]uint64),
	}
	w.archetypes = newArchetypeIndex(256)
	w.empty = w.archetypes.materialize(mask.Mask{}, nil, cfg.ChunkCapacity, w.newColumnFor)
	return w
}

// WithLogger swaps in a configured zap logger; the default is a no-op
// logger until the host wires one in.
func (w *World) WithLogger(logger *zap.Logger) *World {
	w.logger = logger
	return w
}

// Config returns the tunables w was built with, so collaborating packages
// (the scheduler's worker cap, the debug access-check gate) don't need
// their own copy threaded through separately.
func (w *World) Config() Config { return w.config }

// Logger returns the zap logger installed via WithLogger (a no-op logger
// by default), for collaborating packages that want to share w's
// diagnostic sink instead of carrying their own.
func (w *World) Logger() *zap.Logger { return w.logger }

func (w *World) newColumnFor(id ComponentID, capacity int) column {
	info := w.typesByID[id]
	return info.newColumn(capacity)
}

// registerType interns a freshly built componentTypeInfo, allocating its
// ColdSparse store immediately since that store has no associated
// archetype to lazily create it from.
func (w *World) registerType(info *componentTypeInfo) {
	w.typesByGoType[info.goType] = info
	w.typesByID[info.id] = info
	if info.residency == ColdSparse {
		w.coldStores[info.id] = info.newSparse()
	}
	w.logger.Debug("component type registered",
		zap.Uint32("id", uint32(info.id)),
		zap.String("type", info.goType.String()),
		zap.Uint8("residency", uint8(info.residency)))
}

func (w *World) chunkColumn(rec entityRecord, id ComponentID) (column, bool) {
	arch := w.archetypes.get(rec.archetype)
	if rec.chunk < 0 || rec.chunk >= len(arch.chunks) {
		return nil, false
	}
	col, ok := arch.chunks[rec.chunk].columns[id]
	return col, ok
}

func (w *World) coldStore(id ComponentID) sparseStore {
	return w.coldStores[id]
}

// CreateEntity allocates a new entity with no components, placed in the
// empty archetype. Returns LockedWorldError if w is locked for iteration;
// callers running inside a system should buffer creation through a
// CommandBuffer instead.
func (w *World) CreateEntity() (Entity, error) {
	if w.locked {
		return Entity{}, LockedWorldError{Op: "create_entity"}
	}
	e := w.registry.create()
	ci, row := w.empty.allocRow(e)
	w.registry.setLocation(e.Index, w.empty.id, ci, row)
	return e, nil
}

// CreateEntities allocates n entities in one call rather than making
// callers loop one at a time.
func (w *World) CreateEntities(n int) ([]Entity, error) {
	out := make([]Entity, 0, n)
	for i := 0; i < n; i++ {
		e, err := w.CreateEntity()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// DestroyEntity removes e from its archetype (or cold stores) and returns
// its entity-registry slot to the free list. Reports false (with a nil
// error) if e was already dead or never existed; returns LockedWorldError
// if w is locked for iteration.
func (w *World) DestroyEntity(e Entity) (bool, error) {
	if w.locked {
		return false, LockedWorldError{Op: "destroy_entity"}
	}
	rec, ok := w.registry.location(e)
	if !ok {
		return false, nil
	}
	arch := w.archetypes.get(rec.archetype)
	moved, didMove := arch.removeRow(rec.chunk, rec.row)
	if didMove {
		w.registry.setLocation(moved.Index, rec.archetype, rec.chunk, rec.row)
	}
	for _, store := range w.coldStores {
		store.erase(e.Index)
	}
	return w.registry.destroy(e), nil
}

// IsAlive reports whether e currently names a live entity.
func (w *World) IsAlive(e Entity) bool {
	return w.registry.isAlive(e)
}

// moveAdd moves e into the archetype matching its current signature plus
// id, materializing that archetype if this is the first entity to reach
// it, copying every existing column's row across, and leaving the new
// column's row zero-valued for the caller to fill in. If e already
// carries id this is a no-op that just returns the existing column and
// row.
func (w *World) moveAdd(e Entity, id ComponentID) (col column, row int, err error) {
	if w.locked {
		return nil, 0, LockedWorldError{Op: "add_component"}
	}
	rec, ok := w.registry.location(e)
	if !ok {
		return nil, 0, StaleHandleError{Handle: e}
	}
	oldArch := w.archetypes.get(rec.archetype)
	if oldArch.hasComponent(id) {
		col, _ := w.chunkColumn(rec, id)
		return col, rec.row, nil
	}

	newIDs := append(append([]ComponentID(nil), oldArch.componentIDs...), id)
	sig := signatureOf(newIDs)
	newArch := w.archetypes.materialize(sig, newIDs, w.config.ChunkCapacity, w.newColumnFor)

	ci, newRow := newArch.allocRow(e)
	newChunk := newArch.chunks[ci]
	oldChunk := oldArch.chunks[rec.chunk]
	for _, cid := range oldArch.componentIDs {
		newChunk.columns[cid].copyRowFrom(oldChunk.columns[cid], rec.row, newRow)
	}

	movedEntity, didMove := oldArch.removeRow(rec.chunk, rec.row)
	if didMove {
		w.registry.setLocation(movedEntity.Index, rec.archetype, rec.chunk, rec.row)
	}
	w.registry.setLocation(e.Index, newArch.id, ci, newRow)
	return newChunk.columns[id], newRow, nil
}

// moveRemove is moveAdd's inverse: it moves e into the archetype matching
// its current signature minus id. A no-op if e didn't carry id.
func (w *World) moveRemove(e Entity, id ComponentID) error {
	if w.locked {
		return LockedWorldError{Op: "remove_component"}
	}
	rec, ok := w.registry.location(e)
	if !ok {
		return StaleHandleError{Handle: e}
	}
	oldArch := w.archetypes.get(rec.archetype)
	if !oldArch.hasComponent(id) {
		return nil
	}

	newIDs := make([]ComponentID, 0, len(oldArch.componentIDs)-1)
	for _, cid := range oldArch.componentIDs {
		if cid != id {
			newIDs = append(newIDs, cid)
		}
	}
	sig := signatureOf(newIDs)
	newArch := w.archetypes.materialize(sig, newIDs, w.config.ChunkCapacity, w.newColumnFor)

	ci, newRow := newArch.allocRow(e)
	newChunk := newArch.chunks[ci]
	oldChunk := oldArch.chunks[rec.chunk]
	for _, cid := range newIDs {
		newChunk.columns[cid].copyRowFrom(oldChunk.columns[cid], rec.row, newRow)
	}

	movedEntity, didMove := oldArch.removeRow(rec.chunk, rec.row)
	if didMove {
		w.registry.setLocation(movedEntity.Index, rec.archetype, rec.chunk, rec.row)
	}
	w.registry.setLocation(e.Index, newArch.id, ci, newRow)
	return nil
}

// rowSnapshot is a copy-on-write capture of one entity's full archetype row,
// boxed per component since the set of components is only known at
// snapshot time, not at the call site. Used by the structural command
// buffer to undo a destroyed entity.
type rowSnapshot struct {
	archetype archetypeID
	values    map[ComponentID]any
}

// snapshotEntity captures e's current archetype row. Returns false if e is
// not currently alive.
func (w *World) snapshotEntity(e Entity) (rowSnapshot, bool) {
	rec, ok := w.registry.location(e)
	if !ok {
		return rowSnapshot{}, false
	}
	arch := w.archetypes.get(rec.archetype)
	chunk := arch.chunks[rec.chunk]
	snap := rowSnapshot{archetype: rec.archetype, values: make(map[ComponentID]any, len(arch.componentIDs))}
	for _, id := range arch.componentIDs {
		info := w.typesByID[id]
		snap.values[id] = info.copyRow(chunk.columns[id], rec.row)
	}
	return snap, true
}

// restoreEntity undoes a destroy: it restores e's exact generation in the
// entity registry and re-inserts a row into snap's archetype populated
// from the boxed values snap captured.
func (w *World) restoreEntity(e Entity, snap rowSnapshot) {
	w.registry.restoreGeneration(e)
	arch := w.archetypes.get(snap.archetype)
	ci, row := arch.allocRow(e)
	chunk := arch.chunks[ci]
	for id, v := range snap.values {
		info := w.typesByID[id]
		info.assignRow(chunk.columns[id], row, v)
	}
	w.registry.setLocation(e.Index, arch.id, ci, row)
}

// EndWriteScope flushes every chunk's pending touched-component set across
// every archetype, bumping each chunk's own per-component version once per
// touched id. The global per-component-type version is a separate counter:
// it's bumped once per write-scope per type touched, not once
// per (chunk, component) pair, so a batch that touches the same component
// across several chunks still only bumps its global version by one. The
// scheduler calls this once at each barrier, after merging the batch's
// command buffers.
func (w *World) EndWriteScope() {
	touchedThisScope := make(map[ComponentID]bool)
	for _, arch := range w.archetypes.all() {
		for _, c := range arch.chunks {
			for _, id := range c.flushTouched() {
				touchedThisScope[id] = true
			}
		}
	}
	for id := range touchedThisScope {
		w.globalVersions[id]++
	}
}

// ComponentVersion returns the global change version for a component type:
// incremented once per write scope in which any chunk touched it,
// regardless of how many chunks or rows were touched, used by callers
// that want a cheap "did anything change anywhere" signal without walking
// chunks.
func (w *World) ComponentVersion(id ComponentID) uint64 {
	return w.globalVersions[id]
}

// Lock marks w as mid-iteration: direct structural mutation
// (CreateEntity/DestroyEntity/Emplace/Remove) is rejected until Unlock,
// so a system can only restructure the world by going through its
// CommandBuffer instead of invalidating an in-flight query. The scheduler
// locks w for the duration of each batch and unlocks it at the barrier,
// just before merging and playing back that batch's command buffers.
func (w *World) Lock()        { w.locked = true }
func (w *World) Unlock()      { w.locked = false }
func (w *World) Locked() bool { return w.locked }
