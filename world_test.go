package simcore

import (
	"errors"
	"testing"
)

type wPosition struct{ X float64 }
type wTag struct{ N int }

// mustCreateEntity is the shared test shorthand for entity creation
// against a world that is not locked.
func mustCreateEntity(t *testing.T, w *World) Entity {
	t.Helper()
	e, err := w.CreateEntity()
	if err != nil {
		t.Fatalf("CreateEntity: %v", err)
	}
	return e
}

func TestCreateEntitiesReturnsDistinctLiveEntities(t *testing.T) {
	w := NewWorld(DefaultConfig())
	entities, err := w.CreateEntities(5)
	if err != nil {
		t.Fatalf("CreateEntities: %v", err)
	}
	if len(entities) != 5 {
		t.Fatalf("expected 5 entities, got %d", len(entities))
	}
	seen := map[uint32]bool{}
	for _, e := range entities {
		if !w.IsAlive(e) {
			t.Fatalf("entity %v should be alive", e)
		}
		if seen[e.Index] {
			t.Fatalf("duplicate index %d", e.Index)
		}
		seen[e.Index] = true
	}
}

func TestDestroyEntityErasesColdComponents(t *testing.T) {
	w := NewWorld(DefaultConfig())
	tag := RegisterComponent[wTag](w, ColdSparse)
	e := mustCreateEntity(t, w)
	tag.Emplace(e, wTag{N: 7})

	destroyed, err := w.DestroyEntity(e)
	if err != nil {
		t.Fatalf("DestroyEntity: %v", err)
	}
	if !destroyed {
		t.Fatalf("destroy should succeed")
	}
	if tag.Has(e) {
		t.Fatalf("cold component should be erased on destroy")
	}
}

func TestLockRejectsDirectStructuralMutation(t *testing.T) {
	w := NewWorld(DefaultConfig())
	pos := RegisterComponent[wPosition](w, HotArchetype)
	e := mustCreateEntity(t, w)

	w.Lock()
	var lockedErr LockedWorldError
	if _, err := w.CreateEntity(); !errors.As(err, &lockedErr) {
		t.Fatalf("expected LockedWorldError from CreateEntity while locked, got %v", err)
	}
	if _, err := w.DestroyEntity(e); !errors.As(err, &lockedErr) {
		t.Fatalf("expected LockedWorldError from DestroyEntity while locked, got %v", err)
	}
	if pos.Emplace(e, wPosition{X: 1}) {
		t.Fatalf("Emplace should be rejected while locked")
	}
	w.Unlock()

	if !pos.Emplace(e, wPosition{X: 1}) {
		t.Fatalf("Emplace should succeed once unlocked")
	}
}

func TestEndWriteScopeBumpsGlobalVersionOncePerFlush(t *testing.T) {
	w := NewWorld(DefaultConfig())
	pos := RegisterComponent[wPosition](w, HotArchetype)
	e1 := mustCreateEntity(t, w)
	e2 := mustCreateEntity(t, w)
	pos.Emplace(e1, wPosition{})
	pos.Emplace(e2, wPosition{})

	Each1(w, nil, Req(pos, AccessMut), func(e Entity, p *Ref[wPosition]) {
		p.Get().X = 42
		p.Touch()
	})

	before := w.ComponentVersion(pos.ID())
	w.EndWriteScope()
	after := w.ComponentVersion(pos.ID())
	if after != before+1 {
		t.Fatalf("expected exactly one version bump across both rows in the same chunk, got before=%d after=%d", before, after)
	}
}

func TestEndWriteScopeBumpsGlobalVersionOncePerScopeAcrossChunks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ChunkCapacity = 4
	w := NewWorld(cfg)
	pos := RegisterComponent[wPosition](w, HotArchetype)

	// Enough entities to span three chunks at capacity 4, so a single
	// Touch()-everywhere write scope bumps several chunks' own per-chunk
	// versions but must still only bump the component's one global version.
	entities, err := w.CreateEntities(10)
	if err != nil {
		t.Fatalf("CreateEntities: %v", err)
	}
	for _, e := range entities {
		pos.Emplace(e, wPosition{})
	}

	Each1(w, nil, Req(pos, AccessMut), func(e Entity, p *Ref[wPosition]) {
		p.Get().X = 1
		p.Touch()
	})

	before := w.ComponentVersion(pos.ID())
	w.EndWriteScope()
	after := w.ComponentVersion(pos.ID())
	if after != before+1 {
		t.Fatalf("expected exactly one global version bump per write scope regardless of chunk count, got before=%d after=%d", before, after)
	}
}

func TestMoveRemoveDropsOnlyTargetComponent(t *testing.T) {
	w := NewWorld(DefaultConfig())
	pos := RegisterComponent[wPosition](w, HotArchetype)
	tag := RegisterComponent[wTag](w, HotArchetype)
	e := mustCreateEntity(t, w)
	pos.Emplace(e, wPosition{X: 8})
	tag.Emplace(e, wTag{N: 3})

	if !tag.Remove(e) {
		t.Fatalf("remove should succeed")
	}
	if tag.Has(e) {
		t.Fatalf("tag should be gone")
	}
	if got := pos.Get(e); got == nil || got.X != 8 {
		t.Fatalf("position should survive removal of tag: %+v", got)
	}
}
