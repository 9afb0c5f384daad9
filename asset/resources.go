package asset

import "sync"

// Binding is an opaque GPU-adjacent resource handle (an image view, a
// buffer range, or whatever the renderer backend defines): the
// simulation never interprets it, only tracks its lifecycle.
type Binding = any

// OwnedSpec supplies the create/destroy pair a Handle's owned binding is
// built and torn down with.
type OwnedSpec struct {
	Create  func() (Binding, error)
	Destroy func(Binding)
}

type ownedEntry struct {
	spec       OwnedSpec
	binding    Binding
	generation uint64
}

// PersistentResourceRegistry tracks both directly-upserted bindings (the
// renderer owns their lifecycle) and owned bindings this registry
// created itself, guaranteeing exactly one Destroy per successful Create
// and bumping a per-handle generation on every Recreate.
type PersistentResourceRegistry struct {
	mu       sync.Mutex
	bindings map[uint64]Binding
	owned    map[uint64]*ownedEntry
}

// NewPersistentResourceRegistry builds an empty registry.
func NewPersistentResourceRegistry() *PersistentResourceRegistry {
	return &PersistentResourceRegistry{
		bindings: make(map[uint64]Binding),
		owned:    make(map[uint64]*ownedEntry),
	}
}

// Upsert records (or replaces) handle's binding directly; the caller
// retains ownership and must call Remove to clear it.
func (r *PersistentResourceRegistry) Upsert(handle uint64, binding Binding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[handle] = binding
}

// Remove clears a directly-upserted binding for handle. No-op for a
// handle that was never upserted.
func (r *PersistentResourceRegistry) Remove(handle uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bindings, handle)
}

// Resolve returns handle's current binding, whether directly upserted or
// registry-owned.
func (r *PersistentResourceRegistry) Resolve(handle uint64) (Binding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.bindings[handle]; ok {
		return b, true
	}
	if entry, ok := r.owned[handle]; ok {
		return entry.binding, true
	}
	return nil, false
}

// EnsureOwned creates handle's binding via spec.Create if it doesn't
// already exist, storing spec for future Recreate/Release calls.
// Returns false if handle already has an owned binding, or if Create
// failed.
func (r *PersistentResourceRegistry) EnsureOwned(handle uint64, spec OwnedSpec) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.owned[handle]; exists {
		return false
	}
	binding, err := spec.Create()
	if err != nil {
		return false
	}
	r.owned[handle] = &ownedEntry{spec: spec, binding: binding, generation: 0}
	return true
}

// RecreateOwned destroys handle's current owned binding, creates a fresh
// one from the entry's stored spec, and bumps its generation. Returns
// false if handle has no owned binding, or if the fresh Create failed
// (the stale binding is still destroyed either way, leaving handle
// without an owned binding).
func (r *PersistentResourceRegistry) RecreateOwned(handle uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.owned[handle]
	if !ok {
		return false
	}
	if entry.spec.Destroy != nil {
		entry.spec.Destroy(entry.binding)
	}
	binding, err := entry.spec.Create()
	if err != nil {
		delete(r.owned, handle)
		return false
	}
	entry.binding = binding
	entry.generation++
	return true
}

// ReleaseOwned destroys handle's owned binding, if any, and forgets it.
func (r *PersistentResourceRegistry) ReleaseOwned(handle uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.owned[handle]
	if !ok {
		return
	}
	if entry.spec.Destroy != nil {
		entry.spec.Destroy(entry.binding)
	}
	delete(r.owned, handle)
}

// Generation returns handle's current owned-binding generation (0 for a
// binding that has never been recreated), and false if handle has no
// owned binding.
func (r *PersistentResourceRegistry) Generation(handle uint64) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.owned[handle]
	if !ok {
		return 0, false
	}
	return entry.generation, true
}
