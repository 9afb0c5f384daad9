package simcore

import "github.com/TheBitDrifter/mask"

// AccessDeclaration is the read-set/write-set/structural-write flag a
// system declares at registration.
type AccessDeclaration struct {
	Name             string
	Reads            []ComponentID
	Writes           []ComponentID
	StructuralWrites bool
}

func idSetMask(ids []ComponentID) mask.Mask256 {
	var m mask.Mask256
	for _, id := range ids {
		m.Mark(uint32(id))
	}
	return m
}

// Conflicts implements the scheduler's conflict predicate: two systems
// conflict iff they both write structurally, or their
// read/write sets overlap on the write side. mask.Mask256's ContainsAny is
// exactly the bitset intersection test this needs, reusing the same
// bitset type this package already uses for archetype signatures.
func Conflicts(a, b AccessDeclaration) bool {
	if a.StructuralWrites && b.StructuralWrites {
		return true
	}
	aw, bw := idSetMask(a.Writes), idSetMask(b.Writes)
	ar, br := idSetMask(a.Reads), idSetMask(b.Reads)
	if aw.ContainsAny(bw) {
		return true
	}
	if aw.ContainsAny(br) {
		return true
	}
	if ar.ContainsAny(bw) {
		return true
	}
	return false
}

// accessContext is installed on a World for the duration of one system's
// run when Config.DebugAccessChecks is set, mirroring the original
// engine's SystemAccessScope RAII guard.
type accessContext struct {
	decl   AccessDeclaration
	reads  mask.Mask256
	writes mask.Mask256
}

// InstallAccessContext installs decl as the active access context for
// debug validation. Callers (the scheduler) must pair this with
// ClearAccessContext once the system returns.
func (w *World) InstallAccessContext(decl AccessDeclaration) {
	if !w.config.DebugAccessChecks {
		return
	}
	w.access = &accessContext{
		decl:   decl,
		reads:  idSetMask(decl.Reads),
		writes: idSetMask(decl.Writes),
	}
}

// ClearAccessContext removes the active access context. Like
// InstallAccessContext it is a no-op when debug checks are off, so
// parallel systems in a batch never write the shared field.
func (w *World) ClearAccessContext() {
	if !w.config.DebugAccessChecks {
		return
	}
	w.access = nil
}

// checkAccess raises AccessViolation when a debug access context is
// active and id was touched outside the declared reads/writes. ColdSparse
// components never route through here: they bypass the check by design,
// since they're reached by direct lookup rather than a query plan.
func (w *World) checkAccess(id ComponentID, mutating bool) error {
	ctx := w.access
	if ctx == nil {
		return nil
	}
	var in mask.Mask256
	in.Mark(uint32(id))
	if mutating {
		if !ctx.writes.ContainsAny(in) {
			return AccessViolation{System: ctx.decl.Name, Component: id}
		}
		return nil
	}
	if !ctx.reads.ContainsAny(in) && !ctx.writes.ContainsAny(in) {
		return AccessViolation{System: ctx.decl.Name, Component: id}
	}
	return nil
}
