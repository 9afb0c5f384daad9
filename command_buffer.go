package simcore

import "github.com/TheBitDrifter/bark"

// CommandPhase names the barrier at which a buffered command becomes
// eligible for playback.
type CommandPhase uint8

const (
	PhasePostSim CommandPhase = iota
	PhaseEndFrame
)

// command is one deferred structural operation. validate checks
// preconditions against world without mutating anything; apply performs
// the mutation and returns an undo closure to push onto the playback's
// rollback stack. A nil undo means the operation was a no-op that needs
// no unwinding.
type command struct {
	phase            CommandPhase
	deferUntilCommit bool
	validate         func(w *World) error
	apply            func(w *World) (undo func(w *World), err error)
}

// CommandBuffer accumulates structural operations a system issues during
// its write scope, playing them back against the world at a barrier
// rather than mutating archetypes while a query is mid-iteration. Each
// system carries its own CommandBuffer; the scheduler merges a batch's
// buffers in ascending slot order at the barrier.
type CommandBuffer struct {
	commands []command
}

func NewCommandBuffer() *CommandBuffer {
	return &CommandBuffer{}
}

// EntityFuture resolves to the Entity a buffered CreateEntity command
// produced, once that command has been applied. Reading Entity before
// playback reports ok == false.
type EntityFuture struct {
	entity Entity
	ok     bool
}

func (f *EntityFuture) Entity() (Entity, bool) { return f.entity, f.ok }

// CreateEntity buffers an entity creation, returning a future resolved
// once this command applies.
func (cb *CommandBuffer) CreateEntity(phase CommandPhase, deferUntilCommit bool) *EntityFuture {
	fut := &EntityFuture{}
	cb.commands = append(cb.commands, command{
		phase:            phase,
		deferUntilCommit: deferUntilCommit,
		apply: func(w *World) (func(*World), error) {
			e, err := w.CreateEntity()
			if err != nil {
				return nil, err
			}
			fut.entity, fut.ok = e, true
			return func(w *World) { w.DestroyEntity(e) }, nil
		},
	})
	return fut
}

// DestroyEntity buffers an entity destruction, undone on rollback by
// restoring the entity's exact archetype row from a snapshot taken at
// apply time.
func (cb *CommandBuffer) DestroyEntity(phase CommandPhase, deferUntilCommit bool, e Entity) {
	cb.commands = append(cb.commands, command{
		phase:            phase,
		deferUntilCommit: deferUntilCommit,
		validate: func(w *World) error {
			if !w.IsAlive(e) {
				return StaleHandleError{Handle: e}
			}
			return nil
		},
		apply: func(w *World) (func(*World), error) {
			snap, ok := w.snapshotEntity(e)
			if !ok {
				return nil, StaleHandleError{Handle: e}
			}
			destroyed, err := w.DestroyEntity(e)
			if err != nil {
				return nil, err
			}
			if !destroyed {
				return nil, StaleHandleError{Handle: e}
			}
			return func(w *World) { w.restoreEntity(e, snap) }, nil
		},
	})
}

// EmplaceComponent buffers adding (or overwriting) a HotArchetype or
// ColdSparse component on e. On rollback, the entity is restored to
// whatever it held before: removed if it didn't carry the component, set
// back to its prior value if it did.
func EmplaceComponent[T any](cb *CommandBuffer, phase CommandPhase, deferUntilCommit bool, ct ComponentType[T], e Entity, value T) {
	cb.commands = append(cb.commands, command{
		phase:            phase,
		deferUntilCommit: deferUntilCommit,
		validate: func(w *World) error {
			if !w.IsAlive(e) {
				return StaleHandleError{Handle: e}
			}
			return nil
		},
		apply: func(w *World) (func(*World), error) {
			hadBefore := ct.Has(e)
			var prev T
			if hadBefore {
				prev = *ct.Get(e)
			}
			if !ct.Emplace(e, value) {
				return nil, StructuralApplyError{Cause: StaleHandleError{Handle: e}}
			}
			return func(w *World) {
				if hadBefore {
					ct.Set(e, prev)
				} else {
					ct.Remove(e)
				}
			}, nil
		},
	})
}

// SetComponent buffers overwriting a value on a component the entity
// already carries. It is not structural: it never changes an entity's
// archetype.
func SetComponent[T any](cb *CommandBuffer, phase CommandPhase, deferUntilCommit bool, ct ComponentType[T], e Entity, value T) {
	cb.commands = append(cb.commands, command{
		phase:            phase,
		deferUntilCommit: deferUntilCommit,
		validate: func(w *World) error {
			if !ct.Has(e) {
				return ValidationError{Reason: "set_component on entity missing the component"}
			}
			return nil
		},
		apply: func(w *World) (func(*World), error) {
			prev := *ct.Get(e)
			ct.Set(e, value)
			return func(w *World) { ct.Set(e, prev) }, nil
		},
	})
}

// RemoveComponent buffers stripping a component from e. Validation only
// checks that e is alive; applying it is a no-op (nothing to undo) if e
// doesn't currently carry the component.
func RemoveComponent[T any](cb *CommandBuffer, phase CommandPhase, deferUntilCommit bool, ct ComponentType[T], e Entity) {
	cb.commands = append(cb.commands, command{
		phase:            phase,
		deferUntilCommit: deferUntilCommit,
		validate: func(w *World) error {
			if !w.IsAlive(e) {
				return StaleHandleError{Handle: e}
			}
			return nil
		},
		apply: func(w *World) (func(*World), error) {
			if !ct.Has(e) {
				return nil, nil
			}
			prev := *ct.Get(e)
			if !ct.Remove(e) {
				return nil, StructuralApplyError{Cause: StaleHandleError{Handle: e}}
			}
			return func(w *World) { ct.Emplace(e, prev) }, nil
		},
	})
}

// Playback drains every buffered command tagged with phase, in FIFO
// order, leaving commands for other phases untouched, and applies them in
// four steps:
//
//  1. validate every drained command against world before applying any of
//     them; a single validation failure aborts the whole playback with no
//     side effects.
//  2. apply commands not marked deferUntilCommit, in original order.
//  3. apply commands marked deferUntilCommit, in original order.
//  4. if any apply fails, replay the rollback stack in strict reverse
//     order, then return the failure wrapped as a StructuralApplyError.
func (cb *CommandBuffer) Playback(w *World, phase CommandPhase) error {
	var drained, remaining []command
	for _, c := range cb.commands {
		if c.phase == phase {
			drained = append(drained, c)
		} else {
			remaining = append(remaining, c)
		}
	}
	cb.commands = remaining

	for _, c := range drained {
		if c.validate == nil {
			continue
		}
		if err := c.validate(w); err != nil {
			return bark.AddTrace(err)
		}
	}

	var immediate, deferred []command
	for _, c := range drained {
		if c.deferUntilCommit {
			deferred = append(deferred, c)
		} else {
			immediate = append(immediate, c)
		}
	}

	var undoStack []func(*World)
	apply := func(cmds []command) error {
		for _, c := range cmds {
			undo, err := c.apply(w)
			if err != nil {
				for i := len(undoStack) - 1; i >= 0; i-- {
					undoStack[i](w)
				}
				if se, ok := err.(StructuralApplyError); ok {
					return bark.AddTrace(se)
				}
				return bark.AddTrace(StructuralApplyError{Cause: err})
			}
			if undo != nil {
				undoStack = append(undoStack, undo)
			}
		}
		return nil
	}

	if err := apply(immediate); err != nil {
		return err
	}
	return apply(deferred)
}

// Len reports how many commands are still buffered (across all phases),
// mostly useful for tests and diagnostics.
func (cb *CommandBuffer) Len() int { return len(cb.commands) }

// Merge appends other's still-buffered commands onto cb, preserving each
// buffer's own internal order. The scheduler uses this to combine a
// batch's per-system command buffers into one, in ascending batch-slot
// order, before playback; EndFrame-phase commands left over after a
// PostSim playback are carried forward the same way into the frame's
// end-of-frame buffer.
func (cb *CommandBuffer) Merge(other *CommandBuffer) {
	cb.commands = append(cb.commands, other.commands...)
}
