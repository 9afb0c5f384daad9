package simcore

import (
	"errors"
	"testing"
)

type cbHealth struct{ HP int }
type cbPosition struct{ X float64 }
type cbRotation struct{ Angle float64 }

func TestCommandBufferCreateEntityPlaybackResolvesFuture(t *testing.T) {
	w := NewWorld(DefaultConfig())
	cb := NewCommandBuffer()
	fut := cb.CreateEntity(PhasePostSim, false)

	if _, ok := fut.Entity(); ok {
		t.Fatalf("future must not resolve before playback")
	}
	if err := cb.Playback(w, PhasePostSim); err != nil {
		t.Fatalf("unexpected playback error: %v", err)
	}
	e, ok := fut.Entity()
	if !ok {
		t.Fatalf("future should resolve after playback")
	}
	if !w.IsAlive(e) {
		t.Fatalf("created entity should be alive after playback")
	}
}

func TestCommandBufferPhaseSeparation(t *testing.T) {
	w := NewWorld(DefaultConfig())
	cb := NewCommandBuffer()
	postSim := cb.CreateEntity(PhasePostSim, false)
	endFrame := cb.CreateEntity(PhaseEndFrame, false)

	if err := cb.Playback(w, PhasePostSim); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := postSim.Entity(); !ok {
		t.Fatalf("PostSim command should have applied")
	}
	if _, ok := endFrame.Entity(); ok {
		t.Fatalf("EndFrame command must not apply during a PostSim playback")
	}
	if cb.Len() != 1 {
		t.Fatalf("expected exactly the EndFrame command left buffered, got %d", cb.Len())
	}

	if err := cb.Playback(w, PhaseEndFrame); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := endFrame.Entity(); !ok {
		t.Fatalf("EndFrame command should apply on an EndFrame playback")
	}
}

func TestCommandBufferEmplaceNotAppliedWhenSiblingFailsValidation(t *testing.T) {
	w := NewWorld(DefaultConfig())
	hp := RegisterComponent[cbHealth](w, HotArchetype)
	e := mustCreateEntity(t, w)

	cb := NewCommandBuffer()
	EmplaceComponent(cb, PhasePostSim, false, hp, e, cbHealth{HP: 10})
	// A destroy of an already-dead entity fails validation, which should
	// abort the whole playback before anything is applied.
	cb.DestroyEntity(PhasePostSim, false, Entity{Index: 9999, Generation: 0})

	err := cb.Playback(w, PhasePostSim)
	if err == nil {
		t.Fatalf("expected playback to fail on the invalid destroy")
	}
	if hp.Has(e) {
		t.Fatalf("emplace must not be visible once a sibling command fails validation")
	}
}

func TestCommandBufferDeferUntilCommitRunsAfterImmediate(t *testing.T) {
	w := NewWorld(DefaultConfig())
	hp := RegisterComponent[cbHealth](w, HotArchetype)
	e := mustCreateEntity(t, w)
	hp.Emplace(e, cbHealth{HP: 1})

	cb := NewCommandBuffer()
	var order []string
	SetComponent(cb, PhasePostSim, true, hp, e, cbHealth{HP: 2}) // deferred
	cb.commands[0].apply = wrapRecording(cb.commands[0].apply, &order, "deferred")

	fut := cb.CreateEntity(PhasePostSim, false) // immediate
	cb.commands[1].apply = wrapRecording(cb.commands[1].apply, &order, "immediate")

	if err := cb.Playback(w, PhasePostSim); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := fut.Entity(); !ok {
		t.Fatalf("immediate create should have applied")
	}
	if len(order) != 2 || order[0] != "immediate" || order[1] != "deferred" {
		t.Fatalf("expected immediate commands before deferred ones, got %v", order)
	}
}

func wrapRecording(orig func(*World) (func(*World), error), order *[]string, label string) func(*World) (func(*World), error) {
	return func(w *World) (func(*World), error) {
		*order = append(*order, label)
		return orig(w)
	}
}

func TestPlaybackRollsBackFullyOnMidApplyFailure(t *testing.T) {
	w := NewWorld(DefaultConfig())
	pos := RegisterComponent[cbPosition](w, HotArchetype)
	rot := RegisterComponent[cbRotation](w, HotArchetype)
	e := mustCreateEntity(t, w)
	pos.Emplace(e, cbPosition{X: 10})
	rot.Emplace(e, cbRotation{Angle: 1})

	cb := NewCommandBuffer()
	SetComponent(cb, PhasePostSim, false, rot, e, cbRotation{Angle: 9})
	RemoveComponent(cb, PhasePostSim, false, pos, e)
	cb.DestroyEntity(PhasePostSim, true, e)
	// Deferred failing command: everything before it, the destroy
	// included, has already applied when it raises.
	cb.commands = append(cb.commands, command{
		phase:            PhasePostSim,
		deferUntilCommit: true,
		apply: func(w *World) (func(*World), error) {
			return nil, errors.New("injected apply failure")
		},
	})

	err := cb.Playback(w, PhasePostSim)
	if err == nil {
		t.Fatalf("expected the injected apply failure to propagate")
	}
	var applyErr StructuralApplyError
	if !errors.As(err, &applyErr) {
		t.Fatalf("expected StructuralApplyError in error chain, got %v", err)
	}
	if !w.IsAlive(e) {
		t.Fatalf("rollback must restore liveness at the original generation")
	}
	if got := pos.Get(e); got == nil || got.X != 10 {
		t.Fatalf("rollback must restore the removed component's prior value, got %+v", got)
	}
	if got := rot.Get(e); got == nil || got.Angle != 1 {
		t.Fatalf("rollback must restore the overwritten component's prior value, got %+v", got)
	}
}

func TestRemoveComponentOnMissingComponentIsNoOp(t *testing.T) {
	w := NewWorld(DefaultConfig())
	hp := RegisterComponent[cbHealth](w, HotArchetype)
	e := mustCreateEntity(t, w)

	cb := NewCommandBuffer()
	RemoveComponent(cb, PhasePostSim, false, hp, e)
	if err := cb.Playback(w, PhasePostSim); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hp.Has(e) {
		t.Fatalf("entity should still not carry the component")
	}
}
