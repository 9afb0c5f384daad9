package asset

import (
	"errors"
	"testing"
)

func TestEnsureOwnedCreatesExactlyOnce(t *testing.T) {
	r := NewPersistentResourceRegistry()
	creates := 0
	ok := r.EnsureOwned(1, OwnedSpec{
		Create: func() (Binding, error) {
			creates++
			return "binding-1", nil
		},
	})
	if !ok || creates != 1 {
		t.Fatalf("expected exactly one create, got ok=%v creates=%d", ok, creates)
	}

	if r.EnsureOwned(1, OwnedSpec{Create: func() (Binding, error) { creates++; return nil, nil }}) {
		t.Fatalf("expected a second EnsureOwned on an existing handle to fail")
	}
	if creates != 1 {
		t.Fatalf("expected no extra create from the second EnsureOwned call")
	}
}

func TestRecreateOwnedBumpsGenerationAndDestroysOldBinding(t *testing.T) {
	r := NewPersistentResourceRegistry()
	var destroyed []Binding
	version := 0
	r.EnsureOwned(1, OwnedSpec{
		Create: func() (Binding, error) {
			version++
			return version, nil
		},
		Destroy: func(b Binding) { destroyed = append(destroyed, b) },
	})

	gen, ok := r.Generation(1)
	if !ok || gen != 0 {
		t.Fatalf("expected initial generation 0, got %d ok=%v", gen, ok)
	}

	if !r.RecreateOwned(1) {
		t.Fatalf("expected RecreateOwned to succeed")
	}
	gen, ok = r.Generation(1)
	if !ok || gen != 1 {
		t.Fatalf("expected generation bumped to 1 after recreate, got %d", gen)
	}
	if len(destroyed) != 1 || destroyed[0] != 1 {
		t.Fatalf("expected the original binding destroyed exactly once, got %v", destroyed)
	}
	b, _ := r.Resolve(1)
	if b != 2 {
		t.Fatalf("expected the fresh binding from the second create, got %v", b)
	}
}

func TestReleaseOwnedDestroysExactlyOnce(t *testing.T) {
	r := NewPersistentResourceRegistry()
	destroys := 0
	r.EnsureOwned(1, OwnedSpec{
		Create:  func() (Binding, error) { return "b", nil },
		Destroy: func(Binding) { destroys++ },
	})
	r.ReleaseOwned(1)
	r.ReleaseOwned(1)
	if destroys != 1 {
		t.Fatalf("expected exactly one destroy across repeated release calls, got %d", destroys)
	}
	if _, ok := r.Resolve(1); ok {
		t.Fatalf("expected no binding to resolve after release")
	}
}

func TestEnsureOwnedCreateFailureLeavesNothingRegistered(t *testing.T) {
	r := NewPersistentResourceRegistry()
	ok := r.EnsureOwned(1, OwnedSpec{Create: func() (Binding, error) { return nil, errors.New("fail") }})
	if ok {
		t.Fatalf("expected EnsureOwned to report failure")
	}
	if _, ok := r.Generation(1); ok {
		t.Fatalf("expected no generation tracked for a failed create")
	}
}

func TestUpsertAndRemoveDirectBinding(t *testing.T) {
	r := NewPersistentResourceRegistry()
	r.Upsert(5, "direct")
	b, ok := r.Resolve(5)
	if !ok || b != "direct" {
		t.Fatalf("expected direct binding to resolve, got %v ok=%v", b, ok)
	}
	r.Remove(5)
	if _, ok := r.Resolve(5); ok {
		t.Fatalf("expected no binding to resolve after remove")
	}
}
