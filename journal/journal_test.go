package journal

import (
	"errors"
	"testing"

	"github.com/duskwright/simcore"
)

func intPtr(v int) *int       { return &v }
func u64Ptr(v uint64) *uint64 { return &v }

func TestTopoOrderTieBreaksSmallestIDFirst(t *testing.T) {
	var order []uint64
	record := func(id uint64) func(*simcore.World) (func(*simcore.World), error) {
		return func(*simcore.World) (func(*simcore.World), error) {
			order = append(order, id)
			return nil, nil
		}
	}

	tx := NewTransaction([]Entry{
		{ID: 3, Apply: record(3)},
		{ID: 1, Apply: record(1)},
		{ID: 2, Apply: record(2)},
	})

	w := simcore.NewWorld(simcore.DefaultConfig())
	if err := tx.Execute(w, nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("expected ascending id order for independent entries, got %v", order)
	}
}

func TestTopoOrderRespectsDependsOn(t *testing.T) {
	var order []uint64
	record := func(id uint64) func(*simcore.World) (func(*simcore.World), error) {
		return func(*simcore.World) (func(*simcore.World), error) {
			order = append(order, id)
			return nil, nil
		}
	}

	tx := NewTransaction([]Entry{
		{ID: 1, DependsOn: []uint64{2}, Apply: record(1)},
		{ID: 2, Apply: record(2)},
	})

	w := simcore.NewWorld(simcore.DefaultConfig())
	if err := tx.Execute(w, nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Fatalf("expected dependency 2 before dependent 1, got %v", order)
	}
}

func TestValidateGraphAcyclicDetectsCycle(t *testing.T) {
	tx := NewTransaction([]Entry{
		{ID: 1, DependsOn: []uint64{2}},
		{ID: 2, DependsOn: []uint64{1}},
	})
	if tx.ValidateGraphAcyclic() {
		t.Fatalf("expected a cycle to be detected")
	}

	w := simcore.NewWorld(simcore.DefaultConfig())
	var cycleErr simcore.TransactionCycleError
	if err := tx.Execute(w, nil); !errors.As(err, &cycleErr) {
		t.Fatalf("expected TransactionCycleError in error chain, got %v", err)
	}
}

func TestValidateGraphAcyclicDetectsUnknownDependency(t *testing.T) {
	tx := NewTransaction([]Entry{
		{ID: 1, DependsOn: []uint64{99}},
	})
	if tx.ValidateGraphAcyclic() {
		t.Fatalf("expected an unknown dependency to fail validation")
	}

	w := simcore.NewWorld(simcore.DefaultConfig())
	var depErr simcore.DependencyError
	if err := tx.Execute(w, nil); !errors.As(err, &depErr) {
		t.Fatalf("expected DependencyError in error chain, got %v", err)
	}
}

func TestValidateGraphAcyclicDetectsDuplicateID(t *testing.T) {
	tx := NewTransaction([]Entry{
		{ID: 1}, {ID: 1},
	})
	if tx.ValidateGraphAcyclic() {
		t.Fatalf("expected a duplicate id to fail validation")
	}
}

func TestExecuteValidationFailureRunsNoApply(t *testing.T) {
	applied := false
	tx := NewTransaction([]Entry{
		{ID: 1, Validate: func(*simcore.World) error { return errors.New("bad") }, Apply: func(*simcore.World) (func(*simcore.World), error) {
			applied = true
			return nil, nil
		}},
	})

	w := simcore.NewWorld(simcore.DefaultConfig())
	var valErr simcore.ValidationError
	if err := tx.Execute(w, nil); !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if applied {
		t.Fatalf("a failed validate pass must not apply any entry")
	}
}

func TestExecuteStrictReverseUndoOnApplyFailure(t *testing.T) {
	var undone []int
	entry := func(id int, fail bool) Entry {
		return Entry{
			ID: uint64(id),
			Apply: func(*simcore.World) (func(*simcore.World), error) {
				if fail {
					return nil, errors.New("boom")
				}
				return func(*simcore.World) { undone = append(undone, id) }, nil
			},
		}
	}
	tx := NewTransaction([]Entry{entry(1, false), entry(2, false), entry(3, true)})

	w := simcore.NewWorld(simcore.DefaultConfig())
	if err := tx.Execute(w, nil); err == nil {
		t.Fatalf("expected the third entry's apply failure to propagate")
	}
	if len(undone) != 2 || undone[0] != 2 || undone[1] != 1 {
		t.Fatalf("expected strict reverse undo of entries 2 then 1, got %v", undone)
	}
}

func TestExecuteFailureInjectionAtPrepare(t *testing.T) {
	applied := false
	tx := NewTransaction([]Entry{
		{ID: 1, Apply: func(*simcore.World) (func(*simcore.World), error) {
			applied = true
			return nil, nil
		}},
	})

	w := simcore.NewWorld(simcore.DefaultConfig())
	err := tx.Execute(w, &FailureConfig{FailAtPhase: PhasePrepare})
	if err == nil {
		t.Fatalf("expected an injected prepare failure")
	}
	if applied {
		t.Fatalf("a prepare-phase injection must happen before any apply")
	}
}

func TestExecuteFailureInjectionAtEntryID(t *testing.T) {
	var undone []uint64
	tx := NewTransaction([]Entry{
		{ID: 1, Apply: func(*simcore.World) (func(*simcore.World), error) {
			return func(*simcore.World) { undone = append(undone, 1) }, nil
		}},
		{ID: 2, Apply: func(*simcore.World) (func(*simcore.World), error) {
			return func(*simcore.World) { undone = append(undone, 2) }, nil
		}},
	})

	w := simcore.NewWorld(simcore.DefaultConfig())
	err := tx.Execute(w, &FailureConfig{FailAtEntryID: u64Ptr(2)})
	if err == nil {
		t.Fatalf("expected an injected failure at entry id 2")
	}
	if len(undone) != 0 {
		t.Fatalf("a validate-phase injection happens before any apply, expected no undo, got %v", undone)
	}
}

func TestExecuteFailureInjectionAfterNApply(t *testing.T) {
	var undone []int
	entry := func(id int) Entry {
		return Entry{ID: uint64(id), Apply: func(*simcore.World) (func(*simcore.World), error) {
			return func(*simcore.World) { undone = append(undone, id) }, nil
		}}
	}
	tx := NewTransaction([]Entry{entry(1), entry(2), entry(3)})

	w := simcore.NewWorld(simcore.DefaultConfig())
	err := tx.Execute(w, &FailureConfig{FailAfterNApply: intPtr(2)})
	if err == nil {
		t.Fatalf("expected an injected failure after 2 applies")
	}
	if len(undone) != 2 || undone[0] != 2 || undone[1] != 1 {
		t.Fatalf("expected undo of the 2 applied entries in reverse, got %v", undone)
	}
}
