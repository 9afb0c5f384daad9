// Package journal implements DAG-ordered multi-entry transactions: a
// batch of structural operations with explicit dependsOn edges, applied
// in topological order with strict reverse-order undo on any failure,
// including four injectable failure points for fault-injection testing.
package journal

import (
	"container/heap"
	"fmt"

	"github.com/TheBitDrifter/bark"

	"github.com/duskwright/simcore"
)

// OpType names the structural operation a JournalEntry represents, for
// diagnostics only: the entry's Apply/Undo closures do the actual work.
type OpType uint8

const (
	OpCreateEntity OpType = iota
	OpDestroyEntity
	OpEmplaceComponent
	OpSetComponent
	OpRemoveComponent
)

// Phase is the failure-injection phase a Transaction can be told to raise
// at, distinct from the command buffer's playback phase.
type Phase uint8

const (
	PhaseNone Phase = iota
	PhasePrepare
	PhaseCommit
)

// FailureConfig forces Execute to raise at one of four injection points
// (the Prepare phase, a matching entry id during validation, the Commit
// phase, or after N applies), for exercising rollback without needing a
// naturally-failing entry.
type FailureConfig struct {
	FailAtEntryID   *uint64
	FailAfterNApply *int
	FailAtPhase     Phase
}

func (f *FailureConfig) phase(p Phase) bool {
	return f != nil && f.FailAtPhase == p
}

// Entry is one structural operation in a transaction: Validate runs
// during the prepare pass, Apply performs the mutation and returns an
// Undo closure for rollback, and DependsOn lists the entry ids that must
// apply before this one.
type Entry struct {
	ID        uint64
	Type      OpType
	DependsOn []uint64
	Validate  func(w *simcore.World) error
	Apply     func(w *simcore.World) (undo func(*simcore.World), err error)
}

// Transaction is a fixed set of entries whose dependsOn edges form a DAG.
type Transaction struct {
	entries []Entry
}

// NewTransaction builds a Transaction from entries, in the order given;
// order has no bearing on execution order, which is always the computed
// topological order.
func NewTransaction(entries []Entry) *Transaction {
	return &Transaction{entries: append([]Entry(nil), entries...)}
}

// idHeap is a min-heap of entry ids, giving topoOrder its "smallest id
// first" tie-break among entries that become ready simultaneously.
type idHeap []uint64

func (h idHeap) Len() int            { return len(h) }
func (h idHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h idHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *idHeap) Push(x interface{}) { *h = append(*h, x.(uint64)) }
func (h *idHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// topoOrder computes a deterministic topological order over t's entries,
// breaking ties among simultaneously-ready entries by smallest id first.
// Returns DependencyError for a duplicate id or an edge to an unknown id,
// TransactionCycleError if the graph isn't acyclic.
func (t *Transaction) topoOrder() ([]Entry, error) {
	indexByID := make(map[uint64]int, len(t.entries))
	for i, e := range t.entries {
		if _, dup := indexByID[e.ID]; dup {
			return nil, simcore.DependencyError{Reason: fmt.Sprintf("duplicate entry id %d", e.ID)}
		}
		indexByID[e.ID] = i
	}

	children := make(map[uint64][]uint64, len(t.entries))
	indegree := make(map[uint64]int, len(t.entries))
	for _, e := range t.entries {
		indegree[e.ID] = 0
	}
	for _, e := range t.entries {
		for _, dep := range e.DependsOn {
			if _, ok := indexByID[dep]; !ok {
				return nil, simcore.DependencyError{Reason: fmt.Sprintf("entry %d depends on unknown id %d", e.ID, dep)}
			}
			children[dep] = append(children[dep], e.ID)
			indegree[e.ID]++
		}
	}

	ready := &idHeap{}
	for _, e := range t.entries {
		if indegree[e.ID] == 0 {
			heap.Push(ready, e.ID)
		}
	}

	order := make([]Entry, 0, len(t.entries))
	for ready.Len() > 0 {
		id := heap.Pop(ready).(uint64)
		order = append(order, t.entries[indexByID[id]])
		for _, child := range children[id] {
			indegree[child]--
			if indegree[child] == 0 {
				heap.Push(ready, child)
			}
		}
	}

	if len(order) != len(t.entries) {
		return nil, simcore.TransactionCycleError{Reason: "dependency graph contains a cycle"}
	}
	return order, nil
}

// ValidateGraphAcyclic reports whether t's dependency graph has a valid
// topological order: false on a duplicate id, an edge to an unknown id,
// or a cycle.
func (t *Transaction) ValidateGraphAcyclic() bool {
	_, err := t.topoOrder()
	return err == nil
}

// Execute runs t against w: compute order, validate every entry, apply
// in order pushing each entry's undo onto a stack, and on any failure
// (natural or injected via failure) replay the undo stack in reverse
// before returning the error.
func (t *Transaction) Execute(w *simcore.World, failure *FailureConfig) error {
	order, err := t.topoOrder()
	if err != nil {
		return bark.AddTrace(err)
	}

	if failure.phase(PhasePrepare) {
		return bark.AddTrace(simcore.ValidationError{Reason: "injected prepare failure"})
	}

	for _, entry := range order {
		if entry.Validate != nil {
			if err := entry.Validate(w); err != nil {
				return bark.AddTrace(simcore.ValidationError{Reason: fmt.Sprintf("entry %d: %v", entry.ID, err)})
			}
		}
		if failure != nil && failure.FailAtEntryID != nil && *failure.FailAtEntryID == entry.ID {
			return bark.AddTrace(simcore.ValidationError{Reason: fmt.Sprintf("injected validate failure at entry %d", entry.ID)})
		}
	}

	if failure.phase(PhaseCommit) {
		return bark.AddTrace(simcore.ValidationError{Reason: "injected commit failure"})
	}

	var undos []func(*simcore.World)
	applyCount := 0
	for _, entry := range order {
		var undo func(*simcore.World)
		if entry.Apply != nil {
			var applyErr error
			undo, applyErr = entry.Apply(w)
			if applyErr != nil {
				replayUndo(w, undos)
				return bark.AddTrace(simcore.StructuralApplyError{Cause: fmt.Errorf("entry %d: %w", entry.ID, applyErr)})
			}
		}
		undos = append(undos, undo)
		applyCount++
		if failure != nil && failure.FailAfterNApply != nil && applyCount >= *failure.FailAfterNApply {
			replayUndo(w, undos)
			return bark.AddTrace(simcore.StructuralApplyError{Cause: fmt.Errorf("injected apply failure after %d applies", applyCount)})
		}
	}
	return nil
}

// replayUndo runs undos in strict reverse order, skipping entries whose
// Apply never produced an undo closure (e.g. a read-only validate-only
// entry).
func replayUndo(w *simcore.World, undos []func(*simcore.World)) {
	for i := len(undos) - 1; i >= 0; i-- {
		if undos[i] != nil {
			undos[i](w)
		}
	}
}
