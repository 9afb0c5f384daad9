package simcore

import (
	"sort"

	"github.com/TheBitDrifter/mask"
	lru "github.com/hashicorp/golang-lru/v2"
)

// archetypeIndex interns component-set signatures to archetype ids and
// caches query plans per (required, optional, excluded) key.
type archetypeIndex struct {
	byID        []*archetype
	bySignature map[mask.Mask]archetypeID
	nextID      archetypeID

	plans *lru.Cache[queryPlanKey, *queryPlan]
}

func newArchetypeIndex(planCacheSize int) *archetypeIndex {
	plans, _ := lru.New[queryPlanKey, *queryPlan](planCacheSize)
	return &archetypeIndex{
		bySignature: make(map[mask.Mask]archetypeID),
		plans:       plans,
	}
}

// signatureOf interns the sorted component-id set into a mask.Mask.
func signatureOf(componentIDs []ComponentID) mask.Mask {
	var sig mask.Mask
	for _, id := range componentIDs {
		sig.Mark(uint32(id))
	}
	return sig
}

func sortedIDs(ids []ComponentID) []ComponentID {
	out := append([]ComponentID(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// materialize returns the archetype matching sig, allocating a new one
// with zero chunks if this is the first time the signature is observed.
// Materializing a new archetype invalidates every cached query plan, since
// the new archetype might match an existing plan's required/excluded set.
func (idx *archetypeIndex) materialize(sig mask.Mask, componentIDs []ComponentID, chunkCap int, newColumn func(ComponentID, int) column) *archetype {
	if id, ok := idx.bySignature[sig]; ok {
		return idx.byID[id]
	}
	id := idx.nextID
	idx.nextID++
	arch := newArchetype(id, sig, sortedIDs(componentIDs), chunkCap, newColumn)
	idx.byID = append(idx.byID, arch)
	idx.bySignature[sig] = id
	idx.plans.Purge()
	return arch
}

func (idx *archetypeIndex) get(id archetypeID) *archetype {
	return idx.byID[id]
}

func (idx *archetypeIndex) all() []*archetype {
	return idx.byID
}
