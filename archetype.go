package simcore

import "github.com/TheBitDrifter/mask"

// archetypeID identifies an interned component-set signature: a small
// integer handed out by archetypeIndex in materialization order.
type archetypeID uint32

// archetype is the set of HotArchetype component types an entity currently
// has; it owns a sequence of fixed-capacity chunks.
type archetype struct {
	id           archetypeID
	signature    mask.Mask
	componentIDs []ComponentID
	chunks       []*chunk
	chunkCap     int
	newColumn    func(ComponentID, int) column
}

func newArchetype(id archetypeID, sig mask.Mask, componentIDs []ComponentID, chunkCap int, newColumn func(ComponentID, int) column) *archetype {
	return &archetype{
		id:           id,
		signature:    sig,
		componentIDs: componentIDs,
		chunkCap:     chunkCap,
		newColumn:    newColumn,
	}
}

func (a *archetype) hasComponent(id ComponentID) bool {
	for _, c := range a.componentIDs {
		if c == id {
			return true
		}
	}
	return false
}

// allocRow finds or creates a chunk with spare capacity and appends e,
// returning the chunk index and row.
func (a *archetype) allocRow(e Entity) (chunkIndex, row int) {
	for i, c := range a.chunks {
		if !c.full() {
			return i, c.appendRow(e)
		}
	}
	c := newChunk(a.chunkCap, a.componentIDs, a.newColumn)
	a.chunks = append(a.chunks, c)
	return len(a.chunks) - 1, c.appendRow(e)
}

// removeRow swap-removes the row at (chunkIndex, row), returning the
// entity that was moved into that slot (if any) so the caller can fix its
// location record.
func (a *archetype) removeRow(chunkIndex, row int) (movedEntity Entity, moved bool) {
	return a.chunks[chunkIndex].removeRow(row)
}
