package simcore

// sparseStore is the erased capability every ColdSparse store satisfies,
// mirroring column's vtable-per-store shape.
type sparseStore interface {
	erase(index uint32) bool
}

const sparseNone = ^uint32(0)

// typedSparse[T] is a sparse-dense pair (dense_entities, dense_values) plus
// sparse[index] -> dense_index, grounded on the sparse-set pool shape in
// other_examples' lzuwei-pecs-go component_storage.go, generalized with a
// swap-and-pop remove.
type typedSparse[T any] struct {
	sparse      []uint32 // entity.Index -> dense index, sparseNone = absent
	denseIndex  []uint32 // dense slot -> entity.Index, for swap-and-pop fixups
	denseValues []T
}

func newTypedSparse[T any]() *typedSparse[T] {
	return &typedSparse[T]{}
}

func (s *typedSparse[T]) ensureSparseLen(index uint32) {
	for uint32(len(s.sparse)) <= index {
		s.sparse = append(s.sparse, sparseNone)
	}
}

// addOrOverwrite sets the value for index, inserting it into the dense
// arrays if absent.
func (s *typedSparse[T]) addOrOverwrite(index uint32, value T) {
	s.ensureSparseLen(index)
	if d := s.sparse[index]; d != sparseNone {
		s.denseValues[d] = value
		return
	}
	s.sparse[index] = uint32(len(s.denseValues))
	s.denseIndex = append(s.denseIndex, index)
	s.denseValues = append(s.denseValues, value)
}

// remove swap-and-pops index out of the dense arrays, fixing the sparse
// slot of whichever entity was swapped into its place. Returns false if
// index was absent.
func (s *typedSparse[T]) remove(index uint32) bool {
	if uint32(len(s.sparse)) <= index || s.sparse[index] == sparseNone {
		return false
	}
	d := s.sparse[index]
	last := len(s.denseValues) - 1
	movedIndex := s.denseIndex[last]

	s.denseValues[d] = s.denseValues[last]
	s.denseIndex[d] = movedIndex
	s.sparse[movedIndex] = d

	var zero T
	s.denseValues[last] = zero
	s.denseValues = s.denseValues[:last]
	s.denseIndex = s.denseIndex[:last]
	s.sparse[index] = sparseNone
	return true
}

func (s *typedSparse[T]) has(index uint32) bool {
	return uint32(len(s.sparse)) > index && s.sparse[index] != sparseNone
}

func (s *typedSparse[T]) getPtr(index uint32) *T {
	if !s.has(index) {
		return nil
	}
	return &s.denseValues[s.sparse[index]]
}

func (s *typedSparse[T]) erase(index uint32) bool {
	return s.remove(index)
}
