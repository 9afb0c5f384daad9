package simcore

import (
	"fmt"
	"sort"
	"strings"
)

// AccessKind distinguishes a read-only query argument from a mutable one.
type AccessKind uint8

const (
	AccessConst AccessKind = iota
	AccessMut
)

// Arg describes one component slot of a query: which component type, with
// what access kind, and whether the chunk is allowed to lack it.
type Arg[T any] struct {
	Type     ComponentType[T]
	Kind     AccessKind
	Optional bool
}

// Req builds a required query argument. A chunk that doesn't carry this
// component never matches the query.
func Req[T any](c ComponentType[T], kind AccessKind) Arg[T] {
	return Arg[T]{Type: c, Kind: kind, Optional: false}
}

// Opt builds an optional query argument. Matching chunks that lack this
// component hand back a nil *Ref[T] for it instead of being excluded.
func Opt[T any](c ComponentType[T], kind AccessKind) Arg[T] {
	return Arg[T]{Type: c, Kind: kind, Optional: true}
}

// Ref is the handle a query callback receives for one component argument.
// Get() never implies a mutation; Touch() is the explicit mutation-intent
// signal that feeds the per-chunk version bump. An untouched Mut argument
// never bumps versions, which keeps a no-op system idempotent. A nil
// *Ref[T] means an optional component was absent.
type Ref[T any] struct {
	ptr   *T
	chunk *chunk
	id    ComponentID
}

func (r *Ref[T]) Get() *T {
	if r == nil {
		return nil
	}
	return r.ptr
}

// Touch records mutation intent on the owning chunk for this argument's
// component. Calling it on a Ref built from an AccessConst argument is a
// caller bug, not a panic: the debug access checker (world.checkAccess)
// is what actually enforces the declared read/write sets.
func (r *Ref[T]) Touch() {
	if r == nil || r.chunk == nil {
		return
	}
	r.chunk.touch(r.id)
}

// queryPlanKey is a canonical string built from a query's required,
// optional, and excluded component ids, used as the LRU cache key in
// archetypeIndex.plans.
type queryPlanKey string

func buildPlanKey(required, optional []ComponentID, excluded []ComponentID) queryPlanKey {
	var b strings.Builder
	writeIDs := func(tag string, ids []ComponentID) {
		sorted := append([]ComponentID(nil), ids...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		b.WriteString(tag)
		for _, id := range sorted {
			fmt.Fprintf(&b, "%d,", id)
		}
		b.WriteByte(';')
	}
	writeIDs("r:", required)
	writeIDs("o:", optional)
	writeIDs("x:", excluded)
	return queryPlanKey(b.String())
}

// queryPlan is the cached result of matching one (required, optional,
// excluded) key against the current archetype set.
type queryPlan struct {
	archetypes []*archetype
}

// matchPlan returns the cached plan for this key, building and caching one
// if absent. Plans are invalidated wholesale whenever a new archetype is
// materialized (archetypeIndex.materialize purges the cache).
func matchPlan(idx *archetypeIndex, required, optional, excluded []ComponentID) *queryPlan {
	key := buildPlanKey(required, optional, excluded)
	if plan, ok := idx.plans.Get(key); ok {
		return plan
	}
	var matched []*archetype
	for _, arch := range idx.all() {
		if !archetypeSatisfies(arch, required, excluded) {
			continue
		}
		matched = append(matched, arch)
	}
	plan := &queryPlan{archetypes: matched}
	idx.plans.Add(key, plan)
	return plan
}

func archetypeSatisfies(arch *archetype, required, excluded []ComponentID) bool {
	for _, id := range required {
		if !arch.hasComponent(id) {
			return false
		}
	}
	for _, id := range excluded {
		if arch.hasComponent(id) {
			return false
		}
	}
	return true
}

func refFor[T any](c *chunk, id ComponentID, row int) *Ref[T] {
	col, ok := c.columns[id]
	if !ok {
		return nil
	}
	return &Ref[T]{ptr: &columnData[T](col)[row], chunk: c, id: id}
}

func requiredIDOf[T any](a Arg[T]) []ComponentID {
	if a.Optional {
		return nil
	}
	return []ComponentID{a.Type.ID()}
}

func optionalIDOf[T any](a Arg[T]) []ComponentID {
	if !a.Optional {
		return nil
	}
	return []ComponentID{a.Type.ID()}
}

func accessErr(w *World, a ComponentID, kind AccessKind) error {
	return w.checkAccess(a, kind == AccessMut)
}

func mutIDOf[T any](a Arg[T]) []ComponentID {
	if a.Kind != AccessMut {
		return nil
	}
	return []ComponentID{a.Type.ID()}
}

// checkDistinctMuts rejects a query naming the same component type as Mut
// in more than one argument slot: two Arg slots resolving to the same
// ComponentID with AccessMut would otherwise hand the caller two live
// *Ref[T] aliasing the same column.
func checkDistinctMuts(mutIDGroups ...[]ComponentID) error {
	seen := make(map[ComponentID]bool)
	for _, group := range mutIDGroups {
		for _, id := range group {
			if seen[id] {
				return DuplicateMutAccessError{Component: id}
			}
			seen[id] = true
		}
	}
	return nil
}

// Each1 iterates every entity whose archetype satisfies a (and excludes
// excluded), invoking fn with a Ref for a. With Config.DebugAccessChecks
// on, every touched component id must be present in the running system's
// declared access set or an AccessViolation is returned.
func Each1[A any](w *World, excluded []Component, a Arg[A], fn func(Entity, *Ref[A])) error {
	req := requiredIDOf(a)
	opt := optionalIDOf(a)
	exIDs := idsOf(excluded)
	plan := matchPlan(w.archetypes, req, opt, exIDs)
	for _, arch := range plan.archetypes {
		for _, c := range arch.chunks {
			if err := accessErr(w, a.Type.ID(), a.Kind); err != nil {
				return err
			}
			for row, e := range c.entities {
				fn(e, refFor[A](c, a.Type.ID(), row))
			}
		}
	}
	return nil
}

// Each2 is Each1 generalized to two component arguments.
func Each2[A, B any](w *World, excluded []Component, a Arg[A], b Arg[B], fn func(Entity, *Ref[A], *Ref[B])) error {
	if err := checkDistinctMuts(mutIDOf(a), mutIDOf(b)); err != nil {
		return err
	}
	req := append(requiredIDOf(a), requiredIDOf(b)...)
	opt := append(optionalIDOf(a), optionalIDOf(b)...)
	exIDs := idsOf(excluded)
	plan := matchPlan(w.archetypes, req, opt, exIDs)
	for _, arch := range plan.archetypes {
		for _, c := range arch.chunks {
			if err := accessErr(w, a.Type.ID(), a.Kind); err != nil {
				return err
			}
			if err := accessErr(w, b.Type.ID(), b.Kind); err != nil {
				return err
			}
			for row, e := range c.entities {
				fn(e, refFor[A](c, a.Type.ID(), row), refFor[B](c, b.Type.ID(), row))
			}
		}
	}
	return nil
}

// Each3 is Each1 generalized to three component arguments.
func Each3[A, B, C any](w *World, excluded []Component, a Arg[A], b Arg[B], c Arg[C], fn func(Entity, *Ref[A], *Ref[B], *Ref[C])) error {
	if err := checkDistinctMuts(mutIDOf(a), mutIDOf(b), mutIDOf(c)); err != nil {
		return err
	}
	req := append(append(requiredIDOf(a), requiredIDOf(b)...), requiredIDOf(c)...)
	opt := append(append(optionalIDOf(a), optionalIDOf(b)...), optionalIDOf(c)...)
	exIDs := idsOf(excluded)
	plan := matchPlan(w.archetypes, req, opt, exIDs)
	for _, arch := range plan.archetypes {
		for _, chk := range arch.chunks {
			if err := accessErr(w, a.Type.ID(), a.Kind); err != nil {
				return err
			}
			if err := accessErr(w, b.Type.ID(), b.Kind); err != nil {
				return err
			}
			if err := accessErr(w, c.Type.ID(), c.Kind); err != nil {
				return err
			}
			for row, e := range chk.entities {
				fn(e, refFor[A](chk, a.Type.ID(), row), refFor[B](chk, b.Type.ID(), row), refFor[C](chk, c.Type.ID(), row))
			}
		}
	}
	return nil
}

// Each4 is Each1 generalized to four component arguments, the arity the
// render extractor needs (transform, angular velocity, mesh ref,
// visibility).
func Each4[A, B, C, D any](w *World, excluded []Component, a Arg[A], b Arg[B], c Arg[C], d Arg[D], fn func(Entity, *Ref[A], *Ref[B], *Ref[C], *Ref[D])) error {
	if err := checkDistinctMuts(mutIDOf(a), mutIDOf(b), mutIDOf(c), mutIDOf(d)); err != nil {
		return err
	}
	req := append(append(append(requiredIDOf(a), requiredIDOf(b)...), requiredIDOf(c)...), requiredIDOf(d)...)
	opt := append(append(append(optionalIDOf(a), optionalIDOf(b)...), optionalIDOf(c)...), optionalIDOf(d)...)
	exIDs := idsOf(excluded)
	plan := matchPlan(w.archetypes, req, opt, exIDs)
	for _, arch := range plan.archetypes {
		for _, chk := range arch.chunks {
			if err := accessErr(w, a.Type.ID(), a.Kind); err != nil {
				return err
			}
			if err := accessErr(w, b.Type.ID(), b.Kind); err != nil {
				return err
			}
			if err := accessErr(w, c.Type.ID(), c.Kind); err != nil {
				return err
			}
			if err := accessErr(w, d.Type.ID(), d.Kind); err != nil {
				return err
			}
			for row, e := range chk.entities {
				fn(e,
					refFor[A](chk, a.Type.ID(), row),
					refFor[B](chk, b.Type.ID(), row),
					refFor[C](chk, c.Type.ID(), row),
					refFor[D](chk, d.Type.ID(), row))
			}
		}
	}
	return nil
}

func idsOf(cs []Component) []ComponentID {
	ids := make([]ComponentID, len(cs))
	for i, c := range cs {
		ids[i] = c.ID()
	}
	return ids
}

// ChunkView2 is the chunk-wise counterpart to Each2, handing the worker a
// whole chunk's parallel slices at once rather than one row at a time. The
// render extractor's worker-pool striping iterates chunks this way.
type ChunkView2[A, B any] struct {
	Entities []Entity
	A        []A
	B        []B
	Chunk    *chunk
	IDA, IDB ComponentID
}

// EachChunk2 invokes fn once per matching chunk instead of once per row.
func EachChunk2[A, B any](w *World, excluded []Component, a Arg[A], b Arg[B], fn func(ChunkView2[A, B])) error {
	if err := checkDistinctMuts(mutIDOf(a), mutIDOf(b)); err != nil {
		return err
	}
	req := append(requiredIDOf(a), requiredIDOf(b)...)
	opt := append(optionalIDOf(a), optionalIDOf(b)...)
	exIDs := idsOf(excluded)
	plan := matchPlan(w.archetypes, req, opt, exIDs)
	for _, arch := range plan.archetypes {
		for _, c := range arch.chunks {
			if err := accessErr(w, a.Type.ID(), a.Kind); err != nil {
				return err
			}
			if err := accessErr(w, b.Type.ID(), b.Kind); err != nil {
				return err
			}
			view := ChunkView2[A, B]{Entities: c.entities, Chunk: c, IDA: a.Type.ID(), IDB: b.Type.ID()}
			if col, ok := c.columns[a.Type.ID()]; ok {
				view.A = columnData[A](col)
			}
			if col, ok := c.columns[b.Type.ID()]; ok {
				view.B = columnData[B](col)
			}
			fn(view)
		}
	}
	return nil
}

// TouchA and TouchB mark the A or B column dirty for every row in the chunk
// this view came from, for callers that mutate a whole chunk's column in place (e.g. a
// vectorized integration step) rather than row by row.
func (v ChunkView2[A, B]) TouchA() { v.Chunk.touch(v.IDA) }
func (v ChunkView2[A, B]) TouchB() { v.Chunk.touch(v.IDB) }

// Version returns this chunk's current change version for component id,
// the value the render extractor's per-chunk cache compares against to
// decide whether a chunk needs re-extracting.
func (v ChunkView2[A, B]) Version(id ComponentID) uint64 { return v.Chunk.versions[id] }

// ChunkKey identifies a chunk stably across frames for cache lookups: the
// archetype it belongs to plus its index within that archetype's chunk
// slice. Chunks are never reordered within an archetype once allocated,
// so this pair is stable for the chunk's lifetime.
type ChunkKey struct {
	Archetype archetypeID
	Index     int
}

// ChunkView4 is the four-component chunk-wise counterpart used by the
// render extractor, which reads transform, angular velocity, mesh
// reference, and visibility columns together per chunk.
type ChunkView4[A, B, C, D any] struct {
	Entities           []Entity
	A                  []A
	B                  []B
	C                  []C
	D                  []D
	Chunk              *chunk
	Archetype          archetypeID
	ChunkIndex         int
	IDA, IDB, IDC, IDD ComponentID
}

func (v ChunkView4[A, B, C, D]) Key() ChunkKey {
	return ChunkKey{Archetype: v.Archetype, Index: v.ChunkIndex}
}

func (v ChunkView4[A, B, C, D]) VersionTuple() [4]uint64 {
	return [4]uint64{
		v.Chunk.versions[v.IDA],
		v.Chunk.versions[v.IDB],
		v.Chunk.versions[v.IDC],
		v.Chunk.versions[v.IDD],
	}
}

// EachChunk4 invokes fn once per matching chunk with all four columns
// sliced out and the chunk's stable key and version tuple attached.
func EachChunk4[A, B, C, D any](w *World, excluded []Component, a Arg[A], b Arg[B], c Arg[C], d Arg[D], fn func(ChunkView4[A, B, C, D])) error {
	if err := checkDistinctMuts(mutIDOf(a), mutIDOf(b), mutIDOf(c), mutIDOf(d)); err != nil {
		return err
	}
	req := append(append(append(requiredIDOf(a), requiredIDOf(b)...), requiredIDOf(c)...), requiredIDOf(d)...)
	opt := append(append(append(optionalIDOf(a), optionalIDOf(b)...), optionalIDOf(c)...), optionalIDOf(d)...)
	exIDs := idsOf(excluded)
	plan := matchPlan(w.archetypes, req, opt, exIDs)
	for _, arch := range plan.archetypes {
		for ci, chk := range arch.chunks {
			if err := accessErr(w, a.Type.ID(), a.Kind); err != nil {
				return err
			}
			if err := accessErr(w, b.Type.ID(), b.Kind); err != nil {
				return err
			}
			if err := accessErr(w, c.Type.ID(), c.Kind); err != nil {
				return err
			}
			if err := accessErr(w, d.Type.ID(), d.Kind); err != nil {
				return err
			}
			view := ChunkView4[A, B, C, D]{
				Entities: chk.entities, Chunk: chk, Archetype: arch.id, ChunkIndex: ci,
				IDA: a.Type.ID(), IDB: b.Type.ID(), IDC: c.Type.ID(), IDD: d.Type.ID(),
			}
			if col, ok := chk.columns[a.Type.ID()]; ok {
				view.A = columnData[A](col)
			}
			if col, ok := chk.columns[b.Type.ID()]; ok {
				view.B = columnData[B](col)
			}
			if col, ok := chk.columns[c.Type.ID()]; ok {
				view.C = columnData[C](col)
			}
			if col, ok := chk.columns[d.Type.ID()]; ok {
				view.D = columnData[D](col)
			}
			fn(view)
		}
	}
	return nil
}
