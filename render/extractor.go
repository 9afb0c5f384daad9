package render

import (
	"sort"

	"github.com/duskwright/simcore"
)

// RowExtractFunc derives one row's RowResult from its four tracked
// components, along with whether the row should be drawn at all (both
// the row's own visibility and whatever other visibility component the
// caller's world also tracks).
type RowExtractFunc[A, B, C, D any] func(e simcore.Entity, a *A, b *B, c *C, d *D) (RowResult, bool)

type chunkCacheEntry struct {
	versions [4]uint64
	rowCount int
	draws    []DrawPacket
	views    []viewContribution
}

type viewContribution struct {
	viewID      uint32
	hasOverride bool
	clearColor  [4]float32
}

// Extractor tracks, per matching chunk, the component-version tuple of
// its last extraction, reusing the prior extraction's pending output
// verbatim when every tracked column's chunk version is unchanged.
type Extractor[A, B, C, D any] struct {
	a RowExtractArgs[A]
	b RowExtractArgs[B]
	c RowExtractArgs[C]
	d RowExtractArgs[D]

	rowFn RowExtractFunc[A, B, C, D]

	pool *persistentWorkerPool

	cache map[simcore.ChunkKey]chunkCacheEntry
	state State

	lastRebuiltChunkCount int
	lastReusedChunkCount  int
}

// RowExtractArgs is one of the extractor's four query arguments: every
// tracked component is read-only from the extractor's point of view since
// extraction runs after PostSim against a quiescent world.
type RowExtractArgs[T any] struct {
	Type     simcore.ComponentType[T]
	Excluded []simcore.Component
}

// NewExtractor builds an Extractor over the four tracked component types,
// gating its worker-striped pass with workerCount persistent workers.
func NewExtractor[A, B, C, D any](
	a simcore.ComponentType[A], b simcore.ComponentType[B], c simcore.ComponentType[C], d simcore.ComponentType[D],
	rowFn RowExtractFunc[A, B, C, D],
	workerCount int,
) *Extractor[A, B, C, D] {
	return &Extractor[A, B, C, D]{
		a:     RowExtractArgs[A]{Type: a},
		b:     RowExtractArgs[B]{Type: b},
		c:     RowExtractArgs[C]{Type: c},
		d:     RowExtractArgs[D]{Type: d},
		rowFn: rowFn,
		pool:  newPersistentWorkerPool(workerCount),
		cache: make(map[simcore.ChunkKey]chunkCacheEntry),
		state: StateCold,
	}
}

// Close tears down the extractor's persistent worker pool.
func (ex *Extractor[A, B, C, D]) Close() { ex.pool.Close() }

// State reports the extractor's current cache lifecycle state.
func (ex *Extractor[A, B, C, D]) State() State { return ex.state }

// LastRebuiltChunkCount and LastReusedChunkCount report the previous
// Build call's per-chunk cache hit/miss counts, for observability and
// tests.
func (ex *Extractor[A, B, C, D]) LastRebuiltChunkCount() int { return ex.lastRebuiltChunkCount }
func (ex *Extractor[A, B, C, D]) LastReusedChunkCount() int  { return ex.lastReusedChunkCount }

// Reset clears the extraction cache and returns the extractor to Cold,
// mirroring the state machine's "World.reset ... transitions back to
// Cold" clause for callers that reset the world out from under it.
func (ex *Extractor[A, B, C, D]) Reset() {
	ex.cache = make(map[simcore.ChunkKey]chunkCacheEntry)
	ex.state = StateCold
}

type chunkWork[A, B, C, D any] struct {
	view     simcore.ChunkView4[A, B, C, D]
	key      simcore.ChunkKey
	versions [4]uint64
}

type workerResult struct {
	rebuilt []struct {
		key   simcore.ChunkKey
		entry chunkCacheEntry
	}
	draws []DrawPacket
	views []viewContribution
}

// Build re-extracts only the chunks whose tracked column versions moved
// since the last call, reusing every other matching chunk's prior output
// verbatim, then merges the per-worker pending output into a single
// sorted FrameSnapshot.
func (ex *Extractor[A, B, C, D]) Build(w *simcore.World) (FrameSnapshot, error) {
	var chunks []chunkWork[A, B, C, D]
	err := simcore.EachChunk4(w, nil,
		simcore.Req(ex.a.Type, simcore.AccessConst),
		simcore.Req(ex.b.Type, simcore.AccessConst),
		simcore.Req(ex.c.Type, simcore.AccessConst),
		simcore.Req(ex.d.Type, simcore.AccessConst),
		func(v simcore.ChunkView4[A, B, C, D]) {
			// A chunk drained to zero rows by destroys no longer contributes
			// anything; leaving it out of the matched set lets detectChurn
			// treat its cached entry as signature churn.
			if len(v.Entities) == 0 {
				return
			}
			chunks = append(chunks, chunkWork[A, B, C, D]{view: v, key: v.Key(), versions: v.VersionTuple()})
		})
	if err != nil {
		return FrameSnapshot{}, err
	}

	ex.detectChurn(chunks)

	results := make([]workerResult, ex.pool.workerCount)
	ex.pool.run(func(worker int) {
		local := &results[worker]
		for i := worker; i < len(chunks); i += ex.pool.workerCount {
			ex.extractChunk(chunks[i], local)
		}
	})

	rebuilt, reused := 0, 0
	var pendingDraws []DrawPacket
	var pendingViews []viewContribution
	for _, res := range results {
		for _, r := range res.rebuilt {
			ex.cache[r.key] = r.entry
			rebuilt++
		}
		pendingDraws = append(pendingDraws, res.draws...)
		pendingViews = append(pendingViews, res.views...)
	}
	reused = len(chunks) - rebuilt
	ex.lastRebuiltChunkCount = rebuilt
	ex.lastReusedChunkCount = reused

	ex.advanceState(len(chunks), reused)

	snapshot := FrameSnapshot{RunTransferStage: true, RunComputeStage: true}
	snapshot.Views = mergeViews(pendingViews)
	snapshot.DrawPackets, snapshot.MaterialBatches = binMaterials(pendingDraws)
	return snapshot, nil
}

// detectChurn treats a cached chunk key that no longer appears among the
// currently matched chunks as archetype/signature churn and resets the
// cache to Cold, per the state machine's "signature churn" transition.
func (ex *Extractor[A, B, C, D]) detectChurn(chunks []chunkWork[A, B, C, D]) {
	if len(ex.cache) == 0 {
		return
	}
	current := make(map[simcore.ChunkKey]bool, len(chunks))
	for _, c := range chunks {
		current[c.key] = true
	}
	for key := range ex.cache {
		if !current[key] {
			ex.Reset()
			return
		}
	}
}

func (ex *Extractor[A, B, C, D]) advanceState(chunkCount, reused int) {
	switch ex.state {
	case StateCold:
		if chunkCount > 0 {
			ex.state = StateWarmingUp
		}
	default:
		if reused > 0 {
			ex.state = StateSteady
		}
	}
}

// extractChunk reuses a cached chunk's pending output verbatim when its
// version tuple is unchanged, otherwise re-walks the chunk's rows and
// records the fresh output for the main goroutine to fold back into the
// cache after the worker pass's barrier.
func (ex *Extractor[A, B, C, D]) extractChunk(cw chunkWork[A, B, C, D], out *workerResult) {
	// Structural row moves (swap-removes, appends) don't bump chunk
	// versions, so the row count guards against reusing a chunk whose
	// membership changed under an unchanged version tuple.
	if cached, ok := ex.cache[cw.key]; ok && cached.versions == cw.versions && cached.rowCount == len(cw.view.Entities) {
		out.draws = append(out.draws, cached.draws...)
		out.views = append(out.views, cached.views...)
		return
	}

	view := cw.view
	var draws []DrawPacket
	var views []viewContribution
	for row, e := range view.Entities {
		result, keep := ex.rowFn(e, &view.A[row], &view.B[row], &view.C[row], &view.D[row])
		if !keep {
			continue
		}
		draws = append(draws, DrawPacket{
			ViewID:        result.ViewID,
			MaterialID:    result.MaterialID,
			VertexCount:   result.VertexCount,
			FirstVertex:   result.FirstVertex,
			AngleRadians:  result.AngleRadians,
			WorldPosition: result.WorldPosition,
			WorldEntityID: e.Index,
		})
		views = append(views, viewContribution{
			viewID:      result.ViewID,
			hasOverride: result.OverrideClearColor,
			clearColor:  result.ClearColor,
		})
	}

	entry := chunkCacheEntry{versions: cw.versions, rowCount: len(view.Entities), draws: draws, views: views}
	out.rebuilt = append(out.rebuilt, struct {
		key   simcore.ChunkKey
		entry chunkCacheEntry
	}{key: cw.key, entry: entry})
	out.draws = append(out.draws, draws...)
	out.views = append(out.views, views...)
}

// mergeViews folds every contributing row's view into a map keyed by
// viewId: the last override wins, and a view with no override keeps the
// default clear color. The result is sorted ascending by viewId.
func mergeViews(contributions []viewContribution) []ViewPacket {
	byID := make(map[uint32]ViewPacket)
	for _, c := range contributions {
		if c.hasOverride {
			byID[c.viewID] = ViewPacket{ViewID: c.viewID, ClearColor: c.clearColor}
			continue
		}
		if _, ok := byID[c.viewID]; !ok {
			byID[c.viewID] = ViewPacket{ViewID: c.viewID, ClearColor: defaultClearColor}
		}
	}
	views := make([]ViewPacket, 0, len(byID))
	for _, v := range byID {
		views = append(views, v)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ViewID < views[j].ViewID })
	return views
}

// binMaterials stable-sorts draws by (materialId ascending, entity.id
// ascending) and emits the contiguous per-material batch runs over the
// sorted result.
func binMaterials(draws []DrawPacket) ([]DrawPacket, []MaterialBatch) {
	sort.SliceStable(draws, func(i, j int) bool {
		if draws[i].MaterialID != draws[j].MaterialID {
			return draws[i].MaterialID < draws[j].MaterialID
		}
		return draws[i].WorldEntityID < draws[j].WorldEntityID
	})

	var batches []MaterialBatch
	var current uint32
	hasCurrent := false
	firstIndex := uint32(0)
	for i, d := range draws {
		idx := uint32(i)
		if !hasCurrent {
			current = d.MaterialID
			hasCurrent = true
			firstIndex = idx
			continue
		}
		if d.MaterialID != current {
			batches = append(batches, MaterialBatch{MaterialID: current, FirstDrawPacket: firstIndex, DrawPacketCount: idx - firstIndex})
			current = d.MaterialID
			firstIndex = idx
		}
	}
	if hasCurrent {
		batches = append(batches, MaterialBatch{MaterialID: current, FirstDrawPacket: firstIndex, DrawPacketCount: uint32(len(draws)) - firstIndex})
	}
	return draws, batches
}
