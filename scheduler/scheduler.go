// Package scheduler runs registered systems against a simcore.World in
// fixed phase order, partitioning each phase into conflict-free batches
// and striping a batch's systems across a bounded worker pool.
package scheduler

import (
	"context"
	"fmt"

	"github.com/TheBitDrifter/bark"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/duskwright/simcore"
)

// Phase is the coarse scheduling phase a system runs in. Phases execute
// in fixed order with a synchronous barrier between them.
type Phase uint8

const (
	PhasePreSim Phase = iota
	PhaseSim
	PhasePostSim
)

func (p Phase) String() string {
	switch p {
	case PhasePreSim:
		return "pre_sim"
	case PhaseSim:
		return "sim"
	case PhasePostSim:
		return "post_sim"
	default:
		return "unknown"
	}
}

// FrameContext is the per-frame timing data handed to every system.
type FrameContext struct {
	DeltaSeconds float64
	FrameIndex   uint64
}

// SystemFunc is the body of a registered system: it reads/writes live
// columns directly (within its declared access) and buffers any
// structural change into cb rather than mutating the world's archetypes
// in place.
type SystemFunc func(w *simcore.World, cb *simcore.CommandBuffer, frame FrameContext) error

type registeredSystem struct {
	decl  simcore.AccessDeclaration
	phase Phase
	fn    SystemFunc
}

// Scheduler owns one world's registered systems and runs them frame by
// frame, merging each batch's per-system command buffers at the barrier
// before the next batch begins.
type Scheduler struct {
	world  *simcore.World
	logger *zap.Logger

	systems []registeredSystem
}

// NewScheduler builds a Scheduler bound to world, using world's own
// MaxWorkerThreads and DebugAccessChecks config.
func NewScheduler(world *simcore.World) *Scheduler {
	return &Scheduler{world: world, logger: zap.NewNop()}
}

// WithLogger swaps in a configured zap logger for batch/phase
// diagnostics, never used on the hot per-row iteration path.
func (s *Scheduler) WithLogger(logger *zap.Logger) *Scheduler {
	s.logger = logger
	return s
}

// AddSystem registers fn to run in phase with the declared read/write
// access sets used both by the batch-partitioning conflict predicate and
// by debug access validation.
func (s *Scheduler) AddSystem(name string, phase Phase, reads, writes []simcore.ComponentID, structuralWrites bool, fn SystemFunc) {
	s.systems = append(s.systems, registeredSystem{
		decl: simcore.AccessDeclaration{
			Name:             name,
			Reads:            reads,
			Writes:           writes,
			StructuralWrites: structuralWrites,
		},
		phase: phase,
		fn:    fn,
	})
}

// buildBatches partitions the systems registered for phase into
// independent batches by greedy first-fit, deterministic in registration
// order: each system joins the first existing batch none of whose
// members conflict with it, else starts a new batch.
func buildBatches(systems []registeredSystem, phase Phase) [][]int {
	var indices []int
	for i, sy := range systems {
		if sy.phase == phase {
			indices = append(indices, i)
		}
	}

	var batches [][]int
	for _, i := range indices {
		placed := false
		for bi, batch := range batches {
			conflict := false
			for _, j := range batch {
				if simcore.Conflicts(systems[i].decl, systems[j].decl) {
					conflict = true
					break
				}
			}
			if !conflict {
				batches[bi] = append(batch, i)
				placed = true
				break
			}
		}
		if !placed {
			batches = append(batches, []int{i})
		}
	}
	return batches
}

// RunFrame executes every registered system once, in PreSim -> Sim ->
// PostSim order. Within a phase, batches run sequentially; within a
// batch, systems run concurrently across at most
// min(MaxWorkerThreads, batch size) workers, striped round-robin with no
// work-stealing. PostSim-phase structural commands are flushed at every
// batch barrier; EndFrame-phase commands (deferred destroys) accumulate
// across the whole frame and flush once, after PostSim's last batch.
//
// An erroring system aborts its batch, propagates out of RunFrame
// immediately, and leaves no further batches in that phase (or later
// phases) executed, matching the no-swallowed-errors propagation policy.
func (s *Scheduler) RunFrame(ctx context.Context, frame FrameContext) error {
	frameBuffer := simcore.NewCommandBuffer()

	for _, phase := range []Phase{PhasePreSim, PhaseSim, PhasePostSim} {
		batches := buildBatches(s.systems, phase)
		s.logger.Debug("scheduler phase start",
			zap.String("phase", phase.String()),
			zap.Int("batch_count", len(batches)),
			zap.Uint64("frame", frame.FrameIndex))

		for batchIdx, batch := range batches {
			buffers := make([]*simcore.CommandBuffer, len(batch))

			s.world.Lock()
			err := s.runBatch(ctx, batch, buffers, frame)
			s.world.Unlock()
			if err != nil {
				return bark.AddTrace(err)
			}

			merged := simcore.NewCommandBuffer()
			for _, cb := range buffers {
				merged.Merge(cb)
			}
			if err := merged.Playback(s.world, simcore.PhasePostSim); err != nil {
				return bark.AddTrace(err)
			}
			s.world.EndWriteScope()
			frameBuffer.Merge(merged)

			s.logger.Debug("scheduler batch done",
				zap.String("phase", phase.String()),
				zap.Int("batch_index", batchIdx),
				zap.Int("batch_size", len(batch)))
		}
	}

	if err := frameBuffer.Playback(s.world, simcore.PhaseEndFrame); err != nil {
		return bark.AddTrace(err)
	}
	s.world.EndWriteScope()
	return nil
}

// runBatch stripes batch's systems across min(MaxWorkerThreads,
// len(batch)) persistent-for-this-call workers, each processing indices
// worker, worker+workers, worker+2*workers, ... When debug access checks
// are enabled, the batch runs on a single worker: InstallAccessContext
// installs one active context on the shared world, so running more than
// one system concurrently against it would race the very check it's
// trying to perform.
func (s *Scheduler) runBatch(ctx context.Context, batch []int, buffers []*simcore.CommandBuffer, frame FrameContext) error {
	workers := s.world.Config().MaxWorkerThreads
	if workers > len(batch) {
		workers = len(batch)
	}
	if workers < 1 {
		workers = 1
	}
	if s.world.Config().DebugAccessChecks {
		workers = 1
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for worker := 0; worker < workers; worker++ {
		worker := worker
		eg.Go(func() error {
			for i := worker; i < len(batch); i += workers {
				select {
				case <-egCtx.Done():
					return egCtx.Err()
				default:
				}

				sys := s.systems[batch[i]]
				buffers[i] = simcore.NewCommandBuffer()

				s.world.InstallAccessContext(sys.decl)
				err := sys.fn(s.world, buffers[i], frame)
				s.world.ClearAccessContext()
				if err != nil {
					return fmt.Errorf("system %q: %w", sys.decl.Name, err)
				}
			}
			return nil
		})
	}
	return eg.Wait()
}
