package simcore

import "runtime"

// Config holds the tunables a World is built with.
type Config struct {
	// ChunkCapacity is the fixed row capacity K of every archetype chunk.
	ChunkCapacity int

	// MaxWorkerThreads bounds how many goroutines the scheduler stripes a
	// batch's systems across. The render extractor does not read it; its
	// worker count is passed to render.NewExtractor directly.
	MaxWorkerThreads int

	// DebugAccessChecks enables the scheduler's debug validation: a query
	// call that touches a component outside a system's declared
	// reads/writes raises AccessViolation. ColdSparse access bypasses the
	// check by design.
	DebugAccessChecks bool
}

// DefaultConfig returns the configuration used when none is supplied:
// 128-row chunks (chosen for cache residency), one worker per logical CPU,
// and debug access checks off.
func DefaultConfig() Config {
	return Config{
		ChunkCapacity:     128,
		MaxWorkerThreads:  runtime.NumCPU(),
		DebugAccessChecks: false,
	}
}
