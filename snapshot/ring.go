// Package snapshot implements a fixed-size single-producer/single-consumer
// staged snapshot ring: the reader always observes the previously
// published slot rather than the newest one, so a reader mid-read is
// never racing the writer that just published. The package carries no
// dependency on the simulation world: it hands off any payload type T.
package snapshot

import (
	"fmt"
	"sync"

	"github.com/TheBitDrifter/bark"
	"go.uber.org/zap"
)

// category mirrors the short machine-readable error prefix convention used
// across the rest of the module's error types.
const category = "ring_reset"

// RingResetError is returned to a producer or consumer that was blocked
// inside the ring when Reset released all waiters. Defined locally (not
// reused from the core package) since this package must not import it.
type RingResetError struct{}

func (e RingResetError) Error() string {
	return fmt.Sprintf("%s: ring was reset while waiting", category)
}

type slotState uint8

const (
	slotFree slotState = iota
	slotWriting
	slotPublished
	slotReading
)

type slotMeta struct {
	writeEpoch uint64
	readEpoch  uint64
	state      slotState
}

// WriteTicket identifies the slot a producer staged a payload into via
// BeginWrite, to be handed back to Publish.
type WriteTicket struct {
	slotIndex  int
	writeEpoch uint64
}

// ReadTicket identifies the slot a consumer staged a read from via
// BeginReadStaged, to be handed back to EndRead.
type ReadTicket struct {
	slotIndex int
	readEpoch uint64
}

func (t ReadTicket) ReadEpoch() uint64 { return t.readEpoch }

// Ring is a fixed N-slot staged snapshot ring. Exactly one goroutine may
// call BeginWrite/Publish, and exactly one goroutine may call
// BeginReadStaged/EndRead, concurrently with the writer.
type Ring[T any] struct {
	mu   sync.Mutex
	cond *sync.Cond

	logger *zap.Logger

	slots []T
	meta  []slotMeta

	publishedEpoch    uint64
	previousPublished int
	published         int
	nextWriteSlot     int

	resetGeneration uint64
}

// New builds a Ring with slotCount slots, slotCount >= 2, each payload
// zero-valued until a producer writes into it.
func New[T any](slotCount int) *Ring[T] {
	if slotCount < 2 {
		slotCount = 2
	}
	r := &Ring[T]{
		logger:            zap.NewNop(),
		slots:             make([]T, slotCount),
		meta:              make([]slotMeta, slotCount),
		previousPublished: -1,
		published:         -1,
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// WithLogger swaps in a configured zap logger for slot-lifecycle
// diagnostics.
func (r *Ring[T]) WithLogger(logger *zap.Logger) *Ring[T] {
	r.logger = logger
	return r
}

// BeginWrite claims the next Free slot in round-robin order, blocking
// until one is free if every slot is currently Writing, Published, or
// Reading. Returns RingResetError if Reset released this call's wait.
func (r *Ring[T]) BeginWrite() (WriteTicket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	startGen := r.resetGeneration
	for {
		for attempt := 0; attempt < len(r.slots); attempt++ {
			slot := r.nextWriteSlot
			r.nextWriteSlot = (r.nextWriteSlot + 1) % len(r.slots)

			m := &r.meta[slot]
			if m.state == slotFree {
				m.state = slotWriting
				m.writeEpoch = r.publishedEpoch + 1
				return WriteTicket{slotIndex: slot, writeEpoch: m.writeEpoch}, nil
			}
		}

		r.cond.Wait()
		if r.resetGeneration != startGen {
			return WriteTicket{}, bark.AddTrace(RingResetError{})
		}
	}
}

// Payload returns a pointer to ticket's staged slot, for the producer to
// populate before Publish.
func (r *Ring[T]) Payload(ticket WriteTicket) *T {
	return &r.slots[ticket.slotIndex]
}

// Publish marks ticket's slot Published and advances the ring's published
// pointer. The slot that was published just before this one becomes the
// staged slot for readers; the slot that was staged before that is freed
// unless a reader still holds it. Waiters are woken on every publish.
func (r *Ring[T]) Publish(ticket WriteTicket) {
	r.mu.Lock()
	defer r.mu.Unlock()

	written := &r.meta[ticket.slotIndex]
	written.state = slotPublished
	written.writeEpoch = ticket.writeEpoch

	previousCurrent := r.published
	r.published = ticket.slotIndex
	stalePrevious := r.previousPublished
	r.previousPublished = previousCurrent
	r.publishedEpoch = ticket.writeEpoch

	if stalePrevious >= 0 && stalePrevious != previousCurrent {
		stale := &r.meta[stalePrevious]
		if stale.state == slotPublished {
			stale.state = slotFree
		}
	}

	r.logger.Debug("snapshot ring publish",
		zap.Int("slot", ticket.slotIndex),
		zap.Uint64("write_epoch", ticket.writeEpoch))
	r.cond.Broadcast()
}

// BeginReadStaged stages a read from the previously published slot (not
// the newest one): releasing slot N to readers happens only once slot
// N+1 is published. Returns ok=false if no slot is currently staged for
// reading.
func (r *Ring[T]) BeginReadStaged() (ticket ReadTicket, payload *T, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	readSlot := r.previousPublished
	if readSlot < 0 {
		return ReadTicket{}, nil, false
	}
	m := &r.meta[readSlot]
	if m.state != slotPublished {
		return ReadTicket{}, nil, false
	}
	m.state = slotReading
	m.readEpoch = m.writeEpoch
	return ReadTicket{slotIndex: readSlot, readEpoch: m.readEpoch}, &r.slots[readSlot], true
}

// EndRead releases ticket's slot back to Free, waking any producer blocked
// waiting for a free slot.
func (r *Ring[T]) EndRead(ticket ReadTicket) {
	r.mu.Lock()
	r.meta[ticket.slotIndex].state = slotFree
	r.cond.Broadcast()
	r.mu.Unlock()
}

// Reset frees every slot, rewinds epochs and pointers to cold-start
// values, and wakes every waiter blocked in BeginWrite so they return
// RingResetError. Reset is the only defined way to interrupt a producer
// blocked waiting for a free slot.
func (r *Ring[T]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.meta {
		r.meta[i] = slotMeta{}
	}
	r.publishedEpoch = 0
	r.previousPublished = -1
	r.published = -1
	r.nextWriteSlot = 0
	r.resetGeneration++
	r.cond.Broadcast()
}
