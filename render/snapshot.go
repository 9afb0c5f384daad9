// Package render extracts per-chunk change-tracked draw data from a
// simcore.World into a renderer-consumable FrameSnapshot: a re-extraction
// happens only for chunks whose tracked component versions moved since
// the last build, and the result is grouped into stable material batches.
package render

// ViewPacket is one view's clear-color state for this frame.
type ViewPacket struct {
	ViewID     uint32
	ClearColor [4]float32
}

// MaterialBatch names a contiguous run of DrawPackets sharing one
// material, in the snapshot's final draw order.
type MaterialBatch struct {
	MaterialID      uint32
	FirstDrawPacket uint32
	DrawPacketCount uint32
}

// DrawPacket is one entity's extracted draw call input.
type DrawPacket struct {
	ViewID        uint32
	MaterialID    uint32
	VertexCount   uint32
	FirstVertex   uint32
	AngleRadians  float32
	WorldPosition [3]float32
	WorldEntityID uint32
}

// FrameSnapshot is the immutable render-extraction output handed to the
// snapshot ring: views sorted by viewId, draws grouped by material and
// stable-sorted by (materialId, entity.id).
type FrameSnapshot struct {
	Views            []ViewPacket
	MaterialBatches  []MaterialBatch
	DrawPackets      []DrawPacket
	RunTransferStage bool
	RunComputeStage  bool
}

// State is the extractor's cache lifecycle: Cold before any extraction or
// after a signature churn / explicit Reset, WarmingUp once the cache has
// been populated at least once, Steady once an extraction has actually
// served a reused chunk.
type State uint8

const (
	StateCold State = iota
	StateWarmingUp
	StateSteady
)

func (s State) String() string {
	switch s {
	case StateCold:
		return "cold"
	case StateWarmingUp:
		return "warming_up"
	case StateSteady:
		return "steady"
	default:
		return "unknown"
	}
}

// RowResult is what a caller's row-extraction function derives from one
// matching row's four tracked components. Transform composition math
// (angle derivation, world position) is illustrative, not normative: the
// extractor only uses whatever RowResult the caller computed from it.
type RowResult struct {
	ViewID             uint32
	MaterialID         uint32
	VertexCount        uint32
	FirstVertex        uint32
	AngleRadians       float32
	WorldPosition      [3]float32
	OverrideClearColor bool
	ClearColor         [4]float32
}

// defaultClearColor matches the original scene's default view, used when
// no contributing row overrides it.
var defaultClearColor = [4]float32{0.02, 0.02, 0.08, 1.0}
