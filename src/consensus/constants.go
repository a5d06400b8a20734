package consensus

/*
Golden-ratio protocol constants.

These are fixed 6-decimal literals, not values recomputed from math.Sqrt at
runtime: consensus requires every node to carry bit-identical constants, and
a literal is the only representation that guarantees it. MaxConfidence and
DoubtFloor sum to exactly 1.000000 in decimal.

All threshold arithmetic happens in integer micro-units (1e-6) so that the
finalize/reject decision and the reported confidence and doubt are exact,
with no dependence on the rounding of accumulated float products.
*/
const (
	// MaxConfidence is the confidence ceiling (φ⁻¹ at protocol precision).
	// No vote may declare more, no finalized round may report more.
	MaxConfidence = 0.618034

	// DoubtFloor is the minimum doubt a finalized round must still report
	// (φ⁻² at protocol precision), regardless of how much evidence
	// accumulated.
	DoubtFloor = 0.381966

	microUnit = 1e6

	maxConfidenceMicros = 618034
	doubtFloorMicros    = 381966
)
