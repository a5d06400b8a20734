// Package consensus collects votes on epoch batch roots and finalizes or
// rejects them under a hard confidence ceiling.
//
// The protocol deliberately never certifies full certainty. A vote's declared
// confidence is capped at the golden-ratio ceiling, a round finalizes only
// when the weight-normalized sum reaches that same ceiling, and every
// finalized round reports an explicit minimum doubt that is floored at the
// square of the ceiling. Even a unanimous network voting confidence 1.0
// finalizes at 0.618034 confidence and 0.381966 acknowledged doubt.
package consensus
