// Package score reduces an opaque judgment vector into a bounded scalar
// confidence.
//
// The reduction is the one pluggable seam between the consensus core and
// whatever scoring semantics produced the vector: the core only requires a
// deterministic Reducer. Outputs are clamped to [0,1] and truncated, not
// rounded, to 6 decimal digits so that every implementation reports
// bit-identical scalars for the same vector.
package score

import (
	"fmt"
	"math"
)

// Precision is the number of decimal digits retained by Truncate.
const Precision = 6

const truncUnit = 1e6

// Reducer turns a fixed-length judgment vector into a confidence scalar in
// [0,1]. Implementations must be pure: same vector, same scalar.
type Reducer interface {
	Reduce(vector []float64) (float64, error)
}

// WeightedReducer reduces by normalized weighted sum. The zero value is not
// usable; construct with NewWeightedReducer or NewUniformReducer.
type WeightedReducer struct {
	weights []float64
	total   float64
}

// NewWeightedReducer builds a reducer with one weight per vector dimension.
// Weights must be non-negative and not all zero.
func NewWeightedReducer(weights []float64) (*WeightedReducer, error) {
	total := 0.0
	for i, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("negative weight %f at dimension %d", w, i)
		}
		total += w
	}
	if total == 0 {
		return nil, fmt.Errorf("weights sum to zero")
	}

	return &WeightedReducer{
		weights: weights,
		total:   total,
	}, nil
}

// NewUniformReducer builds an equal-weight reducer for vectors of the given
// dimension.
func NewUniformReducer(dim int) *WeightedReducer {
	weights := make([]float64, dim)
	for i := range weights {
		weights[i] = 1
	}
	r, _ := NewWeightedReducer(weights)
	return r
}

// Reduce implements Reducer. Vector elements are individually clamped to
// [0,1] before weighting, so a hostile vector cannot push the scalar out of
// bounds.
func (r *WeightedReducer) Reduce(vector []float64) (float64, error) {
	if len(vector) != len(r.weights) {
		return 0, fmt.Errorf("vector has %d dimensions, reducer expects %d", len(vector), len(r.weights))
	}

	sum := 0.0
	for i, v := range vector {
		sum += clamp01(v) * r.weights[i]
	}

	return Truncate(clamp01(sum / r.total)), nil
}

// Truncate drops everything beyond 6 decimal digits. Truncation, not
// rounding: rounding direction varies across float environments, truncation
// does not. The 1e-9 guard absorbs binary representation error so that a
// value entered as an exact 6-decimal literal truncates to itself; it is a
// fixed constant, identical on every node.
func Truncate(v float64) float64 {
	return math.Floor(v*truncUnit+1e-9) / truncUnit
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
