package consensus

import "math"

// RoundStatus is the state of a consensus round. Open transitions exactly
// once, to Finalized or Rejected; both are terminal.
type RoundStatus uint32

const (
	// Open ...
	Open RoundStatus = iota
	// Finalized ...
	Finalized
	// Rejected ...
	Rejected
)

// String ...
func (s RoundStatus) String() string {
	switch s {
	case Open:
		return "Open"
	case Finalized:
		return "Finalized"
	case Rejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// Round is one epoch's voting round over a candidate batch root. Votes are a
// set keyed by voter identity; duplicates are rejected, not merged. The
// engine serializes all access.
type Round struct {
	EpochID       int
	CandidateRoot string
	Votes         map[string]*Vote

	// outcome, populated by seal
	Status             RoundStatus
	WeightedConfidence float64
	MinDoubt           float64

	weightedSum float64
	totalWeight float64
}

// NewRound opens a round for a candidate root with the given total eligible
// weight.
func NewRound(epochID int, candidateRoot string, totalWeight float64) *Round {
	return &Round{
		EpochID:       epochID,
		CandidateRoot: candidateRoot,
		Votes:         make(map[string]*Vote),
		Status:        Open,
		totalWeight:   totalWeight,
	}
}

// addVote records a vote and accumulates confidence × weight. Caller has
// already verified the signature and debited the voter's budget.
func (r *Round) addVote(vote *Vote, weight float64) error {
	if r.Status != Open {
		return RoundClosedError{EpochID: r.EpochID}
	}

	if _, ok := r.Votes[vote.VoterID()]; ok {
		return DuplicateVoteError{EpochID: r.EpochID, VoterID: vote.VoterID()}
	}

	r.Votes[vote.VoterID()] = vote
	r.weightedSum += vote.Confidence() * weight

	return nil
}

// CurrentConfidence is the weight-normalized confidence accumulated so far.
// For a sealed round it is the sealed outcome; for an open round it is the
// running value, used when announcing the round's batch to peers.
func (r *Round) CurrentConfidence() float64 {
	if r.Status != Open {
		return r.WeightedConfidence
	}
	if r.totalWeight == 0 {
		return 0
	}
	return r.weightedSum / r.totalWeight
}

// seal closes the round at epoch close. The weight-normalized confidence is
// converted to integer micro-units before the threshold comparison, so the
// decision and the reported values are exact. A finalized round's confidence
// is clamped to MaxConfidence and its doubt floored at DoubtFloor.
func (r *Round) seal() {
	if r.Status != Open {
		return
	}

	micros := int64(0)
	if r.totalWeight > 0 {
		micros = int64(math.Round(r.weightedSum / r.totalWeight * microUnit))
	}

	if micros >= maxConfidenceMicros {
		r.Status = Finalized
		micros = maxConfidenceMicros
	} else {
		r.Status = Rejected
	}

	doubtMicros := int64(microUnit) - micros
	if doubtMicros < doubtFloorMicros {
		doubtMicros = doubtFloorMicros
	}

	r.WeightedConfidence = float64(micros) / microUnit
	r.MinDoubt = float64(doubtMicros) / microUnit
}
