package consensus

import "fmt"

// DuplicateVoteError is returned when a voter casts a second vote in the same
// round. The first vote stands; the duplicate is ignored.
type DuplicateVoteError struct {
	EpochID int
	VoterID string
}

// Error ...
func (e DuplicateVoteError) Error() string {
	return fmt.Sprintf("epoch %d: duplicate vote from %s", e.EpochID, e.VoterID)
}

// IsDuplicateVote ...
func IsDuplicateVote(err error) bool {
	_, ok := err.(DuplicateVoteError)
	return ok
}

// RoundClosedError is returned for votes that arrive after the round's epoch
// closed, or for rounds that do not exist. The vote is discarded, not merged.
type RoundClosedError struct {
	EpochID int
}

// Error ...
func (e RoundClosedError) Error() string {
	return fmt.Sprintf("epoch %d: round is closed", e.EpochID)
}

// IsRoundClosed ...
func IsRoundClosed(err error) bool {
	_, ok := err.(RoundClosedError)
	return ok
}

// InvalidSignatureError is returned for votes whose signature does not verify
// against the voter's public key. The vote is dropped.
type InvalidSignatureError struct {
	VoterID string
}

// Error ...
func (e InvalidSignatureError) Error() string {
	return fmt.Sprintf("invalid signature from %s", e.VoterID)
}

// IsInvalidSignature ...
func IsInvalidSignature(err error) bool {
	_, ok := err.(InvalidSignatureError)
	return ok
}

// InvalidConfidenceError is returned for votes declaring a confidence
// outside [0, MaxConfidence]. NewSignedVote caps locally-created votes; this
// guards votes that arrive over the wire.
type InvalidConfidenceError struct {
	VoterID    string
	Confidence float64
}

// Error ...
func (e InvalidConfidenceError) Error() string {
	return fmt.Sprintf("invalid confidence %f from %s", e.Confidence, e.VoterID)
}

// IsInvalidConfidence ...
func IsInvalidConfidence(err error) bool {
	_, ok := err.(InvalidConfidenceError)
	return ok
}

// TargetMismatchError is returned for votes whose target root is not the
// round's candidate root. The vote is dropped, not counted for either root.
type TargetMismatchError struct {
	EpochID    int
	VoterID    string
	TargetRoot string
}

// Error ...
func (e TargetMismatchError) Error() string {
	return fmt.Sprintf("epoch %d: vote from %s targets foreign root %s", e.EpochID, e.VoterID, e.TargetRoot)
}

// IsTargetMismatch ...
func IsTargetMismatch(err error) bool {
	_, ok := err.(TargetMismatchError)
	return ok
}

// UnknownVoterError is returned for votes from identities outside the peer
// set.
type UnknownVoterError struct {
	VoterID string
}

// Error ...
func (e UnknownVoterError) Error() string {
	return fmt.Sprintf("unknown voter %s", e.VoterID)
}

// IsUnknownVoter ...
func IsUnknownVoter(err error) bool {
	_, ok := err.(UnknownVoterError)
	return ok
}
