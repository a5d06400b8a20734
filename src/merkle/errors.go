package merkle

import "fmt"

// LeafNotFoundError is returned by Prove when the requested leaf is not part
// of the batch. It is a recoverable condition meaning "not included", never a
// crash.
type LeafNotFoundError struct {
	EpochID  int
	LeafHash string
}

// NewLeafNotFoundError ...
func NewLeafNotFoundError(epochID int, leafHash string) LeafNotFoundError {
	return LeafNotFoundError{
		EpochID:  epochID,
		LeafHash: leafHash,
	}
}

// Error implements the error interface.
func (e LeafNotFoundError) Error() string {
	return fmt.Sprintf("epoch %d, leaf %s, Not Found", e.EpochID, e.LeafHash)
}

// IsLeafNotFound checks that an error is a LeafNotFoundError.
func IsLeafNotFound(err error) bool {
	_, ok := err.(LeafNotFoundError)
	return ok
}
