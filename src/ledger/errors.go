package ledger

import "fmt"

// ChainErrType ...
type ChainErrType uint32

const (
	// StaleTail signals a compare-and-swap failure: the supplied tail hash no
	// longer matches the chain's recorded last hash. Callers retry.
	StaleTail ChainErrType = iota
	// BrokenLink signals a prevHash that does not match the preceding block.
	BrokenLink
	// HashMismatch signals a block whose recorded hash does not match its
	// recomputed hash.
	HashMismatch
	// BadSignature signals a block whose signature does not verify.
	BadSignature
	// BadTimestamp signals a non-monotonic timestamp sequence.
	BadTimestamp
	// InvalidPayload signals a payload vector of the wrong length.
	InvalidPayload
	// NoGenesis signals a first block whose prevHash is not the genesis
	// sentinel.
	NoGenesis
)

// ChainIntegrityError is the typed error for all chain violations. Integrity
// violations are reported, never silently repaired; a StaleTail is the one
// variant that is normal under concurrent appends and simply retried.
type ChainIntegrityError struct {
	AuthorID string
	Index    int
	errType  ChainErrType
}

// NewChainIntegrityError ...
func NewChainIntegrityError(authorID string, index int, errType ChainErrType) ChainIntegrityError {
	return ChainIntegrityError{
		AuthorID: authorID,
		Index:    index,
		errType:  errType,
	}
}

// Error implements the error interface.
func (e ChainIntegrityError) Error() string {
	m := ""
	switch e.errType {
	case StaleTail:
		m = "Stale Tail"
	case BrokenLink:
		m = "Broken Link"
	case HashMismatch:
		m = "Hash Mismatch"
	case BadSignature:
		m = "Bad Signature"
	case BadTimestamp:
		m = "Bad Timestamp"
	case InvalidPayload:
		m = "Invalid Payload"
	case NoGenesis:
		m = "No Genesis"
	}

	return fmt.Sprintf("chain %s, block %d, %s", e.AuthorID, e.Index, m)
}

// IsChainIntegrity checks that an error is a ChainIntegrityError with the
// given code.
func IsChainIntegrity(err error, t ChainErrType) bool {
	chainErr, ok := err.(ChainIntegrityError)
	return ok && chainErr.errType == t
}
