package common

import "fmt"

// StoreErrType ...
type StoreErrType uint32

const (
	// KeyNotFound ...
	KeyNotFound StoreErrType = iota
	// TooLate ...
	TooLate
	// KeyAlreadyExists ...
	KeyAlreadyExists
	// UnknownAuthor ...
	UnknownAuthor
	// Empty ...
	Empty
	// NoBatch ...
	NoBatch
	// NoRound ...
	NoRound
)

// StoreErr is a typed error raised by block, batch and round stores.
type StoreErr struct {
	dataType string
	errType  StoreErrType
	key      string
}

// NewStoreErr ...
func NewStoreErr(dataType string, errType StoreErrType, key string) StoreErr {
	return StoreErr{
		dataType: dataType,
		errType:  errType,
		key:      key,
	}
}

// Error ...
func (e StoreErr) Error() string {
	m := ""
	switch e.errType {
	case KeyNotFound:
		m = "Not Found"
	case TooLate:
		m = "Too Late"
	case KeyAlreadyExists:
		m = "Key Already Exists"
	case UnknownAuthor:
		m = "Unknown Author"
	case Empty:
		m = "Empty"
	case NoBatch:
		m = "No Batch"
	case NoRound:
		m = "No Round"
	}

	return fmt.Sprintf("%s, %s, %s", e.dataType, e.key, m)
}

// IsStore checks that an error is of type StoreErr and that its code matches
// the provided StoreErr code.
func IsStore(err error, t StoreErrType) bool {
	storeErr, ok := err.(StoreErr)
	return ok && storeErr.errType == t
}
