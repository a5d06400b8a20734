package ledger

import "github.com/veridict/veridict/src/merkle"

// Store is the persistence collaborator. The core treats implementations as
// durable, idempotent on identical input, and failing closed: an append
// failure is surfaced, never treated as success.
type Store interface {
	// CacheSize retrieves the cacheSize setting that determines the maximum
	// number of items that caches can contain.
	CacheSize() int
	// AppendBlock durably appends a block to a chain. The block must link the
	// chain's stored tail; re-appending the identical tail block is a no-op.
	AppendBlock(chainID string, block *JudgmentBlock) error
	// Chain returns the ordered block sequence of a chain.
	Chain(chainID string) ([]*JudgmentBlock, error)
	// LastBlock returns a chain's tail block.
	LastBlock(chainID string) (*JudgmentBlock, error)
	// GetBlock returns a block by its hash.
	GetBlock(hash string) (*JudgmentBlock, error)
	// KnownChains lists the chain IDs with at least one stored block.
	KnownChains() []string
	// StoreBatch stores an epoch's sealed merkle batch.
	StoreBatch(batch *merkle.Batch) error
	// ReplaceBatch overwrites an epoch's batch after a fork resolved against
	// the stored side.
	ReplaceBatch(batch *merkle.Batch) error
	// GetBatch retrieves the batch of an epoch.
	GetBatch(epochID int) (*merkle.Batch, error)
	// LastEpoch returns the highest epoch with a stored batch, or -1.
	LastEpoch() int
	// Close closes the underlying database.
	Close() error
	// StorePath returns the filepath of the underlying database.
	StorePath() string
}
