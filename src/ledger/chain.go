package ledger

import (
	"crypto/ecdsa"
	"sync"
	"time"
)

// Chain is the ordered sequence of judgment blocks belonging to one author
// identity. Appends are serialized through a compare-and-swap on the tail
// hash; everything else is read-only.
type Chain struct {
	mtx sync.Mutex

	authorID string
	blocks   []*JudgmentBlock
	tail     string
}

// NewChain creates an empty chain for the given author. The first append
// creates the genesis block with the sentinel prevHash.
func NewChain(authorID string) *Chain {
	return &Chain{
		authorID: authorID,
		tail:     GenesisPrevHash,
	}
}

// NewChainFromBlocks rebuilds a chain from a stored block sequence. The
// sequence is verified before the chain is returned.
func NewChainFromBlocks(authorID string, blocks []*JudgmentBlock) (*Chain, error) {
	c := &Chain{
		authorID: authorID,
		blocks:   blocks,
		tail:     GenesisPrevHash,
	}

	if len(blocks) > 0 {
		tail, err := blocks[len(blocks)-1].Hash()
		if err != nil {
			return nil, err
		}
		c.tail = tail
	}

	if err := c.Verify(); err != nil {
		return nil, err
	}

	return c, nil
}

// AuthorID ...
func (c *Chain) AuthorID() string {
	return c.authorID
}

// Tail returns the chain's recorded last hash, or the genesis sentinel for an
// empty chain. Appenders read it, build a block on it, and swap it.
func (c *Chain) Tail() string {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.tail
}

// Len ...
func (c *Chain) Len() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return len(c.blocks)
}

// Blocks returns a copy of the block slice.
func (c *Chain) Blocks() []*JudgmentBlock {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	res := make([]*JudgmentBlock, len(c.blocks))
	copy(res, c.blocks)
	return res
}

// Last returns the tail block, or nil for an empty chain.
func (c *Chain) Last() *JudgmentBlock {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if len(c.blocks) == 0 {
		return nil
	}
	return c.blocks[len(c.blocks)-1]
}

// AppendOn builds, signs and appends a new block on the supplied tail hash.
// If the tail no longer matches the chain's recorded last hash, it fails with
// a StaleTail ChainIntegrityError and the caller retries on a fresh tail.
func (c *Chain) AppendOn(expectedTail string, payload []float64, privKey *ecdsa.PrivateKey) (*JudgmentBlock, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if expectedTail != c.tail {
		return nil, NewChainIntegrityError(c.authorID, len(c.blocks), StaleTail)
	}

	timestamp := time.Now().UnixNano()
	if last := len(c.blocks); last > 0 && timestamp <= c.blocks[last-1].Timestamp() {
		timestamp = c.blocks[last-1].Timestamp() + 1
	}

	block, err := NewJudgmentBlock(len(c.blocks), c.tail, timestamp, c.authorID, payload)
	if err != nil {
		return nil, err
	}

	if err := block.Sign(privKey); err != nil {
		return nil, err
	}

	hash, err := block.Hash()
	if err != nil {
		return nil, err
	}

	c.blocks = append(c.blocks, block)
	c.tail = hash

	return block, nil
}

// Append is the retrying convenience around AppendOn.
func (c *Chain) Append(payload []float64, privKey *ecdsa.PrivateKey) (*JudgmentBlock, error) {
	for {
		block, err := c.AppendOn(c.Tail(), payload, privKey)
		if IsChainIntegrity(err, StaleTail) {
			continue
		}
		return block, err
	}
}

// AppendBlock appends a block received from a peer. The block must link to
// the current tail, carry its claimed hash, and verify against its author's
// key. Nothing is ever repaired here; a bad block is rejected with a typed
// error.
func (c *Chain) AppendBlock(block *JudgmentBlock) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if block.PrevHash != c.tail {
		return NewChainIntegrityError(c.authorID, block.Index(), StaleTail)
	}

	if block.Index() != len(c.blocks) {
		return NewChainIntegrityError(c.authorID, block.Index(), BrokenLink)
	}

	if len(c.blocks) > 0 && block.Timestamp() < c.blocks[len(c.blocks)-1].Timestamp() {
		return NewChainIntegrityError(c.authorID, block.Index(), BadTimestamp)
	}

	if len(block.Payload()) != PayloadLen {
		return NewChainIntegrityError(c.authorID, block.Index(), InvalidPayload)
	}

	ok, err := block.Verify()
	if err != nil {
		return err
	}
	if !ok {
		return NewChainIntegrityError(c.authorID, block.Index(), BadSignature)
	}

	hash, err := block.Hash()
	if err != nil {
		return err
	}

	c.blocks = append(c.blocks, block)
	c.tail = hash

	return nil
}

// Verify recomputes every hash and prevHash link from scratch and checks that
// timestamps never decrease. Any mismatch is reported as a fatal
// ChainIntegrityError for this chain view; it is never silently repaired.
func (c *Chain) Verify() error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	prevHash := GenesisPrevHash
	prevTimestamp := int64(0)

	for i, block := range c.blocks {
		if i == 0 && block.PrevHash != GenesisPrevHash {
			return NewChainIntegrityError(c.authorID, i, NoGenesis)
		}

		if block.PrevHash != prevHash {
			return NewChainIntegrityError(c.authorID, i, BrokenLink)
		}

		if block.Timestamp() < prevTimestamp {
			return NewChainIntegrityError(c.authorID, i, BadTimestamp)
		}

		// Recompute the hash on a shallow copy to bypass the block's
		// memoized value.
		recomputed := &JudgmentBlock{Body: block.Body, PrevHash: block.PrevHash}
		recomputedHash, err := recomputed.Hash()
		if err != nil {
			return err
		}

		recordedHash, err := block.Hash()
		if err != nil {
			return err
		}

		if recomputedHash != recordedHash {
			return NewChainIntegrityError(c.authorID, i, HashMismatch)
		}

		ok, err := recomputed.VerifySignature(block.Signature)
		if err != nil {
			return err
		}
		if !ok {
			return NewChainIntegrityError(c.authorID, i, BadSignature)
		}

		prevHash = recomputedHash
		prevTimestamp = block.Timestamp()
	}

	return nil
}
