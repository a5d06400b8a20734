package ledger

import (
	"sort"
	"strconv"
	"sync"

	cm "github.com/veridict/veridict/src/common"
	"github.com/veridict/veridict/src/merkle"
)

// InmemStore implements the Store interface in memory. Chains are kept whole;
// the hash-indexed block lookup goes through an LRU so that gossip
// deduplication lookups stay bounded.
type InmemStore struct {
	mtx sync.RWMutex

	cacheSize  int
	chains     map[string][]*JudgmentBlock
	tails      map[string]string
	blockCache *cm.LRU //hash => *JudgmentBlock
	batches    map[int]*merkle.Batch
	lastEpoch  int
}

// NewInmemStore ...
func NewInmemStore(cacheSize int) *InmemStore {
	return &InmemStore{
		cacheSize:  cacheSize,
		chains:     make(map[string][]*JudgmentBlock),
		tails:      make(map[string]string),
		blockCache: cm.NewLRU(cacheSize, nil),
		batches:    make(map[int]*merkle.Batch),
		lastEpoch:  -1,
	}
}

// CacheSize implements the Store interface.
func (s *InmemStore) CacheSize() int {
	return s.cacheSize
}

// AppendBlock implements the Store interface.
func (s *InmemStore) AppendBlock(chainID string, block *JudgmentBlock) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	hash, err := block.Hash()
	if err != nil {
		return err
	}

	tail, ok := s.tails[chainID]
	if !ok {
		tail = GenesisPrevHash
	}

	// idempotent on identical input
	if hash == tail {
		return nil
	}

	if block.PrevHash != tail {
		return NewChainIntegrityError(chainID, block.Index(), StaleTail)
	}

	s.chains[chainID] = append(s.chains[chainID], block)
	s.tails[chainID] = hash
	s.blockCache.Add(hash, block)

	return nil
}

// Chain implements the Store interface.
func (s *InmemStore) Chain(chainID string) ([]*JudgmentBlock, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	blocks, ok := s.chains[chainID]
	if !ok {
		return nil, cm.NewStoreErr("Chain", cm.KeyNotFound, chainID)
	}

	res := make([]*JudgmentBlock, len(blocks))
	copy(res, blocks)

	return res, nil
}

// LastBlock implements the Store interface.
func (s *InmemStore) LastBlock(chainID string) (*JudgmentBlock, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	blocks, ok := s.chains[chainID]
	if !ok || len(blocks) == 0 {
		return nil, cm.NewStoreErr("Chain", cm.Empty, chainID)
	}

	return blocks[len(blocks)-1], nil
}

// GetBlock implements the Store interface.
func (s *InmemStore) GetBlock(hash string) (*JudgmentBlock, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	res, ok := s.blockCache.Get(hash)
	if !ok {
		return nil, cm.NewStoreErr("Block", cm.KeyNotFound, hash)
	}

	return res.(*JudgmentBlock), nil
}

// KnownChains implements the Store interface.
func (s *InmemStore) KnownChains() []string {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	res := make([]string, 0, len(s.chains))
	for chainID := range s.chains {
		res = append(res, chainID)
	}
	sort.Strings(res)

	return res
}

// StoreBatch implements the Store interface.
func (s *InmemStore) StoreBatch(batch *merkle.Batch) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if existing, ok := s.batches[batch.EpochID]; ok {
		// idempotent on identical input
		if existing.Root == batch.Root {
			return nil
		}
		return cm.NewStoreErr("Batch", cm.KeyAlreadyExists, strconv.Itoa(batch.EpochID))
	}

	s.batches[batch.EpochID] = batch
	if batch.EpochID > s.lastEpoch {
		s.lastEpoch = batch.EpochID
	}

	return nil
}

// ReplaceBatch implements the Store interface.
func (s *InmemStore) ReplaceBatch(batch *merkle.Batch) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.batches[batch.EpochID] = batch
	if batch.EpochID > s.lastEpoch {
		s.lastEpoch = batch.EpochID
	}

	return nil
}

// GetBatch implements the Store interface.
func (s *InmemStore) GetBatch(epochID int) (*merkle.Batch, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	batch, ok := s.batches[epochID]
	if !ok {
		return nil, cm.NewStoreErr("Batch", cm.NoBatch, strconv.Itoa(epochID))
	}

	return batch, nil
}

// LastEpoch implements the Store interface.
func (s *InmemStore) LastEpoch() int {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.lastEpoch
}

// Close implements the Store interface.
func (s *InmemStore) Close() error {
	return nil
}

// StorePath implements the Store interface.
func (s *InmemStore) StorePath() string {
	return "inmem"
}
