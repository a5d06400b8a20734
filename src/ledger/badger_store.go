package ledger

import (
	"fmt"
	"os"
	"strconv"

	"github.com/dgraph-io/badger"
	cm "github.com/veridict/veridict/src/common"
	"github.com/veridict/veridict/src/merkle"
)

const (
	blockPrefix = "block"
	tailPrefix  = "tail"
	batchPrefix = "batch"
	lastEpochK  = "lastepoch"
)

// BadgerStore implements the Store interface with a Badger database behind an
// InmemStore. Writes go to the database first and fail closed; the in-mem
// layer is only refreshed after the durable write succeeds.
type BadgerStore struct {
	inmemStore *InmemStore
	db         *badger.DB
	path       string
}

//NewBadgerStore creates a brand new Store with a new database
func NewBadgerStore(cacheSize int, path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.SyncWrites = false

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	store := &BadgerStore{
		inmemStore: NewInmemStore(cacheSize),
		db:         handle,
		path:       path,
	}

	if err := store.bootstrap(); err != nil {
		store.Close()
		return nil, err
	}

	return store, nil
}

// bootstrap replays the database into the in-mem layer.
func (s *BadgerStore) bootstrap() error {
	chainIDs := map[string]struct{}{}

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(tailPrefix + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			chainIDs[string(it.Item().Key()[len(prefix):])] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for chainID := range chainIDs {
		for index := 0; ; index++ {
			block, err := s.dbGetBlock(chainID, index)
			if cm.IsStore(err, cm.KeyNotFound) {
				break
			}
			if err != nil {
				return err
			}
			if err := s.inmemStore.AppendBlock(chainID, block); err != nil {
				return err
			}
		}
	}

	lastEpoch, err := s.dbGetLastEpoch()
	if err != nil {
		return err
	}

	for epoch := 0; epoch <= lastEpoch; epoch++ {
		batch, err := s.dbGetBatch(epoch)
		if cm.IsStore(err, cm.NoBatch) {
			continue
		}
		if err != nil {
			return err
		}
		if err := s.inmemStore.StoreBatch(batch); err != nil {
			return err
		}
	}

	return nil
}

// LoadOrCreateBadgerStore opens an existing database, or creates one when the
// path does not exist yet.
func LoadOrCreateBadgerStore(cacheSize int, path string) (*BadgerStore, error) {
	if _, err := os.Stat(path); err != nil {
		if err := os.MkdirAll(path, 0700); err != nil {
			return nil, err
		}
	}
	return NewBadgerStore(cacheSize, path)
}

// CacheSize implements the Store interface.
func (s *BadgerStore) CacheSize() int {
	return s.inmemStore.CacheSize()
}

// AppendBlock implements the Store interface.
func (s *BadgerStore) AppendBlock(chainID string, block *JudgmentBlock) error {
	hash, err := block.Hash()
	if err != nil {
		return err
	}

	tail, err := s.dbGetTail(chainID)
	if err != nil {
		return err
	}

	// idempotent on identical input
	if hash == tail {
		return nil
	}

	if block.PrevHash != tail {
		return NewChainIntegrityError(chainID, block.Index(), StaleTail)
	}

	blockBytes, err := block.Marshal()
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(blockKey(chainID, block.Index()), blockBytes); err != nil {
			return err
		}
		return txn.Set(tailKey(chainID), []byte(hash))
	})
	if err != nil {
		return err
	}

	return s.inmemStore.AppendBlock(chainID, block)
}

// Chain implements the Store interface.
func (s *BadgerStore) Chain(chainID string) ([]*JudgmentBlock, error) {
	return s.inmemStore.Chain(chainID)
}

// LastBlock implements the Store interface.
func (s *BadgerStore) LastBlock(chainID string) (*JudgmentBlock, error) {
	return s.inmemStore.LastBlock(chainID)
}

// GetBlock implements the Store interface.
func (s *BadgerStore) GetBlock(hash string) (*JudgmentBlock, error) {
	return s.inmemStore.GetBlock(hash)
}

// KnownChains implements the Store interface.
func (s *BadgerStore) KnownChains() []string {
	return s.inmemStore.KnownChains()
}

// StoreBatch implements the Store interface.
func (s *BadgerStore) StoreBatch(batch *merkle.Batch) error {
	batchBytes, err := batch.Marshal()
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(batchKey(batch.EpochID), batchBytes); err != nil {
			return err
		}
		return txn.Set([]byte(lastEpochK), []byte(strconv.Itoa(batch.EpochID)))
	})
	if err != nil {
		return err
	}

	return s.inmemStore.StoreBatch(batch)
}

// ReplaceBatch implements the Store interface.
func (s *BadgerStore) ReplaceBatch(batch *merkle.Batch) error {
	batchBytes, err := batch.Marshal()
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(batchKey(batch.EpochID), batchBytes)
	})
	if err != nil {
		return err
	}

	return s.inmemStore.ReplaceBatch(batch)
}

// GetBatch implements the Store interface.
func (s *BadgerStore) GetBatch(epochID int) (*merkle.Batch, error) {
	return s.inmemStore.GetBatch(epochID)
}

// LastEpoch implements the Store interface.
func (s *BadgerStore) LastEpoch() int {
	return s.inmemStore.LastEpoch()
}

// Close implements the Store interface.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// StorePath implements the Store interface.
func (s *BadgerStore) StorePath() string {
	return s.path
}

/* DB read helpers */

func (s *BadgerStore) dbGetBlock(chainID string, index int) (*JudgmentBlock, error) {
	var blockBytes []byte

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blockKey(chainID, index))
		if err != nil {
			return err
		}
		blockBytes, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, cm.NewStoreErr("Block", cm.KeyNotFound, fmt.Sprintf("%s:%d", chainID, index))
	}

	block := new(JudgmentBlock)
	if err := block.Unmarshal(blockBytes); err != nil {
		return nil, err
	}

	return block, nil
}

func (s *BadgerStore) dbGetTail(chainID string) (string, error) {
	tail := GenesisPrevHash

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(tailKey(chainID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		tail = string(val)
		return nil
	})
	if err != nil {
		return "", err
	}

	return tail, nil
}

func (s *BadgerStore) dbGetBatch(epochID int) (*merkle.Batch, error) {
	var batchBytes []byte

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(batchKey(epochID))
		if err != nil {
			return err
		}
		batchBytes, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, cm.NewStoreErr("Batch", cm.NoBatch, strconv.Itoa(epochID))
	}

	batch := new(merkle.Batch)
	if err := batch.Unmarshal(batchBytes); err != nil {
		return nil, err
	}

	return batch, nil
}

func (s *BadgerStore) dbGetLastEpoch() (int, error) {
	last := -1

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(lastEpochK))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		last, err = strconv.Atoi(string(val))
		return err
	})
	if err != nil {
		return -1, err
	}

	return last, nil
}

func blockKey(chainID string, index int) []byte {
	return []byte(fmt.Sprintf("%s:%s:%09d", blockPrefix, chainID, index))
}

func tailKey(chainID string) []byte {
	return []byte(fmt.Sprintf("%s:%s", tailPrefix, chainID))
}

func batchKey(epochID int) []byte {
	return []byte(fmt.Sprintf("%s:%09d", batchPrefix, epochID))
}
