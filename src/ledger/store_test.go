package ledger

import (
	"io/ioutil"
	"os"
	"testing"

	cm "github.com/veridict/veridict/src/common"
	"github.com/veridict/veridict/src/merkle"
)

func testStoreChain(t *testing.T, store Store, n int) *Chain {
	chain, _ := newTestChain(t, n)
	for _, block := range chain.Blocks() {
		if err := store.AppendBlock(chain.AuthorID(), block); err != nil {
			t.Fatal(err)
		}
	}
	return chain
}

func testStore(t *testing.T, store Store) {
	chain := testStoreChain(t, store, 3)

	// idempotent re-append of the tail block
	if err := store.AppendBlock(chain.AuthorID(), chain.Last()); err != nil {
		t.Fatalf("identical re-append should be a no-op: %v", err)
	}

	// a block that skips the tail fails closed
	bad := chain.Blocks()[0]
	if err := store.AppendBlock(chain.AuthorID(), bad); !IsChainIntegrity(err, StaleTail) {
		t.Fatalf("expected StaleTail, got %v", err)
	}

	blocks, err := store.Chain(chain.AuthorID())
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(blocks))
	}

	last, err := store.LastBlock(chain.AuthorID())
	if err != nil {
		t.Fatal(err)
	}
	lastHash, _ := last.Hash()
	if lastHash != chain.Tail() {
		t.Fatal("stored tail mismatch")
	}

	hash, _ := blocks[1].Hash()
	byHash, err := store.GetBlock(hash)
	if err != nil {
		t.Fatal(err)
	}
	if byHash.Index() != 1 {
		t.Fatal("GetBlock returned the wrong block")
	}

	if chains := store.KnownChains(); len(chains) != 1 || chains[0] != chain.AuthorID() {
		t.Fatalf("unexpected KnownChains: %v", chains)
	}

	// batches
	leaves := []string{}
	for _, b := range blocks {
		h, _ := b.Hash()
		leaves = append(leaves, h)
	}
	batch := merkle.Build(0, leaves)

	if err := store.StoreBatch(batch); err != nil {
		t.Fatal(err)
	}
	if err := store.StoreBatch(batch); err != nil {
		t.Fatalf("identical batch re-store should be a no-op: %v", err)
	}

	divergent := merkle.Build(0, leaves[:2])
	if err := store.StoreBatch(divergent); !cm.IsStore(err, cm.KeyAlreadyExists) {
		t.Fatalf("divergent batch for same epoch should fail, got %v", err)
	}

	got, err := store.GetBatch(0)
	if err != nil {
		t.Fatal(err)
	}
	if got.Root != batch.Root {
		t.Fatal("batch root mismatch")
	}

	if _, err := store.GetBatch(99); !cm.IsStore(err, cm.NoBatch) {
		t.Fatalf("expected NoBatch, got %v", err)
	}

	if store.LastEpoch() != 0 {
		t.Fatalf("expected last epoch 0, got %d", store.LastEpoch())
	}
}

func TestInmemStore(t *testing.T) {
	testStore(t, NewInmemStore(100))
}

func TestBadgerStore(t *testing.T) {
	os.Mkdir("test_data", os.ModeDir|0700)
	dir, err := ioutil.TempDir("test_data", "badger")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	store, err := LoadOrCreateBadgerStore(100, dir)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	testStore(t, store)
}

func TestBadgerStoreReload(t *testing.T) {
	os.Mkdir("test_data", os.ModeDir|0700)
	dir, err := ioutil.TempDir("test_data", "badger")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	store, err := LoadOrCreateBadgerStore(100, dir)
	if err != nil {
		t.Fatal(err)
	}

	chain := testStoreChain(t, store, 3)
	store.Close()

	reloaded, err := LoadOrCreateBadgerStore(100, dir)
	if err != nil {
		t.Fatal(err)
	}
	defer reloaded.Close()

	blocks, err := reloaded.Chain(chain.AuthorID())
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 3 {
		t.Fatalf("expected 3 blocks after reload, got %d", len(blocks))
	}

	rebuilt, err := NewChainFromBlocks(chain.AuthorID(), blocks)
	if err != nil {
		t.Fatal(err)
	}
	if rebuilt.Tail() != chain.Tail() {
		t.Fatal("tail mismatch after reload")
	}
}
