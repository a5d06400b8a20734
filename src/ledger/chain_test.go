package ledger

import (
	"crypto/ecdsa"
	"testing"

	"github.com/veridict/veridict/src/crypto/keys"
)

func testPayload(seed float64) []float64 {
	payload := make([]float64, PayloadLen)
	for i := range payload {
		payload[i] = seed + float64(i)/100
	}
	return payload
}

func newTestChain(t *testing.T, n int) (*Chain, *ecdsa.PrivateKey) {
	key, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}

	chain := NewChain(keys.PublicKeyHex(&key.PublicKey))

	for i := 0; i < n; i++ {
		if _, err := chain.Append(testPayload(float64(i)), key); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	return chain, key
}

func TestAppendAndVerify(t *testing.T) {
	chain, _ := newTestChain(t, 3)

	if chain.Len() != 3 {
		t.Fatalf("expected 3 blocks, got %d", chain.Len())
	}

	if chain.Blocks()[0].PrevHash != GenesisPrevHash {
		t.Fatalf("genesis prevHash should be the sentinel, got %s", chain.Blocks()[0].PrevHash)
	}

	if err := chain.Verify(); err != nil {
		t.Fatalf("valid chain should verify: %v", err)
	}
}

func TestVerifyDetectsPayloadMutation(t *testing.T) {
	chain, _ := newTestChain(t, 3)

	// mutate a single payload element of the middle block
	chain.Blocks()[1].Body.Payload[7] += 0.000001

	err := chain.Verify()
	if err == nil {
		t.Fatal("mutated chain should fail verification")
	}
	if _, ok := err.(ChainIntegrityError); !ok {
		t.Fatalf("expected ChainIntegrityError, got %T", err)
	}
}

func TestVerifyDetectsTailMutation(t *testing.T) {
	chain, _ := newTestChain(t, 3)

	// the tail block has no successor link to betray it, so the signature
	// check must catch the mutation
	tail := chain.Last()
	tail.Body.Payload[0] += 1
	tail.hash = nil
	tail.hex = ""

	if err := chain.Verify(); err == nil {
		t.Fatal("mutated tail should fail verification")
	}
}

func TestAppendOnStaleTail(t *testing.T) {
	chain, key := newTestChain(t, 2)

	staleTail := chain.Tail()

	if _, err := chain.AppendOn(staleTail, testPayload(9), key); err != nil {
		t.Fatal(err)
	}

	// second append on the same tail must fail the CAS
	_, err := chain.AppendOn(staleTail, testPayload(10), key)
	if !IsChainIntegrity(err, StaleTail) {
		t.Fatalf("expected StaleTail, got %v", err)
	}

	// retry on the fresh tail succeeds
	if _, err := chain.AppendOn(chain.Tail(), testPayload(10), key); err != nil {
		t.Fatal(err)
	}
}

func TestAppendBlockFromPeer(t *testing.T) {
	source, _ := newTestChain(t, 3)

	replica := NewChain(source.AuthorID())
	for _, block := range source.Blocks() {
		if err := replica.AppendBlock(block); err != nil {
			t.Fatalf("replica append: %v", err)
		}
	}

	if err := replica.Verify(); err != nil {
		t.Fatal(err)
	}

	if replica.Tail() != source.Tail() {
		t.Fatal("replica tail should match source tail")
	}
}

func TestAppendBlockRejectsForgery(t *testing.T) {
	source, _ := newTestChain(t, 1)
	otherKey, _ := keys.GenerateECDSAKey()

	block := source.Blocks()[0]

	forged, err := NewJudgmentBlock(block.Index(), block.PrevHash, block.Timestamp(), block.AuthorID(), block.Payload())
	if err != nil {
		t.Fatal(err)
	}
	if err := forged.Sign(otherKey); err != nil {
		t.Fatal(err)
	}

	replica := NewChain(source.AuthorID())
	err = replica.AppendBlock(forged)
	if !IsChainIntegrity(err, BadSignature) {
		t.Fatalf("expected BadSignature, got %v", err)
	}
}

func TestChainFromBlocks(t *testing.T) {
	source, _ := newTestChain(t, 4)

	rebuilt, err := NewChainFromBlocks(source.AuthorID(), source.Blocks())
	if err != nil {
		t.Fatal(err)
	}

	if rebuilt.Tail() != source.Tail() {
		t.Fatal("rebuilt chain tail mismatch")
	}
}

func TestTimestampsMonotonic(t *testing.T) {
	chain, _ := newTestChain(t, 5)

	blocks := chain.Blocks()
	for i := 1; i < len(blocks); i++ {
		if blocks[i].Timestamp() <= blocks[i-1].Timestamp() {
			t.Fatalf("timestamps should strictly increase at %d", i)
		}
	}
}

func TestPayloadLengthEnforced(t *testing.T) {
	key, _ := keys.GenerateECDSAKey()
	chain := NewChain(keys.PublicKeyHex(&key.PublicKey))

	_, err := chain.Append([]float64{1, 2, 3}, key)
	if !IsChainIntegrity(err, InvalidPayload) {
		t.Fatalf("expected InvalidPayload, got %v", err)
	}
}
