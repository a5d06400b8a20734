package ledger

import (
	"testing"

	"github.com/veridict/veridict/src/crypto/keys"
)

func TestCanonicalEncodingDeterminism(t *testing.T) {
	body := JudgmentBlockBody{
		Index:     3,
		Timestamp: 1700000000000000000,
		AuthorID:  "0XABCDEF",
		Payload:   testPayload(1),
	}

	first, err := body.Marshal()
	if err != nil {
		t.Fatal(err)
	}

	second, err := body.Marshal()
	if err != nil {
		t.Fatal(err)
	}

	if string(first) != string(second) {
		t.Fatal("canonical encoding should be byte-stable")
	}

	decoded := new(JudgmentBlockBody)
	if err := decoded.Unmarshal(first); err != nil {
		t.Fatal(err)
	}

	reencoded, err := decoded.Marshal()
	if err != nil {
		t.Fatal(err)
	}

	if string(first) != string(reencoded) {
		t.Fatal("canonical encoding should survive a decode/encode cycle")
	}
}

func TestBlockHashCoversPrevHash(t *testing.T) {
	key, _ := keys.GenerateECDSAKey()
	authorID := keys.PublicKeyHex(&key.PublicKey)

	a, _ := NewJudgmentBlock(0, GenesisPrevHash, 1, authorID, testPayload(1))
	b, _ := NewJudgmentBlock(0, "ff", 1, authorID, testPayload(1))

	ha, err := a.Hash()
	if err != nil {
		t.Fatal(err)
	}
	hb, err := b.Hash()
	if err != nil {
		t.Fatal(err)
	}

	if ha == hb {
		t.Fatal("blocks with different prevHash should hash differently")
	}
}

func TestBlockWireRoundTrip(t *testing.T) {
	key, _ := keys.GenerateECDSAKey()
	authorID := keys.PublicKeyHex(&key.PublicKey)

	block, err := NewJudgmentBlock(0, GenesisPrevHash, 42, authorID, testPayload(2))
	if err != nil {
		t.Fatal(err)
	}
	if err := block.Sign(key); err != nil {
		t.Fatal(err)
	}

	raw, err := block.Marshal()
	if err != nil {
		t.Fatal(err)
	}

	decoded := new(JudgmentBlock)
	if err := decoded.Unmarshal(raw); err != nil {
		t.Fatal(err)
	}

	origHash, _ := block.Hash()
	decodedHash, _ := decoded.Hash()
	if origHash != decodedHash {
		t.Fatal("hash changed across the wire")
	}

	ok, err := decoded.Verify()
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("decoded block signature should verify")
	}
}
