package ledger

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/hex"

	"github.com/ugorji/go/codec"
	"github.com/veridict/veridict/src/crypto"
	"github.com/veridict/veridict/src/crypto/keys"
)

// PayloadLen is the fixed length of the judgment vector. The vector is opaque
// to the ledger; only its length is enforced.
const PayloadLen = 25

// GenesisPrevHash is the sentinel prevHash of the first block of every chain.
const GenesisPrevHash = "0000000000000000000000000000000000000000000000000000000000000000"

// JudgmentBlockBody holds the fields covered by the block hash, minus the
// previous hash which is hashed in separately.
type JudgmentBlockBody struct {
	Index     int
	Timestamp int64
	AuthorID  string
	Payload   []float64
}

// Marshal produces the canonical encoding of the body. Canonical field order
// matters here: the bytes feed the block hash and the signature.
func (bb *JudgmentBlockBody) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)
	if err := enc.Encode(bb); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// Unmarshal ...
func (bb *JudgmentBlockBody) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)
	return dec.Decode(bb)
}

// JudgmentBlock is one signed judgment record in a chain. Immutable once
// hashed; owned exclusively by the chain that contains it.
type JudgmentBlock struct {
	Body      JudgmentBlockBody
	PrevHash  string
	Signature string

	hash []byte
	hex  string
}

// NewJudgmentBlock constructs an unhashed, unsigned block.
func NewJudgmentBlock(index int, prevHash string, timestamp int64, authorID string, payload []float64) (*JudgmentBlock, error) {
	if len(payload) != PayloadLen {
		return nil, NewChainIntegrityError(authorID, index, InvalidPayload)
	}

	return &JudgmentBlock{
		Body: JudgmentBlockBody{
			Index:     index,
			Timestamp: timestamp,
			AuthorID:  authorID,
			Payload:   payload,
		},
		PrevHash: prevHash,
	}, nil
}

// Index ...
func (b *JudgmentBlock) Index() int {
	return b.Body.Index
}

// Timestamp ...
func (b *JudgmentBlock) Timestamp() int64 {
	return b.Body.Timestamp
}

// AuthorID ...
func (b *JudgmentBlock) AuthorID() string {
	return b.Body.AuthorID
}

// Payload ...
func (b *JudgmentBlock) Payload() []float64 {
	return b.Body.Payload
}

// hashInput returns prevHash ∥ canonical-encoding(body).
func (b *JudgmentBlock) hashInput() ([]byte, error) {
	bodyBytes, err := b.Body.Marshal()
	if err != nil {
		return nil, err
	}
	return append([]byte(b.PrevHash), bodyBytes...), nil
}

// HashBytes returns the SHA256 of prevHash ∥ canonical body.
func (b *JudgmentBlock) HashBytes() ([]byte, error) {
	if len(b.hash) == 0 {
		input, err := b.hashInput()
		if err != nil {
			return nil, err
		}
		b.hash = crypto.SHA256(input)
	}
	return b.hash, nil
}

// Hash returns the lowercase hex form of HashBytes. It is the chain-link
// value recorded in the next block's PrevHash.
func (b *JudgmentBlock) Hash() (string, error) {
	if b.hex == "" {
		hash, err := b.HashBytes()
		if err != nil {
			return "", err
		}
		b.hex = hex.EncodeToString(hash)
	}
	return b.hex, nil
}

// Sign signs the block hash with the author's private key and records the
// signature on the block.
func (b *JudgmentBlock) Sign(privKey *ecdsa.PrivateKey) error {
	signBytes, err := b.HashBytes()
	if err != nil {
		return err
	}

	R, S, err := keys.Sign(privKey, signBytes)
	if err != nil {
		return err
	}

	b.Signature = keys.EncodeSignature(R, S)

	return nil
}

// Verify checks the block's signature against the author's public key, which
// is recovered from the AuthorID. A forged signature yields false; a
// malformed block yields an error.
func (b *JudgmentBlock) Verify() (bool, error) {
	return b.VerifySignature(b.Signature)
}

// VerifySignature checks an arbitrary signature string over this block's
// hash.
func (b *JudgmentBlock) VerifySignature(signature string) (bool, error) {
	signBytes, err := b.HashBytes()
	if err != nil {
		return false, err
	}

	pubBytes, err := hex.DecodeString(stripHexPrefix(b.Body.AuthorID))
	if err != nil {
		return false, err
	}

	pubKey := keys.ToPublicKey(pubBytes)
	if pubKey == nil {
		return false, NewChainIntegrityError(b.Body.AuthorID, b.Body.Index, BadSignature)
	}

	r, s, err := keys.DecodeSignature(signature)
	if err != nil {
		return false, err
	}

	return keys.Verify(pubKey, signBytes, r, s), nil
}

// Marshal produces the canonical wire encoding of the whole block, signature
// included.
func (b *JudgmentBlock) Marshal() ([]byte, error) {
	bf := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(bf, jh)
	if err := enc.Encode(b); err != nil {
		return nil, err
	}
	return bf.Bytes(), nil
}

// Unmarshal ...
func (b *JudgmentBlock) Unmarshal(data []byte) error {
	bf := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(bf, jh)
	return dec.Decode(b)
}

func stripHexPrefix(s string) string {
	if len(s) >= 2 && (s[:2] == "0X" || s[:2] == "0x") {
		return s[2:]
	}
	return s
}
