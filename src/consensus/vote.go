package consensus

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/hex"

	"github.com/ugorji/go/codec"
	"github.com/veridict/veridict/src/crypto"
	"github.com/veridict/veridict/src/crypto/keys"
	"github.com/veridict/veridict/src/score"
)

// VoteBody holds the signed fields of a vote.
type VoteBody struct {
	VoterID    string
	EpochID    int
	TargetRoot string
	Confidence float64
}

// Marshal produces the canonical encoding of the body; the bytes feed the
// vote signature.
func (vb *VoteBody) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)
	if err := enc.Encode(vb); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// Vote is one participant's signed confidence declaration for a candidate
// batch root. Votes are never mutated and expire at epoch close.
type Vote struct {
	Body      VoteBody
	Signature string
}

// NewSignedVote builds and signs a vote. The declared confidence is truncated
// to protocol precision and capped at MaxConfidence; a voter cannot declare
// certainty the protocol does not admit.
func NewSignedVote(epochID int, targetRoot string, confidence float64, privKey *ecdsa.PrivateKey) (*Vote, error) {
	confidence = score.Truncate(confidence)
	if confidence < 0 {
		confidence = 0
	}
	if confidence > MaxConfidence {
		confidence = MaxConfidence
	}

	vote := &Vote{
		Body: VoteBody{
			VoterID:    keys.PublicKeyHex(&privKey.PublicKey),
			EpochID:    epochID,
			TargetRoot: targetRoot,
			Confidence: confidence,
		},
	}

	signBytes, err := vote.signBytes()
	if err != nil {
		return nil, err
	}

	R, S, err := keys.Sign(privKey, signBytes)
	if err != nil {
		return nil, err
	}

	vote.Signature = keys.EncodeSignature(R, S)

	return vote, nil
}

// VoterID ...
func (v *Vote) VoterID() string {
	return v.Body.VoterID
}

// Confidence ...
func (v *Vote) Confidence() float64 {
	return v.Body.Confidence
}

// Verify checks the vote signature against the voter's public key.
func (v *Vote) Verify() (bool, error) {
	signBytes, err := v.signBytes()
	if err != nil {
		return false, err
	}

	pubBytes, err := hex.DecodeString(stripHexPrefix(v.Body.VoterID))
	if err != nil {
		return false, err
	}

	pubKey := keys.ToPublicKey(pubBytes)
	if pubKey == nil {
		return false, InvalidSignatureError{VoterID: v.Body.VoterID}
	}

	r, s, err := keys.DecodeSignature(v.Signature)
	if err != nil {
		return false, err
	}

	return keys.Verify(pubKey, signBytes, r, s), nil
}

// Marshal produces the canonical wire encoding of the vote.
func (v *Vote) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// Unmarshal ...
func (v *Vote) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)
	return dec.Decode(v)
}

func (v *Vote) signBytes() ([]byte, error) {
	bodyBytes, err := v.Body.Marshal()
	if err != nil {
		return nil, err
	}
	return crypto.SHA256(bodyBytes), nil
}

func stripHexPrefix(s string) string {
	if len(s) >= 2 && (s[:2] == "0X" || s[:2] == "0x") {
		return s[2:]
	}
	return s
}
