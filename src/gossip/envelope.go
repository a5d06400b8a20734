package gossip

import (
	"bytes"
	"encoding/hex"

	"github.com/google/uuid"
	"github.com/ugorji/go/codec"
	"lukechampine.com/blake3"
)

// Kind discriminates what a gossiped envelope carries.
type Kind uint8

const (
	// BlockItem carries a canonical judgment block.
	BlockItem Kind = iota
	// VoteItem carries a canonical vote.
	VoteItem
	// BatchItem carries a canonical merkle batch.
	BatchItem
)

// String ...
func (k Kind) String() string {
	switch k {
	case BlockItem:
		return "block"
	case VoteItem:
		return "vote"
	case BatchItem:
		return "batch"
	default:
		return "unknown"
	}
}

// Envelope wraps one item for epidemic broadcast. Hops is the remaining
// forwarding allowance and decrements at every relay; it bounds
// amplification. TraceID tags the originating broadcast for logs and is not
// part of the dedup identity.
type Envelope struct {
	TraceID string
	Kind    Kind
	Hops    int
	Payload []byte

	digest string
}

// NewEnvelope wraps a canonical payload with a fresh trace ID and the given
// hop allowance.
func NewEnvelope(kind Kind, payload []byte, hops int) *Envelope {
	return &Envelope{
		TraceID: uuid.New().String(),
		Kind:    kind,
		Hops:    hops,
		Payload: payload,
	}
}

// Digest is the envelope's dedup identity: a BLAKE3 hash over the kind and
// the payload. Two envelopes carrying the same item collapse to the same
// digest no matter who relayed them.
func (e *Envelope) Digest() string {
	if e.digest == "" {
		h := blake3.New(32, nil)
		h.Write([]byte{byte(e.Kind)})
		h.Write(e.Payload)
		e.digest = hex.EncodeToString(h.Sum(nil))
	}
	return e.digest
}

// Marshal produces the canonical wire encoding of the envelope.
func (e *Envelope) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)
	if err := enc.Encode(e); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// Unmarshal ...
func (e *Envelope) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)
	return dec.Decode(e)
}
