package gossip

import (
	"bytes"

	"github.com/ugorji/go/codec"

	"github.com/veridict/veridict/src/merkle"
)

// BatchNotice is the gossiped form of an epoch batch: the batch itself plus
// the sender's view of its round, so a receiver holding a diverging batch
// can resolve the fork without another exchange.
type BatchNotice struct {
	Batch      *merkle.Batch
	Confidence float64
	Finalized  bool
}

// Marshal produces the canonical wire encoding of the notice.
func (bn *BatchNotice) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)
	if err := enc.Encode(bn); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// Unmarshal ...
func (bn *BatchNotice) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)
	return dec.Decode(bn)
}

// ForkCandidate is one side of a diverging epoch observed during
// anti-entropy: the batch root a remote claims for an epoch, together with
// the weighted confidence its round reached and whether the round finalized.
type ForkCandidate struct {
	Root       string
	Confidence float64
	Finalized  bool
}

// ResolveFork picks the winning side of a fork deterministically. A
// finalized candidate beats an unfinalized one; between two finalized (or
// two unfinalized) candidates the higher weighted confidence wins; on an
// exact confidence tie the lexicographically smaller root hex wins, so every
// node converges on the same side without further rounds.
func ResolveFork(a, b ForkCandidate) ForkCandidate {
	if a.Finalized != b.Finalized {
		if a.Finalized {
			return a
		}
		return b
	}

	if a.Confidence != b.Confidence {
		if a.Confidence > b.Confidence {
			return a
		}
		return b
	}

	if a.Root <= b.Root {
		return a
	}
	return b
}
