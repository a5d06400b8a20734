package merkle

import (
	"bytes"

	"github.com/ugorji/go/codec"
)

// Marshal produces the canonical encoding of the batch. Only the epoch, the
// ordered leaves and the root travel; receivers rebuild the tree with Build
// when they need proofs.
func (b *Batch) Marshal() ([]byte, error) {
	bf := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(bf, jh)
	if err := enc.Encode(b); err != nil {
		return nil, err
	}
	return bf.Bytes(), nil
}

// Unmarshal decodes a batch and rebuilds its internal tree from the leaves.
func (b *Batch) Unmarshal(data []byte) error {
	bf := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(bf, jh)
	if err := dec.Decode(b); err != nil {
		return err
	}

	rebuilt := Build(b.EpochID, b.Leaves)
	b.levels = rebuilt.levels

	return nil
}
