package merkle

import (
	"encoding/hex"

	"github.com/veridict/veridict/src/crypto"
)

/*
Package merkle batches the block hashes observed during one epoch into a
binary hash tree and produces compact inclusion proofs against the tree root.

Tree construction pairs leaves bottom-up with SHA256. When a level holds an
odd number of nodes, the last node is PROMOTED unchanged to the next level;
it is never duplicated. Promotion vs duplication changes the root for odd
leaf counts, so the policy is fixed here and relied upon by every node.
Identical leaf sets in identical order always produce identical roots.
*/

// Side indicates on which side of the running hash a proof sibling sits.
type Side uint8

const (
	// Left sibling: H(sibling ∥ running)
	Left Side = iota
	// Right sibling: H(running ∥ sibling)
	Right
)

// ProofStep is one (hash, side) element of a sibling path.
type ProofStep struct {
	Hash string
	Side Side
}

// InclusionProof proves that a leaf belongs to a batch. It is verifiable
// against the root alone, without the tree.
type InclusionProof struct {
	LeafHash    string
	SiblingPath []ProofStep
}

// Batch is the merkle tree built from one epoch's ordered block hashes.
// Immutable after the epoch closes.
type Batch struct {
	EpochID int
	Leaves  []string
	Root    string

	levels [][]string
}

// Build constructs the batch tree for an epoch from an ordered leaf sequence.
// Leaves are lowercase hex block hashes. An empty leaf set yields the hash of
// empty input as root; a single leaf is its own root.
func Build(epochID int, leafHashes []string) *Batch {
	leaves := make([]string, len(leafHashes))
	copy(leaves, leafHashes)

	batch := &Batch{
		EpochID: epochID,
		Leaves:  leaves,
	}

	if len(leaves) == 0 {
		batch.Root = hex.EncodeToString(crypto.SHA256(nil))
		batch.levels = [][]string{}
		return batch
	}

	levels := [][]string{leaves}
	current := leaves

	for len(current) > 1 {
		next := make([]string, 0, (len(current)+1)/2)

		for i := 0; i+1 < len(current); i += 2 {
			next = append(next, combine(current[i], current[i+1]))
		}

		// odd node promoted unchanged
		if len(current)%2 == 1 {
			next = append(next, current[len(current)-1])
		}

		levels = append(levels, next)
		current = next
	}

	batch.levels = levels
	batch.Root = current[0]

	return batch
}

// Prove derives the inclusion proof for a leaf, or fails with ErrLeafNotFound
// when the leaf is not part of the batch.
func (b *Batch) Prove(leafHash string) (*InclusionProof, error) {
	index := -1
	for i, l := range b.Leaves {
		if l == leafHash {
			index = i
			break
		}
	}
	if index == -1 {
		return nil, NewLeafNotFoundError(b.EpochID, leafHash)
	}

	proof := &InclusionProof{
		LeafHash:    leafHash,
		SiblingPath: []ProofStep{},
	}

	for _, level := range b.levels[:len(b.levels)-1] {
		if index%2 == 0 {
			if index+1 < len(level) {
				proof.SiblingPath = append(proof.SiblingPath, ProofStep{
					Hash: level[index+1],
					Side: Right,
				})
			}
			// otherwise the node was promoted; no sibling at this level
		} else {
			proof.SiblingPath = append(proof.SiblingPath, ProofStep{
				Hash: level[index-1],
				Side: Left,
			})
		}
		index = index / 2
	}

	return proof, nil
}

// VerifyProof recomputes the sibling path hash-by-hash and compares the
// result to the root. It is O(log n) in the batch's leaf count and needs no
// access to the tree. A failed verification is an ordinary false, never an
// error.
func VerifyProof(proof *InclusionProof, root string) bool {
	if proof == nil {
		return false
	}

	running := proof.LeafHash
	for _, step := range proof.SiblingPath {
		if step.Side == Left {
			running = combine(step.Hash, running)
		} else {
			running = combine(running, step.Hash)
		}
	}

	return running == root
}

func combine(left, right string) string {
	l, err := hex.DecodeString(left)
	if err != nil {
		l = []byte(left)
	}
	r, err := hex.DecodeString(right)
	if err != nil {
		r = []byte(right)
	}
	return hex.EncodeToString(crypto.SimpleHashFromTwoHashes(l, r))
}
