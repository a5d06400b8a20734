// Package ledger implements the append-only, hash-linked chain of signed
// judgment blocks.
//
// Each author identity owns exactly one chain. Blocks are immutable once
// hashed: a block's hash covers the previous block's hash and the canonical
// encoding of its body, so editing any byte anywhere in the chain breaks
// verification. Appends are logically single-writer per chain and serialize
// through a compare-and-swap on the recorded tail hash.
package ledger
