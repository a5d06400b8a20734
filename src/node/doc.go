// Package node implements the reactive component of a Veridict node.
//
// This is the part of Veridict that drives the epidemic broadcast, the epoch
// clock and the voting rounds over the underlying judgment ledger. Node
// implements a small state machine: Gossiping, Suspended, Shutdown.
//
// Gossip
//
// Veridict nodes communicate with other Veridict nodes in a fully connected
// p2p network. New judgment blocks, batch roots and votes are pushed through
// a fixed-fanout epidemic broadcast: an originating node sends an envelope
// to a fixed number of random peers, and every node that accepts a new
// envelope relays it to its own random subset until the hop allowance runs
// out. Envelopes are deduplicated on a content digest, so receipt is
// idempotent.
//
// The push channel alone can miss blocks under churn, so every epoch
// boundary each node also runs an anti-entropy Pull against one random peer:
// it sends a description of its chain frontier, and the peer returns every
// block beyond it. Between push and pull, all chains converge.
//
// Epochs
//
// The ControlTimer fires at a fixed interval. On each tick the node seals
// the previous epoch's voting round, folds the block hashes observed during
// the closing epoch into a Merkle batch, stores it, opens the next round on
// the batch root, and broadcasts the root together with its own signed vote.
// Voting and finalization semantics live in the consensus package; the node
// only sequences them.
//
// A node whose public key is not in the peer set starts Suspended: it
// answers pull requests so peers can replicate from it, but it neither
// gossips nor closes epochs.
package node
