package net

import (
	"github.com/veridict/veridict/src/gossip"
	"github.com/veridict/veridict/src/ledger"
)

// GossipRequest carries one pushed envelope of the epidemic broadcast. The
// receiver deduplicates on the envelope digest, so re-delivery is harmless.
type GossipRequest struct {
	FromID   uint32
	Envelope *gossip.Envelope
}

// GossipResponse indicates whether the receiver accepted the envelope or had
// already seen it.
type GossipResponse struct {
	FromID   uint32
	Accepted bool
}

// PullRequest corresponds to the anti-entropy part of the protocol. Known
// maps chain IDs to the last block index the requester holds, so the
// responder can return exactly the blocks the requester is missing.
type PullRequest struct {
	FromID uint32
	Known  map[string]int
}

// PullResponse returns the blocks beyond the requester's frontier, in chain
// order per author, together with the responder's own frontier.
type PullResponse struct {
	FromID uint32
	Blocks []*ledger.JudgmentBlock
	Known  map[string]int
}
