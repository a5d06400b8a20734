package node

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/veridict/veridict/src/consensus"
	"github.com/veridict/veridict/src/gossip"
	"github.com/veridict/veridict/src/ledger"
	"github.com/veridict/veridict/src/net"
)

func (n *Node) requestPull(target string, known map[string]int) (net.PullResponse, error) {
	args := net.PullRequest{
		FromID: n.validator.ID(),
		Known:  known,
	}

	var out net.PullResponse

	err := n.trans.Pull(target, &args, &out)

	return out, err
}

func (n *Node) processRPC(rpc net.RPC) {
	switch cmd := rpc.Command.(type) {
	case *net.GossipRequest:
		n.processGossipRequest(rpc, cmd)
	case *net.PullRequest:
		n.processPullRequest(rpc, cmd)
	default:
		n.logger.WithField("cmd", rpc.Command).Error("Unexpected RPC command")
		rpc.Respond(nil, fmt.Errorf("unexpected command"))
	}
}

func (n *Node) processGossipRequest(rpc net.RPC, cmd *net.GossipRequest) {
	n.logger.WithFields(logrus.Fields{
		"from_id": cmd.FromID,
		"kind":    cmd.Envelope.Kind.String(),
		"trace":   cmd.Envelope.TraceID,
	}).Debug("process GossipRequest")

	accepted := n.propagator.Receive(cmd.Envelope)

	if accepted {
		if err := n.applyEnvelope(cmd.Envelope); err != nil {
			n.logger.WithError(err).Debug("applyEnvelope")
		}
	}

	resp := &net.GossipResponse{
		FromID:   n.validator.ID(),
		Accepted: accepted,
	}

	rpc.Respond(resp, nil)
}

// applyEnvelope decodes an accepted envelope and applies it to local state.
// Decode and apply failures drop the item; they never propagate to the
// remote caller as RPC errors, because the envelope was already relayed.
func (n *Node) applyEnvelope(env *gossip.Envelope) error {
	switch env.Kind {
	case gossip.BlockItem:
		block := new(ledger.JudgmentBlock)
		if err := block.Unmarshal(env.Payload); err != nil {
			return err
		}

		n.coreLock.Lock()
		defer n.coreLock.Unlock()
		return n.core.ApplyBlock(block)

	case gossip.VoteItem:
		vote := new(consensus.Vote)
		if err := vote.Unmarshal(env.Payload); err != nil {
			return err
		}

		n.coreLock.Lock()
		defer n.coreLock.Unlock()
		return n.core.ReceiveVote(vote)

	case gossip.BatchItem:
		notice := new(gossip.BatchNotice)
		if err := notice.Unmarshal(env.Payload); err != nil {
			return err
		}

		n.coreLock.Lock()
		defer n.coreLock.Unlock()
		return n.core.HandleBatch(notice)

	default:
		return fmt.Errorf("unknown envelope kind %d", env.Kind)
	}
}

func (n *Node) processPullRequest(rpc net.RPC, cmd *net.PullRequest) {
	n.logger.WithFields(logrus.Fields{
		"from_id": cmd.FromID,
		"known":   cmd.Known,
	}).Debug("process PullRequest")

	resp := &net.PullResponse{
		FromID: n.validator.ID(),
	}

	var respErr error

	n.coreLock.Lock()
	known := n.core.KnownFrontier()
	n.coreLock.Unlock()

	blocks, err := gossip.MissingBlocks(n.core.store, &gossip.Summary{Known: cmd.Known})
	if err != nil {
		n.logger.WithField("error", err).Error("Calculating missing blocks")
		respErr = err
	} else {
		resp.Blocks = blocks
	}

	resp.Known = known

	n.logger.WithFields(logrus.Fields{
		"blocks":  len(resp.Blocks),
		"known":   resp.Known,
		"rpc_err": respErr,
	}).Debug("Responding to PullRequest")

	rpc.Respond(resp, respErr)
}
