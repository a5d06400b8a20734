// Package gossip implements push-epidemic broadcast of ledger items across a
// supplied peer set.
//
// Every broadcast round forwards an item to a fixed-size pseudo-random subset
// of peers (the fanout), records the item's digest in a bounded-lifetime
// seen-set, and relays received items until their hop allowance runs out. In
// a fully-connected network of N peers a single broadcast reaches everyone
// within ceil(log_Fanout(N)) rounds absent drops.
package gossip

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	cm "github.com/veridict/veridict/src/common"
	"github.com/veridict/veridict/src/peers"
)

// Fanout is the number of peers an item is forwarded to per propagation
// round. It is a protocol constant, not configuration.
const Fanout = 13

// DefaultHopLimit bounds relay depth. Fanout^4 exceeds any realistic peer
// set, so four hops give full coverage with bounded amplification.
const DefaultHopLimit = 4

// DefaultSeenTTL is how long a digest stays in the seen-set before the item
// may propagate again.
const DefaultSeenTTL = 10 * time.Minute

// State of the propagator: Idle when no broadcast is in flight.
type State uint32

const (
	// Idle ...
	Idle State = iota
	// Propagating ...
	Propagating
)

// String ...
func (s State) String() string {
	if s == Propagating {
		return "Propagating"
	}
	return "Idle"
}

// Sender delivers an envelope to one peer. Implementations wrap the
// transport; errors are logged and do not abort the round.
type Sender func(peer *peers.Peer, env *Envelope) error

// Propagator runs the epidemic broadcast for one node.
type Propagator struct {
	mtx sync.Mutex

	selfID          uint32
	selectablePeers []*peers.Peer
	send            Sender

	seen    *cm.LRU // digest => expiry time.Time
	seenTTL time.Duration

	rng *rand.Rand

	inFlight int32

	logger *logrus.Entry
}

// NewPropagator creates a Propagator for the given peer set, excluding the
// node itself from fanout selection.
func NewPropagator(peerSet *peers.PeerSet, selfID uint32, seenSize int, send Sender, logger *logrus.Entry) *Propagator {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	_, selectablePeers := peers.ExcludePeer(peerSet.Peers, selfID)

	return &Propagator{
		selfID:          selfID,
		selectablePeers: selectablePeers,
		send:            send,
		seen:            cm.NewLRU(seenSize, nil),
		seenTTL:         DefaultSeenTTL,
		rng:             rand.New(rand.NewSource(time.Now().UnixNano() ^ int64(selfID))),
		logger:          logger.WithField("component", "gossip"),
	}
}

// State reports Propagating while any broadcast round is in flight.
func (p *Propagator) State() State {
	if atomic.LoadInt32(&p.inFlight) > 0 {
		return Propagating
	}
	return Idle
}

// Broadcast originates an item: records it as seen and pushes it to one
// fanout's worth of peers. Broadcasting an item already in the seen-set is a
// no-op; the first accept wins.
func (p *Propagator) Broadcast(env *Envelope) {
	if !p.markSeen(env.Digest()) {
		return
	}
	p.push(env)
}

// Receive handles an incoming envelope. A digest already in the seen-set is
// dropped, making receipt idempotent: the caller applies the item to local
// state only when Receive returns true. Accepted items are relayed with a
// decremented hop allowance.
func (p *Propagator) Receive(env *Envelope) bool {
	if !p.markSeen(env.Digest()) {
		return false
	}

	if env.Hops > 1 {
		relay := &Envelope{
			TraceID: env.TraceID,
			Kind:    env.Kind,
			Hops:    env.Hops - 1,
			Payload: env.Payload,
		}
		p.push(relay)
	}

	return true
}

// push sends the envelope to a pseudo-random fanout of peers.
func (p *Propagator) push(env *Envelope) {
	targets := p.fanoutPeers()

	atomic.AddInt32(&p.inFlight, 1)
	defer atomic.AddInt32(&p.inFlight, -1)

	for _, peer := range targets {
		if err := p.send(peer, env); err != nil {
			p.logger.WithFields(logrus.Fields{
				"peer":  peer.ShortID(),
				"trace": env.TraceID,
				"kind":  env.Kind.String(),
			}).WithError(err).Debug("gossip send failed")
		}
	}
}

// fanoutPeers picks Fanout peers pseudo-randomly, or every peer when the set
// is smaller than the fanout.
func (p *Propagator) fanoutPeers() []*peers.Peer {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	n := len(p.selectablePeers)
	if n <= Fanout {
		res := make([]*peers.Peer, n)
		copy(res, p.selectablePeers)
		return res
	}

	picked := p.rng.Perm(n)[:Fanout]
	res := make([]*peers.Peer, Fanout)
	for i, idx := range picked {
		res[i] = p.selectablePeers[idx]
	}
	return res
}

// markSeen records a digest, returning false when it is already present and
// unexpired.
func (p *Propagator) markSeen(digest string) bool {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if deadline, ok := p.seen.Get(digest); ok {
		if time.Now().Before(deadline.(time.Time)) {
			return false
		}
	}

	p.seen.Add(digest, time.Now().Add(p.seenTTL))
	return true
}

// Seen reports whether a digest is currently held in the seen-set.
func (p *Propagator) Seen(digest string) bool {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	deadline, ok := p.seen.Get(digest)
	return ok && time.Now().Before(deadline.(time.Time))
}

// PruneExpired drops expired digests. The node calls it on epoch boundaries
// so the seen-set's lifetime stays bounded independently of the LRU size.
func (p *Propagator) PruneExpired() {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	now := time.Now()
	for _, key := range p.seen.Keys() {
		if deadline, ok := p.seen.Get(key); ok && now.After(deadline.(time.Time)) {
			p.seen.Remove(key)
		}
	}
}
