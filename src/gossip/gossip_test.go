package gossip

import (
	"fmt"
	"math"
	"sync"
	"testing"

	cm "github.com/veridict/veridict/src/common"
	"github.com/veridict/veridict/src/crypto/keys"
	"github.com/veridict/veridict/src/ledger"
	"github.com/veridict/veridict/src/peers"
)

func newTestPeers(t *testing.T, n int) *peers.PeerSet {
	res := []*peers.Peer{}
	for i := 0; i < n; i++ {
		key, err := keys.GenerateECDSAKey()
		if err != nil {
			t.Fatal(err)
		}
		p := peers.NewPeer(
			keys.PublicKeyHex(&key.PublicKey),
			fmt.Sprintf("127.0.0.1:%d", 10000+i),
			fmt.Sprintf("peer%d", i),
		)
		res = append(res, p)
	}
	return peers.NewPeerSet(res)
}

// network simulates a fully-connected cluster. Sends are queued and
// delivered in discrete rounds so propagation depth is observable.
type network struct {
	mtx         sync.Mutex
	propagators map[uint32]*Propagator
	queue       []delivery
}

type delivery struct {
	to  uint32
	env *Envelope
}

func (n *network) senderFor() Sender {
	return func(peer *peers.Peer, env *Envelope) error {
		n.mtx.Lock()
		defer n.mtx.Unlock()
		n.queue = append(n.queue, delivery{to: peer.ID(), env: env})
		return nil
	}
}

// step delivers every queued envelope, collecting the sends those receipts
// generate for the next round. Returns the number of deliveries made.
func (n *network) step() int {
	n.mtx.Lock()
	batch := n.queue
	n.queue = nil
	n.mtx.Unlock()

	for _, d := range batch {
		n.propagators[d.to].Receive(d.env)
	}
	return len(batch)
}

func newTestNetwork(t *testing.T, peerSet *peers.PeerSet) *network {
	n := &network{propagators: map[uint32]*Propagator{}}
	for _, p := range peerSet.Peers {
		n.propagators[p.ID()] = NewPropagator(peerSet, p.ID(), 1000, n.senderFor(), cm.NewTestEntry(t))
	}
	return n
}

func TestBroadcastReachesAllPeers(t *testing.T) {
	for _, size := range []int{5, 14, 40} {
		peerSet := newTestPeers(t, size)
		net := newTestNetwork(t, peerSet)

		origin := peerSet.Peers[0].ID()
		env := NewEnvelope(BlockItem, []byte("judgment"), DefaultHopLimit)
		net.propagators[origin].Broadcast(env)

		maxRounds := int(math.Ceil(math.Log(float64(size)) / math.Log(float64(Fanout))))
		if maxRounds < 1 {
			maxRounds = 1
		}
		// one extra round to flush relays that were queued on the last hop
		for i := 0; i <= maxRounds; i++ {
			net.step()
		}

		for id, p := range net.propagators {
			if !p.Seen(env.Digest()) {
				t.Fatalf("size %d: peer %d never saw the item", size, id)
			}
		}
	}
}

func TestFanoutSize(t *testing.T) {
	peerSet := newTestPeers(t, 40)
	net := newTestNetwork(t, peerSet)

	origin := peerSet.Peers[0].ID()
	net.propagators[origin].Broadcast(NewEnvelope(VoteItem, []byte("v"), DefaultHopLimit))

	if sent := net.step(); sent != Fanout {
		t.Fatalf("expected %d first-round sends, got %d", Fanout, sent)
	}
}

func TestFanoutCoversSmallPeerSet(t *testing.T) {
	peerSet := newTestPeers(t, 5)
	net := newTestNetwork(t, peerSet)

	origin := peerSet.Peers[0].ID()
	net.propagators[origin].Broadcast(NewEnvelope(VoteItem, []byte("v"), DefaultHopLimit))

	// with 4 selectable peers every one of them gets the item immediately
	if sent := net.step(); sent != 4 {
		t.Fatalf("expected 4 first-round sends, got %d", sent)
	}
}

func TestReceiveIdempotent(t *testing.T) {
	peerSet := newTestPeers(t, 3)
	net := newTestNetwork(t, peerSet)

	p := net.propagators[peerSet.Peers[0].ID()]
	env := NewEnvelope(BlockItem, []byte("once"), DefaultHopLimit)

	if !p.Receive(env) {
		t.Fatal("first receive should be accepted")
	}

	net.mtx.Lock()
	queued := len(net.queue)
	net.mtx.Unlock()

	if p.Receive(env) {
		t.Fatal("duplicate receive should be dropped")
	}

	// the duplicate must not queue any relay of its own
	net.mtx.Lock()
	afterDup := len(net.queue)
	net.mtx.Unlock()

	if afterDup != queued {
		t.Fatalf("duplicate receive queued %d relays", afterDup-queued)
	}
}

func TestHopLimitStopsRelay(t *testing.T) {
	peerSet := newTestPeers(t, 3)
	net := newTestNetwork(t, peerSet)

	p := net.propagators[peerSet.Peers[0].ID()]

	if !p.Receive(NewEnvelope(BlockItem, []byte("last hop"), 1)) {
		t.Fatal("receive should be accepted")
	}
	if sent := net.step(); sent != 0 {
		t.Fatalf("exhausted envelope should not be relayed, got %d sends", sent)
	}
}

func TestBroadcastTwiceIsNoop(t *testing.T) {
	peerSet := newTestPeers(t, 20)
	net := newTestNetwork(t, peerSet)

	origin := peerSet.Peers[0].ID()
	env := NewEnvelope(BatchItem, []byte("root"), DefaultHopLimit)

	net.propagators[origin].Broadcast(env)
	first := net.step()

	net.propagators[origin].Broadcast(env)
	// only the relays of the first wave may be in flight now
	if second := net.step(); second > first*Fanout {
		t.Fatalf("re-broadcast generated new sends: %d", second)
	}
}

func testPayload(seed float64) []float64 {
	payload := make([]float64, ledger.PayloadLen)
	for i := range payload {
		payload[i] = seed
	}
	return payload
}

func newTestStoreWithChains(t *testing.T, lengths map[string]int) (ledger.Store, map[string]*ledger.Chain) {
	store := ledger.NewInmemStore(100)
	chains := map[string]*ledger.Chain{}

	for name, length := range lengths {
		key, err := keys.GenerateECDSAKey()
		if err != nil {
			t.Fatal(err)
		}
		chain := ledger.NewChain(name)
		for i := 0; i < length; i++ {
			block, err := chain.Append(testPayload(0.5), key)
			if err != nil {
				t.Fatal(err)
			}
			if err := store.AppendBlock(name, block); err != nil {
				t.Fatal(err)
			}
		}
		chains[name] = chain
	}

	return store, chains
}

func TestSummaryChecksumStable(t *testing.T) {
	store, _ := newTestStoreWithChains(t, map[string]int{"alice": 3, "bob": 2})

	s1, err := NewSummary(store)
	if err != nil {
		t.Fatal(err)
	}
	s2, err := NewSummary(store)
	if err != nil {
		t.Fatal(err)
	}

	if !s1.Equals(s2) {
		t.Fatal("summaries of identical stores should be equal")
	}

	if s1.Known["alice"] != 2 || s1.Known["bob"] != 1 {
		t.Fatalf("unexpected frontier: %v", s1.Known)
	}
}

func TestMissingBlocks(t *testing.T) {
	store, _ := newTestStoreWithChains(t, map[string]int{"alice": 4, "bob": 2})

	remote := &Summary{Known: map[string]int{"alice": 1}}
	remote.Checksum = "ignored"

	missing, err := MissingBlocks(store, remote)
	if err != nil {
		t.Fatal(err)
	}

	// alice blocks 2..3 plus bob's whole chain
	if len(missing) != 4 {
		t.Fatalf("expected 4 missing blocks, got %d", len(missing))
	}

	for _, block := range missing {
		if block.AuthorID() == "alice" && block.Index() < 2 {
			t.Fatalf("alice block %d should not be resent", block.Index())
		}
	}
}

func TestMissingBlocksUpToDate(t *testing.T) {
	store, _ := newTestStoreWithChains(t, map[string]int{"alice": 3})

	remote, err := NewSummary(store)
	if err != nil {
		t.Fatal(err)
	}

	missing, err := MissingBlocks(store, remote)
	if err != nil {
		t.Fatal(err)
	}
	if len(missing) != 0 {
		t.Fatalf("up-to-date remote should get nothing, got %d blocks", len(missing))
	}
}

func TestResolveFork(t *testing.T) {
	finalized := ForkCandidate{Root: "bbbb", Confidence: 0.618034, Finalized: true}
	open := ForkCandidate{Root: "aaaa", Confidence: 0.9, Finalized: false}

	if got := ResolveFork(open, finalized); got.Root != "bbbb" {
		t.Fatal("finalized candidate should beat an unfinalized one")
	}

	weak := ForkCandidate{Root: "aaaa", Confidence: 0.5, Finalized: true}
	if got := ResolveFork(weak, finalized); got.Root != "bbbb" {
		t.Fatal("higher confidence should win between finalized candidates")
	}

	tieA := ForkCandidate{Root: "aaaa", Confidence: 0.618034, Finalized: true}
	tieB := ForkCandidate{Root: "bbbb", Confidence: 0.618034, Finalized: true}
	if got := ResolveFork(tieB, tieA); got.Root != "aaaa" {
		t.Fatal("ties should break to the lexicographically smaller root")
	}
	if got := ResolveFork(tieA, tieB); got.Root != "aaaa" {
		t.Fatal("tie break should not depend on argument order")
	}
}
