package node

import (
	"crypto/ecdsa"
	"fmt"
	"testing"
	"time"

	"github.com/veridict/veridict/src/consensus"
	"github.com/veridict/veridict/src/crypto/keys"
	"github.com/veridict/veridict/src/gossip"
	"github.com/veridict/veridict/src/ledger"
	"github.com/veridict/veridict/src/merkle"
	"github.com/veridict/veridict/src/net"
	"github.com/veridict/veridict/src/peers"
	"github.com/veridict/veridict/src/privacy"
)

func initPeers(t *testing.T, n int, weights []float64) ([]*ecdsa.PrivateKey, *peers.PeerSet) {
	nodeKeys := []*ecdsa.PrivateKey{}
	nodePeers := []*peers.Peer{}

	for i := 0; i < n; i++ {
		key, err := keys.GenerateECDSAKey()
		if err != nil {
			t.Fatal(err)
		}

		peer := peers.NewPeer(
			keys.PublicKeyHex(&key.PublicKey),
			fmt.Sprintf("127.0.0.1:%d", 9990+i),
			fmt.Sprintf("peer%d", i),
		)
		if weights != nil {
			peer.Weight = weights[i]
		}

		nodeKeys = append(nodeKeys, key)
		nodePeers = append(nodePeers, peer)
	}

	return nodeKeys, peers.NewPeerSet(nodePeers)
}

func initNodes(t *testing.T, n int) ([]*Node, []*ecdsa.PrivateKey) {
	nodeKeys, peerSet := initPeers(t, n, nil)

	transports := []*net.InmemTransport{}
	addrs := []string{}
	for i := range peerSet.Peers {
		addr, trans := net.NewInmemTransport(peerSet.Peers[i].NetAddr)
		transports = append(transports, trans)
		addrs = append(addrs, addr)
	}
	for i, trans := range transports {
		for j, other := range transports {
			if i != j {
				trans.Connect(addrs[j], other)
			}
		}
	}

	nodes := []*Node{}
	for i, key := range nodeKeys {
		conf := TestConfig(t)
		store := ledger.NewInmemStore(conf.CacheSize)
		node := NewNode(conf, NewValidator(key, peerSet.Peers[i].Moniker), peerSet, store, transports[i])
		if err := node.Init(); err != nil {
			t.Fatal(err)
		}
		nodes = append(nodes, node)
	}

	return nodes, nodeKeys
}

func shutdownNodes(nodes []*Node) {
	for _, n := range nodes {
		n.Shutdown()
	}
}

func TestValidatorID(t *testing.T) {
	nodeKeys, peerSet := initPeers(t, 1, nil)

	validator := NewValidator(nodeKeys[0], "peer0")

	// the validator must derive the same ID the peer set holds for its
	// public key, otherwise the membership check at Init always suspends
	if validator.ID() != peerSet.Peers[0].ID() {
		t.Fatalf("validator ID %d does not match peer ID %d", validator.ID(), peerSet.Peers[0].ID())
	}
	if _, ok := peerSet.ByID[validator.ID()]; !ok {
		t.Fatal("validator should be found in the peer set by ID")
	}
}

func TestInitReturns(t *testing.T) {
	nodeKeys, peerSet := initPeers(t, 1, nil)

	conf := TestConfig(t)
	store := ledger.NewInmemStore(conf.CacheSize)
	_, trans := net.NewInmemTransport(peerSet.Peers[0].NetAddr)

	node := NewNode(conf, NewValidator(nodeKeys[0], "peer0"), peerSet, store, trans)

	done := make(chan error, 1)
	go func() { done <- node.Init() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Init should return; the budget reset loop runs in the background")
	}

	node.Shutdown()
}

func testJudgment(seed float64) []float64 {
	payload := make([]float64, ledger.PayloadLen)
	for i := range payload {
		payload[i] = seed
	}
	return payload
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestAddJudgment(t *testing.T) {
	nodes, _ := initNodes(t, 1)
	defer shutdownNodes(nodes)

	node := nodes[0]

	node.coreLock.Lock()
	block, err := node.core.AddJudgment(testJudgment(0.6))
	node.coreLock.Unlock()
	if err != nil {
		t.Fatal(err)
	}

	if block.Index() != 0 {
		t.Fatalf("first block should have index 0, got %d", block.Index())
	}
	if block.PrevHash != ledger.GenesisPrevHash {
		t.Fatalf("genesis prevHash mismatch: %s", block.PrevHash)
	}

	chain, err := node.GetChain(node.validator.PublicKeyHex())
	if err != nil {
		t.Fatal(err)
	}
	if len(chain) != 1 {
		t.Fatalf("expected 1 stored block, got %d", len(chain))
	}
}

func TestEpochBoundary(t *testing.T) {
	nodes, _ := initNodes(t, 1)
	defer shutdownNodes(nodes)

	node := nodes[0]

	hashes := []string{}
	node.coreLock.Lock()
	for i := 0; i < 3; i++ {
		block, err := node.core.AddJudgment(testJudgment(0.5 + float64(i)/100))
		if err != nil {
			node.coreLock.Unlock()
			t.Fatal(err)
		}
		h, _ := block.Hash()
		hashes = append(hashes, h)
	}

	res, err := node.core.CloseEpoch()
	node.coreLock.Unlock()
	if err != nil {
		t.Fatal(err)
	}

	if res.Batch.EpochID != 0 {
		t.Fatalf("first batch should be epoch 0, got %d", res.Batch.EpochID)
	}
	if len(res.Batch.Leaves) != 3 {
		t.Fatalf("expected 3 leaves, got %d", len(res.Batch.Leaves))
	}

	// the middle block of three needs two proof steps: its sibling, then
	// the promoted third leaf
	proof, err := node.GetProof(0, hashes[1])
	if err != nil {
		t.Fatal(err)
	}
	if len(proof.SiblingPath) != 2 {
		t.Fatalf("expected 2 siblings, got %d", len(proof.SiblingPath))
	}
	if !merkle.VerifyProof(proof, res.Batch.Root) {
		t.Fatal("inclusion proof should verify against the batch root")
	}

	// the boundary opened a round on the root and cast the self vote
	round, ok := node.GetRound(0)
	if !ok {
		t.Fatal("round 0 should be open")
	}
	if round.CandidateRoot != res.Batch.Root {
		t.Fatal("round should target the batch root")
	}
	if _, voted := round.Votes[node.validator.PublicKeyHex()]; !voted {
		t.Fatal("self vote should be recorded")
	}
}

func TestWeightedFinalization(t *testing.T) {
	nodeKeys, peerSet := initPeers(t, 3, []float64{0.4, 0.4, 0.2})

	conf := TestConfig(t)
	store := ledger.NewInmemStore(conf.CacheSize)
	budget := privacy.NewManager(conf.PrivacyBudget, conf.BudgetInterval, conf.Logger.WithField("test", t.Name()))
	core := NewCore(NewValidator(nodeKeys[0], "peer0"), peerSet, store, budget, conf.VoteCost, conf.Logger)

	// three judgments from the local node, then the boundary
	for i := 0; i < 3; i++ {
		if _, err := core.AddJudgment(testJudgment(0.7)); err != nil {
			t.Fatal(err)
		}
	}

	res, err := core.CloseEpoch()
	if err != nil {
		t.Fatal(err)
	}

	// peers 1 and 2 vote at full declared certainty; the cap keeps each
	// vote at the confidence ceiling
	for _, key := range nodeKeys[1:] {
		vote, err := consensus.NewSignedVote(0, res.Batch.Root, 1.0, key)
		if err != nil {
			t.Fatal(err)
		}
		if err := core.ReceiveVote(vote); err != nil {
			t.Fatal(err)
		}
	}

	// next boundary seals round 0
	res2, err := core.CloseEpoch()
	if err != nil {
		t.Fatal(err)
	}
	sealed := res2.SealedRound

	if sealed == nil {
		t.Fatal("second boundary should seal round 0")
	}
	if sealed.Status != consensus.Finalized {
		t.Fatalf("round should be Finalized, got %s", sealed.Status.String())
	}
	if sealed.WeightedConfidence != 0.618034 {
		t.Fatalf("finalized confidence should be exactly 0.618034, got %f", sealed.WeightedConfidence)
	}
	if sealed.MinDoubt != 0.381966 {
		t.Fatalf("min doubt should be exactly 0.381966, got %f", sealed.MinDoubt)
	}
}

func TestBatchForkResolution(t *testing.T) {
	nodeKeys, peerSet := initPeers(t, 2, nil)

	conf := TestConfig(t)
	store := ledger.NewInmemStore(conf.CacheSize)
	budget := privacy.NewManager(conf.PrivacyBudget, conf.BudgetInterval, conf.Logger.WithField("test", t.Name()))
	core := NewCore(NewValidator(nodeKeys[0], "peer0"), peerSet, store, budget, conf.VoteCost, conf.Logger)

	if _, err := core.AddJudgment(testJudgment(0.5)); err != nil {
		t.Fatal(err)
	}
	res, err := core.CloseEpoch()
	if err != nil {
		t.Fatal(err)
	}
	localRoot := res.Batch.Root

	// a peer announces a diverging batch for the same epoch, finalized on
	// its side: the remote batch must replace the stored one
	remote := merkle.Build(0, []string{"deadbeef"})
	if remote.Root == localRoot {
		t.Fatal("test requires diverging roots")
	}

	notice := &gossip.BatchNotice{Batch: remote, Confidence: 0.618034, Finalized: true}
	if err := core.HandleBatch(notice); err != nil {
		t.Fatal(err)
	}

	stored, err := store.GetBatch(0)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Root != remote.Root {
		t.Fatalf("finalized remote batch should replace the local one, got root %s", stored.Root)
	}

	// an unfinalized notice with no more confidence than the local round
	// leaves the stored batch alone
	weaker := merkle.Build(0, []string{"cafebabe"})
	if err := core.HandleBatch(&gossip.BatchNotice{Batch: weaker}); err != nil {
		t.Fatal(err)
	}

	stored, err = store.GetBatch(0)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Root != remote.Root {
		t.Fatal("unfinalized weaker notice should not displace the stored batch")
	}
}

func TestGossipConvergence(t *testing.T) {
	nodes, _ := initNodes(t, 3)
	defer shutdownNodes(nodes)

	for _, n := range nodes {
		n.RunAsync(true)
	}

	if err := nodes[0].Submit(testJudgment(0.5)); err != nil {
		t.Fatal(err)
	}

	originID := nodes[0].validator.PublicKeyHex()

	// the block reaches every node through push gossip or anti-entropy
	for _, n := range nodes[1:] {
		node := n
		waitFor(t, 3*time.Second, func() bool {
			chain, err := node.GetChain(originID)
			return err == nil && len(chain) == 1
		})
	}
}

func TestSuspendedNode(t *testing.T) {
	_, peerSet := initPeers(t, 1, nil)

	// a key outside the peer set
	strangerKey, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}

	conf := TestConfig(t)
	store := ledger.NewInmemStore(conf.CacheSize)
	_, trans := net.NewInmemTransport("")
	node := NewNode(conf, NewValidator(strangerKey, "stranger"), peerSet, store, trans)
	defer node.Shutdown()

	if err := node.Init(); err != nil {
		t.Fatal(err)
	}

	if node.getState() != Suspended {
		t.Fatalf("node outside the peer set should be Suspended, got %s", node.getState().String())
	}

	if err := node.Submit(testJudgment(0.5)); err == nil {
		t.Fatal("suspended node should refuse submissions")
	}
}
