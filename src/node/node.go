package node

import (
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/veridict/veridict/src/consensus"
	"github.com/veridict/veridict/src/gossip"
	"github.com/veridict/veridict/src/ledger"
	"github.com/veridict/veridict/src/merkle"
	"github.com/veridict/veridict/src/net"
	"github.com/veridict/veridict/src/peers"
	"github.com/veridict/veridict/src/privacy"
)

//Node defines a veridict node
type Node struct {
	state

	conf   *Config
	logger *logrus.Entry

	validator *Validator
	peers     *peers.PeerSet

	core     *Core
	coreLock sync.Mutex

	budget     *privacy.Manager
	propagator *gossip.Propagator

	trans net.Transport
	netCh <-chan net.RPC

	submitCh chan []float64

	sigintCh   chan os.Signal
	shutdownCh chan struct{}

	controlTimer *ControlTimer

	start        time.Time
	pullRequests int
	pullErrors   int
}

//NewNode is a factory method that returns a Node instance
func NewNode(conf *Config,
	validator *Validator,
	peerSet *peers.PeerSet,
	store ledger.Store,
	trans net.Transport,
) *Node {
	//Prepare sigintCh to relay SIGINT system calls
	sigintCh := make(chan os.Signal, 1)
	signal.Notify(sigintCh, os.Interrupt, syscall.SIGINT)

	budget := privacy.NewManager(conf.PrivacyBudget, conf.BudgetInterval, conf.Logger.WithField("this_id", validator.ID()))

	node := Node{
		validator:    validator,
		conf:         conf,
		peers:        peerSet,
		logger:       conf.Logger.WithField("this_id", validator.ID()),
		core:         NewCore(validator, peerSet, store, budget, conf.VoteCost, conf.Logger),
		budget:       budget,
		trans:        trans,
		netCh:        trans.Consumer(),
		submitCh:     make(chan []float64, 64),
		sigintCh:     sigintCh,
		shutdownCh:   make(chan struct{}),
		controlTimer: NewEpochControlTimer(),
	}

	node.propagator = gossip.NewPropagator(peerSet, validator.ID(), conf.CacheSize, node.sendEnvelope, node.logger)

	return &node
}

//Init initialises the node
func (n *Node) Init() error {
	if err := n.core.Bootstrap(); err != nil {
		return err
	}

	go n.budget.Start()

	if _, ok := n.peers.ByID[n.validator.ID()]; ok {
		n.logger.Debug("Node belongs to PeerSet")
		n.setState(Gossiping)
	} else {
		n.logger.Debug("Node does not belong to PeerSet => Suspended")
		n.setState(Suspended)
	}

	n.start = time.Now()

	return nil
}

//RunAsync calls Run as a separate thread
func (n *Node) RunAsync(gossip bool) {
	n.logger.WithField("gossip", gossip).Debug("runasync")

	go n.Run(gossip)
}

//Run invokes the main loop of the node
func (n *Node) Run(gossip bool) {
	//The ControlTimer fires the epoch boundary while the node is in the
	//Gossiping state.
	go n.controlTimer.Run(n.conf.EpochInterval)

	//Execute some background work regardless of the state of the node.
	go n.doBackgroundWork()

	//Execute Node State Machine
	for {
		//Run different routines depending on node state
		state := n.getState()

		n.logger.WithField("state", state.String()).Debug("Run loop")

		switch state {
		case Gossiping:
			n.gossiping(gossip)
		case Suspended:
			n.suspended()
		case Shutdown:
			return
		}
	}
}

func (n *Node) doBackgroundWork() {
	for {
		select {
		case rpc := <-n.netCh:
			n.goFunc(func() {
				n.logger.Debug("Processing RPC")
				n.processRPC(rpc)
			})
		case payload := <-n.submitCh:
			n.logger.Debug("Adding Judgment")
			n.addJudgment(payload)
		case <-n.shutdownCh:
			return
		case <-n.sigintCh:
			n.logger.Debug("Reacting to SIGINT - SHUTDOWN")
			n.Shutdown()
			os.Exit(0)
		}
	}
}

// gossiping processes epoch ticks while the node is in the Gossiping state:
// close the epoch, broadcast the new batch root and self vote, and run an
// anti-entropy pull against one random peer.
func (n *Node) gossiping(gossip bool) {
	n.logger.Debug("GOSSIPING")

	for {
		select {
		case <-n.controlTimer.tickCh:
			n.goFunc(func() {
				n.closeEpoch(gossip)
				if gossip {
					n.pull()
				}
			})
		case <-n.shutdownCh:
			return
		}
	}
}

// suspended waits for shutdown. A suspended node still answers RPCs through
// doBackgroundWork, so peers can pull from it, but it neither gossips nor
// closes epochs.
func (n *Node) suspended() {
	n.logger.Debug("SUSPENDED")

	<-n.shutdownCh
}

//Submit accepts a judgment vector from the application
func (n *Node) Submit(payload []float64) error {
	if n.getState() != Gossiping {
		return fmt.Errorf("node is not gossiping")
	}

	select {
	case n.submitCh <- payload:
		return nil
	case <-n.shutdownCh:
		return fmt.Errorf("node is shut down")
	}
}

func (n *Node) addJudgment(payload []float64) {
	n.coreLock.Lock()
	block, err := n.core.AddJudgment(payload)
	n.coreLock.Unlock()

	if err != nil {
		n.logger.WithError(err).Error("addJudgment")
		return
	}

	wire, err := block.Marshal()
	if err != nil {
		n.logger.WithError(err).Error("marshalling own block")
		return
	}

	n.propagator.Broadcast(gossip.NewEnvelope(gossip.BlockItem, wire, n.conf.HopLimit))
}

func (n *Node) closeEpoch(gossip bool) {
	n.coreLock.Lock()
	res, err := n.core.CloseEpoch()
	n.coreLock.Unlock()

	if err != nil {
		n.logger.WithError(err).Error("closeEpoch")
		return
	}

	n.propagator.PruneExpired()

	if gossip {
		n.broadcastEpoch(res)
	}

	n.logStats()
}

func (n *Node) broadcastEpoch(res *EpochResult) {
	notice := &gossip.BatchNotice{Batch: res.Batch}

	n.coreLock.Lock()
	if round, ok := n.core.GetRound(res.Batch.EpochID); ok {
		notice.Confidence = round.CurrentConfidence()
		notice.Finalized = round.Status == consensus.Finalized
	}
	n.coreLock.Unlock()

	batchWire, err := notice.Marshal()
	if err != nil {
		n.logger.WithError(err).Error("marshalling batch")
		return
	}
	n.propagator.Broadcast(gossip.NewEnvelope(gossip.BatchItem, batchWire, n.conf.HopLimit))

	voteWire, err := res.SelfVote.Marshal()
	if err != nil {
		n.logger.WithError(err).Error("marshalling vote")
		return
	}
	n.propagator.Broadcast(gossip.NewEnvelope(gossip.VoteItem, voteWire, n.conf.HopLimit))
}

// pull runs one anti-entropy exchange with a random peer.
func (n *Node) pull() {
	_, others := peers.ExcludePeer(n.peers.Peers, n.validator.ID())
	if len(others) == 0 {
		return
	}
	peer := others[rand.Intn(len(others))]

	n.coreLock.Lock()
	known := n.core.KnownFrontier()
	n.coreLock.Unlock()

	start := time.Now()
	resp, err := n.requestPull(peer.NetAddr, known)
	elapsed := time.Since(start)
	n.logger.WithField("duration", elapsed.Nanoseconds()).Debug("requestPull()")

	n.pullRequests++

	if err != nil {
		n.pullErrors++
		n.logger.WithField("error", err).Error("requestPull()")
		return
	}

	n.logger.WithFields(logrus.Fields{
		"from_id": resp.FromID,
		"blocks":  len(resp.Blocks),
		"known":   resp.Known,
	}).Debug("PullResponse")

	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	for _, block := range resp.Blocks {
		if err := n.core.ApplyBlock(block); err != nil {
			n.logger.WithError(err).Debug("pull ApplyBlock")
		}
	}
}

// sendEnvelope is the Sender the propagator fans out through.
func (n *Node) sendEnvelope(peer *peers.Peer, env *gossip.Envelope) error {
	args := net.GossipRequest{
		FromID:   n.validator.ID(),
		Envelope: env,
	}

	var out net.GossipResponse

	return n.trans.Gossip(peer.NetAddr, &args, &out)
}

//Shutdown shuts down the node
func (n *Node) Shutdown() {
	if n.getState() != Shutdown {
		n.logger.Debug("Shutdown")

		//Exit any non-shutdown state immediately
		n.setState(Shutdown)

		//Stop and wait for concurrent operations
		close(n.shutdownCh)

		n.waitRoutines()

		n.controlTimer.Shutdown()

		n.budget.Shutdown()

		//transport and store should only be closed once all concurrent
		//operations are finished otherwise they will panic trying to use
		//closed objects
		n.trans.Close()

		n.core.store.Close()
	}
}

//GetStats returns stats
func (n *Node) GetStats() map[string]string {
	timeElapsed := time.Since(n.start)

	n.coreLock.Lock()
	epoch := n.core.Epoch()
	pendingHashes := len(n.core.EpochHashes())
	frontier := n.core.KnownFrontier()
	n.coreLock.Unlock()

	epochsPerSecond := float64(epoch) / timeElapsed.Seconds()

	s := map[string]string{
		"epoch":             strconv.Itoa(epoch),
		"pending_hashes":    strconv.Itoa(pendingHashes),
		"known_chains":      strconv.Itoa(len(frontier)),
		"num_peers":         strconv.Itoa(n.peers.Len()),
		"pull_rate":         strconv.FormatFloat(n.PullRate(), 'f', 2, 64),
		"epochs_per_second": strconv.FormatFloat(epochsPerSecond, 'f', 2, 64),
		"id":                fmt.Sprint(n.validator.ID()),
		"state":             n.getState().String(),
		"moniker":           n.validator.Moniker,
	}
	return s
}

func (n *Node) logStats() {
	stats := n.GetStats()

	n.logger.WithFields(logrus.Fields{
		"epoch":          stats["epoch"],
		"pending_hashes": stats["pending_hashes"],
		"known_chains":   stats["known_chains"],
		"num_peers":      stats["num_peers"],
		"pull_rate":      stats["pull_rate"],
		"epochs/s":       stats["epochs_per_second"],
		"id":             stats["id"],
		"state":          stats["state"],
		"moniker":        stats["moniker"],
	}).Debug("Stats")
}

//PullRate returns the fraction of successful anti-entropy pulls
func (n *Node) PullRate() float64 {
	var pullErrorRate float64

	if n.pullRequests != 0 {
		pullErrorRate = float64(n.pullErrors) / float64(n.pullRequests)
	}

	return 1 - pullErrorRate
}

//GetBlock returns a block by hash
func (n *Node) GetBlock(hash string) (*ledger.JudgmentBlock, error) {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	return n.core.store.GetBlock(hash)
}

//GetChain returns the ordered blocks of a chain
func (n *Node) GetChain(chainID string) ([]*ledger.JudgmentBlock, error) {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	return n.core.store.Chain(chainID)
}

//GetRound returns an epoch's voting round
func (n *Node) GetRound(epochID int) (*consensus.Round, bool) {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	return n.core.GetRound(epochID)
}

//GetProof returns an inclusion proof for a block hash in an epoch's batch
func (n *Node) GetProof(epochID int, leafHash string) (*merkle.InclusionProof, error) {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	return n.core.Prove(epochID, leafHash)
}

//ID returns the validator ID
func (n *Node) ID() uint32 {
	return n.validator.ID()
}

//Moniker returns the validator moniker
func (n *Node) Moniker() string {
	return n.validator.Moniker
}

//GetPeers returns the peers
func (n *Node) GetPeers() []*peers.Peer {
	return n.peers.Peers
}
