package node

import (
	"github.com/sirupsen/logrus"
	cm "github.com/veridict/veridict/src/common"
	"github.com/veridict/veridict/src/consensus"
	"github.com/veridict/veridict/src/gossip"
	"github.com/veridict/veridict/src/ledger"
	"github.com/veridict/veridict/src/merkle"
	"github.com/veridict/veridict/src/peers"
	"github.com/veridict/veridict/src/privacy"
	"github.com/veridict/veridict/src/score"
)

// Core wraps the protocol state of one node: the per-author judgment chains,
// the epoch counter with its observed block hashes, the voting engine and
// the privacy budgets. Core methods are not safe for concurrent use; the
// Node serialises access through coreLock.
type Core struct {
	validator *Validator
	peers     *peers.PeerSet

	store  ledger.Store
	chains map[string]*ledger.Chain

	engine  *consensus.Engine
	budget  *privacy.Manager
	reducer score.Reducer

	epoch       int
	epochHashes []string
	epochScores []float64

	logger *logrus.Entry
}

// EpochResult is what an epoch boundary produces: the sealed round of the
// previous epoch (nil on the first boundary), the batch that was just built,
// and the node's own signed vote on its root.
type EpochResult struct {
	SealedRound *consensus.Round
	Batch       *merkle.Batch
	SelfVote    *consensus.Vote
}

// NewCore ...
func NewCore(validator *Validator,
	peerSet *peers.PeerSet,
	store ledger.Store,
	budget *privacy.Manager,
	voteCost float64,
	logger *logrus.Logger) *Core {

	entry := logger.WithField("this_id", validator.ID())

	core := &Core{
		validator: validator,
		peers:     peerSet,
		store:     store,
		chains:    make(map[string]*ledger.Chain),
		engine:    consensus.NewEngine(peerSet, budget, voteCost, entry),
		budget:    budget,
		reducer:   score.NewUniformReducer(ledger.PayloadLen),
		epoch:     store.LastEpoch() + 1,
		logger:    entry,
	}

	core.chains[validator.PublicKeyHex()] = ledger.NewChain(validator.PublicKeyHex())

	return core
}

// Bootstrap rebuilds the in-memory chains from the store. It is called after
// the store has replayed its own database, so every stored chain is intact.
func (c *Core) Bootstrap() error {
	for _, chainID := range c.store.KnownChains() {
		blocks, err := c.store.Chain(chainID)
		if err != nil {
			return err
		}

		chain, err := ledger.NewChainFromBlocks(chainID, blocks)
		if err != nil {
			return err
		}

		c.chains[chainID] = chain
	}

	c.epoch = c.store.LastEpoch() + 1

	return nil
}

// AddJudgment appends a signed judgment block to the node's own chain and
// records it for the current epoch's batch.
func (c *Core) AddJudgment(payload []float64) (*ledger.JudgmentBlock, error) {
	chain := c.chains[c.validator.PublicKeyHex()]

	block, err := chain.Append(payload, c.validator.Key)
	if err != nil {
		return nil, err
	}

	if err := c.store.AppendBlock(chain.AuthorID(), block); err != nil {
		return nil, err
	}

	hash, err := block.Hash()
	if err != nil {
		return nil, err
	}

	c.epochHashes = append(c.epochHashes, hash)

	reduced, err := c.reducer.Reduce(block.Payload())
	if err != nil {
		return nil, err
	}
	c.epochScores = append(c.epochScores, reduced)

	c.logger.WithFields(logrus.Fields{
		"index": block.Index(),
		"hash":  hash,
		"score": reduced,
	}).Debug("judgment added")

	return block, nil
}

// ApplyBlock integrates a block received from a peer: the author must belong
// to the peer set and the block must extend its author's chain. Blocks
// already held are skipped; gaps are errors, left for anti-entropy to
// repair.
func (c *Core) ApplyBlock(block *ledger.JudgmentBlock) error {
	authorID := block.AuthorID()

	author, known := c.peers.ByPubKey[authorID]
	if !known {
		return cm.NewStoreErr("ChainStore", cm.UnknownAuthor, authorID)
	}

	chain, ok := c.chains[authorID]
	if !ok {
		chain = ledger.NewChain(authorID)
		c.chains[authorID] = chain
	}

	if last := chain.Last(); last != nil && block.Index() <= last.Index() {
		return nil
	}

	if err := chain.AppendBlock(block); err != nil {
		return err
	}

	if err := c.store.AppendBlock(authorID, block); err != nil {
		return err
	}

	hash, err := block.Hash()
	if err != nil {
		return err
	}

	c.epochHashes = append(c.epochHashes, hash)

	c.logger.WithFields(logrus.Fields{
		"author": author.ShortID(),
		"index":  block.Index(),
	}).Debug("peer block applied")

	return nil
}

// ReceiveVote feeds a peer's vote to the engine. Failures are expected
// values; the vote is dropped and the caller moves on.
func (c *Core) ReceiveVote(vote *consensus.Vote) error {
	return c.engine.ReceiveVote(vote)
}

// CloseEpoch runs the epoch boundary: seal the previous epoch's round, build
// and store the batch over the hashes observed this epoch, open the next
// round on its root and cast the node's own vote.
func (c *Core) CloseEpoch() (*EpochResult, error) {
	res := &EpochResult{}

	if c.epoch > 0 {
		sealed, err := c.engine.Seal(c.epoch - 1)
		if err != nil && !consensus.IsRoundClosed(err) {
			return nil, err
		}
		res.SealedRound = sealed
	}

	batch := merkle.Build(c.epoch, c.epochHashes)
	if err := c.store.StoreBatch(batch); err != nil {
		return nil, err
	}
	res.Batch = batch

	if _, err := c.engine.OpenRound(c.epoch, batch.Root); err != nil {
		return nil, err
	}

	vote, err := consensus.NewSignedVote(c.epoch, batch.Root, c.selfConfidence(), c.validator.Key)
	if err != nil {
		return nil, err
	}
	if err := c.engine.ReceiveVote(vote); err != nil {
		c.logger.WithError(err).Debug("own vote dropped")
	}
	res.SelfVote = vote

	c.logger.WithFields(logrus.Fields{
		"epoch":  c.epoch,
		"root":   batch.Root,
		"leaves": len(batch.Leaves),
	}).Debug("epoch closed")

	c.epoch++
	c.epochHashes = nil
	c.epochScores = nil

	return res, nil
}

// selfConfidence derives the node's declared confidence from the reduced
// scores of its own judgments this epoch. With no own judgments the node
// only concedes the doubt floor's complement of neutrality.
func (c *Core) selfConfidence() float64 {
	if len(c.epochScores) == 0 {
		return consensus.DoubtFloor
	}

	sum := 0.0
	for _, s := range c.epochScores {
		sum += s
	}
	return score.Truncate(sum / float64(len(c.epochScores)))
}

// HandleBatch integrates a batch notice received from a peer. A diverging
// root for a known epoch is a fork, resolved deterministically from the two
// rounds' states; when the remote side wins its batch replaces the stored
// one, and anti-entropy converges the chains behind it.
func (c *Core) HandleBatch(notice *gossip.BatchNotice) error {
	remote := notice.Batch

	local, err := c.store.GetBatch(remote.EpochID)
	if err != nil {
		if cm.IsStore(err, cm.KeyNotFound) || cm.IsStore(err, cm.NoBatch) {
			return c.store.StoreBatch(remote)
		}
		return err
	}

	if local.Root == remote.Root {
		return nil
	}

	localCand := gossip.ForkCandidate{Root: local.Root}
	if round, ok := c.engine.GetRound(remote.EpochID); ok {
		localCand.Confidence = round.CurrentConfidence()
		localCand.Finalized = round.Status == consensus.Finalized
	}

	remoteCand := gossip.ForkCandidate{
		Root:       remote.Root,
		Confidence: notice.Confidence,
		Finalized:  notice.Finalized,
	}

	winner := gossip.ResolveFork(localCand, remoteCand)

	c.logger.WithFields(logrus.Fields{
		"epoch":  remote.EpochID,
		"local":  local.Root,
		"remote": remote.Root,
		"winner": winner.Root,
	}).Warn("batch fork detected")

	if winner.Root == remote.Root {
		return c.store.ReplaceBatch(remote)
	}

	return nil
}

// Epoch returns the current (open) epoch.
func (c *Core) Epoch() int {
	return c.epoch
}

// EpochHashes returns the block hashes observed so far this epoch.
func (c *Core) EpochHashes() []string {
	return c.epochHashes
}

// KnownFrontier maps every known chain to its last stored block index.
func (c *Core) KnownFrontier() map[string]int {
	known := map[string]int{}
	for id, chain := range c.chains {
		if last := chain.Last(); last != nil {
			known[id] = last.Index()
		}
	}
	return known
}

// GetRound exposes an epoch's voting round.
func (c *Core) GetRound(epochID int) (*consensus.Round, bool) {
	return c.engine.GetRound(epochID)
}

// Prove produces the inclusion proof of a block hash in its epoch's batch.
func (c *Core) Prove(epochID int, leafHash string) (*merkle.InclusionProof, error) {
	batch, err := c.store.GetBatch(epochID)
	if err != nil {
		return nil, err
	}
	return batch.Prove(leafHash)
}
