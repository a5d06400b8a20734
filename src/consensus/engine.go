package consensus

import (
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/veridict/veridict/src/peers"
	"github.com/veridict/veridict/src/privacy"
)

// Engine runs one voting round per epoch. Rejected rounds are retained for
// audit but contribute no canonical state, and no round ever re-opens or
// carries votes into a later epoch.
type Engine struct {
	mtx sync.Mutex

	peerSet  *peers.PeerSet
	budget   *privacy.Manager
	voteCost float64

	rounds map[int]*Round
	logger *logrus.Entry
}

// NewEngine ...
func NewEngine(peerSet *peers.PeerSet, budget *privacy.Manager, voteCost float64, logger *logrus.Entry) *Engine {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	return &Engine{
		peerSet:  peerSet,
		budget:   budget,
		voteCost: voteCost,
		rounds:   make(map[int]*Round),
		logger:   logger.WithField("component", "consensus"),
	}
}

// OpenRound opens the voting round for an epoch's candidate root. Opening an
// epoch twice is an error; rounds never re-open.
func (e *Engine) OpenRound(epochID int, candidateRoot string) (*Round, error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	if _, ok := e.rounds[epochID]; ok {
		return nil, RoundClosedError{EpochID: epochID}
	}

	round := NewRound(epochID, candidateRoot, e.peerSet.TotalWeight())
	e.rounds[epochID] = round

	e.logger.WithFields(logrus.Fields{
		"epoch": epochID,
		"root":  candidateRoot,
	}).Debug("round opened")

	return round, nil
}

// ReceiveVote validates a vote and applies it to its epoch's round: verify
// the signature, bound the declared confidence, match the target root
// against the round's candidate, reject unknown voters and duplicates,
// debit the voter's privacy budget, then accumulate confidence × weight.
// Every failure is a
// typed, expected value; the caller drops the vote and moves on.
func (e *Engine) ReceiveVote(vote *Vote) error {
	ok, err := vote.Verify()
	if err != nil {
		return err
	}
	if !ok {
		return InvalidSignatureError{VoterID: vote.VoterID()}
	}

	e.mtx.Lock()
	defer e.mtx.Unlock()

	if vote.Confidence() < 0 || vote.Confidence() > MaxConfidence {
		return InvalidConfidenceError{VoterID: vote.VoterID(), Confidence: vote.Confidence()}
	}

	round, found := e.rounds[vote.Body.EpochID]
	if !found || round.Status != Open {
		return RoundClosedError{EpochID: vote.Body.EpochID}
	}

	if vote.Body.TargetRoot != round.CandidateRoot {
		return TargetMismatchError{
			EpochID:    round.EpochID,
			VoterID:    vote.VoterID(),
			TargetRoot: vote.Body.TargetRoot,
		}
	}

	peer, known := e.peerSet.ByPubKey[vote.VoterID()]
	if !known {
		return UnknownVoterError{VoterID: vote.VoterID()}
	}

	if _, dup := round.Votes[vote.VoterID()]; dup {
		return DuplicateVoteError{EpochID: round.EpochID, VoterID: vote.VoterID()}
	}

	// check-then-debit is atomic inside the manager; exhaustion drops the
	// vote for this round only
	if err := e.budget.CheckAndDebit(vote.VoterID(), e.voteCost); err != nil {
		return err
	}

	return round.addVote(vote, peer.VoteWeight())
}

// Seal closes an epoch's round, transitioning it to Finalized or Rejected.
// Sealing an unknown epoch is a RoundClosedError; sealing twice is a no-op
// returning the round as already sealed.
func (e *Engine) Seal(epochID int) (*Round, error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	round, ok := e.rounds[epochID]
	if !ok {
		return nil, RoundClosedError{EpochID: epochID}
	}

	round.seal()

	e.logger.WithFields(logrus.Fields{
		"epoch":      epochID,
		"status":     round.Status.String(),
		"confidence": round.WeightedConfidence,
		"min_doubt":  round.MinDoubt,
		"votes":      len(round.Votes),
	}).Debug("round sealed")

	return round, nil
}

// GetRound returns an epoch's round, open or sealed. Rejected rounds remain
// readable here for audit.
func (e *Engine) GetRound(epochID int) (*Round, bool) {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	round, ok := e.rounds[epochID]
	return round, ok
}

// Rounds returns the epochs with a recorded round.
func (e *Engine) Rounds() []int {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	res := make([]int, 0, len(e.rounds))
	for epochID := range e.rounds {
		res = append(res, epochID)
	}
	return res
}
