package gossip

import (
	"encoding/binary"
	"fmt"
	"sort"

	"lukechampine.com/blake3"

	cm "github.com/veridict/veridict/src/common"
	"github.com/veridict/veridict/src/ledger"
)

// Summary is a compact digest of a node's ledger state, exchanged during
// anti-entropy pulls. Known maps chain IDs to the last block index held for
// that chain; Checksum commits to the whole map so equal summaries can
// short-circuit a sync.
type Summary struct {
	Known    map[string]int
	Checksum string
}

// NewSummary builds a Summary from the store's known chains.
func NewSummary(store ledger.Store) (*Summary, error) {
	known := map[string]int{}
	for _, chainID := range store.KnownChains() {
		last, err := store.LastBlock(chainID)
		if err != nil {
			if cm.IsStore(err, cm.Empty) {
				continue
			}
			return nil, err
		}
		known[chainID] = last.Index()
	}

	return &Summary{
		Known:    known,
		Checksum: summaryChecksum(known),
	}, nil
}

// summaryChecksum hashes the (chainID, lastIndex) pairs in chain order.
func summaryChecksum(known map[string]int) string {
	chains := make([]string, 0, len(known))
	for id := range known {
		chains = append(chains, id)
	}
	sort.Strings(chains)

	h := blake3.New(32, nil)
	buf := make([]byte, 8)
	for _, id := range chains {
		h.Write([]byte(id))
		binary.BigEndian.PutUint64(buf, uint64(known[id]))
		h.Write(buf)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Equals reports whether two summaries describe the same frontier.
func (s *Summary) Equals(other *Summary) bool {
	return other != nil && s.Checksum == other.Checksum
}

// MissingBlocks returns, in chain order per author, every block the store
// holds beyond the remote summary's frontier. Chains the remote has never
// heard of contribute all their blocks.
func MissingBlocks(store ledger.Store, remote *Summary) ([]*ledger.JudgmentBlock, error) {
	res := []*ledger.JudgmentBlock{}

	chains := store.KnownChains()
	sort.Strings(chains)

	for _, chainID := range chains {
		blocks, err := store.Chain(chainID)
		if err != nil {
			if cm.IsStore(err, cm.Empty) {
				continue
			}
			return nil, err
		}

		from := 0
		if remoteLast, ok := remote.Known[chainID]; ok {
			from = remoteLast + 1
		}

		for _, block := range blocks {
			if block.Index() >= from {
				res = append(res, block)
			}
		}
	}

	return res, nil
}
