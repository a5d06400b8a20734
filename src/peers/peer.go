package peers

import (
	"encoding/hex"

	"github.com/btcsuite/btcutil/base58"
	"github.com/veridict/veridict/src/common"
	"github.com/veridict/veridict/src/crypto"
)

// DefaultWeight is the vote weight given to peers that do not declare one.
const DefaultWeight = 1.0

// Peer is a participant in the judgment ledger.
type Peer struct {
	NetAddr   string  `json:"NetAddr"`
	PubKeyHex string  `json:"PubKeyHex"`
	Moniker   string  `json:"Moniker"`
	Weight    float64 `json:"Weight,omitempty"`

	id      uint32
	shortID string
}

// NewPeer instantiates a new Peer with the default vote weight.
func NewPeer(pubKeyHex, netAddr, moniker string) *Peer {
	peer := &Peer{
		PubKeyHex: pubKeyHex,
		NetAddr:   netAddr,
		Moniker:   moniker,
		Weight:    DefaultWeight,
	}

	return peer
}

// ID returns a stable uint32 identifier derived from the public key.
func (p *Peer) ID() uint32 {
	if p.id == 0 {
		pubKeyBytes, err := p.PubKeyBytes()
		if err != nil {
			return 0
		}
		p.id = common.Hash32(pubKeyBytes)
	}

	return p.id
}

// PubKeyString returns the upper-case hex string of the public key. It is the
// identity key used throughout stores and consensus rounds.
func (p *Peer) PubKeyString() string {
	return p.PubKeyHex
}

// PubKeyBytes decodes the hex public key.
func (p *Peer) PubKeyBytes() ([]byte, error) {
	return hex.DecodeString(p.PubKeyHex[2:])
}

// VoteWeight returns the peer's weight, substituting the default for an unset
// value so that hand-written peers files without weights behave as
// equal-weight.
func (p *Peer) VoteWeight() float64 {
	if p.Weight <= 0 {
		return DefaultWeight
	}
	return p.Weight
}

// ShortID returns a compact base58 tag of the public key hash, for logs.
func (p *Peer) ShortID() string {
	if p.shortID == "" {
		pubKeyBytes, err := p.PubKeyBytes()
		if err != nil {
			return ""
		}
		p.shortID = base58.Encode(crypto.SHA256(pubKeyBytes)[:8])
	}
	return p.shortID
}

// ExcludePeer returns the slice of peers with the given ID removed, along with
// the index at which it was found (-1 when absent).
func ExcludePeer(peers []*Peer, peerID uint32) (int, []*Peer) {
	index := -1
	otherPeers := make([]*Peer, 0, len(peers))
	for i, p := range peers {
		if p.ID() != peerID {
			otherPeers = append(otherPeers, p)
		} else {
			index = i
		}
	}
	return index, otherPeers
}
