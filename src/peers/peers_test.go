package peers

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/veridict/veridict/src/crypto/keys"
)

func newTestPeer(t *testing.T, moniker string, weight float64) *Peer {
	key, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}
	p := NewPeer(keys.PublicKeyHex(&key.PublicKey), "127.0.0.1:0", moniker)
	p.Weight = weight
	return p
}

func TestPeerID(t *testing.T) {
	p := newTestPeer(t, "alice", 1)

	if p.ID() == 0 {
		t.Fatal("peer ID should not be 0")
	}

	if p.ID() != p.ID() {
		t.Fatal("peer ID should be stable")
	}

	if p.ShortID() == "" {
		t.Fatal("short ID should not be empty")
	}
}

func TestVoteWeightDefault(t *testing.T) {
	p := newTestPeer(t, "bob", 0)

	if w := p.VoteWeight(); w != DefaultWeight {
		t.Fatalf("unset weight should default to %f, got %f", DefaultWeight, w)
	}
}

func TestTotalWeight(t *testing.T) {
	ps := NewPeerSet([]*Peer{
		newTestPeer(t, "a", 0.4),
		newTestPeer(t, "b", 0.4),
		newTestPeer(t, "c", 0.2),
	})

	if tw := ps.TotalWeight(); tw < 0.999999 || tw > 1.000001 {
		t.Fatalf("total weight should be 1.0, got %f", tw)
	}
}

func TestJSONPeerSet(t *testing.T) {
	os.Mkdir("test_data", os.ModeDir|0700)
	dir, err := ioutil.TempDir("test_data", "veridict")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer os.RemoveAll(dir)

	keys := []string{}
	peerSlice := []*Peer{}
	for _, m := range []string{"a", "b", "c"} {
		p := newTestPeer(t, m, 1)
		peerSlice = append(peerSlice, p)
		keys = append(keys, p.PubKeyHex)
	}

	store := NewJSONPeerSet(dir)

	if err := store.Write(peerSlice); err != nil {
		t.Fatal(err)
	}

	ps, err := store.PeerSet()
	if err != nil {
		t.Fatal(err)
	}

	if ps.Len() != 3 {
		t.Fatalf("expected 3 peers, got %d", ps.Len())
	}

	for _, k := range keys {
		if _, ok := ps.ByPubKey[k]; !ok {
			t.Fatalf("peer %s missing after round-trip", k)
		}
	}
}
