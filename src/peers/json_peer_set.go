package peers

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
)

const jsonPeerSetPath = "peers.json"

// JSONPeerSet is used to provide peer persistence on disk in the form of a
// JSON file.
type JSONPeerSet struct {
	l    sync.Mutex
	path string
}

// NewJSONPeerSet creates a new JSONPeerSet with the peers.json file in the
// given directory.
func NewJSONPeerSet(base string) *JSONPeerSet {
	path := filepath.Join(base, jsonPeerSetPath)

	store := &JSONPeerSet{
		path: path,
	}

	return store
}

// PeerSet creates a PeerSet from the JSON file.
func (j *JSONPeerSet) PeerSet() (*PeerSet, error) {
	j.l.Lock()
	defer j.l.Unlock()

	// Read the file
	buf, err := ioutil.ReadFile(j.path)
	if err != nil {
		return nil, err
	}

	return NewPeerSetFromPeerSliceBytes(buf)
}

// Write persists a PeerSet to the JSON file.
func (j *JSONPeerSet) Write(peers []*Peer) error {
	j.l.Lock()
	defer j.l.Unlock()

	peersBytes, err := json.MarshalIndent(peers, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(j.path), 0700); err != nil {
		return err
	}

	return ioutil.WriteFile(j.path, peersBytes, 0600)
}
