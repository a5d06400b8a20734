package service

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/veridict/veridict/src/node"
	"github.com/veridict/veridict/src/peers"
)

// Service exposes the node's state over a small HTTP API.
type Service struct {
	sync.Mutex

	bindAddress string
	node        *node.Node
	logger      *logrus.Entry
}

// NewService ...
func NewService(bindAddress string, n *node.Node, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		node:        n,
		logger:      logger,
	}

	service.registerHandlers()

	return &service
}

// registerHandlers registers the API handlers with the DefaultServeMux of the
// http package. It is possible that another server in the same process is
// simultaneously using the DefaultServeMux. In which case, the handlers will
// be accessible from both servers. This is useful when Veridict is used
// in-memory and expected to use the same endpoint (address:port) as the
// application's API.
func (s *Service) registerHandlers() {
	s.logger.Debug("Registering Veridict API handlers")
	http.HandleFunc("/stats", s.makeHandler(s.GetStats))
	http.HandleFunc("/block/", s.makeHandler(s.GetBlock))
	http.HandleFunc("/chain/", s.makeHandler(s.GetChain))
	http.HandleFunc("/round/", s.makeHandler(s.GetRound))
	http.HandleFunc("/proof/", s.makeHandler(s.GetProof))
	http.HandleFunc("/peers", s.makeHandler(s.GetPeers))
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Serve calls ListenAndServe. This is a blocking call. It is not necessary
// to call Serve when Veridict is used in-memory and another server has
// already been started with the DefaultServeMux and the same address:port
// combination.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving Veridict API")

	// Use the DefaultServeMux
	err := http.ListenAndServe(s.bindAddress, nil)
	if err != nil {
		s.logger.Error(err)
	}
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := s.node.GetStats()

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(stats)
}

// GetBlock returns a judgment block by hash.
func (s *Service) GetBlock(w http.ResponseWriter, r *http.Request) {
	param := r.URL.Path[len("/block/"):]

	block, err := s.node.GetBlock(param)

	if err != nil {
		s.logger.WithError(err).Errorf("Retrieving block %s", param)

		http.Error(w, err.Error(), http.StatusNotFound)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(block)
}

// GetChain returns the ordered blocks of an author's chain.
func (s *Service) GetChain(w http.ResponseWriter, r *http.Request) {
	param := r.URL.Path[len("/chain/"):]

	blocks, err := s.node.GetChain(param)

	if err != nil {
		s.logger.WithError(err).Errorf("Retrieving chain %s", param)

		http.Error(w, err.Error(), http.StatusNotFound)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(blocks)
}

// GetRound returns an epoch's voting round: its candidate root, votes,
// status, and on sealed rounds the weighted confidence and minimum doubt.
func (s *Service) GetRound(w http.ResponseWriter, r *http.Request) {
	param := r.URL.Path[len("/round/"):]

	epochID, err := strconv.Atoi(param)

	if err != nil {
		s.logger.WithError(err).Errorf("Parsing epoch parameter %s", param)

		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	round, ok := s.node.GetRound(epochID)

	if !ok {
		http.Error(w, "no round for epoch "+param, http.StatusNotFound)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(round)
}

// GetProof returns the inclusion proof of a block hash in an epoch's batch.
// The path is /proof/<epoch>/<hash>.
func (s *Service) GetProof(w http.ResponseWriter, r *http.Request) {
	param := r.URL.Path[len("/proof/"):]

	parts := strings.SplitN(param, "/", 2)
	if len(parts) != 2 {
		http.Error(w, "expected /proof/<epoch>/<hash>", http.StatusBadRequest)

		return
	}

	epochID, err := strconv.Atoi(parts[0])
	if err != nil {
		s.logger.WithError(err).Errorf("Parsing epoch parameter %s", parts[0])

		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	proof, err := s.node.GetProof(epochID, parts[1])
	if err != nil {
		s.logger.WithError(err).Errorf("Retrieving proof for %s", parts[1])

		http.Error(w, err.Error(), http.StatusNotFound)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(proof)
}

// GetPeers ...
func (s *Service) GetPeers(w http.ResponseWriter, r *http.Request) {
	returnPeerSet(w, r, s.node.GetPeers())
}

func returnPeerSet(w http.ResponseWriter, r *http.Request, peers []*peers.Peer) {
	w.Header().Set("Content-Type", "application/json")

	encoder := json.NewEncoder(w)

	encoder.Encode(peers)
}
