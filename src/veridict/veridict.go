// Package veridict assembles a complete node from a Config object: peers,
// store, transport, key, node and HTTP service.
package veridict

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/veridict/veridict/src/config"
	"github.com/veridict/veridict/src/crypto/keys"
	"github.com/veridict/veridict/src/ledger"
	"github.com/veridict/veridict/src/net"
	"github.com/veridict/veridict/src/node"
	"github.com/veridict/veridict/src/peers"
	"github.com/veridict/veridict/src/service"
)

// Veridict is a struct containing the key parts of a veridict node
type Veridict struct {
	Config    *config.Config
	Node      *node.Node
	Transport net.Transport
	Store     ledger.Store
	Peers     *peers.PeerSet
	Service   *service.Service

	logger *logrus.Entry
}

// NewVeridict is a factory method to instantiate a Veridict node from a
// config object. Init must be called before Run.
func NewVeridict(conf *config.Config) *Veridict {
	engine := &Veridict{
		Config: conf,
		logger: conf.Logger(),
	}

	return engine
}

// Init initialises the veridict engine based on its configuration
func (v *Veridict) Init() error {
	if err := v.initPeers(); err != nil {
		v.logger.WithError(err).Error("veridict.go:Init() initPeers")
		return err
	}

	if err := v.initStore(); err != nil {
		v.logger.WithError(err).Error("veridict.go:Init() initStore")
		return err
	}

	if err := v.initTransport(); err != nil {
		v.logger.WithError(err).Error("veridict.go:Init() initTransport")
		return err
	}

	if err := v.initKey(); err != nil {
		v.logger.WithError(err).Error("veridict.go:Init() initKey")
		return err
	}

	if err := v.initNode(); err != nil {
		v.logger.WithError(err).Error("veridict.go:Init() initNode")
		return err
	}

	if err := v.initService(); err != nil {
		v.logger.WithError(err).Error("veridict.go:Init() initService")
		return err
	}

	return nil
}

// Run starts the node and the HTTP service
func (v *Veridict) Run() {
	if v.Service != nil && v.Config.ServiceAddr != "" {
		go v.Service.Serve()
	}

	v.Node.Run(true)
}

func (v *Veridict) initPeers() error {
	peerStore := peers.NewJSONPeerSet(v.Config.DataDir)

	participants, err := peerStore.PeerSet()
	if err != nil {
		return err
	}

	if participants.Len() < 1 {
		return fmt.Errorf("peers.json should define at least one peer")
	}

	v.Peers = participants

	return nil
}

func (v *Veridict) initStore() error {
	if !v.Config.Store {
		v.Store = ledger.NewInmemStore(v.Config.CacheSize)

		v.logger.Debug("created new in-mem store")
	} else {
		var err error

		v.logger.WithField("path", v.Config.DatabaseDir).Debug("Attempting to load or create database")

		v.Store, err = ledger.NewBadgerStore(v.Config.CacheSize, v.Config.DatabaseDir)
		if err != nil {
			return err
		}

		v.logger.Debug("badger store ready")
	}

	return nil
}

func (v *Veridict) initTransport() error {
	var transport *net.NetworkTransport
	var err error

	if v.Config.WebSocket {
		transport, err = net.NewWSTransport(
			v.Config.BindAddr,
			v.Config.AdvertiseAddr,
			v.Config.MaxPool,
			v.Config.TCPTimeout,
			v.logger,
		)
	} else {
		transport, err = net.NewTCPTransport(
			v.Config.BindAddr,
			v.Config.AdvertiseAddr,
			v.Config.MaxPool,
			v.Config.TCPTimeout,
			v.logger,
		)
	}

	if err != nil {
		return err
	}

	v.Transport = transport

	return nil
}

func (v *Veridict) initKey() error {
	if v.Config.Key == nil {
		simpleKeyfile := keys.NewSimpleKeyfile(v.Config.Keyfile())

		privKey, err := simpleKeyfile.ReadKey()
		if err != nil {
			return fmt.Errorf("cannot read private key from %s: %v", v.Config.Keyfile(), err)
		}

		v.Config.Key = privKey
	}
	return nil
}

func (v *Veridict) initNode() error {
	key := v.Config.Key

	nodePub := keys.PublicKeyHex(&key.PublicKey)
	p, ok := v.Peers.ByPubKey[nodePub]

	moniker := v.Config.Moniker
	if ok && moniker == "" {
		moniker = p.Moniker
	}

	validator := node.NewValidator(key, moniker)

	v.logger.WithFields(logrus.Fields{
		"id":      validator.ID(),
		"moniker": moniker,
		"peers":   v.Peers.Len(),
	}).Debug("PARTICIPANTS")

	nodeConfig := node.NewConfig(
		v.Config.EpochInterval,
		v.Config.TCPTimeout,
		v.Config.CacheSize,
		v.Config.HopLimit,
		v.Config.PrivacyBudget,
		v.Config.VoteCost,
		v.Config.BudgetInterval,
		v.Config.Logger().Logger,
	)

	v.Node = node.NewNode(
		nodeConfig,
		validator,
		v.Peers,
		v.Store,
		v.Transport,
	)

	if err := v.Node.Init(); err != nil {
		return fmt.Errorf("failed to initialize node: %s", err)
	}

	return nil
}

func (v *Veridict) initService() error {
	if !v.Config.NoService {
		v.Service = service.NewService(v.Config.ServiceAddr, v.Node, v.logger)
	}
	return nil
}
