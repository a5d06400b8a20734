// Package net implements different transports to communicate between
// Veridict nodes.
//
// This package contains various implementations of the Transport interface,
// which is used by Veridict nodes to send and receive RPC requests
// (GossipRequest, PullRequest). There are three implementations:
//
// - Inmem: in-memory transport used only for testing
//
// - TCP: communicating over plain TCP
//
// - WebSocket: communicating over WebSocket, for peers behind HTTP-only
// infrastructure
//
// TCP
//
// The TCP transport is suitable when nodes are in the same local network, or
// when users are able to configure their connections appropriately to avoid
// NAT issues.
//
// To use a TCP transport, set the following configuration options in the
// Config object (cf config package):
//
// - BindAddr: the IP:PORT of the TCP socket that the node binds to.
//
// - AdvertiseAddr: (optional) The address that is advertised to other nodes.
// If BindAddr is a local address not reachable by other peers, it is useful
// to set AdvertiseAddr to the reachable public address.
//
// WebSocket
//
// The WebSocket transport wraps the same framed RPC protocol in WebSocket
// binary messages. It is useful when peers can only expose HTTP endpoints,
// for instance behind reverse proxies. Set WebSocket to true in the Config
// object to use it; BindAddr and AdvertiseAddr keep their meaning.
package net
