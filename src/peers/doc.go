// Package peers defines the set of participants in a judgment ledger.
//
// The peer-set is a supplied abstraction: Veridict does not discover peers,
// it reads them from configuration and treats membership as static for the
// lifetime of the node. Each peer carries a vote weight used by the consensus
// engine; weights default to 1 so a peers file without weights yields
// equal-weight voting.
package peers
