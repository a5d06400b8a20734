// Package keys implements the public key cryptography used throughout
// Veridict.
//
// Every participant in a judgment ledger owns a key-pair that it uses to sign
// judgment blocks and votes. The private key is secret but the public key
// doubles as the participant's identity; other participants use it to verify
// signed items.
//
// Veridict uses elliptic curve cryptography (ECDSA) with the secp256k1 curve.
// We chose the secp256k1 curve because it is also used by Bitcoin and
// Ethereum, which means existing Bitcoin and Ethereum keys can operate a
// Veridict node.
package keys
