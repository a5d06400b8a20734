package keys

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// Sign signs the data with the private key and the built-in pseudo-random
// generator rand.Reader. It returns an error when the key or the data is
// malformed; it never panics on bad input.
func Sign(priv *ecdsa.PrivateKey, data []byte) (r, s *big.Int, err error) {
	if priv == nil || priv.D == nil {
		return nil, nil, fmt.Errorf("nil private key")
	}
	if len(data) == 0 {
		return nil, nil, fmt.Errorf("empty payload")
	}
	return ecdsa.Sign(rand.Reader, priv, data)
}

// Verify verifies that a signature represented by r and s values, is a valid
// signature of the data by an owner of the private key associated with the
// provided public key. A forged signature yields false, not an error.
func Verify(pub *ecdsa.PublicKey, data []byte, r, s *big.Int) bool {
	if pub == nil || r == nil || s == nil {
		return false
	}
	return ecdsa.Verify(pub, data, r, s)
}

// EncodeSignature returns a string representation of a signature.
func EncodeSignature(r, s *big.Int) string {
	return fmt.Sprintf("%s|%s", r.Text(36), s.Text(36))
}

// DecodeSignature parses a string representation of a signature as produced by
// EncodeSignature.
func DecodeSignature(sig string) (r, s *big.Int, err error) {
	values := strings.Split(sig, "|")
	if len(values) != 2 {
		return r, s, fmt.Errorf("wrong number of values in signature: got %d, want 2", len(values))
	}
	r, okr := new(big.Int).SetString(values[0], 36)
	s, oks := new(big.Int).SetString(values[1], 36)
	if !okr || !oks {
		return nil, nil, fmt.Errorf("signature values are not base-36 integers")
	}
	return r, s, nil
}
