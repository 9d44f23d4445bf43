package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// OpaqueBytes is the entropy of every refresh, verification and reset token.
const OpaqueBytes = 32

// Opaque generates random hex tokens. Only Hash(token) is ever persisted.
type Opaque struct{}

// NewOpaque returns the generator.
func NewOpaque() Opaque {
	return Opaque{}
}

// New returns a fresh token and its storage hash.
func (Opaque) New() (string, string, error) {
	buf := make([]byte, OpaqueBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate opaque token: %w", err)
	}
	tok := hex.EncodeToString(buf)
	return tok, hashHex(tok), nil
}

// Hash computes the storage form of token.
func (Opaque) Hash(token string) string {
	return hashHex(token)
}

func hashHex(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
