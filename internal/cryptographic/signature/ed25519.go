// Package signature wraps Ed25519, used for identity signatures over pre
// keys and sealed messages.
package signature

import (
	"crypto/ed25519"
	"crypto/rand"
)

const (
	PublicKeySize  = ed25519.PublicKeySize
	PrivateKeySize = ed25519.PrivateKeySize
	SignatureSize  = ed25519.SignatureSize
)

// NewEd25519Keypair returns (public, private) key bytes.
func NewEd25519Keypair() ([]byte, []byte, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return pub, priv, nil
}

// ED25519Sign returns nil for a malformed private key; such a signature
// never verifies.
func ED25519Sign(privKeyBytes []byte, message []byte) []byte {
	if len(privKeyBytes) != PrivateKeySize {
		return nil
	}
	return ed25519.Sign(ed25519.PrivateKey(privKeyBytes), message)
}

func ED25519Verify(pubKeyBytes []byte, message []byte, sig []byte) bool {
	if len(pubKeyBytes) != PublicKeySize || len(sig) != SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pubKeyBytes), message, sig)
}
