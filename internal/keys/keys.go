// Package keys holds the identity and pre key material of a client and the
// signatures that bind it to a wallet.
package keys

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"e2e_xmtp/internal/cryptographic/dh"
	"e2e_xmtp/internal/cryptographic/signature"
	"e2e_xmtp/internal/cryptographic/wallet"
)

var (
	ErrInvalidKey       = errors.New("invalid key")
	ErrInvalidSignature = errors.New("invalid key signature")
)

type (
	// PublicKey is the peer-visible half of a key. DH is an X25519 public key,
	// Sign an Ed25519 verification key.
	PublicKey struct {
		Timestamp uint64 `json:"timestamp"`
		DH        []byte `json:"dh"`
		Sign      []byte `json:"sign"`
		Signature []byte `json:"signature,omitempty"`
	}

	// PrivateKey never leaves the owning client unencrypted.
	PrivateKey struct {
		Timestamp  uint64    `json:"timestamp"`
		DHSecret   []byte    `json:"dhSecret"`
		SignSecret []byte    `json:"signSecret"`
		PublicKey  PublicKey `json:"publicKey"`
	}
)

// IdentitySignatureText is the message a wallet signs to vouch for an identity key.
func IdentitySignatureText(keyBytes []byte) string {
	return "XMTP : Create Identity\n" + hex.EncodeToString(keyBytes) + "\n\nFor more info: https://xmtp.org/signatures/"
}

// NewPrivateKey generates fresh X25519 and Ed25519 key pairs stamped with now.
func NewPrivateKey(now time.Time) (*PrivateKey, error) {
	dhPriv, dhPub, err := dh.NewX25519KeyPair()
	if err != nil {
		return nil, err
	}
	signPub, signPriv, err := signature.NewEd25519Keypair()
	if err != nil {
		return nil, err
	}

	ts := uint64(now.UnixMilli())
	return &PrivateKey{
		Timestamp:  ts,
		DHSecret:   dhPriv[:],
		SignSecret: signPriv,
		PublicKey: PublicKey{
			Timestamp: ts,
			DH:        dhPub[:],
			Sign:      signPub,
		},
	}, nil
}

// Bytes is the canonical form covered by signatures.
func (k *PublicKey) Bytes() []byte {
	b := make([]byte, 8, 8+len(k.DH)+len(k.Sign))
	binary.BigEndian.PutUint64(b, k.Timestamp)
	b = append(b, k.DH...)
	return append(b, k.Sign...)
}

func (k *PublicKey) Validate() error {
	if k == nil {
		return fmt.Errorf("%w: missing", ErrInvalidKey)
	}
	if len(k.DH) != dh.KeySize {
		return fmt.Errorf("%w: dh key is %d bytes", ErrInvalidKey, len(k.DH))
	}
	if len(k.Sign) != signature.PublicKeySize {
		return fmt.Errorf("%w: sign key is %d bytes", ErrInvalidKey, len(k.Sign))
	}
	return nil
}

func (k *PublicKey) Equal(other *PublicKey) bool {
	if k == nil || other == nil {
		return k == other
	}
	return k.Timestamp == other.Timestamp && bytes.Equal(k.DH, other.DH) && bytes.Equal(k.Sign, other.Sign)
}

// Verify checks data was signed by the owner of this key's Ed25519 half.
func (k *PublicKey) Verify(data, sig []byte) bool {
	return signature.ED25519Verify(k.Sign, data, sig)
}

// VerifyKey reports whether other was signed by this key.
func (k *PublicKey) VerifyKey(other *PublicKey) bool {
	return other != nil && len(other.Signature) > 0 && k.Verify(other.Bytes(), other.Signature)
}

// WalletSignatureAddress recovers the wallet that signed this identity key.
func (k *PublicKey) WalletSignatureAddress() (string, error) {
	if k == nil {
		return "", fmt.Errorf("%w: missing", ErrInvalidKey)
	}
	if len(k.Signature) == 0 {
		return "", fmt.Errorf("%w: identity key is not signed", ErrInvalidSignature)
	}
	addr, err := wallet.RecoverAddress(IdentitySignatureText(k.Bytes()), k.Signature)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return addr, nil
}

// SignKey signs other with this key's Ed25519 half.
func (k *PrivateKey) SignKey(other *PublicKey) {
	other.Signature = k.SignBytes(other.Bytes())
}

func (k *PrivateKey) SignBytes(data []byte) []byte {
	return signature.ED25519Sign(k.SignSecret, data)
}

// SignWithWallet has signer vouch for this key.
func (k *PrivateKey) SignWithWallet(ctx context.Context, signer wallet.Signer) error {
	sig, err := signer.SignMessage(ctx, IdentitySignatureText(k.PublicKey.Bytes()))
	if err != nil {
		return fmt.Errorf("wallet sign identity: %w", err)
	}
	k.PublicKey.Signature = sig
	return nil
}

// SharedSecret runs X25519 against peer's DH key.
func (k *PrivateKey) SharedSecret(peer *PublicKey) ([]byte, error) {
	return dh.X25519SharedSecret(k.DHSecret, peer.DH)
}

// Validate checks that the secrets produce the stored public key.
func (k *PrivateKey) Validate() error {
	if err := k.PublicKey.Validate(); err != nil {
		return err
	}
	dhPub, err := dh.PublicKey(k.DHSecret)
	if err != nil {
		return fmt.Errorf("%w: dh secret: %v", ErrInvalidKey, err)
	}
	if !bytes.Equal(dhPub, k.PublicKey.DH) {
		return fmt.Errorf("%w: dh secret does not match public key", ErrInvalidKey)
	}
	if len(k.SignSecret) != signature.PrivateKeySize || !bytes.Equal(k.SignSecret[signature.PrivateKeySize-signature.PublicKeySize:], k.PublicKey.Sign) {
		return fmt.Errorf("%w: sign secret does not match public key", ErrInvalidKey)
	}
	return nil
}

func (k *PrivateKey) MatchesPublicKey(pub *PublicKey) bool {
	return k.PublicKey.Equal(pub)
}
