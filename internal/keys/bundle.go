package keys

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"e2e_xmtp/internal/cryptographic/wallet"
	"e2e_xmtp/internal/model"
	"e2e_xmtp/internal/protocol/x3dh"
)

var ErrNoMatchingPreKey = errors.New("no matching pre key")

type (
	// PublicKeyBundle is what peers need to message an identity.
	PublicKeyBundle struct {
		IdentityKey *PublicKey `json:"identityKey"`
		PreKey      *PublicKey `json:"preKey"`
	}

	// PrivateKeyBundle is the secret counterpart. PreKeys[0] is current.
	PrivateKeyBundle struct {
		IdentityKey *PrivateKey   `json:"identityKey"`
		PreKeys     []*PrivateKey `json:"preKeys"`
	}
)

// GeneratePrivateKeyBundle creates an identity key signed by signer and a
// pre key signed by the identity key.
func GeneratePrivateKeyBundle(ctx context.Context, signer wallet.Signer, now time.Time) (*PrivateKeyBundle, error) {
	identity, err := NewPrivateKey(now)
	if err != nil {
		return nil, err
	}
	if err := identity.SignWithWallet(ctx, signer); err != nil {
		return nil, err
	}

	preKey, err := NewPrivateKey(now)
	if err != nil {
		return nil, err
	}
	identity.SignKey(&preKey.PublicKey)

	return &PrivateKeyBundle{
		IdentityKey: identity,
		PreKeys:     []*PrivateKey{preKey},
	}, nil
}

func DecodePrivateKeyBundle(data []byte) (*PrivateKeyBundle, error) {
	var b PrivateKeyBundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: decode private bundle: %v", ErrInvalidKey, err)
	}
	if b.IdentityKey == nil || len(b.PreKeys) == 0 || b.PreKeys[0] == nil {
		return nil, fmt.Errorf("%w: private bundle is incomplete", ErrInvalidKey)
	}
	for _, k := range append([]*PrivateKey{b.IdentityKey}, b.PreKeys...) {
		if k == nil {
			return nil, fmt.Errorf("%w: private bundle is incomplete", ErrInvalidKey)
		}
		if err := k.Validate(); err != nil {
			return nil, err
		}
	}
	return &b, nil
}

func (b *PrivateKeyBundle) Encode() ([]byte, error) {
	return json.Marshal(b)
}

func (b *PrivateKeyBundle) CurrentPreKey() *PrivateKey {
	return b.PreKeys[0]
}

func (b *PrivateKeyBundle) PublicKeyBundle() *PublicKeyBundle {
	identity := b.IdentityKey.PublicKey
	preKey := b.CurrentPreKey().PublicKey
	return &PublicKeyBundle{IdentityKey: &identity, PreKey: &preKey}
}

// Address is the wallet that signed the identity key.
func (b *PrivateKeyBundle) Address() (string, error) {
	return b.IdentityKey.PublicKey.WalletSignatureAddress()
}

// FindPreKey returns the private pre key matching pub.
func (b *PrivateKeyBundle) FindPreKey(pub *PublicKey) (*PrivateKey, error) {
	for _, k := range b.PreKeys {
		if k.MatchesPublicKey(pub) {
			return k, nil
		}
	}
	return nil, ErrNoMatchingPreKey
}

// SharedSecret derives the 3DH secret with peer. myPreKey selects which of our
// pre keys was used; isRecipient mirrors the DH order so both sides agree.
func (b *PrivateKeyBundle) SharedSecret(peer *PublicKeyBundle, myPreKey *PublicKey, isRecipient bool) ([]byte, error) {
	if err := peer.Validate(); err != nil {
		return nil, err
	}
	pre, err := b.FindPreKey(myPreKey)
	if err != nil {
		return nil, err
	}

	if isRecipient {
		recv := &x3dh.X3DHReceiver{}
		return recv.SharedSecret(&model.ReceiverKeyBundle{
			IKPubA:  peer.IdentityKey.DH,
			PKPubA:  peer.PreKey.DH,
			IKPrivB: b.IdentityKey.DHSecret,
			PKPrivB: pre.DHSecret,
		})
	}

	send := &x3dh.X3DHSender{}
	return send.SharedSecret(&model.SenderKeyBundle{
		IKPrivA: b.IdentityKey.DHSecret,
		PKPrivA: pre.DHSecret,
		IKPubB:  peer.IdentityKey.DH,
		PKPubB:  peer.PreKey.DH,
	})
}

func DecodePublicKeyBundle(data []byte) (*PublicKeyBundle, error) {
	var b PublicKeyBundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: decode public bundle: %v", ErrInvalidKey, err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

func (b *PublicKeyBundle) Encode() ([]byte, error) {
	return json.Marshal(b)
}

// Validate checks key shapes and that the identity key signed the pre key.
func (b *PublicKeyBundle) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: missing bundle", ErrInvalidKey)
	}
	if err := b.IdentityKey.Validate(); err != nil {
		return fmt.Errorf("identity key: %w", err)
	}
	if err := b.PreKey.Validate(); err != nil {
		return fmt.Errorf("pre key: %w", err)
	}
	if !b.IdentityKey.VerifyKey(b.PreKey) {
		return fmt.Errorf("%w: pre key not signed by identity key", ErrInvalidSignature)
	}
	return nil
}

func (b *PublicKeyBundle) Equal(other *PublicKeyBundle) bool {
	if b == nil || other == nil {
		return b == other
	}
	return b.IdentityKey.Equal(other.IdentityKey) && b.PreKey.Equal(other.PreKey)
}

func (b *PublicKeyBundle) WalletSignatureAddress() (string, error) {
	return b.IdentityKey.WalletSignatureAddress()
}
