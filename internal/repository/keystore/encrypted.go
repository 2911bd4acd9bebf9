package keystore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"e2e_xmtp/internal/cryptographic/encryption"
	"e2e_xmtp/internal/cryptographic/wallet"
	"e2e_xmtp/internal/keys"
)

const walletPreKeySize = 32

type (
	// EncryptedStore seals the bundle under a key only signer can reproduce:
	// the wallet signs a random pre key and the signature is the secret.
	EncryptedStore struct {
		signer wallet.Signer
		store  Store
	}

	encryptedBundle struct {
		WalletPreKey []byte                 `json:"walletPreKey"`
		Ciphertext   *encryption.Ciphertext `json:"ciphertext"`
	}
)

func NewEncryptedStore(signer wallet.Signer, store Store) *EncryptedStore {
	return &EncryptedStore{signer: signer, store: store}
}

// StorageSignatureText is what the wallet signs to unlock its stored keys.
func StorageSignatureText(walletPreKey []byte) string {
	return "XMTP : Enable Identity\n" + hex.EncodeToString(walletPreKey) + "\n\nFor more info: https://xmtp.org/signatures/"
}

func (s *EncryptedStore) storageKey() string {
	return s.signer.Address() + "/key_bundle"
}

func (s *EncryptedStore) LoadPrivateKeyBundle(ctx context.Context) (*keys.PrivateKeyBundle, error) {
	data, err := s.store.Get(ctx, s.storageKey())
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	var record encryptedBundle
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: decode stored bundle: %v", keys.ErrInvalidKey, err)
	}
	secret, err := s.signer.SignMessage(ctx, StorageSignatureText(record.WalletPreKey))
	if err != nil {
		return nil, fmt.Errorf("sign storage key: %w", err)
	}
	plain, err := encryption.Decrypt(record.Ciphertext, secret, nil)
	if err != nil {
		return nil, err
	}
	return keys.DecodePrivateKeyBundle(plain)
}

func (s *EncryptedStore) StorePrivateKeyBundle(ctx context.Context, bundle *keys.PrivateKeyBundle) error {
	plain, err := bundle.Encode()
	if err != nil {
		return err
	}

	preKey := make([]byte, walletPreKeySize)
	if _, err := io.ReadFull(rand.Reader, preKey); err != nil {
		return fmt.Errorf("rand.Read wallet pre key: %w", err)
	}
	secret, err := s.signer.SignMessage(ctx, StorageSignatureText(preKey))
	if err != nil {
		return fmt.Errorf("sign storage key: %w", err)
	}
	ct, err := encryption.Encrypt(plain, secret, nil)
	if err != nil {
		return err
	}

	data, err := json.Marshal(&encryptedBundle{WalletPreKey: preKey, Ciphertext: ct})
	if err != nil {
		return err
	}
	return s.store.Set(ctx, s.storageKey(), data)
}
