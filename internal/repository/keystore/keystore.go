// Package keystore loads and persists the client's private key bundle.
//
// Three strategies share the KeyStore interface: an encrypted bundle kept on
// the network's private-store topic, an encrypted bundle kept in local
// persistence, and a static bundle handed in by the caller.
package keystore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"e2e_xmtp/internal/cryptographic/wallet"
	"e2e_xmtp/internal/keys"
)

var ErrConfiguration = errors.New("configuration error")

type (
	// Store keeps opaque bytes under a key. Get returns (nil, nil) when the
	// key has never been set.
	Store interface {
		Get(ctx context.Context, key string) ([]byte, error)
		Set(ctx context.Context, key string, value []byte) error
	}

	// KeyStore loads returns (nil, nil) when no bundle has been stored yet.
	KeyStore interface {
		LoadPrivateKeyBundle(ctx context.Context) (*keys.PrivateKeyBundle, error)
		StorePrivateKeyBundle(ctx context.Context, bundle *keys.PrivateKeyBundle) error
	}

	// StaticStore serves a bundle supplied by the caller and refuses writes.
	StaticStore struct {
		data []byte
	}
)

func NewStaticStore(data []byte) (*StaticStore, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: static store needs a private key override", ErrConfiguration)
	}
	return &StaticStore{data: append([]byte(nil), data...)}, nil
}

func (s *StaticStore) LoadPrivateKeyBundle(context.Context) (*keys.PrivateKeyBundle, error) {
	return keys.DecodePrivateKeyBundle(s.Bytes())
}

func (s *StaticStore) StorePrivateKeyBundle(context.Context, *keys.PrivateKeyBundle) error {
	return fmt.Errorf("%w: store is not possible with a static store", ErrConfiguration)
}

// Bytes returns a copy of the supplied key material.
func (s *StaticStore) Bytes() []byte {
	return append([]byte(nil), s.data...)
}

// LoadOrCreate returns the stored bundle unchanged when there is one.
// Otherwise it generates a bundle with signer and persists it.
func LoadOrCreate(ctx context.Context, signer wallet.Signer, store KeyStore, now time.Time) (*keys.PrivateKeyBundle, error) {
	bundle, err := store.LoadPrivateKeyBundle(ctx)
	if err != nil {
		return nil, fmt.Errorf("load private key bundle: %w", err)
	}
	if bundle != nil {
		return bundle, nil
	}

	if signer == nil {
		return nil, fmt.Errorf("%w: no stored keys and no wallet to create them", ErrConfiguration)
	}
	bundle, err = keys.GeneratePrivateKeyBundle(ctx, signer, now)
	if err != nil {
		return nil, fmt.Errorf("generate private key bundle: %w", err)
	}
	if err := store.StorePrivateKeyBundle(ctx, bundle); err != nil {
		return nil, fmt.Errorf("store private key bundle: %w", err)
	}
	return bundle, nil
}
