package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"e2e_xmtp/internal/cryptographic/kdf"
)

const (
	KeySize   = 32
	SaltSize  = 32
	NonceSize = 12
)

var ErrDecrypt = errors.New("decryption failed")

// Ciphertext is an AES-256-GCM payload whose key was derived with
// HKDF-SHA256 from a shared secret and HkdfSalt.
type Ciphertext struct {
	HkdfSalt []byte `json:"hkdfSalt"`
	GcmNonce []byte `json:"gcmNonce"`
	Payload  []byte `json:"payload"`
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return aead, nil
}

// AES-GCM helper. key must be 16/24/32 bytes. We produce keys of 32 bytes from KDF.
func AEADEncrypt(key, nonce, plaintext, aad []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("invalid nonce size %d", len(nonce))
	}
	return aead.Seal(nil, nonce, plaintext, aad), nil
}

func AEADDecrypt(key, nonce, ciphertext, aad []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: invalid nonce size %d", ErrDecrypt, len(nonce))
	}
	plain, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("%w: aead.Open: %v", ErrDecrypt, err)
	}
	return plain, nil
}

// Encrypt seals plaintext under a fresh salt and nonce.
func Encrypt(plaintext, secret, aad []byte) (*Ciphertext, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("rand.Read salt: %w", err)
	}
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("rand.Read nonce: %w", err)
	}

	key, err := kdf.DeriveKey(secret, salt, nil, KeySize)
	if err != nil {
		return nil, err
	}
	payload, err := AEADEncrypt(key, nonce, plaintext, aad)
	if err != nil {
		return nil, err
	}
	return &Ciphertext{HkdfSalt: salt, GcmNonce: nonce, Payload: payload}, nil
}

func Decrypt(ct *Ciphertext, secret, aad []byte) ([]byte, error) {
	if ct == nil || len(ct.HkdfSalt) == 0 || len(ct.Payload) == 0 {
		return nil, fmt.Errorf("%w: missing ciphertext fields", ErrDecrypt)
	}
	key, err := kdf.DeriveKey(secret, ct.HkdfSalt, nil, KeySize)
	if err != nil {
		return nil, err
	}
	return AEADDecrypt(key, ct.GcmNonce, ct.Payload, aad)
}
