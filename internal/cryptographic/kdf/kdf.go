package kdf

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// HKDF fills buffer with HKDF-SHA256 output and returns the number of bytes read.
func HKDF(secret, salt, info, buffer []byte) (int, error) {
	h := hkdf.New(sha256.New, secret, salt, info)
	return io.ReadFull(h, buffer)
}

// DeriveKey returns size bytes of key material bound to salt and info.
func DeriveKey(secret, salt, info []byte, size int) ([]byte, error) {
	key := make([]byte, size)
	if _, err := HKDF(secret, salt, info, key); err != nil {
		return nil, err
	}
	return key, nil
}
