// Package wallet implements the Ethereum-style account signer that owns an
// identity: addresses derived from secp256k1 keys and recoverable
// personal-message signatures.
package wallet

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
)

const SignatureSize = 65

var ErrInvalidSignature = errors.New("invalid wallet signature")

type (
	// Signer is the account an identity is bound to.
	Signer interface {
		Address() string
		SignMessage(ctx context.Context, message string) ([]byte, error)
	}

	// PrivateKeySigner keeps a secp256k1 key in memory.
	PrivateKeySigner struct {
		key     *secp256k1.PrivateKey
		address string
	}
)

func NewRandomSigner() (*PrivateKeySigner, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate wallet key: %w", err)
	}
	return newSigner(key), nil
}

// NewSignerFromHex loads a 32 byte private key, with or without 0x prefix.
func NewSignerFromHex(s string) (*PrivateKeySigner, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode wallet key: %w", err)
	}
	if len(raw) != secp256k1.PrivKeyBytesLen {
		return nil, fmt.Errorf("wallet key must be %d bytes, got %d", secp256k1.PrivKeyBytesLen, len(raw))
	}
	return newSigner(secp256k1.PrivKeyFromBytes(raw)), nil
}

func newSigner(key *secp256k1.PrivateKey) *PrivateKeySigner {
	return &PrivateKeySigner{
		key:     key,
		address: PubkeyToAddress(key.PubKey()),
	}
}

func (s *PrivateKeySigner) Address() string {
	return s.address
}

// PrivateKeyHex exports the key so a CLI user can reuse the same wallet.
func (s *PrivateKeySigner) PrivateKeyHex() string {
	return hex.EncodeToString(s.key.Serialize())
}

// SignMessage returns r || s || v with v in {27, 28}. Signatures are
// deterministic (RFC 6979), which the key store relies on.
func (s *PrivateKeySigner) SignMessage(_ context.Context, message string) ([]byte, error) {
	compact := ecdsa.SignCompact(s.key, HashMessage(message), false)
	// compact is v || r || s
	sig := make([]byte, SignatureSize)
	copy(sig, compact[1:])
	sig[64] = compact[0]
	return sig, nil
}

// HashMessage applies the personal-message prefix and hashes with keccak256.
func HashMessage(message string) []byte {
	prefixed := "\x19Ethereum Signed Message:\n" + strconv.Itoa(len(message)) + message
	return keccak256([]byte(prefixed))
}

// RecoverAddress returns the address whose key produced sig over message.
func RecoverAddress(message string, sig []byte) (string, error) {
	if len(sig) != SignatureSize {
		return "", fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, SignatureSize, len(sig))
	}
	v := sig[64]
	if v < 27 {
		v += 27
	}
	compact := make([]byte, SignatureSize)
	compact[0] = v
	copy(compact[1:], sig[:64])

	pub, _, err := ecdsa.RecoverCompact(compact, HashMessage(message))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return PubkeyToAddress(pub), nil
}

// PubkeyToAddress derives the EIP-55 checksummed address of pub.
func PubkeyToAddress(pub *secp256k1.PublicKey) string {
	uncompressed := pub.SerializeUncompressed()
	return checksumAddress(keccak256(uncompressed[1:])[12:])
}

func checksumAddress(addr []byte) string {
	lower := hex.EncodeToString(addr)
	hash := keccak256([]byte(lower))

	out := make([]byte, len(lower))
	for i := range lower {
		c := lower[i]
		nibble := hash[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if c >= 'a' && c <= 'f' && nibble&0x0f >= 8 {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return "0x" + string(out)
}

func keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}
