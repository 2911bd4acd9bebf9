// Package message seals payloads between two key bundles and opens them again.
package message

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"e2e_xmtp/internal/cryptographic/encryption"
	"e2e_xmtp/internal/keys"
)

var (
	ErrMalformed    = errors.New("malformed message")
	ErrNotAParty    = errors.New("keys are neither sender nor recipient")
	ErrBadSignature = errors.New("message signature does not verify")
)

type (
	// Header travels in the clear and is authenticated as AAD.
	Header struct {
		Sender    *keys.PublicKeyBundle `json:"sender"`
		Recipient *keys.PublicKeyBundle `json:"recipient"`
		Timestamp uint64                `json:"timestamp"`
	}

	// Sealed is the wire form of a message.
	Sealed struct {
		HeaderBytes []byte                 `json:"headerBytes"`
		Ciphertext  *encryption.Ciphertext `json:"ciphertext"`
		Signature   []byte                 `json:"signature"`
	}

	// Opened is the result of Open. Header fields are filled in whenever the
	// header parsed, even if Err is set.
	Opened struct {
		Header           *Header
		SenderAddress    string
		RecipientAddress string
		SentAt           time.Time
		Payload          []byte
		Err              error
	}
)

// Seal encrypts payload for recipient and signs it as sender.
func Seal(sender *keys.PrivateKeyBundle, recipient *keys.PublicKeyBundle, payload []byte, sentAt time.Time) ([]byte, error) {
	if err := recipient.Validate(); err != nil {
		return nil, fmt.Errorf("recipient bundle: %w", err)
	}

	header := &Header{
		Sender:    sender.PublicKeyBundle(),
		Recipient: recipient,
		Timestamp: uint64(sentAt.UnixMilli()),
	}
	headerBytes, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}

	secret, err := sender.SharedSecret(recipient, header.Sender.PreKey, false)
	if err != nil {
		return nil, fmt.Errorf("shared secret: %w", err)
	}
	ct, err := encryption.Encrypt(payload, secret, headerBytes)
	if err != nil {
		return nil, err
	}

	return json.Marshal(&Sealed{
		HeaderBytes: headerBytes,
		Ciphertext:  ct,
		Signature:   sender.IdentityKey.SignBytes(signedBytes(headerBytes, ct.Payload)),
	})
}

// Open verifies and decrypts data with owner's keys. It never returns nil;
// failures are reported through Opened.Err.
func Open(owner *keys.PrivateKeyBundle, data []byte) *Opened {
	out := &Opened{}

	var sealed Sealed
	if err := json.Unmarshal(data, &sealed); err != nil {
		out.Err = fmt.Errorf("%w: %v", ErrMalformed, err)
		return out
	}
	var header Header
	if err := json.Unmarshal(sealed.HeaderBytes, &header); err != nil {
		out.Err = fmt.Errorf("%w: header: %v", ErrMalformed, err)
		return out
	}
	if !complete(header.Sender) || !complete(header.Recipient) {
		out.Err = fmt.Errorf("%w: header is missing a party", ErrMalformed)
		return out
	}
	out.Header = &header
	out.SentAt = time.UnixMilli(int64(header.Timestamp))

	// metadata first so a failed decrypt is still attributable
	sender, senderErr := header.Sender.WalletSignatureAddress()
	recipient, recipientErr := header.Recipient.WalletSignatureAddress()
	out.SenderAddress = sender
	out.RecipientAddress = recipient
	if err := errors.Join(senderErr, recipientErr); err != nil {
		out.Err = err
		return out
	}

	if err := header.Sender.Validate(); err != nil {
		out.Err = fmt.Errorf("sender bundle: %w", err)
		return out
	}
	if sealed.Ciphertext == nil || !header.Sender.IdentityKey.Verify(signedBytes(sealed.HeaderBytes, sealed.Ciphertext.Payload), sealed.Signature) {
		out.Err = ErrBadSignature
		return out
	}

	secret, err := sharedSecret(owner, &header)
	if err != nil {
		out.Err = err
		return out
	}
	payload, err := encryption.Decrypt(sealed.Ciphertext, secret, sealed.HeaderBytes)
	if err != nil {
		out.Err = err
		return out
	}
	out.Payload = payload
	return out
}

func complete(b *keys.PublicKeyBundle) bool {
	return b != nil && b.IdentityKey != nil && b.PreKey != nil
}

func sharedSecret(owner *keys.PrivateKeyBundle, header *Header) ([]byte, error) {
	me := &owner.IdentityKey.PublicKey
	switch {
	case me.Equal(header.Recipient.IdentityKey):
		return owner.SharedSecret(header.Sender, header.Recipient.PreKey, true)
	case me.Equal(header.Sender.IdentityKey):
		return owner.SharedSecret(header.Recipient, header.Sender.PreKey, false)
	default:
		return nil, ErrNotAParty
	}
}

func signedBytes(headerBytes, payload []byte) []byte {
	b := make([]byte, 0, len(headerBytes)+len(payload))
	b = append(b, headerBytes...)
	return append(b, payload...)
}
