package client

import (
	"errors"

	"e2e_xmtp/internal/content"
	"e2e_xmtp/internal/repository/keystore"
	"e2e_xmtp/internal/transport"
)

var (
	ErrConfiguration      = keystore.ErrConfiguration
	ErrNetwork            = transport.ErrNetwork
	ErrUnknownContentType = content.ErrUnknownContentType
	ErrOversizeContent    = content.ErrOversizeContent
	ErrSchemeValidation   = content.ErrSchemeValidation

	ErrDecryption             = errors.New("decryption failed")
	ErrRecipientNotRegistered = errors.New("recipient is not registered")
	ErrClosed                 = errors.New("client closed")
	ErrInvalidEnvelope        = errors.New("invalid envelope")
)
