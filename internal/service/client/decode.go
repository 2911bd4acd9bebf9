package client

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"e2e_xmtp/internal/content"
	"e2e_xmtp/internal/model"
	"e2e_xmtp/internal/protocol/message"
)

// DecodeMessage opens an envelope and decodes its content.
//
// Failures to open keep the message with its metadata and an ErrDecryption
// error. An unknown content type keeps the message with the fallback text,
// if any, and ErrUnknownContentType. Malformed or oversize content is
// returned as an error and no message.
func (c *Client) DecodeMessage(env model.Envelope) (*model.Message, error) {
	opened := message.Open(c.keys, env.Message)
	msg := &model.Message{
		ID:               messageID(env.Message),
		ContentTopic:     env.ContentTopic,
		SenderAddress:    opened.SenderAddress,
		RecipientAddress: opened.RecipientAddress,
		SentAt:           opened.SentAt,
	}
	if opened.Err != nil {
		msg.Error = fmt.Errorf("%w: %w", ErrDecryption, opened.Err)
		return msg, nil
	}

	encoded, err := content.UnmarshalEncodedContent(opened.Payload)
	if err != nil {
		return nil, err
	}
	if err := content.Decompress(encoded, c.maxContentSize); err != nil {
		return nil, err
	}

	codec, err := c.registry.Resolve(encoded.Type)
	if err != nil {
		msg.Error = err
		if encoded.Fallback != "" {
			fallback := content.ContentTypeFallback
			msg.Content = encoded.Fallback
			msg.ContentType = &fallback
		}
		return msg, nil
	}

	decoded, err := codec.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", encoded.Type, err)
	}
	contentType := encoded.Type
	msg.Content = decoded
	msg.ContentType = &contentType
	return msg, nil
}

func messageID(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
