package model

import (
	"time"

	"e2e_xmtp/internal/content"
)

type (
	// Message is an envelope after opening and decoding. Error may be set
	// while Content still carries fallback text.
	Message struct {
		ID               string                 `json:"id"`
		ContentTopic     string                 `json:"contentTopic"`
		SenderAddress    string                 `json:"senderAddress,omitempty"`
		RecipientAddress string                 `json:"recipientAddress,omitempty"`
		SentAt           time.Time              `json:"sentAt"`
		Content          any                    `json:"content,omitempty"`
		ContentType      *content.ContentTypeID `json:"contentType,omitempty"`
		Error            error                  `json:"-"`
	}
)
