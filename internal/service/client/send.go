package client

import (
	"context"
	"fmt"
	"time"

	"e2e_xmtp/internal/content"
	"e2e_xmtp/internal/keys"
	"e2e_xmtp/internal/model"
	"e2e_xmtp/internal/protocol/message"
	"e2e_xmtp/internal/topic"
	"e2e_xmtp/internal/utils/log"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type (
	SendOptions struct {
		// ContentType defaults to text.
		ContentType     *content.ContentTypeID
		ContentFallback string
		Compression     *content.Compression
		// Timestamp overrides the sent time recorded in the message.
		Timestamp time.Time
	}

	SendOption func(*SendOptions)

	TopicResult struct {
		Topic string
		Err   error
	}

	// SendResult holds one entry per topic the message was published to.
	// Publishes that succeeded are not rolled back when others fail.
	SendResult struct {
		Topics []TopicResult
	}
)

func WithContentType(id content.ContentTypeID) SendOption {
	return func(o *SendOptions) { o.ContentType = &id }
}

func WithContentFallback(text string) SendOption {
	return func(o *SendOptions) { o.ContentFallback = text }
}

func WithCompression(c content.Compression) SendOption {
	return func(o *SendOptions) { o.Compression = &c }
}

func WithTimestamp(ts time.Time) SendOption {
	return func(o *SendOptions) { o.Timestamp = ts }
}

// Err combines the per-topic failures, nil when every publish succeeded.
func (r *SendResult) Err() error {
	var err error
	for _, t := range r.Topics {
		if t.Err != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", t.Topic, t.Err))
		}
	}
	return err
}

func (r *SendResult) Failed() []string {
	var out []string
	for _, t := range r.Topics {
		if t.Err != nil {
			out = append(out, t.Topic)
		}
	}
	return out
}

// Send seals content for peer and publishes it. The first message to a peer
// also goes to both parties' intro topics. The returned error covers
// failures before publishing; per-topic publish failures are in the result.
func (c *Client) Send(ctx context.Context, peer string, payload any, opts ...SendOption) (*SendResult, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	var options SendOptions
	for _, opt := range opts {
		opt(&options)
	}

	recipient, err := c.GetUserContact(ctx, peer)
	if err != nil {
		return nil, err
	}
	if recipient == nil {
		return nil, fmt.Errorf("%w: %s", ErrRecipientNotRegistered, peer)
	}

	sentAt := options.Timestamp
	if sentAt.IsZero() {
		sentAt = c.clock.Now()
	}
	sealed, err := c.EncodeMessage(recipient, sentAt, payload, options)
	if err != nil {
		return nil, err
	}

	topics := []string{topic.DirectMessage(c.address, peer)}
	if c.markContact(peer) {
		topics = []string{topic.UserIntro(peer), topic.DirectMessage(c.address, peer)}
		if topic.NormalizeAddress(peer) != topic.NormalizeAddress(c.address) {
			topics = append(topics, topic.UserIntro(c.address))
		}
	}

	result := &SendResult{Topics: make([]TopicResult, len(topics))}
	var g errgroup.Group
	for i, t := range topics {
		result.Topics[i].Topic = t
		g.Go(func() error {
			err := c.PublishEnvelope(ctx, model.Envelope{ContentTopic: t, Message: sealed})
			if err != nil {
				log.Warn("publish failed", zap.String("topic", t), zap.Error(err))
			}
			result.Topics[i].Err = err
			return nil
		})
	}
	g.Wait()

	if err := result.Err(); err != nil {
		log.Error("message partially delivered", zap.String("peer", peer), zap.Strings("failed", result.Failed()), zap.Error(err))
	}
	return result, nil
}

// EncodeMessage runs content through its codec, applies the fallback and
// compression options and seals the encoded record for recipient.
func (c *Client) EncodeMessage(recipient *keys.PublicKeyBundle, sentAt time.Time, payload any, options SendOptions) ([]byte, error) {
	contentType := content.ContentTypeText
	if options.ContentType != nil {
		contentType = *options.ContentType
	}
	codec, err := c.registry.Resolve(contentType)
	if err != nil {
		return nil, err
	}

	encoded, err := codec.Encode(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", contentType, err)
	}
	if options.ContentFallback != "" {
		encoded.Fallback = options.ContentFallback
	}
	if options.Compression != nil {
		encoded.Compression = options.Compression
	}
	if err := content.Compress(encoded); err != nil {
		return nil, err
	}

	return message.Seal(c.keys, recipient, encoded.Marshal(), sentAt)
}

// PublishEnvelope publishes a single envelope. Topic and message are required.
func (c *Client) PublishEnvelope(ctx context.Context, env model.Envelope) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if env.ContentTopic == "" {
		return fmt.Errorf("%w: missing content topic", ErrInvalidEnvelope)
	}
	if len(env.Message) == 0 {
		return fmt.Errorf("%w: cannot publish empty message", ErrInvalidEnvelope)
	}
	return c.transport.Publish(ctx, []model.Envelope{env})
}
