package client

import (
	"context"
	"strings"

	"e2e_xmtp/internal/keys"
	"e2e_xmtp/internal/model"
	"e2e_xmtp/internal/topic"
	"e2e_xmtp/internal/transport"
	"e2e_xmtp/internal/utils/log"

	"go.uber.org/zap"
)

const contactPageSize = 5

// PublishUserContact publishes the client's public bundle on its contact topic.
func (c *Client) PublishUserContact(ctx context.Context) error {
	data, err := c.keys.PublicKeyBundle().Encode()
	if err != nil {
		return err
	}
	return c.PublishEnvelope(ctx, model.Envelope{
		ContentTopic: topic.UserContact(c.address),
		Message:      data,
	})
}

// GetUserContact returns peer's public bundle from the cache or the network,
// or nil if peer never published one.
func (c *Client) GetUserContact(ctx context.Context, peer string) (*keys.PublicKeyBundle, error) {
	key := topic.NormalizeAddress(peer)
	if bundle, ok := c.knownBundles.Get(key); ok {
		return bundle, nil
	}

	bundle, err := c.getUserContactFromNetwork(ctx, peer)
	if err != nil {
		return nil, err
	}
	if bundle != nil {
		c.knownBundles.Add(key, bundle)
	}
	return bundle, nil
}

// getUserContactFromNetwork returns the first bundle on peer's contact topic
// whose identity key was signed by peer's wallet.
func (c *Client) getUserContactFromNetwork(ctx context.Context, peer string) (*keys.PublicKeyBundle, error) {
	filter := transport.Filter{ContentTopics: []string{topic.UserContact(peer)}}
	opts := transport.QueryOptions{PageSize: contactPageSize}

	for env, err := range transport.QueryIterator(ctx, c.transport, filter, opts) {
		if err != nil {
			return nil, err
		}
		if len(env.Message) == 0 {
			continue
		}

		bundle, err := keys.DecodePublicKeyBundle(env.Message)
		if err != nil {
			log.Debug("skipping invalid contact bundle", zap.String("topic", env.ContentTopic), zap.Error(err))
			continue
		}
		address, err := bundle.WalletSignatureAddress()
		if err != nil {
			continue
		}
		if strings.EqualFold(address, strings.TrimSpace(peer)) {
			return bundle, nil
		}
	}
	return nil, nil
}

// CanMessage reports whether peer has published a contact bundle.
func (c *Client) CanMessage(ctx context.Context, peer string) (bool, error) {
	if err := c.checkOpen(); err != nil {
		return false, err
	}
	bundle, err := c.GetUserContact(ctx, peer)
	if err != nil {
		return false, err
	}
	return bundle != nil, nil
}
