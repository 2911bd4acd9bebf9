package client

import (
	"context"
	"iter"
	"time"

	"e2e_xmtp/internal/model"
	"e2e_xmtp/internal/service/stream"
	"e2e_xmtp/internal/topic"
	"e2e_xmtp/internal/transport"
	"e2e_xmtp/internal/utils/log"

	"go.uber.org/zap"
)

type ListMessagesOptions struct {
	StartTime time.Time
	EndTime   time.Time
	// Limit bounds the envelopes fetched, before filtering. Zero is unbounded.
	Limit     int
	PageSize  int
	Direction transport.Direction
	// CheckAddresses drops messages whose sender and recipient do not
	// derive the queried topic.
	CheckAddresses bool
}

// FilterForTopic keeps messages whose sender and recipient addresses
// re-derive contentTopic as their direct message topic.
func FilterForTopic(contentTopic string) stream.FilterFunc {
	return func(msg *model.Message) bool {
		return msg.SenderAddress != "" &&
			msg.RecipientAddress != "" &&
			topic.DirectMessage(msg.SenderAddress, msg.RecipientAddress) == contentTopic
	}
}

// IterMessages lazily pages through contentTopic, decoding as it goes.
// Envelopes that fail to decode are logged and skipped. Transport errors end
// the sequence.
func (c *Client) IterMessages(ctx context.Context, contentTopic string, opts ListMessagesOptions) iter.Seq2[*model.Message, error] {
	return func(yield func(*model.Message, error) bool) {
		if err := c.checkOpen(); err != nil {
			yield(nil, err)
			return
		}

		var filter stream.FilterFunc
		if opts.CheckAddresses {
			filter = FilterForTopic(contentTopic)
		}
		query := transport.Filter{
			ContentTopics: []string{contentTopic},
			StartTime:     opts.StartTime,
			EndTime:       opts.EndTime,
		}
		qopts := transport.QueryOptions{Limit: opts.Limit, PageSize: opts.PageSize, Direction: opts.Direction}

		for env, err := range transport.QueryIterator(ctx, c.transport, query, qopts) {
			if err != nil {
				yield(nil, err)
				return
			}
			if len(env.Message) == 0 {
				continue
			}
			msg, err := c.DecodeMessage(env)
			if err != nil {
				log.Warn("skipping undecodable message", zap.String("topic", contentTopic), zap.Error(err))
				continue
			}
			if filter != nil && !filter(msg) {
				continue
			}
			if !yield(msg, nil) {
				return
			}
		}
	}
}

// ListMessages collects IterMessages.
func (c *Client) ListMessages(ctx context.Context, contentTopic string, opts ListMessagesOptions) ([]*model.Message, error) {
	var out []*model.Message
	for msg, err := range c.IterMessages(ctx, contentTopic, opts) {
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

func (c *Client) ListIntroductionMessages(ctx context.Context, opts ListMessagesOptions) ([]*model.Message, error) {
	return c.ListMessages(ctx, topic.UserIntro(c.address), opts)
}

// ListConversationMessages always checks addresses.
func (c *Client) ListConversationMessages(ctx context.Context, peer string, opts ListMessagesOptions) ([]*model.Message, error) {
	opts.CheckAddresses = true
	return c.ListMessages(ctx, topic.DirectMessage(peer, c.address), opts)
}

// StreamMessages subscribes to contentTopic. The stream is closed by the
// caller, by leaving its range loop, or by Close on the client.
func (c *Client) StreamMessages(ctx context.Context, contentTopic string, filter stream.FilterFunc) (*stream.Stream, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	sub, err := c.transport.Subscribe(ctx, []string{contentTopic})
	if err != nil {
		return nil, err
	}

	s := stream.New(sub, c.DecodeMessage, filter)
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		s.Close()
		return nil, ErrClosed
	}
	c.streams[s] = struct{}{}
	c.mu.Unlock()

	go func() {
		<-s.Done()
		c.mu.Lock()
		delete(c.streams, s)
		c.mu.Unlock()
	}()
	return s, nil
}

func (c *Client) StreamIntroductionMessages(ctx context.Context) (*stream.Stream, error) {
	return c.StreamMessages(ctx, topic.UserIntro(c.address), nil)
}

func (c *Client) StreamConversationMessages(ctx context.Context, peer string) (*stream.Stream, error) {
	contentTopic := topic.DirectMessage(peer, c.address)
	return c.StreamMessages(ctx, contentTopic, FilterForTopic(contentTopic))
}

// OpenStreams reports how many streams are still open.
func (c *Client) OpenStreams() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.streams)
}
