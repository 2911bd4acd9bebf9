// Package stream turns a transport subscription into decoded messages that
// can be consumed by callback or by range loop.
package stream

import (
	"context"
	"errors"
	"iter"
	"sync"

	"e2e_xmtp/internal/model"
	"e2e_xmtp/internal/transport"
	"e2e_xmtp/internal/utils/log"

	"go.uber.org/zap"
)

// ErrClosed is returned by Next once the stream has been closed.
var ErrClosed = errors.New("stream closed")

type (
	// DecodeFunc opens an envelope. An error drops the envelope.
	DecodeFunc func(model.Envelope) (*model.Message, error)

	// FilterFunc keeps messages it returns true for.
	FilterFunc func(*model.Message) bool

	Stream struct {
		sub    transport.Subscription
		decode DecodeFunc
		filter FilterFunc

		once     sync.Once
		closeErr error
		done     chan struct{}
	}
)

func New(sub transport.Subscription, decode DecodeFunc, filter FilterFunc) *Stream {
	return &Stream{
		sub:    sub,
		decode: decode,
		filter: filter,
		done:   make(chan struct{}),
	}
}

// Next blocks until a message passes the filter. It returns ErrClosed after
// Close and the subscription's error if the connection dropped.
func (s *Stream) Next(ctx context.Context) (*model.Message, error) {
	for {
		select {
		case <-s.done:
			return nil, ErrClosed
		default:
		}

		select {
		case <-s.done:
			return nil, ErrClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		case env, ok := <-s.sub.Envelopes():
			if !ok {
				if err := s.sub.Err(); err != nil {
					return nil, err
				}
				return nil, ErrClosed
			}

			msg, err := s.decode(env)
			if err != nil {
				log.Warn("dropping undecodable envelope", zap.String("topic", env.ContentTopic), zap.Error(err))
				continue
			}
			if s.filter != nil && !s.filter(msg) {
				continue
			}
			return msg, nil
		}
	}
}

// Messages is the pull view. Leaving the loop early closes the stream.
func (s *Stream) Messages(ctx context.Context) iter.Seq[*model.Message] {
	return func(yield func(*model.Message) bool) {
		defer s.Close()
		for {
			msg, err := s.Next(ctx)
			if err != nil {
				if !errors.Is(err, ErrClosed) {
					log.Debug("stream ended", zap.Error(err))
				}
				return
			}
			if !yield(msg) {
				return
			}
		}
	}
}

// Listen is the push view: cb runs for every message until it returns
// false, ctx ends or the stream is closed. The stream is closed on return.
func (s *Stream) Listen(ctx context.Context, cb func(*model.Message) bool) error {
	defer s.Close()
	for {
		msg, err := s.Next(ctx)
		if errors.Is(err, ErrClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		if !cb(msg) {
			return nil
		}
	}
}

// Close releases the subscription. Only the first call has an effect.
func (s *Stream) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.closeErr = s.sub.Close()
	})
	return s.closeErr
}

// Done is closed once the stream has been closed.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}
