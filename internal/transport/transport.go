// Package transport describes the store-and-forward network a client talks
// to: publish envelopes, page through a topic's log and subscribe to new
// envelopes.
package transport

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"e2e_xmtp/internal/model"
)

var (
	ErrNetwork = errors.New("network error")
	ErrClosed  = errors.New("transport closed")
)

type Direction int

const (
	SortAscending Direction = iota
	SortDescending
)

const DefaultPageSize = 100

type (
	// QueryRequest asks for one page. Zero times leave the window open.
	QueryRequest struct {
		ContentTopics []string  `json:"contentTopics"`
		StartTimeNs   uint64    `json:"startTimeNs,omitempty"`
		EndTimeNs     uint64    `json:"endTimeNs,omitempty"`
		PageSize      int       `json:"limit,omitempty"`
		Direction     Direction `json:"direction"`
		Cursor        string    `json:"cursor,omitempty"`
	}

	// QueryResponse carries a page and the cursor of the next one, empty at the end.
	QueryResponse struct {
		Envelopes []model.Envelope `json:"envelopes"`
		Cursor    string           `json:"cursor,omitempty"`
	}

	PublishRequest struct {
		Envelopes []model.Envelope `json:"envelopes"`
	}

	// Subscription delivers envelopes until Close is called or the
	// connection drops, after which Envelopes is closed and Err explains why.
	Subscription interface {
		Envelopes() <-chan model.Envelope
		Err() error
		Close() error
	}

	Transport interface {
		Publish(ctx context.Context, envelopes []model.Envelope) error
		Query(ctx context.Context, req QueryRequest) (*QueryResponse, error)
		Subscribe(ctx context.Context, topics []string) (Subscription, error)
		Close() error
	}

	// Filter selects the envelopes of a scan.
	Filter struct {
		ContentTopics []string
		StartTime     time.Time
		EndTime       time.Time
	}

	// QueryOptions bounds a scan. Limit <= 0 means no bound.
	QueryOptions struct {
		Limit     int
		PageSize  int
		Direction Direction
	}
)

func (f Filter) request(opts QueryOptions) QueryRequest {
	req := QueryRequest{
		ContentTopics: f.ContentTopics,
		PageSize:      opts.PageSize,
		Direction:     opts.Direction,
	}
	if req.PageSize <= 0 {
		req.PageSize = DefaultPageSize
	}
	if !f.StartTime.IsZero() {
		req.StartTimeNs = uint64(f.StartTime.UnixNano())
	}
	if !f.EndTime.IsZero() {
		req.EndTimeNs = uint64(f.EndTime.UnixNano())
	}
	return req
}

// QueryIterator lazily pages through every envelope matching filter. Each
// call starts from the first page. Breaking out of the loop stops paging.
func QueryIterator(ctx context.Context, t Transport, filter Filter, opts QueryOptions) iter.Seq2[model.Envelope, error] {
	return func(yield func(model.Envelope, error) bool) {
		req := filter.request(opts)
		seen := 0
		for {
			if err := ctx.Err(); err != nil {
				yield(model.Envelope{}, err)
				return
			}
			if opts.Limit > 0 {
				req.PageSize = min(req.PageSize, opts.Limit-seen)
			}

			resp, err := t.Query(ctx, req)
			if err != nil {
				yield(model.Envelope{}, err)
				return
			}
			for _, env := range resp.Envelopes {
				if !yield(env, nil) {
					return
				}
				seen++
				if opts.Limit > 0 && seen >= opts.Limit {
					return
				}
			}
			if resp.Cursor == "" || len(resp.Envelopes) == 0 {
				return
			}
			req.Cursor = resp.Cursor
		}
	}
}

// QueryAll collects QueryIterator into a slice.
func QueryAll(ctx context.Context, t Transport, filter Filter, opts QueryOptions) ([]model.Envelope, error) {
	var out []model.Envelope
	for env, err := range QueryIterator(ctx, t, filter, opts) {
		if err != nil {
			return nil, err
		}
		out = append(out, env)
	}
	return out, nil
}

func networkError(op string, err error) error {
	if errors.Is(err, ErrNetwork) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrNetwork, op, err)
}

// NetworkError tags err as a transport failure unless it already is one.
func NetworkError(op string, err error) error {
	return networkError(op, err)
}
