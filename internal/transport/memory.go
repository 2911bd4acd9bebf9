package transport

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"e2e_xmtp/internal/model"

	"github.com/benbjohnson/clock"
)

// MemoryTransport is an in-process network: one ordered log per topic and
// fan-out to subscribers. PublishErrors fails publishes to chosen topics.
type MemoryTransport struct {
	mu            sync.Mutex
	clock         clock.Clock
	logs          map[string][]model.Envelope
	subs          map[*memorySubscription]struct{}
	publishErrors map[string]error
	closed        bool
}

func NewMemoryTransport(clk clock.Clock) *MemoryTransport {
	if clk == nil {
		clk = clock.New()
	}
	return &MemoryTransport{
		clock:         clk,
		logs:          make(map[string][]model.Envelope),
		subs:          make(map[*memorySubscription]struct{}),
		publishErrors: make(map[string]error),
	}
}

// FailPublish makes every publish to topic fail with err; nil clears it.
func (m *MemoryTransport) FailPublish(topic string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.publishErrors, topic)
		return
	}
	m.publishErrors[topic] = err
}

// Envelopes returns a copy of topic's log.
func (m *MemoryTransport) Envelopes(topic string) []model.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Envelope(nil), m.logs[topic]...)
}

// Topics lists every topic with at least one envelope.
func (m *MemoryTransport) Topics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.logs))
	for t := range m.logs {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (m *MemoryTransport) SubscriberCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

func (m *MemoryTransport) Publish(ctx context.Context, envelopes []model.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	for _, env := range envelopes {
		if err, ok := m.publishErrors[env.ContentTopic]; ok {
			return networkError("publish "+env.ContentTopic, err)
		}
	}
	for _, env := range envelopes {
		if env.TimestampNs == 0 {
			env.TimestampNs = uint64(m.clock.Now().UnixNano())
		}
		env.Message = append([]byte(nil), env.Message...)
		m.logs[env.ContentTopic] = append(m.logs[env.ContentTopic], env)
		for sub := range m.subs {
			sub.deliver(env)
		}
	}
	return nil
}

func (m *MemoryTransport) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	var matched []model.Envelope
	for _, topic := range req.ContentTopics {
		for _, env := range m.logs[topic] {
			if req.StartTimeNs != 0 && env.TimestampNs < req.StartTimeNs {
				continue
			}
			if req.EndTimeNs != 0 && env.TimestampNs > req.EndTimeNs {
				continue
			}
			matched = append(matched, env)
		}
	}
	m.mu.Unlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if req.Direction == SortDescending {
			return matched[i].TimestampNs > matched[j].TimestampNs
		}
		return matched[i].TimestampNs < matched[j].TimestampNs
	})
	return Page(matched, req)
}

// Page slices an ordered result by the request's cursor and page size.
// Cursors are decimal offsets.
func Page(ordered []model.Envelope, req QueryRequest) (*QueryResponse, error) {
	offset := 0
	if req.Cursor != "" {
		n, err := strconv.Atoi(req.Cursor)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid cursor %q", req.Cursor)
		}
		offset = n
	}
	size := req.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	if offset >= len(ordered) {
		return &QueryResponse{}, nil
	}

	end := min(offset+size, len(ordered))
	resp := &QueryResponse{Envelopes: ordered[offset:end]}
	if end < len(ordered) {
		resp.Cursor = strconv.Itoa(end)
	}
	return resp, nil
}

func (m *MemoryTransport) Subscribe(ctx context.Context, topics []string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	sub := &memorySubscription{
		owner:  m,
		topics: make(map[string]struct{}, len(topics)),
		ch:     make(chan model.Envelope, 64),
	}
	for _, t := range topics {
		sub.topics[t] = struct{}{}
	}
	m.subs[sub] = struct{}{}
	return sub, nil
}

func (m *MemoryTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for sub := range m.subs {
		sub.closeLocked(ErrClosed)
	}
	return nil
}

type memorySubscription struct {
	owner  *MemoryTransport
	topics map[string]struct{}
	ch     chan model.Envelope
	err    error
	closed bool
}

// deliver runs with owner.mu held. A full buffer drops the envelope, like a
// slow websocket consumer would.
func (s *memorySubscription) deliver(env model.Envelope) {
	if _, ok := s.topics[env.ContentTopic]; !ok || s.closed {
		return
	}
	select {
	case s.ch <- env:
	default:
	}
}

func (s *memorySubscription) Envelopes() <-chan model.Envelope {
	return s.ch
}

func (s *memorySubscription) Err() error {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	return s.err
}

func (s *memorySubscription) Close() error {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	s.closeLocked(nil)
	return nil
}

func (s *memorySubscription) closeLocked(err error) {
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	close(s.ch)
	delete(s.owner.subs, s)
}
