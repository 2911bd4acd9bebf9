// Package api is the network transport spoken against a node over HTTP for
// publish and query, and websocket for subscriptions.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"e2e_xmtp/internal/model"
	"e2e_xmtp/internal/transport"
	"e2e_xmtp/internal/utils/log"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	EnvLocal      = "local"
	EnvDev        = "dev"
	EnvProduction = "production"
)

var ErrUnknownEnv = errors.New("unknown env")

var envURLs = map[string]string{
	EnvLocal:      "http://localhost:5555",
	EnvDev:        "https://nodes.dev.xmtp.network",
	EnvProduction: "https://nodes.production.xmtp.network",
}

// URLForEnv maps an env name to its node endpoint.
func URLForEnv(env string) (string, error) {
	u, ok := envURLs[env]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownEnv, env)
	}
	return u, nil
}

type (
	Client struct {
		baseURL    *url.URL
		httpClient *http.Client
		dialer     *websocket.Dialer

		mu     sync.Mutex
		subs   map[*subscription]struct{}
		closed bool
	}
)

var _ transport.Transport = (*Client)(nil)

func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api url %q: scheme must be http or https", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    u,
		httpClient: httpClient,
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		subs:       make(map[*subscription]struct{}),
	}, nil
}

func (c *Client) Publish(ctx context.Context, envelopes []model.Envelope) error {
	return c.post(ctx, "/api/v1/publish", &transport.PublishRequest{Envelopes: envelopes}, nil)
}

func (c *Client) Query(ctx context.Context, req transport.QueryRequest) (*transport.QueryResponse, error) {
	var resp transport.QueryResponse
	if err := c.post(ctx, "/api/v1/query", &req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	if c.isClosed() {
		return transport.ErrClosed
	}

	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL.String()+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return transport.NetworkError(path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return transport.NetworkError(path, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return transport.NetworkError(path, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) Subscribe(ctx context.Context, topics []string) (transport.Subscription, error) {
	if c.isClosed() {
		return nil, transport.ErrClosed
	}

	u := *c.baseURL
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path += "/api/v1/subscribe"
	u.RawQuery = url.Values{"topic": topics}.Encode()

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		return nil, transport.NetworkError("subscribe", err)
	}

	sub := &subscription{
		owner: c,
		conn:  conn,
		ch:    make(chan model.Envelope, 64),
		done:  make(chan struct{}),
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return nil, transport.ErrClosed
	}
	c.subs[sub] = struct{}{}
	c.mu.Unlock()

	go sub.read()
	return sub, nil
}

// Close ends every open subscription.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	subs := make([]*subscription, 0, len(c.subs))
	for s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) forget(s *subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, s)
}

type subscription struct {
	owner *Client
	conn  *websocket.Conn
	ch    chan model.Envelope

	mu       sync.Mutex
	err      error
	stopping bool
	once     sync.Once
	done     chan struct{}
}

func (s *subscription) read() {
	defer close(s.ch)
	defer s.owner.forget(s)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			if !s.stopping {
				s.err = transport.NetworkError("subscription", err)
				log.Debug("subscription dropped", zap.Error(err))
			}
			s.mu.Unlock()
			s.conn.Close()
			return
		}

		var env model.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Warn("skipping malformed envelope frame", zap.Error(err))
			continue
		}
		select {
		case s.ch <- env:
		case <-s.done:
			s.conn.Close()
			return
		}
	}
}

func (s *subscription) Envelopes() <-chan model.Envelope {
	return s.ch
}

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.stopping = true
		s.mu.Unlock()
		close(s.done)
		err = s.conn.Close()
	})
	return err
}
