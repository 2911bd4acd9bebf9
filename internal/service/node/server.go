// Package node is a store-and-forward relay: clients publish envelopes to
// topics, page through a topic's history and hold websocket subscriptions
// for new envelopes.
package node

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"e2e_xmtp/internal/model"
	"e2e_xmtp/internal/service/redis"
	"e2e_xmtp/internal/topic"
	"e2e_xmtp/internal/transport"
	"e2e_xmtp/internal/utils/log"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const maxRequestBody = 8 << 20

type (
	Config struct {
		Listen    string
		PageLimit int
	}

	HttpServer struct {
		cfg          Config
		clock        clock.Clock
		envelopeLog  *EnvelopeLog
		redisService *redis.RedisService
		metrics      *metrics
		upgrader     websocket.Upgrader
	}
)

func NewHttpServer(cfg Config, redisSvc *redis.RedisService, clk clock.Clock) *HttpServer {
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = transport.DefaultPageSize
	}
	if clk == nil {
		clk = clock.New()
	}
	return &HttpServer{
		cfg:          cfg,
		clock:        clk,
		envelopeLog:  NewEnvelopeLog(redisSvc),
		redisService: redisSvc,
		metrics:      newMetrics(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins
			},
		},
	}
}

func (s *HttpServer) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/v1/publish", s.HandlePublish()).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/query", s.HandleQuery()).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/subscribe", s.HandleSubscribeWS()).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.handler()).Methods(http.MethodGet)
	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *HttpServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("node listening", zap.String("addr", s.cfg.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HttpServer) HandlePublish() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req transport.PublishRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
			s.fail(w, "publish", "invalid publish request", http.StatusBadRequest, err)
			return
		}

		for _, env := range req.Envelopes {
			if env.ContentTopic == "" || len(env.Message) == 0 {
				s.fail(w, "publish", "envelope needs a topic and a message", http.StatusBadRequest, nil)
				return
			}
		}

		for _, env := range req.Envelopes {
			if env.TimestampNs == 0 {
				env.TimestampNs = uint64(s.clock.Now().UnixNano())
			}
			if err := s.envelopeLog.Append(ctx, env); err != nil {
				s.fail(w, "publish", "publish failed", http.StatusInternalServerError, err)
				return
			}
			s.metrics.published.WithLabelValues(kindLabel(env.ContentTopic)).Inc()
			log.Debug("envelope published", zap.String("topic", env.ContentTopic))
		}

		writeJSON(w, struct{}{})
	}
}

func (s *HttpServer) HandleQuery() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req transport.QueryRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
			s.fail(w, "query", "invalid query request", http.StatusBadRequest, err)
			return
		}
		if len(req.ContentTopics) == 0 {
			s.fail(w, "query", "contentTopics cannot be empty", http.StatusBadRequest, nil)
			return
		}
		if req.PageSize <= 0 || req.PageSize > s.cfg.PageLimit {
			req.PageSize = s.cfg.PageLimit
		}

		resp, err := s.envelopeLog.Query(ctx, req)
		if err != nil {
			s.fail(w, "query", "query failed", http.StatusInternalServerError, err)
			return
		}
		if resp.Envelopes == nil {
			resp.Envelopes = []model.Envelope{}
		}
		s.metrics.queries.Inc()
		writeJSON(w, resp)
	}
}

func (s *HttpServer) HandleSubscribeWS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topics := r.URL.Query()["topic"]
		if len(topics) == 0 {
			s.fail(w, "subscribe", "topic cannot be empty", http.StatusBadRequest, nil)
			return
		}

		channels := make([]string, len(topics))
		for i, t := range topics {
			channels[i] = channelKey(t)
		}

		// subscribe before upgrading so nothing published after the
		// handshake is missed
		ctx, cancel := context.WithCancel(context.Background())
		pubsub := s.redisService.Subscribe(ctx, channels...)
		if _, err := pubsub.Receive(r.Context()); err != nil {
			cancel()
			pubsub.Close()
			s.fail(w, "subscribe", "subscribe failed", http.StatusInternalServerError, err)
			return
		}

		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			cancel()
			pubsub.Close()
			log.Error("websocket upgrade failed", zap.Error(err))
			return
		}

		id := uuid.NewString()
		s.metrics.subscriptions.Inc()
		log.Debug("subscription opened", zap.String("id", id), zap.Strings("topics", topics))

		go s.processWSMessage(id, conn, cancel)
		go func() {
			defer func() {
				pubsub.Close()
				conn.Close()
				s.metrics.subscriptions.Dec()
				log.Debug("subscription closed", zap.String("id", id))
			}()

			ch := pubsub.Channel()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-ch:
					if !ok {
						return
					}
					if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
						log.Debug("subscription write failed", zap.String("id", id), zap.Error(err))
						return
					}
				}
			}
		}()
	}
}

// processWSMessage drains client frames until the connection closes. Clients
// never send anything meaningful on a subscription.
func (s *HttpServer) processWSMessage(id string, conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			log.Debug("subscriber web socket closed", zap.String("id", id), zap.Error(err))
			return
		}
	}
}

func (s *HttpServer) fail(w http.ResponseWriter, route, msg string, status int, err error) {
	s.metrics.requestErrors.WithLabelValues(route).Inc()
	if err != nil {
		log.Error(msg, zap.String("route", route), zap.Error(err))
	}
	http.Error(w, msg, status)
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "encode response failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func kindLabel(contentTopic string) string {
	if kind := topic.Kind(contentTopic); kind != "" {
		return kind
	}
	return "other"
}
