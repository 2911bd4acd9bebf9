package node

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"e2e_xmtp/internal/model"
	"e2e_xmtp/internal/service/redis"
	"e2e_xmtp/internal/topic"
	"e2e_xmtp/internal/transport"

	"github.com/alicebob/miniredis/v2"
	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, pageLimit int) (*httptest.Server, *clock.Mock) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	clk := clock.NewMock()
	clk.Set(time.Unix(1_700_000_000, 0))
	s := NewHttpServer(Config{PageLimit: pageLimit}, redis.NewRedis(rdb), clk)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv, clk
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func publish(t *testing.T, srv *httptest.Server, envs ...model.Envelope) {
	t.Helper()
	resp := postJSON(t, srv.URL+"/api/v1/publish", transport.PublishRequest{Envelopes: envs})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func query(t *testing.T, srv *httptest.Server, req transport.QueryRequest) transport.QueryResponse {
	t.Helper()
	resp := postJSON(t, srv.URL+"/api/v1/query", req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out transport.QueryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestPublishAndQuery(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	dm := topic.DirectMessage("0xa", "0xb")

	publish(t, srv,
		model.Envelope{ContentTopic: dm, Message: []byte("two"), TimestampNs: 20},
		model.Envelope{ContentTopic: dm, Message: []byte("one"), TimestampNs: 10},
		model.Envelope{ContentTopic: dm, Message: []byte("one"), TimestampNs: 10},
	)

	out := query(t, srv, transport.QueryRequest{ContentTopics: []string{dm}})
	require.Len(t, out.Envelopes, 3, "identical envelopes are kept")
	assert.Equal(t, "one", string(out.Envelopes[0].Message))
	assert.Equal(t, "two", string(out.Envelopes[2].Message))
	assert.Empty(t, out.Cursor)

	desc := query(t, srv, transport.QueryRequest{ContentTopics: []string{dm}, Direction: transport.SortDescending})
	assert.Equal(t, "two", string(desc.Envelopes[0].Message))

	window := query(t, srv, transport.QueryRequest{ContentTopics: []string{dm}, StartTimeNs: 15})
	require.Len(t, window.Envelopes, 1)
	assert.Equal(t, uint64(20), window.Envelopes[0].TimestampNs)
}

func TestPublishStampsTimestamp(t *testing.T) {
	srv, clk := newTestServer(t, 0)
	publish(t, srv, model.Envelope{ContentTopic: "t", Message: []byte("x")})

	out := query(t, srv, transport.QueryRequest{ContentTopics: []string{"t"}})
	require.Len(t, out.Envelopes, 1)
	assert.Equal(t, uint64(clk.Now().UnixNano()), out.Envelopes[0].TimestampNs)
}

func TestQueryPagination(t *testing.T) {
	srv, _ := newTestServer(t, 2)
	for i := 1; i <= 5; i++ {
		publish(t, srv, model.Envelope{ContentTopic: "t", Message: []byte{byte(i)}, TimestampNs: uint64(i)})
	}

	var got []byte
	req := transport.QueryRequest{ContentTopics: []string{"t"}, PageSize: 50}
	for {
		page := query(t, srv, req)
		assert.LessOrEqual(t, len(page.Envelopes), 2)
		for _, env := range page.Envelopes {
			got = append(got, env.Message...)
		}
		if page.Cursor == "" {
			break
		}
		req.Cursor = page.Cursor
	}
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, got)
}

func TestRejectsBadRequests(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	resp := postJSON(t, srv.URL+"/api/v1/publish", transport.PublishRequest{Envelopes: []model.Envelope{{ContentTopic: "t"}}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/api/v1/query", transport.QueryRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	r, err := http.Post(srv.URL+"/api/v1/query", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusBadRequest, r.StatusCode)

	r, err = http.Get(srv.URL + "/api/v1/subscribe")
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusBadRequest, r.StatusCode)
}

func TestSubscribeReceivesNewEnvelopes(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/subscribe?topic=a"
	conn, _, err := websocket.DefaultDialer.DialContext(context.Background(), wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	publish(t, srv,
		model.Envelope{ContentTopic: "b", Message: []byte("skip"), TimestampNs: 1},
		model.Envelope{ContentTopic: "a", Message: []byte("hi"), TimestampNs: 2},
	)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var env model.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, "a", env.ContentTopic)
	assert.Equal(t, "hi", string(env.Message))
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	publish(t, srv, model.Envelope{ContentTopic: topic.UserIntro("0xa"), Message: []byte("x"), TimestampNs: 1})

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `xmtp_node_envelopes_published_total{kind="intro"} 1`)
}
