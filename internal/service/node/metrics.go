package node

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry      *prometheus.Registry
	published     *prometheus.CounterVec
	queries       prometheus.Counter
	subscriptions prometheus.Gauge
	requestErrors *prometheus.CounterVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xmtp_node",
			Name:      "envelopes_published_total",
			Help:      "Envelopes accepted for publishing.",
		}, []string{"kind"}),
		queries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xmtp_node",
			Name:      "queries_total",
			Help:      "Query pages served.",
		}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "xmtp_node",
			Name:      "active_subscriptions",
			Help:      "Open websocket subscriptions.",
		}),
		requestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xmtp_node",
			Name:      "request_errors_total",
			Help:      "Failed requests by route.",
		}, []string{"route"}),
	}
	m.registry.MustRegister(m.published, m.queries, m.subscriptions, m.requestErrors)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
