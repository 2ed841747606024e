// Package metrics exposes Prometheus counters for the ticket pipeline and
// the HTTP surface.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "autoresponder"

type Metrics struct {
	registry *prometheus.Registry

	TicketsProcessed *prometheus.CounterVec
	AIRequests       *prometheus.CounterVec
	EmailsSent       prometheus.Counter
	ChatPosts        *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
}

// New creates a collector set backed by its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		TicketsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tickets_processed_total",
			Help:      "Total number of tickets run through the pipeline",
		}, []string{"source", "status"}),
		AIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_requests_total",
			Help:      "Total number of reply-generation attempts",
		}, []string{"status"}),
		EmailsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_sent_total",
			Help:      "Total number of reply emails sent",
		}),
		ChatPosts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_posts_total",
			Help:      "Total number of Slack notification attempts",
		}, []string{"status"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status_code"}),
	}

	reg.MustRegister(
		m.TicketsProcessed,
		m.AIRequests,
		m.EmailsSent,
		m.ChatPosts,
		m.HTTPRequests,
	)

	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
