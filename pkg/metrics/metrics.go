// Package metrics exposes Prometheus counters for the auth flows.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "simple_auth"

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	operations   *prometheus.CounterVec
	tokensIssued *prometheus.CounterVec
	rateLimited  *prometheus.CounterVec
	hashDuration *prometheus.HistogramVec
	gatherer     prometheus.Gatherer
}

// New registers the collectors on reg. Use prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Auth operations by outcome and rejection reason",
			},
			[]string{"operation", "outcome", "reason"},
		),
		tokensIssued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokens_issued_total",
				Help:      "Tokens issued by kind",
			},
			[]string{"kind"},
		),
		rateLimited: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_total",
				Help:      "Requests refused by the rate limiter",
			},
			[]string{"route"},
		),
		hashDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "password_hash_duration_seconds",
				Help:      "Time spent hashing or verifying passwords, including queueing",
				Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2, 5},
			},
			[]string{"op"},
		),
		gatherer: reg,
	}
}

// Operation counts one finished auth operation
func (m *Metrics) Operation(operation, outcome, reason string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome, reason).Inc()
}

// TokenIssued counts one issued token of kind
func (m *Metrics) TokenIssued(kind string) {
	if m == nil {
		return
	}
	m.tokensIssued.WithLabelValues(kind).Inc()
}

// RateLimited counts one refused request on route
func (m *Metrics) RateLimited(route string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(route).Inc()
}

// ObserveHash records how long a hash or verify call took since start
func (m *Metrics) ObserveHash(op string, start time.Time) {
	if m == nil {
		return
	}
	m.hashDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
