// Package metrics defines the Prometheus collectors exported by the server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors for one server instance.
type Metrics struct {
	registry *prometheus.Registry

	requests          *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	settlementMembers prometheus.Histogram
	transfers         prometheus.Histogram
	residuals         *prometheus.CounterVec
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "settleup",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "settleup",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		settlementMembers: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "settleup",
			Name:      "settlement_members",
			Help:      "Number of members per settlement run.",
			Buckets:   prometheus.ExponentialBuckets(2, 2, 10),
		}),
		transfers: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "settleup",
			Name:      "settlement_transfers",
			Help:      "Number of transfers emitted per settlement run.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		residuals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "settleup",
			Name:      "settlement_residuals_total",
			Help:      "Members left with an unsettled balance, by severity.",
		}, []string{"severity"}),
	}

	m.registry.MustRegister(
		m.requests,
		m.requestDuration,
		m.settlementMembers,
		m.transfers,
		m.residuals,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records one completed HTTP request.
func (m *Metrics) ObserveRequest(route string, code int, elapsed time.Duration) {
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveSettlement records the size of one settlement run.
func (m *Metrics) ObserveSettlement(members, transfers int) {
	m.settlementMembers.Observe(float64(members))
	m.transfers.Observe(float64(transfers))
}

// ObserveResidual counts one unsettled balance. Severity is "tolerated" or "warning".
func (m *Metrics) ObserveResidual(severity string) {
	m.residuals.WithLabelValues(severity).Inc()
}
