// Package metrics holds the prometheus collectors of the service.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the service collectors. A nil *Metrics is a no-op.
type Metrics struct {
	LinksCreated    prometheus.Counter
	Redirects       *prometheus.CounterVec
	Deactivations   *prometheus.CounterVec
	AuthDecisions   *prometheus.CounterVec
	NoticesDropped  prometheus.Counter
	HTTPRequests    *prometheus.CounterVec
	HTTPDurationSec *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LinksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shortlink",
			Name:      "links_created_total",
			Help:      "Links created.",
		}),
		Redirects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shortlink",
			Name:      "redirects_total",
			Help:      "Redirect resolutions by result.",
		}, []string{"result"}),
		Deactivations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shortlink",
			Name:      "deactivations_total",
			Help:      "Link deactivations by cause.",
		}, []string{"cause"}),
		AuthDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shortlink",
			Name:      "auth_decisions_total",
			Help:      "Authorization gate decisions.",
		}, []string{"decision"}),
		NoticesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shortlink",
			Name:      "notices_dropped_total",
			Help:      "Deactivation notices dropped on a full queue.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shortlink",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status.",
		}, []string{"method", "status"}),
		HTTPDurationSec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shortlink",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.LinksCreated,
			m.Redirects,
			m.Deactivations,
			m.AuthDecisions,
			m.NoticesDropped,
			m.HTTPRequests,
			m.HTTPDurationSec,
		)
	}
	return m
}

func (m *Metrics) LinkCreated() {
	if m == nil {
		return
	}
	m.LinksCreated.Inc()
}

func (m *Metrics) Redirect(result string) {
	if m == nil {
		return
	}
	m.Redirects.WithLabelValues(result).Inc()
}

func (m *Metrics) Deactivated(cause string) {
	if m == nil {
		return
	}
	m.Deactivations.WithLabelValues(cause).Inc()
}

func (m *Metrics) AuthDecision(decision string) {
	if m == nil {
		return
	}
	m.AuthDecisions.WithLabelValues(decision).Inc()
}

func (m *Metrics) NoticeDropped() {
	if m == nil {
		return
	}
	m.NoticesDropped.Inc()
}

func (m *Metrics) ObserveHTTP(method string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.HTTPDurationSec.WithLabelValues(method).Observe(seconds)
}
