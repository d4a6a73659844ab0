// Package metrics exposes Prometheus instrumentation for the gateway.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "signup_gateway"

// Metrics holds the gateway's collectors. A nil *Metrics is a valid no-op.
type Metrics struct {
	attempts         *prometheus.CounterVec
	rateLimited      prometheus.Counter
	upstreamDuration *prometheus.HistogramVec
	catalogReloads   *prometheus.CounterVec
	catalogSize      prometheus.Gauge
}

// New creates and registers the collectors on reg (the default registerer when nil).
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Metrics{
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provisioning_attempts_total",
			Help:      "Account provisioning attempts that reached the upstream call, by outcome.",
		}, []string{"outcome"}),
		rateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_rejections_total",
			Help:      "Create-account requests rejected by the per-client quota.",
		}),
		upstreamDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Latency of provider account requests.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}, []string{"provider"}),
		catalogReloads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_reloads_total",
			Help:      "Provider catalog reloads, by result.",
		}, []string{"result"}),
		catalogSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_providers",
			Help:      "Number of providers in the active catalog.",
		}),
	}
}

// ObserveAttempt counts one attempt with the given outcome.
func (m *Metrics) ObserveAttempt(outcome string) {
	if m == nil {
		return
	}

	m.attempts.WithLabelValues(outcome).Inc()
}

// RateLimited counts a quota rejection.
func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}

	m.rateLimited.Inc()
}

// ObserveUpstream records the duration of one upstream call.
func (m *Metrics) ObserveUpstream(provider string, d time.Duration) {
	if m == nil {
		return
	}

	m.upstreamDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// CatalogLoaded records a catalog (re)load.
func (m *Metrics) CatalogLoaded(size int, err error) {
	if m == nil {
		return
	}

	if err != nil {
		m.catalogReloads.WithLabelValues("error").Inc()

		return
	}

	m.catalogReloads.WithLabelValues("success").Inc()
	m.catalogSize.Set(float64(size))
}
