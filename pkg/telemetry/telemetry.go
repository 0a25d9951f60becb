// Package telemetry exposes internal counters for the long-running daemon
// mode: reconciliation passes, token refreshes, and poll ticks. Metrics are
// registered on a private registry so tests never collide, and the daemon
// serves them over an optional /metrics listener.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	tokenRefreshes  *prometheus.CounterVec
	reconcileRuns   *prometheus.CounterVec
	reconcileCards  *prometheus.GaugeVec
	authPollTicks   prometheus.Counter
	reconcileLength prometheus.Histogram
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		tokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cardbridge_token_refreshes_total",
			Help: "Token derivations and refreshes, by backend service.",
		}, []string{"service"}),
		reconcileRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cardbridge_reconcile_runs_total",
			Help: "Card reconciliation passes, by outcome.",
		}, []string{"outcome"}),
		reconcileCards: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cardbridge_reconcile_cards",
			Help: "Cards touched by the last reconciliation pass, by kind.",
		}, []string{"kind"}),
		authPollTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cardbridge_auth_poll_ticks_total",
			Help: "Device authorization poll ticks issued.",
		}),
		reconcileLength: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cardbridge_reconcile_duration_seconds",
			Help:    "Duration of reconciliation passes.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	registry.MustRegister(
		m.tokenRefreshes,
		m.reconcileRuns,
		m.reconcileCards,
		m.authPollTicks,
		m.reconcileLength,
	)
	return m
}

// The record methods are nil-receiver safe so callers can leave metrics
// unset outside daemon mode.

func (m *Metrics) TokenRefresh(service string) {
	if m == nil {
		return
	}
	m.tokenRefreshes.WithLabelValues(service).Inc()
}

func (m *Metrics) ReconcileRun(outcome string) {
	if m == nil {
		return
	}
	m.reconcileRuns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ReconcileCards(kind string, n int) {
	if m == nil {
		return
	}
	m.reconcileCards.WithLabelValues(kind).Set(float64(n))
}

func (m *Metrics) AuthPollTick() {
	if m == nil {
		return
	}
	m.authPollTicks.Inc()
}

func (m *Metrics) ObserveReconcileDuration(seconds float64) {
	if m == nil {
		return
	}
	m.reconcileLength.Observe(seconds)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
