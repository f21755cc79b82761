// Package metrics provides Prometheus metrics for app-shell operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the app shell.
type Metrics struct {
	enabled bool

	// Bootstrap metrics
	escalationsTotal prometheus.Counter
	bypassesTotal    prometheus.Counter
	redirectsTotal   *prometheus.CounterVec

	// Access-gate metrics
	gateDecisionsTotal   *prometheus.CounterVec
	gateDecisionDuration prometheus.Histogram
	overrideUsesTotal    prometheus.Counter

	// Tour metrics
	tourStartsTotal *prometheus.CounterVec
	hintsSeenTotal  prometheus.Counter
}

// New creates and registers Prometheus metrics.
// If enabled is false, returns a no-op Metrics instance.
func New(enabled bool) *Metrics {
	m := &Metrics{enabled: enabled}

	if !enabled {
		return m
	}

	// Bootstrap metrics
	m.escalationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "appshell_bootstrap_escalations_total",
		Help: "Total settle deadlines elapsed while a session resolution was in flight",
	})

	m.bypassesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "appshell_bootstrap_bypasses_total",
		Help: "Total sessions bypassed after exhausting escalations",
	})

	m.redirectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "appshell_bootstrap_redirects_total",
		Help: "Total bootstrap redirects",
	}, []string{"reason"})

	// Access-gate metrics
	m.gateDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "appshell_gate_decisions_total",
		Help: "Total access-gate evaluations",
	}, []string{"outcome"})

	m.gateDecisionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "appshell_gate_decision_duration_seconds",
		Help:    "Access-gate evaluation duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	m.overrideUsesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "appshell_gate_override_uses_total",
		Help: "Total gate evaluations forced to allow by the dev override",
	})

	// Tour metrics
	m.tourStartsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "appshell_tour_starts_total",
		Help: "Total guided-tour activations",
	}, []string{"trigger"})

	m.hintsSeenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "appshell_tour_hints_seen_total",
		Help: "Total hints acknowledged by users",
	})

	return m
}

// RecordEscalation records one elapsed settle deadline.
func (m *Metrics) RecordEscalation() {
	if !m.enabled {
		return
	}
	m.escalationsTotal.Inc()
}

// RecordBypass records a session bypassed after repeated escalation.
func (m *Metrics) RecordBypass() {
	if !m.enabled {
		return
	}
	m.bypassesTotal.Inc()
}

// RecordRedirect records a bootstrap redirect with its reason.
func (m *Metrics) RecordRedirect(reason string) {
	if !m.enabled {
		return
	}
	m.redirectsTotal.WithLabelValues(reason).Inc()
}

// RecordGateDecision records an access-gate decision outcome.
func (m *Metrics) RecordGateDecision(outcome string, durationSeconds float64) {
	if !m.enabled {
		return
	}
	m.gateDecisionsTotal.WithLabelValues(outcome).Inc()
	m.gateDecisionDuration.Observe(durationSeconds)
}

// RecordOverrideUse records a dev-override forced allow.
func (m *Metrics) RecordOverrideUse() {
	if !m.enabled {
		return
	}
	m.overrideUsesTotal.Inc()
}

// RecordTourStart records a tour activation by trigger ("first_visit"
// or "manual").
func (m *Metrics) RecordTourStart(trigger string) {
	if !m.enabled {
		return
	}
	m.tourStartsTotal.WithLabelValues(trigger).Inc()
}

// RecordHintSeen records an acknowledged hint.
func (m *Metrics) RecordHintSeen() {
	if !m.enabled {
		return
	}
	m.hintsSeenTotal.Inc()
}
