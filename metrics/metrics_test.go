package metrics

import (
	"testing"
)

// Global metrics instance (reused across enabled tests to avoid Prometheus registry conflicts)
var globalMetrics *Metrics

func init() {
	globalMetrics = New(true)
}

func TestMetricsEnabled(t *testing.T) {
	if globalMetrics == nil {
		t.Fatal("metrics should not be nil")
	}
}

func TestMetricsDisabled(t *testing.T) {
	metrics := New(false)

	if metrics == nil {
		t.Fatal("metrics should not be nil (noop)")
	}

	// These should not panic even though they're noop
	metrics.RecordEscalation()
	metrics.RecordBypass()
	metrics.RecordRedirect("unauthenticated")
	metrics.RecordGateDecision("allow", 0.001)
	metrics.RecordOverrideUse()
	metrics.RecordTourStart("first_visit")
	metrics.RecordHintSeen()
}

func TestRecordBootstrapMetrics(t *testing.T) {
	// Should not panic
	globalMetrics.RecordEscalation()
	globalMetrics.RecordBypass()
	globalMetrics.RecordRedirect("unauthenticated")
	globalMetrics.RecordRedirect("already_authenticated")
}

func TestRecordGateDecision(t *testing.T) {
	// Should not panic
	globalMetrics.RecordGateDecision("allow", 0.001)
	globalMetrics.RecordGateDecision("forbidden", 0.002)
	globalMetrics.RecordOverrideUse()
}

func TestRecordTourMetrics(t *testing.T) {
	// Should not panic
	globalMetrics.RecordTourStart("first_visit")
	globalMetrics.RecordTourStart("manual")
	globalMetrics.RecordHintSeen()
}

func TestNoopMetrics(t *testing.T) {
	metrics := New(false)

	tests := []func(){
		func() { metrics.RecordEscalation() },
		func() { metrics.RecordBypass() },
		func() { metrics.RecordRedirect("unauthenticated") },
		func() { metrics.RecordGateDecision("allow", 0.001) },
		func() { metrics.RecordOverrideUse() },
		func() { metrics.RecordTourStart("manual") },
		func() { metrics.RecordHintSeen() },
	}

	for _, fn := range tests {
		fn() // should not panic
	}
}
