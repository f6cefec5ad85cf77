package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveBooking(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSchedulingMetrics(reg)

	m.ObserveBooking("created")
	m.ObserveBooking("created")
	m.ObserveBooking("conflict")
	m.ObserveSlotConflict()

	if got := testutil.ToFloat64(m.bookingsTotal.WithLabelValues("created")); got != 2 {
		t.Fatalf("bookings_total{outcome=created} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.bookingsTotal.WithLabelValues("conflict")); got != 1 {
		t.Fatalf("bookings_total{outcome=conflict} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.slotConflicts); got != 1 {
		t.Fatalf("slot_conflicts_total = %v, want 1", got)
	}
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *SchedulingMetrics

	// Metrics are optional wiring; a nil receiver must be a no-op.
	m.ObserveBooking("created")
	m.ObserveSlotConflict()
	m.ObserveRequest("GET", "/appointments", "200", 0.01)
}
