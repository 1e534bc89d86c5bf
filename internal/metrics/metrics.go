// Package metrics exposes Prometheus counters for trip and reservation
// operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Recorder counts lifecycle operations by outcome.
type Recorder struct {
	reservations *prometheus.CounterVec
	trips        *prometheus.CounterVec
}

// NewRecorder creates the counters and registers them with reg. A nil reg
// leaves them unregistered, which keeps tests independent of global state.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smartride",
			Name:      "reservations_total",
			Help:      "Reservation operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		trips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smartride",
			Name:      "trips_total",
			Help:      "Trip operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(r.reservations, r.trips)
	}
	return r
}

// Reservation records one reservation operation.
func (r *Recorder) Reservation(operation, outcome string) {
	if r == nil {
		return
	}
	r.reservations.WithLabelValues(operation, outcome).Inc()
}

// Trip records one trip operation.
func (r *Recorder) Trip(operation, outcome string) {
	if r == nil {
		return
	}
	r.trips.WithLabelValues(operation, outcome).Inc()
}
