package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReconcileOutcomes counts reconciliation results per entry point (callback, ipn, poll, sweep).
	ReconcileOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payments",
			Name:      "reconcile_outcomes_total",
			Help:      "The total number of payment reconciliation outcomes",
		},
		[]string{"entry", "outcome"},
	)

	// BookingStatusWrites counts persisted booking status assignments.
	BookingStatusWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookings",
			Name:      "status_writes_total",
			Help:      "The total number of booking status writes",
		},
		[]string{"status"},
	)

	// FailClosedCancellations counts bookings cancelled because processing failed.
	FailClosedCancellations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payments",
			Name:      "fail_closed_cancellations_total",
			Help:      "The total number of bookings cancelled after an unexpected processing failure",
		},
		[]string{"entry"},
	)

	// LookupCacheRequests counts cache hits and misses for provider lookups.
	LookupCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cache",
			Name:      "lookup_requests_total",
			Help:      "The total number of lookup cache requests",
		},
		[]string{"kind", "result"},
	)
)
