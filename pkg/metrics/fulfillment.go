package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// FulfillmentMetrics tracks supplier placement and reconciliation outcomes.
type FulfillmentMetrics struct {
	placements      *prometheus.CounterVec
	reconcilePolls  *prometheus.CounterVec
	placementTiming *prometheus.HistogramVec
}

// NewFulfillmentMetrics registers fulfillment metrics on the provided registerer.
func NewFulfillmentMetrics(reg prometheus.Registerer) *FulfillmentMetrics {
	if reg == nil {
		return &FulfillmentMetrics{}
	}
	placements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_placements_total",
		Help: "Supplier order placement attempts by supplier and outcome.",
	}, []string{"supplier", "outcome"})
	reconcilePolls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_reconcile_polls_total",
		Help: "Status reconciliation polls by supplier and outcome.",
	}, []string{"supplier", "outcome"})
	placementTiming := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fulfillment_placement_duration_seconds",
		Help:    "Duration of supplier place-order calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"supplier"})
	reg.MustRegister(placements, reconcilePolls, placementTiming)
	return &FulfillmentMetrics{
		placements:      placements,
		reconcilePolls:  reconcilePolls,
		placementTiming: placementTiming,
	}
}

// IncPlacement counts one placement attempt outcome ("success" or "failure").
func (f *FulfillmentMetrics) IncPlacement(supplier, outcome string) {
	if f == nil || f.placements == nil {
		return
	}
	f.placements.WithLabelValues(normalizeLabel(supplier), normalizeLabel(outcome)).Inc()
}

// IncReconcilePoll counts one reconciliation poll outcome.
func (f *FulfillmentMetrics) IncReconcilePoll(supplier, outcome string) {
	if f == nil || f.reconcilePolls == nil {
		return
	}
	f.reconcilePolls.WithLabelValues(normalizeLabel(supplier), normalizeLabel(outcome)).Inc()
}

// ObservePlacement records how long a place-order call took.
func (f *FulfillmentMetrics) ObservePlacement(supplier string, duration time.Duration) {
	if f == nil || f.placementTiming == nil {
		return
	}
	f.placementTiming.WithLabelValues(normalizeLabel(supplier)).Observe(duration.Seconds())
}
