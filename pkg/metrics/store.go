package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	StoreHosted = "hosted"
	StoreLocal  = "local"

	ResultOK    = "ok"
	ResultError = "error"
)

// StoreMetrics records data-access operations against the hosted and local stores.
type StoreMetrics struct {
	operations *prometheus.CounterVec
	fallbacks  *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewStoreMetrics registers the store metrics on the provided registerer.
func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	if reg == nil {
		return &StoreMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "share_store_operations_total",
		Help: "Data-access operations by store, operation and result.",
	}, []string{"store", "op", "result"})
	fallbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "share_store_fallbacks_total",
		Help: "Hosted calls that degraded to the local device store.",
	}, []string{"op"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "share_store_operation_duration_seconds",
		Help:    "Duration of data-access operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"store", "op"})
	reg.MustRegister(operations, fallbacks, duration)
	return &StoreMetrics{
		operations: operations,
		fallbacks:  fallbacks,
		duration:   duration,
	}
}

// Observe records one operation against store.
func (s *StoreMetrics) Observe(store, op string, started time.Time, err error) {
	if s == nil || s.operations == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	s.operations.WithLabelValues(normalizeLabel(store), normalizeLabel(op), result).Inc()
	s.duration.WithLabelValues(normalizeLabel(store), normalizeLabel(op)).Observe(time.Since(started).Seconds())
}

// IncFallback counts a hosted failure answered from the local store.
func (s *StoreMetrics) IncFallback(op string) {
	if s == nil || s.fallbacks == nil {
		return
	}
	s.fallbacks.WithLabelValues(normalizeLabel(op)).Inc()
}
