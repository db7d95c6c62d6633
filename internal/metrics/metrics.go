// Package metrics exposes the registry's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/streamforge/schema-registry/internal/cache"
)

// Metrics bundles the registry collectors. A nil *Metrics is a valid no-op
// receiver, so instrumentation points need no guards.
type Metrics struct {
	registrations       *prometheus.CounterVec
	compatibilityChecks *prometheus.CounterVec
	storageOps          *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schema_registry_registrations_total",
			Help: "Schema version registrations by dialect and outcome.",
		}, []string{"type", "outcome"}),
		compatibilityChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schema_registry_compatibility_checks_total",
			Help: "Compatibility checks by dialect and result.",
		}, []string{"type", "result"}),
		storageOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schema_registry_storage_operations_total",
			Help: "Record store operations by operation and namespace.",
		}, []string{"operation", "namespace"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "schema_registry_http_request_duration_seconds",
			Help:    "HTTP request duration by method, route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(m.registrations, m.compatibilityChecks, m.storageOps, m.httpDuration)
	return m
}

// RegisterCacheStats exposes the version cache counters as gauges.
func (m *Metrics) RegisterCacheStats(reg prometheus.Registerer, stats func() cache.Stats) {
	if m == nil {
		return
	}
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "schema_registry_cache_entries",
			Help: "Live version cache entries.",
		}, func() float64 { return float64(stats().Size) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "schema_registry_cache_hits_total",
			Help: "Version cache hits.",
		}, func() float64 { return float64(stats().Hits) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "schema_registry_cache_misses_total",
			Help: "Version cache misses.",
		}, func() float64 { return float64(stats().Misses) }),
	)
}

// ObserveRegistration counts one registration attempt.
func (m *Metrics) ObserveRegistration(schemaType, outcome string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(schemaType, outcome).Inc()
}

// ObserveCompatibilityCheck counts one compatibility check.
func (m *Metrics) ObserveCompatibilityCheck(schemaType string, compatible bool) {
	if m == nil {
		return
	}
	result := "compatible"
	if !compatible {
		result = "incompatible"
	}
	m.compatibilityChecks.WithLabelValues(schemaType, result).Inc()
}

// ObserveStorageOp counts one record store operation.
func (m *Metrics) ObserveStorageOp(operation, namespace string) {
	if m == nil {
		return
	}
	m.storageOps.WithLabelValues(operation, namespace).Inc()
}

// ObserveHTTPRequest records one served request.
func (m *Metrics) ObserveHTTPRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, status).Observe(seconds)
}
