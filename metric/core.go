package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "sensordm"

// Metrics holds every instrument the service exports.
type Metrics struct {
	// Request handling
	RequestsReceived *prometheus.CounterVec
	RequestsHandled  *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec

	// Enrichment
	ObservationsEnriched prometheus.Counter
	UnknownSensors       prometheus.Counter

	// Catalog writes
	ContextsVersioned *prometheus.CounterVec
	StoreFailures     *prometheus.CounterVec

	// NATS
	NATSConnected  prometheus.Gauge
	NATSReconnects prometheus.Counter
}

// NewMetrics creates the instrument set, unregistered.
func NewMetrics() *Metrics {
	return &Metrics{
		RequestsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "requests",
				Name:      "received_total",
				Help:      "Total requests received, by operation",
			},
			[]string{"operation"},
		),

		RequestsHandled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "requests",
				Name:      "handled_total",
				Help:      "Total requests handled, by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "requests",
				Name:      "duration_seconds",
				Help:      "Request handling duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		ObservationsEnriched: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "enrich",
				Name:      "observations_total",
				Help:      "Total observations enriched with context",
			},
		),

		UnknownSensors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "enrich",
				Name:      "unknown_sensor_total",
				Help:      "Total observations from sensors with no context at their result time",
			},
		),

		ContextsVersioned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "contexts",
				Name:      "versioned_total",
				Help:      "Total context versions cut, by trigger",
			},
			[]string{"trigger"},
		),

		StoreFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "failures_total",
				Help:      "Total document store failures, by component",
			},
			[]string{"component"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total NATS reconnections",
			},
		),
	}
}

// RecordRequest increments the received counter for an operation.
func (m *Metrics) RecordRequest(operation string) {
	m.RequestsReceived.WithLabelValues(operation).Inc()
}

// RecordHandled records a completed request and its duration.
func (m *Metrics) RecordHandled(operation, outcome string, duration time.Duration) {
	m.RequestsHandled.WithLabelValues(operation, outcome).Inc()
	m.RequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordEnriched increments the enriched-observation counter.
func (m *Metrics) RecordEnriched() {
	m.ObservationsEnriched.Inc()
}

// RecordUnknownSensor increments the unknown-sensor counter.
func (m *Metrics) RecordUnknownSensor() {
	m.UnknownSensors.Inc()
}

// RecordContextVersioned increments the version counter for a trigger
// (create, update, migrate, rehost, delete).
func (m *Metrics) RecordContextVersioned(trigger string) {
	m.ContextsVersioned.WithLabelValues(trigger).Inc()
}

// RecordStoreFailure increments the store-failure counter for a
// component.
func (m *Metrics) RecordStoreFailure(component string) {
	m.StoreFailures.WithLabelValues(component).Inc()
}

// RecordNATSStatus updates the NATS connection gauge.
func (m *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	m.NATSConnected.Set(value)
}

// RecordNATSReconnect increments the reconnection counter.
func (m *Metrics) RecordNATSReconnect() {
	m.NATSReconnects.Inc()
}

// Registry couples the instrument set with the prometheus registry the
// HTTP handler serves from.
type Registry struct {
	prometheusRegistry *prometheus.Registry
	Metrics            *Metrics
}

// NewRegistry creates a registry with all service metrics plus Go
// runtime and process collectors registered.
func NewRegistry() *Registry {
	r := &Registry{
		prometheusRegistry: prometheus.NewRegistry(),
		Metrics:            NewMetrics(),
	}
	r.prometheusRegistry.MustRegister(
		r.Metrics.RequestsReceived,
		r.Metrics.RequestsHandled,
		r.Metrics.RequestDuration,
		r.Metrics.ObservationsEnriched,
		r.Metrics.UnknownSensors,
		r.Metrics.ContextsVersioned,
		r.Metrics.StoreFailures,
		r.Metrics.NATSConnected,
		r.Metrics.NATSReconnects,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// PrometheusRegistry returns the underlying registry.
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}
