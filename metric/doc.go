// Package metric defines the service's Prometheus instruments and the
// HTTP server that exposes them: request counts and durations per
// operation, enrichment and unknown-sensor counters, context version
// counts per trigger, store failures per component, and the NATS
// connection state.
package metric
