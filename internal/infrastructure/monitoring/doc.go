// Package monitoring provides Prometheus metrics for the mini-app runtime.
//
// Metrics cover the gateway HTTP surface, the download/install pipeline,
// bridge request dispatch, secure storage operations, and registry calls.
// All metrics are registered through promauto and exposed on /metrics.
package monitoring
