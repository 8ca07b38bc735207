// Package tracing provides lightweight request tracing for the gateway.
// Spans are correlated by trace id propagated through X-Trace-ID headers
// and exported through the structured logger.
package tracing
