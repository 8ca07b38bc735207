// Package resilience implements the circuit breaker guarding outbound
// registry traffic, so a struggling registry is not hammered with the
// transport retry schedule on top of live load.
//
// The breaker is closed in normal operation. A run of failures, judged by
// Settings.ReadyToTrip, opens it and calls fail immediately with
// ErrCircuitOpen. After Settings.Timeout it admits up to
// Settings.MaxRequests trial calls in the half-open state; a full run of
// trial successes closes it again, any trial failure reopens it.
package resilience
