// Package server wires the platform core into the host gateway: registry
// endpoints, the install pipeline, cache verification, the bridge websocket,
// and metrics, all over one configured cache root.
package server
