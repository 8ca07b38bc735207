// Package ws carries bridge envelopes between an embedded rendering surface
// and the gateway over a websocket, delivering them to the session's bridge
// engine in arrival order and writing terminal callbacks back as frames.
package ws
