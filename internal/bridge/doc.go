// Package bridge implements the message protocol between sandboxed mini-app
// content and native host capabilities. Inbound envelopes carry an action,
// a correlation id, and parameters; the engine parses, permission-gates,
// and dispatches each request through a capability registry, answering with
// exactly one terminal callback per id. Malformed input answers with an
// error callback keyed by the empty id rather than being dropped.
package bridge
