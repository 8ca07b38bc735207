// Package capabilities implements the bridge capability set: identity,
// user profile, permission prompts, sharing, file download, purchases, and
// secure storage. Each capability declares the actions it serves and the
// custom permission gating each one; host-provided features go through the
// bridge.Host delegate.
package capabilities
