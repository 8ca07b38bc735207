// Package securestorage implements the per-mini-app key/value store with a
// byte-size quota enforced against the on-disk backing file. Three backends
// honor the same contract: a flat JSON file, an embedded bbolt database, and
// an embedded SQLite database. An engine instance is scoped to one app
// session with an explicit load/unload lifecycle and a single-writer guard
// that fails overlapping writes instead of queuing them.
package securestorage
