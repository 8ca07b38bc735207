// Package registry implements the typed client for the mini-app registry.
//
// The client is a pure mapping from typed operations (list apps, fetch info,
// fetch manifest, fetch metadata, resolve preview token, download archive)
// onto transport calls plus response decoding. URL construction fails fast
// when the base configuration is blank, before any network call.
package registry
