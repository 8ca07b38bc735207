// Package installer drives the mini-app install pipeline: manifest fetch,
// permission consent gating, archive download, signature verification,
// unpack, and eviction of superseded versions. All install and evict
// decisions go through the Downloader so the cache layout stays consistent.
package installer
