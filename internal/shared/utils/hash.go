package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/openminiapp/miniapp/internal/shared/types"
)

// HashAlgorithm represents the hashing algorithm to use
type HashAlgorithm string

const (
	SHA256 HashAlgorithm = "sha256"
)

// Hasher provides extensible hashing functionality
type Hasher struct {
	algorithm HashAlgorithm
}

// NewHasher creates a new hasher with the specified algorithm
func NewHasher(algorithm HashAlgorithm) *Hasher {
	return &Hasher{algorithm: algorithm}
}

// DefaultHasher returns a hasher with the default algorithm
func DefaultHasher() *Hasher {
	return NewHasher(SHA256)
}

// Hash computes a hash of the input data
func (h *Hasher) Hash(data []byte) string {
	switch h.algorithm {
	case SHA256:
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:])
	default:
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:])
	}
}

// HashString computes a hash of a string
func (h *Hasher) HashString(s string) string {
	return h.Hash([]byte(s))
}

// HashFields computes a hash from multiple fields. Fields are sorted and
// joined with a delimiter so the result is order-independent.
func (h *Hasher) HashFields(fields ...string) string {
	sorted := make([]string, len(fields))
	copy(sorted, fields)
	sort.Strings(sorted)
	return h.HashString(strings.Join(sorted, "|"))
}

// ManifestHasher derives the permission hash of a manifest.
//
// The hash covers only the required and optional permission name lists.
// Display-only fields (customMetaData, promotional text) never participate:
// a manifest change forces re-consent only when the permission lists change.
type ManifestHasher struct {
	hasher *Hasher
}

// NewManifestHasher creates a manifest hasher.
func NewManifestHasher(hasher *Hasher) *ManifestHasher {
	if hasher == nil {
		hasher = DefaultHasher()
	}
	return &ManifestHasher{hasher: hasher}
}

// PermissionHash computes the deterministic consent hash of a manifest.
func (mh *ManifestHasher) PermissionHash(m *types.Manifest) string {
	fields := make([]string, 0, len(m.RequiredPermissions)+len(m.OptionalPermissions))
	for _, p := range m.RequiredPermissions {
		fields = append(fields, "req:"+p)
	}
	for _, p := range m.OptionalPermissions {
		fields = append(fields, "opt:"+p)
	}
	return mh.hasher.HashFields(fields...)
}

// Matches reports whether a stored hash equals the hash of a fresh manifest.
func (mh *ManifestHasher) Matches(stored string, fresh *types.Manifest) bool {
	return stored != "" && stored == mh.PermissionHash(fresh)
}
