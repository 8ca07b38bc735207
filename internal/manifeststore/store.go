// Package manifeststore persists the last-accepted permission manifest per
// mini app, plus a tamper-evident permission hash used to decide whether
// re-consent is required.
//
// The raw manifest lives on the filesystem next to the app's cache
// directory; only the hash lives in the keyed store. Consent-change
// detection is therefore a single hash comparison with no secure-store round
// trip per manifest fetch.
package manifeststore

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/openminiapp/miniapp/internal/keyedstore"
	"github.com/openminiapp/miniapp/internal/shared/paths"
	"github.com/openminiapp/miniapp/internal/shared/types"
	"github.com/openminiapp/miniapp/internal/shared/utils"
)

// Service is the keyed-store service name for permission hashes.
const Service = "miniapp.manifest"

// Store owns manifest persistence for every app under one cache root.
type Store struct {
	root   string
	keyed  keyedstore.Store
	hasher *utils.ManifestHasher
}

// New creates a manifest store rooted at the cache root.
func New(root string, keyed keyedstore.Store) *Store {
	return &Store{
		root:   root,
		keyed:  keyed,
		hasher: utils.NewManifestHasher(nil),
	}
}

// Accept records a manifest the user has consented to: the raw manifest goes
// to the filesystem, the permission hash to the keyed store.
func (s *Store) Accept(appID string, m *types.Manifest) error {
	if err := paths.ValidateID(appID); err != nil {
		return err
	}
	app := paths.AppPath(s.root, appID)
	if err := os.MkdirAll(app.Dir(), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	tmp := app.ManifestFile() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, app.ManifestFile()); err != nil {
		return err
	}
	hash := s.hasher.PermissionHash(m)
	return s.keyed.Set(Service, appID, []byte(hash))
}

// Cached returns the last accepted manifest, if any.
func (s *Store) Cached(appID string) (*types.Manifest, bool) {
	data, err := os.ReadFile(paths.AppPath(s.root, appID).ManifestFile())
	if err != nil {
		return nil, false
	}
	var m types.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, false
	}
	return &m, true
}

// CheckManifest reports whether the fresh manifest's permission hash equals
// the stored hash. This is a hash comparison only: display-only manifest
// fields never force re-consent.
func (s *Store) CheckManifest(appID string, fresh *types.Manifest) bool {
	stored, err := s.keyed.Get(Service, appID)
	if err != nil {
		return false
	}
	return s.hasher.Matches(string(stored), fresh)
}

// Hash returns the stored permission hash for an app.
func (s *Store) Hash(appID string) (string, bool) {
	stored, err := s.keyed.Get(Service, appID)
	if err != nil {
		return "", false
	}
	return string(stored), true
}

// Forget removes the stored hash and cached manifest for an app. Missing
// entries are ignored.
func (s *Store) Forget(appID string) error {
	manifestErr := os.Remove(paths.AppPath(s.root, appID).ManifestFile())
	if manifestErr != nil && !errors.Is(manifestErr, os.ErrNotExist) {
		return manifestErr
	}
	if err := s.keyed.Remove(Service, appID); err != nil && !errors.Is(err, keyedstore.ErrNotFound) {
		return err
	}
	return nil
}

// ManifestPath exposes the cached manifest location for eviction's reserved
// file list.
func (s *Store) ManifestPath(appID string) string {
	return filepath.Clean(paths.AppPath(s.root, appID).ManifestFile())
}
