// Package permissions persists user decisions for custom (non-OS)
// capability permissions, independent of the secure storage engine.
package permissions

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openminiapp/miniapp/internal/keyedstore"
	"github.com/openminiapp/miniapp/internal/shared/types"
)

// Service is the keyed-store service name for permission records.
const Service = "miniapp.permissions"

// ErrUnknownPermission indicates a name outside the closed enumeration.
var ErrUnknownPermission = errors.New("unknown custom permission")

// Store persists custom permission grants per app.
type Store struct {
	keyed keyedstore.Store
}

// New creates a permission store.
func New(keyed keyedstore.Store) *Store {
	return &Store{keyed: keyed}
}

// StoreCustomPermissions merges the given records into the app's stored set:
// entries overwrite matching cached entries by permission name, entries not
// mentioned are left untouched.
func (s *Store) StoreCustomPermissions(appID string, records []types.PermissionRecord) error {
	for _, r := range records {
		if !types.IsKnownCustomPermission(r.Name) {
			return fmt.Errorf("%w: %s", ErrUnknownPermission, r.Name)
		}
	}

	existing, err := s.CustomPermissions(appID)
	if err != nil {
		return err
	}

	byName := make(map[types.CustomPermission]types.PermissionRecord, len(existing))
	order := make([]types.CustomPermission, 0, len(existing)+len(records))
	for _, r := range existing {
		byName[r.Name] = r
		order = append(order, r.Name)
	}
	for _, r := range records {
		if _, seen := byName[r.Name]; !seen {
			order = append(order, r.Name)
		}
		byName[r.Name] = r
	}

	merged := make([]types.PermissionRecord, 0, len(order))
	for _, name := range order {
		merged = append(merged, byName[name])
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	return s.keyed.Set(Service, appID, data)
}

// CustomPermissions returns every stored record for an app. A missing entry
// is an empty set, not an error.
func (s *Store) CustomPermissions(appID string) ([]types.PermissionRecord, error) {
	data, err := s.keyed.Get(Service, appID)
	if errors.Is(err, keyedstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var records []types.PermissionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("corrupt permission records for %s: %w", appID, err)
	}
	return records, nil
}

// Grant returns the stored decision for one permission, NotDetermined when
// nothing is stored.
func (s *Store) Grant(appID string, name types.CustomPermission) (types.GrantState, error) {
	records, err := s.CustomPermissions(appID)
	if err != nil {
		return types.GrantNotDetermined, err
	}
	for _, r := range records {
		if r.Name == name {
			return r.Granted, nil
		}
	}
	return types.GrantNotDetermined, nil
}

// Forget removes every stored record for an app.
func (s *Store) Forget(appID string) error {
	if err := s.keyed.Remove(Service, appID); err != nil && !errors.Is(err, keyedstore.ErrNotFound) {
		return err
	}
	return nil
}
