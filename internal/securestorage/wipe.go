package securestorage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/openminiapp/miniapp/internal/shared/paths"
)

func openBackend(root, appID, kind string) (Backend, error) {
	if err := paths.ValidateID(appID); err != nil {
		return nil, err
	}
	switch kind {
	case "", "file":
		return newFileBackend(root, appID), nil
	case "bolt":
		return newBoltBackend(root, appID), nil
	case "sqlite":
		return newSQLBackend(root, appID), nil
	default:
		return nil, fmt.Errorf("unknown secure storage backend %q", kind)
	}
}

// WipeApp removes the backing store for one app, whichever backend wrote
// it. A no-op when nothing exists.
func WipeApp(root, appID string) error {
	if err := paths.ValidateID(appID); err != nil {
		return err
	}
	pattern := filepath.Join(paths.AppPath(root, appID).Dir(), paths.SecureStoragePattern)
	return removeMatches(pattern)
}

// Wipe removes the backing store for every app under the cache root. A
// no-op when nothing exists.
func Wipe(root string) error {
	pattern := filepath.Join(root, paths.CacheDirName, "*", paths.SecureStoragePattern)
	return removeMatches(pattern)
}

func removeMatches(pattern string) error {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}
	for _, match := range matches {
		if err := os.Remove(match); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}
