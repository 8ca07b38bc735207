// Package paths provides the on-disk layout of the mini-app cache so every
// component resolves the same directories.
//
// Layout under the cache root:
//
//	MiniApp/<appID>/<versionID>/   unpacked bundle contents
//	MiniApp/<appID>/manifest.json  last accepted manifest
//	MiniApp/<appID>/securestorage.*  per-app secure storage backing file
//	MiniApp/.tmp/<appID>/<versionID>/ staging area for in-flight installs
package paths

import (
	"fmt"
	"path/filepath"
)

// CacheDirName is the top-level directory under the cache root.
const CacheDirName = "MiniApp"

// TmpDirName holds in-flight download staging directories.
const TmpDirName = ".tmp"

// Reserved filenames that eviction must never touch. Secure-storage files
// are matched by pattern because the extension depends on the backend.
const (
	ManifestFileName      = "manifest.json"
	InstallRecordFileName = "install.json"
	SecureStoragePattern  = "securestorage.*"
)

// App resolves per-app paths under a cache root.
type App struct {
	Root string
	ID   string
}

// AppPath returns path helpers for one mini app.
func AppPath(root, appID string) App {
	return App{Root: root, ID: appID}
}

// Dir returns the app's directory.
func (a App) Dir() string {
	return filepath.Join(a.Root, CacheDirName, a.ID)
}

// VersionDir returns the installed bundle directory for one version.
func (a App) VersionDir(versionID string) string {
	return filepath.Join(a.Dir(), versionID)
}

// ManifestFile returns the cached manifest path.
func (a App) ManifestFile() string {
	return filepath.Join(a.Dir(), ManifestFileName)
}

// InstallRecordFile returns the install record path.
func (a App) InstallRecordFile() string {
	return filepath.Join(a.Dir(), InstallRecordFileName)
}

// SecureStorageFile returns the backing-store path for the given extension
// (e.g. "json", "db", "sqlite").
func (a App) SecureStorageFile(ext string) string {
	return filepath.Join(a.Dir(), "securestorage."+ext)
}

// TempDir returns the staging directory for one in-flight install.
func (a App) TempDir(versionID string) string {
	return filepath.Join(a.Root, CacheDirName, TmpDirName, a.ID, versionID)
}

// TempRoot returns the staging root swept at startup.
func TempRoot(root string) string {
	return filepath.Join(root, CacheDirName, TmpDirName)
}

// ValidateID checks that an app or version ID is safe for path construction.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("id cannot be empty")
	}
	if filepath.IsAbs(id) {
		return fmt.Errorf("id cannot be an absolute path")
	}
	if filepath.Clean(id) != id || filepath.Base(id) != id {
		return fmt.Errorf("id contains invalid path components")
	}
	return nil
}
