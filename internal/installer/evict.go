package installer

import (
	"errors"
	"os"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/openminiapp/miniapp/internal/shared/paths"
)

// reservedPatterns are the app-directory entries eviction must never touch.
var reservedPatterns = []string{
	paths.ManifestFileName,
	paths.InstallRecordFileName,
	paths.SecureStoragePattern,
	paths.SecureStoragePattern + ".key",
}

func isReserved(name string) bool {
	for _, pattern := range reservedPatterns {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// CleanVersions deletes every entry under the app's cache directory whose
// name is neither keepVersionID nor a reserved filename. Eviction is "keep
// current plus reserved, delete everything else", not LRU.
func (d *Downloader) CleanVersions(appID, keepVersionID string) error {
	dir := paths.AppPath(d.root, appID).Dir()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, entry := range entries {
		name := entry.Name()
		if name == keepVersionID || isReserved(name) {
			continue
		}
		if err := os.RemoveAll(paths.AppPath(d.root, appID).VersionDir(name)); err != nil {
			return err
		}
		if d.metrics != nil {
			d.metrics.Evictions.Inc()
		}
	}
	return nil
}

// CleanAllVersions evicts every cached version for an app, keeping only the
// reserved files. Used to force a clean re-fetch after a rate-limit error.
func (d *Downloader) CleanAllVersions(appID string) error {
	if err := d.CleanVersions(appID, ""); err != nil {
		return err
	}
	return d.records.Delete(appID)
}

// SweepTemp removes leftover staging directories from interrupted installs.
// Called at startup.
func SweepTemp(root string) error {
	err := os.RemoveAll(paths.TempRoot(root))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
