package installer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openminiapp/miniapp/internal/infrastructure/config"
	"github.com/openminiapp/miniapp/internal/infrastructure/logging"
	"github.com/openminiapp/miniapp/internal/shared/paths"
)

func newTestDownloader(t *testing.T, root string) *Downloader {
	t.Helper()
	logger := logging.NewDefault()
	records := NewRecordStore(root)
	return New(root, nil, nil, nil, records, nil, nil, config.SignatureConfig{}, logger)
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestRecordStoreLifecycle(t *testing.T) {
	root := t.TempDir()
	store := NewRecordStore(root)

	rec, err := store.Begin("app-1", "v2", "2.0.0")
	require.NoError(t, err)
	assert.False(t, rec.Downloaded)

	// An in-flight install is not a current version yet.
	_, ok := store.CurrentVersion("app-1")
	assert.False(t, ok)

	require.NoError(t, store.Complete("app-1", true))

	version, ok := store.CurrentVersion("app-1")
	require.True(t, ok)
	assert.Equal(t, "v2", version)

	got, ok := store.Get("app-1")
	require.True(t, ok)
	assert.True(t, got.Downloaded)
	assert.True(t, got.SignatureChecked)

	// A fresh store instance reads the persisted record back.
	reloaded := NewRecordStore(root)
	version, ok = reloaded.CurrentVersion("app-1")
	require.True(t, ok)
	assert.Equal(t, "v2", version)

	require.NoError(t, store.Delete("app-1"))
	_, ok = store.Get("app-1")
	assert.False(t, ok)
	assert.NoError(t, store.Delete("app-1"))
}

func TestCompleteWithoutBegin(t *testing.T) {
	store := NewRecordStore(t.TempDir())
	assert.Error(t, store.Complete("app-1", false))
}

func TestCleanVersionsKeepsCurrentAndReserved(t *testing.T) {
	root := t.TempDir()
	d := newTestDownloader(t, root)
	app := paths.AppPath(root, "app-1")

	touch(t, filepath.Join(app.VersionDir("v1"), "index.html"))
	touch(t, filepath.Join(app.VersionDir("v2"), "index.html"))
	touch(t, filepath.Join(app.VersionDir("v3"), "index.html"))
	touch(t, app.ManifestFile())
	touch(t, app.InstallRecordFile())
	touch(t, app.SecureStorageFile("json"))
	touch(t, app.SecureStorageFile("json")+".key")
	touch(t, app.SecureStorageFile("db"))

	require.NoError(t, d.CleanVersions("app-1", "v2"))

	entries, err := os.ReadDir(app.Dir())
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{
		"v2",
		"manifest.json",
		"install.json",
		"securestorage.json",
		"securestorage.json.key",
		"securestorage.db",
	}, names)
}

func TestCleanAllVersions(t *testing.T) {
	root := t.TempDir()
	d := newTestDownloader(t, root)
	app := paths.AppPath(root, "app-1")

	_, err := d.records.Begin("app-1", "v1", "")
	require.NoError(t, err)
	require.NoError(t, d.records.Complete("app-1", false))
	touch(t, filepath.Join(app.VersionDir("v1"), "index.html"))
	touch(t, app.ManifestFile())

	require.NoError(t, d.CleanAllVersions("app-1"))

	assert.NoDirExists(t, app.VersionDir("v1"))
	assert.FileExists(t, app.ManifestFile())

	// The install record is gone with the versions.
	_, ok := d.records.CurrentVersion("app-1")
	assert.False(t, ok)
}

func TestCleanVersionsMissingApp(t *testing.T) {
	d := newTestDownloader(t, t.TempDir())
	assert.NoError(t, d.CleanVersions("never-installed", "v1"))
}

func TestSweepTemp(t *testing.T) {
	root := t.TempDir()
	staging := paths.AppPath(root, "app-1").TempDir("v1")
	touch(t, filepath.Join(staging, "partial.archive"))
	installed := paths.AppPath(root, "app-1").VersionDir("v1")
	touch(t, filepath.Join(installed, "index.html"))

	require.NoError(t, SweepTemp(root))

	assert.NoDirExists(t, paths.TempRoot(root))
	assert.FileExists(t, filepath.Join(installed, "index.html"))

	assert.NoError(t, SweepTemp(root))
}

func TestInstallRejectsUnsafeIDs(t *testing.T) {
	d := newTestDownloader(t, t.TempDir())

	_, err := d.Install(t.Context(), "../escape", "v1", "")
	assert.Error(t, err)

	_, err = d.Install(t.Context(), "app-1", "../../etc", "")
	assert.Error(t, err)
}
