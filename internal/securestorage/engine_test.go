package securestorage

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openminiapp/miniapp/internal/infrastructure/config"
	"github.com/openminiapp/miniapp/internal/infrastructure/logging"
	"github.com/openminiapp/miniapp/internal/shared/paths"
)

func newTestEngine(t *testing.T, root, backend string, limit int64) *Engine {
	t.Helper()
	cfg := config.SecureStorageConfig{Backend: backend, FileSizeLimit: limit}
	engine, err := NewEngine(root, "app-1", cfg, logging.NewDefault())
	require.NoError(t, err)
	t.Cleanup(func() { engine.Unload() })
	return engine
}

func TestOperationsBeforeLoad(t *testing.T) {
	e := newTestEngine(t, t.TempDir(), "file", 1<<20)

	_, _, err := e.Get("k")
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.ErrorIs(t, e.Set(t.Context(), map[string]string{"k": "v"}), ErrStorageUnavailable)
	assert.ErrorIs(t, e.Remove(t.Context(), []string{"k"}), ErrStorageUnavailable)
	assert.ErrorIs(t, e.Clear(), ErrStorageUnavailable)
	_, err = e.Size()
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestSetGetRemoveAcrossBackends(t *testing.T) {
	for _, backend := range []string{"file", "bolt", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			root := t.TempDir()
			e := newTestEngine(t, root, backend, 1<<20)
			require.NoError(t, e.Load(t.Context()))

			require.NoError(t, e.Set(t.Context(), map[string]string{
				"session": "abc",
				"theme":   "dark",
			}))

			value, ok, err := e.Get("session")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "abc", value)

			_, ok, err = e.Get("missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, e.Remove(t.Context(), []string{"session", "missing"}))
			_, ok, err = e.Get("session")
			require.NoError(t, err)
			assert.False(t, ok)

			// A fresh engine over the same root sees persisted state.
			require.NoError(t, e.Unload())
			reopened := newTestEngine(t, root, backend, 1<<20)
			require.NoError(t, reopened.Load(t.Context()))
			value, ok, err = reopened.Get("theme")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "dark", value)
		})
	}
}

func TestOperationsAfterUnload(t *testing.T) {
	e := newTestEngine(t, t.TempDir(), "file", 1<<20)
	require.NoError(t, e.Load(t.Context()))
	require.NoError(t, e.Unload())

	_, _, err := e.Get("k")
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestSetWhileBusy(t *testing.T) {
	e := newTestEngine(t, t.TempDir(), "file", 1<<20)
	require.NoError(t, e.Load(t.Context()))

	e.busy.Store(true)
	assert.ErrorIs(t, e.Set(t.Context(), map[string]string{"k": "v"}), ErrStorageBusy)
	assert.ErrorIs(t, e.Remove(t.Context(), []string{"k"}), ErrStorageBusy)
	assert.ErrorIs(t, e.Clear(), ErrStorageBusy)
	e.busy.Store(false)

	assert.NoError(t, e.Set(t.Context(), map[string]string{"k": "v"}))
}

func TestConcurrentReadsDuringWrites(t *testing.T) {
	e := newTestEngine(t, t.TempDir(), "file", 1<<20)
	require.NoError(t, e.Load(t.Context()))
	require.NoError(t, e.Set(t.Context(), map[string]string{"counter": "0"}))

	// The bridge dispatches requests with distinct ids on separate
	// goroutines, so reads must be safe while a write updates the mirror.
	done := make(chan error, 1)
	go func() {
		for i := 0; i < 50; i++ {
			if err := e.Set(t.Context(), map[string]string{
				"counter": strconv.Itoa(i),
				"other":   strings.Repeat("y", 32),
			}); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	for {
		select {
		case err := <-done:
			require.NoError(t, err)
			value, ok, getErr := e.Get("counter")
			require.NoError(t, getErr)
			require.True(t, ok)
			assert.Equal(t, "49", value)
			return
		default:
			_, _, err := e.Get("counter")
			require.NoError(t, err)
		}
	}
}

func TestQuotaEnforcementFileBackend(t *testing.T) {
	root := t.TempDir()
	e := newTestEngine(t, root, "file", 64)
	require.NoError(t, e.Load(t.Context()))

	big := strings.Repeat("x", 256)
	err := e.Set(t.Context(), map[string]string{"blob": big})
	require.ErrorIs(t, err, ErrStorageFull)

	// The file backend never partially persists a failed batch.
	_, ok, getErr := e.Get("blob")
	require.NoError(t, getErr)
	assert.False(t, ok)

	reopened := newTestEngine(t, root, "file", 64)
	require.NoError(t, reopened.Load(t.Context()))
	_, ok, getErr = reopened.Get("blob")
	require.NoError(t, getErr)
	assert.False(t, ok)
}

func TestSizeReportsUsage(t *testing.T) {
	e := newTestEngine(t, t.TempDir(), "file", 4096)
	require.NoError(t, e.Load(t.Context()))
	require.NoError(t, e.Set(t.Context(), map[string]string{"k": "v"}))

	usage, err := e.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(4096), usage.Max)
	assert.Positive(t, usage.Used)
}

func TestClear(t *testing.T) {
	e := newTestEngine(t, t.TempDir(), "file", 1<<20)
	require.NoError(t, e.Load(t.Context()))
	require.NoError(t, e.Set(t.Context(), map[string]string{"a": "1", "b": "2"}))

	require.NoError(t, e.Clear())

	_, ok, err := e.Get("a")
	require.NoError(t, err)
	assert.False(t, ok)

	// The engine remains usable after clearing.
	assert.NoError(t, e.Set(t.Context(), map[string]string{"c": "3"}))
}

func TestWipeApp(t *testing.T) {
	root := t.TempDir()
	e := newTestEngine(t, root, "file", 1<<20)
	require.NoError(t, e.Load(t.Context()))
	require.NoError(t, e.Set(t.Context(), map[string]string{"k": "v"}))
	require.NoError(t, e.Unload())

	require.NoError(t, WipeApp(root, "app-1"))

	matches, err := filepath.Glob(filepath.Join(paths.AppPath(root, "app-1").Dir(), paths.SecureStoragePattern))
	require.NoError(t, err)
	assert.Empty(t, matches)

	// Wiping again is a no-op.
	assert.NoError(t, WipeApp(root, "app-1"))

	// A fresh engine starts empty.
	fresh := newTestEngine(t, root, "file", 1<<20)
	require.NoError(t, fresh.Load(t.Context()))
	_, ok, err := fresh.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)

	// Wipe must not touch installed bundle files.
	bundle := filepath.Join(paths.AppPath(root, "app-1").VersionDir("v1"), "index.html")
	require.NoError(t, os.MkdirAll(filepath.Dir(bundle), 0o755))
	require.NoError(t, os.WriteFile(bundle, []byte("x"), 0o644))
	require.NoError(t, WipeApp(root, "app-1"))
	assert.FileExists(t, bundle)
}

func TestCheckpointInterval(t *testing.T) {
	tests := []struct {
		batch    int
		interval int
	}{
		{batch: 1, interval: 1},
		{batch: 99, interval: 1},
		{batch: 100, interval: 10},
		{batch: 999, interval: 10},
		{batch: 1_000, interval: 100},
		{batch: 999_999, interval: 100},
		{batch: 1_000_000, interval: 1000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.interval, checkpointInterval(tt.batch), "batch size %d", tt.batch)
	}
}
