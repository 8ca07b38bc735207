package registry_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openminiapp/miniapp/internal/infrastructure/logging"
	"github.com/openminiapp/miniapp/internal/registry"
)

// outcomeRecorder counts delegate callbacks and releases waiters when the
// first one lands.
type outcomeRecorder struct {
	mu        sync.Mutex
	completed int
	failed    int
	path      string
	err       error
	done      chan struct{}
	once      sync.Once
}

func newOutcomeRecorder() *outcomeRecorder {
	return &outcomeRecorder{done: make(chan struct{})}
}

func (r *outcomeRecorder) DownloadDidComplete(appID, versionID, archivePath string) {
	r.mu.Lock()
	r.completed++
	r.path = archivePath
	r.mu.Unlock()
	r.once.Do(func() { close(r.done) })
}

func (r *outcomeRecorder) DownloadDidFail(appID, versionID string, err error) {
	r.mu.Lock()
	r.failed++
	r.err = err
	r.mu.Unlock()
	r.once.Do(func() { close(r.done) })
}

func (r *outcomeRecorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(5 * time.Second):
		t.Fatal("no delegate callback arrived")
	}
}

func TestDownloadReportsCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("archive-bytes"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "v1.archive")
	rec := newOutcomeRecorder()
	registry.NewDownloader(logging.NewDefault()).Download(t.Context(), srv.URL, dest, "app-1", "v1", rec)
	rec.wait(t)

	assert.Equal(t, 1, rec.completed)
	assert.Zero(t, rec.failed)
	assert.Equal(t, dest, rec.path)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "archive-bytes", string(data))
}

func TestDownloadReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "v1.archive")
	rec := newOutcomeRecorder()
	registry.NewDownloader(logging.NewDefault()).Download(t.Context(), srv.URL, dest, "app-1", "v1", rec)
	rec.wait(t)

	assert.Equal(t, 1, rec.failed)
	assert.Zero(t, rec.completed)
	assert.Error(t, rec.err)
	assert.NoFileExists(t, dest)
}
