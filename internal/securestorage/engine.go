package securestorage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/openminiapp/miniapp/internal/infrastructure/config"
	"github.com/openminiapp/miniapp/internal/infrastructure/logging"
	"github.com/openminiapp/miniapp/internal/infrastructure/monitoring"
)

var (
	// ErrStorageUnavailable is returned for any operation before Load
	// completes or after Unload.
	ErrStorageUnavailable = errors.New("secure storage not loaded")

	// ErrStorageBusy is returned when a write overlaps an in-flight write.
	// Writes are never queued; callers serialize their own.
	ErrStorageBusy = errors.New("secure storage busy")

	// ErrStorageFull is returned when the backing file exceeds the
	// configured byte limit.
	ErrStorageFull = errors.New("secure storage full")
)

// Usage reports quota consumption as on-disk bytes.
type Usage struct {
	Used int64 `json:"used"`
	Max  int64 `json:"max"`
}

// Entry is one key/value pair in write order.
type Entry struct {
	Key   string
	Value string
}

// Backend is one of the interchangeable backing stores. All backends live in
// the app's cache directory and differ only by file extension.
type Backend interface {
	// Load reads the full map, creating the store if absent.
	Load() (map[string]string, error)
	// Put writes the batch, calling check before the first entry and after
	// every interval entries. A non-nil check aborts the write; whether
	// already-written entries survive is backend-specific.
	Put(ctx context.Context, entries []Entry, interval int, check func() error) error
	// Delete removes the given keys.
	Delete(ctx context.Context, keys []string) error
	// FileSize returns the current on-disk size of the backing store.
	FileSize() (int64, error)
	// Clear removes every entry.
	Clear() error
	// Close releases the backing store.
	Close() error
	// Name identifies the backend in logs and metrics.
	Name() string
}

// Engine is the per-app-session secure storage contract. One engine instance
// is created per active mini-app session, loaded before first use, and
// unloaded on session end. Reads come from an in-memory mirror; writes go
// through the backend under a single-writer guard. The busy flag rejects
// overlapping writes, the mutex makes the mirror safe against reads that
// land mid-write.
type Engine struct {
	appID   string
	backend Backend
	limit   int64
	logger  *logging.Logger
	metrics *monitoring.Metrics

	loaded  atomic.Bool
	busy    atomic.Bool
	mu      sync.RWMutex
	entries map[string]string
}

// NewEngine creates an unloaded engine for one app.
func NewEngine(root, appID string, cfg config.SecureStorageConfig, logger *logging.Logger) (*Engine, error) {
	backend, err := openBackend(root, appID, cfg.Backend)
	if err != nil {
		return nil, err
	}
	return &Engine{
		appID:   appID,
		backend: backend,
		limit:   cfg.FileSizeLimit,
		logger:  logger,
	}, nil
}

// WithMetrics adds metrics tracking to the engine.
func (e *Engine) WithMetrics(metrics *monitoring.Metrics) *Engine {
	e.metrics = metrics
	return e
}

// Load reads the backing store into memory. It must complete before any
// other operation.
func (e *Engine) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := e.backend.Load()
	if err != nil {
		e.record("load", "error")
		return fmt.Errorf("loading secure storage for %s: %w", e.appID, err)
	}
	e.mu.Lock()
	e.entries = entries
	e.mu.Unlock()
	e.loaded.Store(true)
	e.record("load", "ok")
	return nil
}

// Unload releases in-memory state and closes the backing store. Every
// operation after Unload fails with ErrStorageUnavailable.
func (e *Engine) Unload() error {
	e.loaded.Store(false)
	e.mu.Lock()
	e.entries = nil
	e.mu.Unlock()
	return e.backend.Close()
}

// Get returns the value for key. The second return is false when the key is
// absent.
func (e *Engine) Get(key string) (string, bool, error) {
	if !e.loaded.Load() {
		return "", false, ErrStorageUnavailable
	}
	e.mu.RLock()
	value, ok := e.entries[key]
	e.mu.RUnlock()
	return value, ok, nil
}

// Set writes the batch. It fails with ErrStorageBusy when another write is
// in flight and with ErrStorageFull when the backing file exceeds the limit
// at a quota checkpoint. The file backend never partially persists a failed
// batch; the embedded database backends may.
func (e *Engine) Set(ctx context.Context, values map[string]string) error {
	if !e.loaded.Load() {
		return ErrStorageUnavailable
	}
	if !e.busy.CompareAndSwap(false, true) {
		e.record("set", "busy")
		return ErrStorageBusy
	}
	defer e.busy.Store(false)

	entries := make([]Entry, 0, len(values))
	for k, v := range values {
		entries = append(entries, Entry{Key: k, Value: v})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })

	err := e.backend.Put(ctx, entries, checkpointInterval(len(entries)), e.checkQuota)
	if err != nil {
		e.record("set", statusOf(err))
		// The embedded backends may have committed part of the batch.
		// Reload the mirror so reads reflect what is actually on disk.
		if reloaded, loadErr := e.backend.Load(); loadErr == nil {
			e.mu.Lock()
			e.entries = reloaded
			e.mu.Unlock()
		}
		return err
	}
	e.mu.Lock()
	for _, entry := range entries {
		e.entries[entry.Key] = entry.Value
	}
	e.mu.Unlock()
	e.record("set", "ok")
	return nil
}

// Remove deletes the given keys. Absent keys are ignored.
func (e *Engine) Remove(ctx context.Context, keys []string) error {
	if !e.loaded.Load() {
		return ErrStorageUnavailable
	}
	if !e.busy.CompareAndSwap(false, true) {
		e.record("remove", "busy")
		return ErrStorageBusy
	}
	defer e.busy.Store(false)

	if err := e.backend.Delete(ctx, keys); err != nil {
		e.record("remove", "error")
		return err
	}
	e.mu.Lock()
	for _, key := range keys {
		delete(e.entries, key)
	}
	e.mu.Unlock()
	e.record("remove", "ok")
	return nil
}

// Size reports on-disk usage against the configured limit.
func (e *Engine) Size() (Usage, error) {
	if !e.loaded.Load() {
		return Usage{}, ErrStorageUnavailable
	}
	used, err := e.backend.FileSize()
	if err != nil {
		return Usage{}, err
	}
	return Usage{Used: used, Max: e.limit}, nil
}

// Clear removes every entry while keeping the engine loaded.
func (e *Engine) Clear() error {
	if !e.loaded.Load() {
		return ErrStorageUnavailable
	}
	if !e.busy.CompareAndSwap(false, true) {
		e.record("clear", "busy")
		return ErrStorageBusy
	}
	defer e.busy.Store(false)

	if err := e.backend.Clear(); err != nil {
		e.record("clear", "error")
		return err
	}
	e.mu.Lock()
	e.entries = make(map[string]string)
	e.mu.Unlock()
	e.record("clear", "ok")
	return nil
}

func (e *Engine) checkQuota() error {
	size, err := e.backend.FileSize()
	if err != nil {
		return err
	}
	if size > e.limit {
		e.logger.Warn("secure storage quota exceeded",
			zap.String("app_id", e.appID),
			zap.Int64("size", size),
			zap.Int64("limit", e.limit),
		)
		return ErrStorageFull
	}
	return nil
}

func (e *Engine) record(op, status string) {
	if e.metrics != nil {
		e.metrics.RecordStorageOp(e.backend.Name(), op, status)
	}
}

// checkpointInterval scales the quota-check cadence with batch size so huge
// batches do not stat the backing file on every key.
func checkpointInterval(batch int) int {
	switch {
	case batch < 100:
		return 1
	case batch < 1_000:
		return 10
	case batch < 1_000_000:
		return 100
	default:
		return 1000
	}
}

func statusOf(err error) string {
	switch {
	case errors.Is(err, ErrStorageFull):
		return "full"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
