package securestorage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/openminiapp/miniapp/internal/shared/paths"
)

// fileBackend stores the map as one JSON file. Writes stage into a sibling
// temp file and rename over the original only when the whole batch passes
// the quota checkpoints, so a failed batch never partially persists.
type fileBackend struct {
	path    string
	staging string
	entries map[string]string
}

func newFileBackend(root, appID string) *fileBackend {
	return &fileBackend{path: paths.AppPath(root, appID).SecureStorageFile("json")}
}

func (f *fileBackend) Name() string { return "file" }

func (f *fileBackend) Load() (map[string]string, error) {
	f.entries = make(map[string]string)
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return cloneEntries(f.entries), nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &f.entries); err != nil {
		return nil, err
	}
	return cloneEntries(f.entries), nil
}

func (f *fileBackend) Put(ctx context.Context, entries []Entry, interval int, check func() error) error {
	if f.entries == nil {
		return ErrStorageUnavailable
	}
	staged := cloneEntries(f.entries)

	f.staging = f.path + ".tmp"
	defer func() {
		os.Remove(f.staging)
		f.staging = ""
	}()

	if err := check(); err != nil {
		return err
	}
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		staged[entry.Key] = entry.Value
		if (i+1)%interval == 0 && i+1 < len(entries) {
			if err := f.writeStaging(staged); err != nil {
				return err
			}
			if err := check(); err != nil {
				return err
			}
		}
	}
	if err := f.writeStaging(staged); err != nil {
		return err
	}
	if err := check(); err != nil {
		return err
	}

	if err := os.Rename(f.staging, f.path); err != nil {
		return err
	}
	f.entries = staged
	return nil
}

func (f *fileBackend) Delete(ctx context.Context, keys []string) error {
	if f.entries == nil {
		return ErrStorageUnavailable
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	staged := cloneEntries(f.entries)
	for _, key := range keys {
		delete(staged, key)
	}
	tmp := f.path + ".tmp"
	data, err := json.Marshal(staged)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return err
	}
	f.entries = staged
	return nil
}

// FileSize reports the staging file while a batch is in flight so quota
// checkpoints observe the size the store would have after commit.
func (f *fileBackend) FileSize() (int64, error) {
	target := f.path
	if f.staging != "" {
		if _, err := os.Stat(f.staging); err == nil {
			target = f.staging
		}
	}
	info, err := os.Stat(target)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (f *fileBackend) Clear() error {
	f.entries = make(map[string]string)
	err := os.Remove(f.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (f *fileBackend) Close() error {
	f.entries = nil
	return nil
}

func (f *fileBackend) writeStaging(staged map[string]string) error {
	data, err := json.Marshal(staged)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(f.staging, data, 0o600)
}

func cloneEntries(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
