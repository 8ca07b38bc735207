package installer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/openminiapp/miniapp/internal/shared/paths"
	"github.com/openminiapp/miniapp/internal/shared/types"
)

// RecordStore persists install records, one JSON file per app. Records are
// cached in memory after first load. The Downloader is the only writer.
type RecordStore struct {
	root    string
	records sync.Map // appID -> *types.InstallRecord
}

// NewRecordStore creates a record store over one cache root.
func NewRecordStore(root string) *RecordStore {
	return &RecordStore{root: root}
}

// Begin creates the record for a starting download. Downloaded stays false
// until verification completes.
func (r *RecordStore) Begin(appID, versionID, versionTag string) (*types.InstallRecord, error) {
	rec := &types.InstallRecord{
		AppID:            appID,
		VersionID:        versionID,
		CachedVersionTag: versionTag,
	}
	if err := r.save(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Complete flips the record to downloaded after install finishes.
func (r *RecordStore) Complete(appID string, signatureChecked bool) error {
	rec, ok := r.Get(appID)
	if !ok {
		return fmt.Errorf("no install record for %s", appID)
	}
	rec.Downloaded = true
	rec.SignatureChecked = signatureChecked
	return r.save(rec)
}

// Get returns the record for an app, loading from disk on first access.
func (r *RecordStore) Get(appID string) (*types.InstallRecord, bool) {
	if cached, ok := r.records.Load(appID); ok {
		return cached.(*types.InstallRecord), true
	}
	data, err := os.ReadFile(paths.AppPath(r.root, appID).InstallRecordFile())
	if err != nil {
		return nil, false
	}
	var rec types.InstallRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false
	}
	r.records.Store(appID, &rec)
	return &rec, true
}

// CurrentVersion returns the installed version of an app, if any.
func (r *RecordStore) CurrentVersion(appID string) (string, bool) {
	rec, ok := r.Get(appID)
	if !ok || !rec.Downloaded {
		return "", false
	}
	return rec.VersionID, true
}

// Delete removes the record when the app's cache is evicted entirely.
func (r *RecordStore) Delete(appID string) error {
	r.records.Delete(appID)
	err := os.Remove(paths.AppPath(r.root, appID).InstallRecordFile())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (r *RecordStore) save(rec *types.InstallRecord) error {
	app := paths.AppPath(r.root, rec.AppID)
	if err := os.MkdirAll(app.Dir(), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	tmp := app.InstallRecordFile() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, app.InstallRecordFile()); err != nil {
		return err
	}
	r.records.Store(rec.AppID, rec)
	return nil
}
