package securestorage

import (
	"context"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/openminiapp/miniapp/internal/shared/paths"
)

var boltBucket = []byte("entries")

// boltBackend stores entries in an embedded bbolt database. Batches commit
// one transaction per checkpoint chunk, so a batch that fails a quota
// checkpoint may leave earlier chunks persisted.
type boltBackend struct {
	path string
	db   *bolt.DB
}

func newBoltBackend(root, appID string) *boltBackend {
	return &boltBackend{path: paths.AppPath(root, appID).SecureStorageFile("db")}
}

func (b *boltBackend) Name() string { return "bolt" }

func (b *boltBackend) open() error {
	if b.db != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return err
	}
	db, err := bolt.Open(b.path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return err
	}
	b.db = db
	return db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
}

func (b *boltBackend) Load() (map[string]string, error) {
	if err := b.open(); err != nil {
		return nil, err
	}
	entries := make(map[string]string)
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).ForEach(func(k, v []byte) error {
			entries[string(k)] = string(v)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (b *boltBackend) Put(ctx context.Context, entries []Entry, interval int, check func() error) error {
	if b.db == nil {
		return ErrStorageUnavailable
	}
	if err := check(); err != nil {
		return err
	}
	for start := 0; start < len(entries); start += interval {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + interval
		if end > len(entries) {
			end = len(entries)
		}
		err := b.db.Update(func(tx *bolt.Tx) error {
			bucket := tx.Bucket(boltBucket)
			for _, entry := range entries[start:end] {
				if err := bucket.Put([]byte(entry.Key), []byte(entry.Value)); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		if end < len(entries) {
			if err := check(); err != nil {
				return err
			}
		}
	}
	return check()
}

func (b *boltBackend) Delete(ctx context.Context, keys []string) error {
	if b.db == nil {
		return ErrStorageUnavailable
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		for _, key := range keys {
			if err := bucket.Delete([]byte(key)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *boltBackend) FileSize() (int64, error) {
	info, err := os.Stat(b.path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (b *boltBackend) Clear() error {
	if b.db == nil {
		return ErrStorageUnavailable
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(boltBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(boltBucket)
		return err
	})
}

func (b *boltBackend) Close() error {
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}
