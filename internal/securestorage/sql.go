package securestorage

import (
	"context"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/openminiapp/miniapp/internal/shared/paths"
)

// storageRow is the relational shape of one entry.
type storageRow struct {
	Key   string `gorm:"primaryKey;column:key"`
	Value string `gorm:"column:value"`
}

func (storageRow) TableName() string { return "secure_storage" }

// sqlBackend stores entries in an embedded SQLite database through gorm.
// Each key upserts as its own statement, so a batch that fails a quota
// checkpoint leaves earlier keys persisted.
type sqlBackend struct {
	path string
	db   *gorm.DB
}

func newSQLBackend(root, appID string) *sqlBackend {
	return &sqlBackend{path: paths.AppPath(root, appID).SecureStorageFile("sqlite")}
}

func (s *sqlBackend) Name() string { return "sqlite" }

func (s *sqlBackend) open() error {
	if s.db != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	db, err := gorm.Open(sqlite.Open(s.path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(&storageRow{}); err != nil {
		return err
	}
	s.db = db
	return nil
}

func (s *sqlBackend) Load() (map[string]string, error) {
	if err := s.open(); err != nil {
		return nil, err
	}
	var rows []storageRow
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make(map[string]string, len(rows))
	for _, row := range rows {
		entries[row.Key] = row.Value
	}
	return entries, nil
}

func (s *sqlBackend) Put(ctx context.Context, entries []Entry, interval int, check func() error) error {
	if s.db == nil {
		return ErrStorageUnavailable
	}
	if err := check(); err != nil {
		return err
	}
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		row := storageRow{Key: entry.Key, Value: entry.Value}
		err := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{UpdateAll: true}).
			Create(&row).Error
		if err != nil {
			return err
		}
		if (i+1)%interval == 0 && i+1 < len(entries) {
			if err := check(); err != nil {
				return err
			}
		}
	}
	return check()
}

func (s *sqlBackend) Delete(ctx context.Context, keys []string) error {
	if s.db == nil {
		return ErrStorageUnavailable
	}
	if len(keys) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Where("key IN ?", keys).
		Delete(&storageRow{}).Error
}

func (s *sqlBackend) FileSize() (int64, error) {
	info, err := os.Stat(s.path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (s *sqlBackend) Clear() error {
	if s.db == nil {
		return ErrStorageUnavailable
	}
	return s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&storageRow{}).Error
}

func (s *sqlBackend) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	s.db = nil
	return sqlDB.Close()
}
