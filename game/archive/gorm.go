package archive

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var ErrMissingDSN = errors.New("postgres archive requires a DSN")

// GormStore keeps records in a relational table through gorm.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens a Postgres connection and migrates the match table.
func NewGormStore(dsn string) (*GormStore, error) {
	if dsn == "" {
		return nil, ErrMissingDSN
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	return NewGormStoreFromDB(db)
}

// NewGormStoreFromDB wraps an existing gorm handle, which lets callers pick
// another dialect.
func NewGormStoreFromDB(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&MatchRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate match table: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Save(ctx context.Context, record *MatchRecord) error {
	if err := prepare(record); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to insert match record: %w", err)
	}
	return nil
}

func (s *GormStore) Recent(ctx context.Context, limit int) ([]*MatchRecord, error) {
	if limit <= 0 {
		limit = defaultMemoryLimit
	}

	var records []*MatchRecord
	err := s.db.WithContext(ctx).
		Order("finished_at desc").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query match records: %w", err)
	}
	return records, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
