package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"erp-connector-service/internal/models"
)

// GormStore persists idempotency records in Postgres. The composite
// unique index on (key, fingerprint) makes Insert atomic across
// processes: the losing writer of a race reads back the winner's record.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a database-backed store
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Get returns the live record for (key, fingerprint), or nil
func (s *GormStore) Get(ctx context.Context, key, fingerprint string) (*models.IdempotencyRecord, error) {
	var record models.IdempotencyRecord
	err := s.db.WithContext(ctx).
		Where("key = ? AND fingerprint = ? AND expires_at > ?", key, fingerprint, time.Now()).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Insert stores the record unless one already exists for the same
// (key, fingerprint)
func (s *GormStore) Insert(ctx context.Context, record *models.IdempotencyRecord) (bool, *models.IdempotencyRecord, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}, {Name: "fingerprint"}},
			DoNothing: true,
		}).
		Create(record)
	if result.Error != nil {
		return false, nil, result.Error
	}
	if result.RowsAffected > 0 {
		return true, nil, nil
	}

	// Lost the insert race; return the stored record. An expired row
	// that has not been purged yet also lands here and is treated as a
	// fresh miss by the next Get after purge.
	existing, err := s.Get(ctx, record.Key, record.Fingerprint)
	if err != nil {
		return false, nil, err
	}
	return false, existing, nil
}

// Purge removes records whose retention window has elapsed
func (s *GormStore) Purge(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&models.IdempotencyRecord{})
	return result.RowsAffected, result.Error
}
