package models

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyRecord stores the outcome of a completed mutating operation
// keyed by (key, fingerprint). The fingerprint is a SHA-256 over the
// serialized payload, so a resubmission of the same key with a different
// payload is a distinct operation. Records are replayed verbatim until
// ExpiresAt; a failed operation stores nothing.
type IdempotencyRecord struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Key         string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_idempotency_key_fp" json:"key"`
	Fingerprint string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_idempotency_key_fp" json:"fingerprint"`

	Result RawJSON `gorm:"type:jsonb" json:"result"`

	StoredAt  time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"storedAt"`
	ExpiresAt time.Time `gorm:"not null;index:idx_idempotency_expires" json:"expiresAt"`
}

// TableName specifies the table name for IdempotencyRecord
func (IdempotencyRecord) TableName() string {
	return "erp_idempotency_records"
}

// Expired reports whether the record is past its retention window
func (r *IdempotencyRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
