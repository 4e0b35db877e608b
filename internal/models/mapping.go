package models

import (
	"time"

	"github.com/google/uuid"
)

// MappingSyncStatus represents the sync status of an external mapping
type MappingSyncStatus string

const (
	MappingSynced  MappingSyncStatus = "SYNCED"
	MappingPending MappingSyncStatus = "PENDING"
	MappingError   MappingSyncStatus = "ERROR"
)

// ExternalMapping associates a WMS natural key with the identifier the
// provider minted (or already held) for the same entity. The caller owns
// durable storage of the mapping; this table is a local cache that the
// reconcile path consults before querying the provider by natural key.
type ExternalMapping struct {
	ID       uuid.UUID    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Provider ProviderType `gorm:"type:varchar(50);not null;uniqueIndex:idx_external_mappings_natural" json:"provider"`

	EntityType EntityType `gorm:"type:varchar(50);not null;uniqueIndex:idx_external_mappings_natural" json:"entityType"`

	// WMS-native natural key (SKU, customer code, order number)
	WMSKey string `gorm:"type:varchar(255);not null;uniqueIndex:idx_external_mappings_natural" json:"wmsKey"`

	// Provider-side identifier
	ProviderKey string `gorm:"type:varchar(255);not null;index:idx_external_mappings_provider_key" json:"providerKey"`

	SyncStatus   MappingSyncStatus `gorm:"type:varchar(50);default:'SYNCED';index:idx_external_mappings_status" json:"syncStatus"`
	LastSyncedAt *time.Time        `json:"lastSyncedAt,omitempty"`
	SyncError    *string           `gorm:"type:text" json:"syncError,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// TableName specifies the table name for ExternalMapping
func (ExternalMapping) TableName() string {
	return "erp_external_mappings"
}
