package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"erp-connector-service/internal/models"
)

// MappingRepository handles database operations for external ID mappings
type MappingRepository struct {
	db *gorm.DB
}

// NewMappingRepository creates a new mapping repository
func NewMappingRepository(db *gorm.DB) *MappingRepository {
	return &MappingRepository{db: db}
}

// Upsert stores or refreshes the mapping for a natural key
func (r *MappingRepository) Upsert(ctx context.Context, mapping *models.ExternalMapping) error {
	if mapping.ID == uuid.Nil {
		mapping.ID = uuid.New()
	}
	now := time.Now()
	if mapping.LastSyncedAt == nil {
		mapping.LastSyncedAt = &now
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "provider"}, {Name: "entity_type"}, {Name: "wms_key"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"provider_key", "sync_status", "last_synced_at", "sync_error", "updated_at",
			}),
		}).
		Create(mapping).Error
}

// GetByNaturalKey looks up the provider-side identifier cached for a WMS
// natural key. Returns nil when no mapping is known locally.
func (r *MappingRepository) GetByNaturalKey(ctx context.Context, provider models.ProviderType, entityType models.EntityType, wmsKey string) (*models.ExternalMapping, error) {
	var mapping models.ExternalMapping
	err := r.db.WithContext(ctx).
		Where("provider = ? AND entity_type = ? AND wms_key = ?", provider, entityType, wmsKey).
		First(&mapping).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &mapping, nil
}

// MappingListOptions filters mapping listings
type MappingListOptions struct {
	Provider   models.ProviderType
	EntityType models.EntityType
	SyncStatus models.MappingSyncStatus
	Limit      int
	Offset     int
}

// List returns mappings for a provider
func (r *MappingRepository) List(ctx context.Context, opts MappingListOptions) ([]models.ExternalMapping, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ExternalMapping{})

	if opts.Provider != "" {
		query = query.Where("provider = ?", opts.Provider)
	}
	if opts.EntityType != "" {
		query = query.Where("entity_type = ?", opts.EntityType)
	}
	if opts.SyncStatus != "" {
		query = query.Where("sync_status = ?", opts.SyncStatus)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := opts.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	var mappings []models.ExternalMapping
	err := query.Order("updated_at DESC").
		Limit(limit).
		Offset(opts.Offset).
		Find(&mappings).Error
	return mappings, total, err
}

// Delete removes a mapping by ID
func (r *MappingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.ExternalMapping{}, "id = ?", id).Error
}
