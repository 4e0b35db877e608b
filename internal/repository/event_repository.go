package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"erp-connector-service/internal/models"
)

// EventRepository handles database operations for integration events
type EventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create appends an integration event
func (r *EventRepository) Create(ctx context.Context, event *models.IntegrationEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// EventListOptions filters event listings
type EventListOptions struct {
	Provider   models.ProviderType
	Kind       models.EventKind
	EntityType models.EntityType
	Since      time.Time
	Limit      int
	Offset     int
}

// List returns events ordered by emission time, newest first
func (r *EventRepository) List(ctx context.Context, opts EventListOptions) ([]models.IntegrationEvent, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.IntegrationEvent{})

	if opts.Provider != "" {
		query = query.Where("provider = ?", opts.Provider)
	}
	if opts.Kind != "" {
		query = query.Where("kind = ?", opts.Kind)
	}
	if opts.EntityType != "" {
		query = query.Where("entity_type = ?", opts.EntityType)
	}
	if !opts.Since.IsZero() {
		query = query.Where("created_at >= ?", opts.Since)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := opts.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var events []models.IntegrationEvent
	err := query.Order("created_at DESC").
		Limit(limit).
		Offset(opts.Offset).
		Find(&events).Error
	return events, total, err
}
