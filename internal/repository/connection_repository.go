package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"erp-connector-service/internal/models"
)

// ConnectionRepository handles database operations for ERP connections
type ConnectionRepository struct {
	db *gorm.DB
}

// NewConnectionRepository creates a new connection repository
func NewConnectionRepository(db *gorm.DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

// Create creates a new connection record
func (r *ConnectionRepository) Create(ctx context.Context, connection *models.ERPConnection) error {
	return r.db.WithContext(ctx).Create(connection).Error
}

// GetByID retrieves a connection by ID. Returns nil when no profile
// exists.
func (r *ConnectionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ERPConnection, error) {
	var connection models.ERPConnection
	err := r.db.WithContext(ctx).First(&connection, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &connection, nil
}

// GetByProvider retrieves the connection profile for a provider.
// Returns nil when no profile exists.
func (r *ConnectionRepository) GetByProvider(ctx context.Context, provider models.ProviderType) (*models.ERPConnection, error) {
	var connection models.ERPConnection
	err := r.db.WithContext(ctx).First(&connection, "provider_type = ?", provider).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &connection, nil
}

// List retrieves all connection profiles
func (r *ConnectionRepository) List(ctx context.Context) ([]models.ERPConnection, error) {
	var connections []models.ERPConnection
	err := r.db.WithContext(ctx).Order("provider_type").Find(&connections).Error
	return connections, err
}

// Update updates a connection record
func (r *ConnectionRepository) Update(ctx context.Context, connection *models.ERPConnection) error {
	return r.db.WithContext(ctx).Save(connection).Error
}

// UpdateStatus updates the connection status and error bookkeeping
func (r *ConnectionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ConnectionStatus, lastError string) error {
	updates := map[string]interface{}{
		"status":     status,
		"last_error": lastError,
		"updated_at": time.Now(),
	}
	if lastError != "" {
		updates["error_count"] = gorm.Expr("error_count + 1")
	}
	return r.db.WithContext(ctx).
		Model(&models.ERPConnection{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// TouchLastSync records a completed sync on the connection profile
func (r *ConnectionRepository) TouchLastSync(ctx context.Context, provider models.ProviderType, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.ERPConnection{}).
		Where("provider_type = ?", provider).
		Updates(map[string]interface{}{
			"last_sync_at": at,
			"updated_at":   time.Now(),
		}).Error
}
