package models

import (
	"time"

	"github.com/google/uuid"
)

// EventKind represents the kind of integration event
type EventKind string

const (
	EventAuthenticationSuccess EventKind = "authentication_success"
	EventAuthenticationFailure EventKind = "authentication_failure"
	EventConnectionTested      EventKind = "connection_tested"
	EventSyncStarted           EventKind = "sync_started"
	EventSyncCompleted         EventKind = "sync_completed"
	EventSyncFailed            EventKind = "sync_failed"
	EventRecordSynced          EventKind = "record_synced"
	EventRecordFailed          EventKind = "record_failed"
	EventInventoryUpdated      EventKind = "inventory_updated"
	EventPurchaseOrderCreated  EventKind = "purchase_order_created"
)

// IntegrationEvent is a write-once structured event emitted by the
// integration layer. Events are a side channel for dashboards and
// alerting; recording one never affects control flow.
type IntegrationEvent struct {
	ID       uuid.UUID    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Provider ProviderType `gorm:"type:varchar(50);not null;index:idx_integration_events_provider" json:"provider"`
	Kind     EventKind    `gorm:"type:varchar(100);not null;index:idx_integration_events_kind" json:"kind"`

	EntityType EntityType `gorm:"type:varchar(50)" json:"entityType,omitempty"`
	RecordKey  string     `gorm:"type:varchar(255)" json:"recordKey,omitempty"`

	Payload JSONB `gorm:"type:jsonb;default:'{}'" json:"payload,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP;index:idx_integration_events_created" json:"createdAt"`
}

// TableName specifies the table name for IntegrationEvent
func (IntegrationEvent) TableName() string {
	return "erp_integration_events"
}
