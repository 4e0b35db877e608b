package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ProviderType represents the supported ERP platforms
type ProviderType string

const (
	ProviderDynamics ProviderType = "DYNAMICS"
	ProviderOracle   ProviderType = "ORACLE"
)

// IsValidProviderType reports whether the given provider is supported
func IsValidProviderType(p ProviderType) bool {
	switch p {
	case ProviderDynamics, ProviderOracle:
		return true
	}
	return false
}

// ConnectionStatus represents the status of an ERP connection
type ConnectionStatus string

const (
	ConnectionPending      ConnectionStatus = "PENDING"
	ConnectionConnected    ConnectionStatus = "CONNECTED"
	ConnectionDisconnected ConnectionStatus = "DISCONNECTED"
	ConnectionError        ConnectionStatus = "ERROR"
)

// JSONB custom type for PostgreSQL JSONB
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

func (j JSONB) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}(j))
}

func (j *JSONB) UnmarshalJSON(data []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*j = JSONB(m)
	return nil
}

// RawJSON stores an arbitrary JSON document in a JSONB column without
// forcing it into a map shape
type RawJSON json.RawMessage

func (r RawJSON) Value() (driver.Value, error) {
	if len(r) == 0 {
		return nil, nil
	}
	return []byte(r), nil
}

func (r *RawJSON) Scan(value interface{}) error {
	if value == nil {
		*r = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*r = append((*r)[:0], v...)
	case string:
		*r = RawJSON(v)
	default:
		return errors.New("unsupported type for RawJSON")
	}
	return nil
}

func (r RawJSON) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

func (r *RawJSON) UnmarshalJSON(data []byte) error {
	*r = append((*r)[:0], data...)
	return nil
}

// ERPConnection represents a configured connection to an external ERP system
type ERPConnection struct {
	ID           uuid.UUID    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ProviderType ProviderType `gorm:"type:varchar(50);not null;uniqueIndex:idx_erp_connections_provider" json:"providerType"`
	DisplayName  string       `gorm:"type:varchar(255);not null" json:"displayName"`

	// Connection Status
	Status    ConnectionStatus `gorm:"type:varchar(50);not null;default:'PENDING';index:idx_erp_connections_status" json:"status"`
	IsEnabled bool             `gorm:"default:true" json:"isEnabled"`

	// Provider-side identifiers (non-sensitive)
	Endpoint   string `gorm:"type:varchar(500)" json:"endpoint,omitempty"`
	TenantID   string `gorm:"type:varchar(255)" json:"tenantId,omitempty"`
	InstanceID string `gorm:"type:varchar(255)" json:"instanceId,omitempty"`

	// GCP Secret Manager reference for the client credentials
	SecretReference string     `gorm:"type:varchar(500)" json:"-"`
	TokenExpiresAt  *time.Time `json:"tokenExpiresAt,omitempty"`

	// Configuration (non-sensitive)
	Config JSONB `gorm:"type:jsonb;default:'{}'" json:"config,omitempty"`

	// Metadata
	LastSyncAt *time.Time `json:"lastSyncAt,omitempty"`
	LastError  string     `gorm:"type:text" json:"lastError,omitempty"`
	ErrorCount int        `gorm:"default:0" json:"errorCount"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// TableName specifies the table name for ERPConnection
func (ERPConnection) TableName() string {
	return "erp_connections"
}
