package providers

import (
	"context"
	"fmt"
	"time"

	"erp-connector-service/internal/models"
)

// ReconcileAction reports which write path a reconciliation took
type ReconcileAction string

const (
	ActionCreate ReconcileAction = "create"
	ActionUpdate ReconcileAction = "update"
)

// ReconcileResult is the outcome of reconciling one record against the
// provider: either an existing provider-side identifier was found and
// updated, or a new one was minted.
type ReconcileResult struct {
	Action      ReconcileAction `json:"action"`
	ProviderKey string          `json:"providerKey"`
}

// InventoryLevel is a provider-side on-hand quantity for a SKU
type InventoryLevel struct {
	SKU       string    `json:"sku"`
	Quantity  float64   `json:"quantity"`
	Warehouse string    `json:"warehouse,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// InventoryUpdate is a WMS-side quantity pushed to the provider
type InventoryUpdate struct {
	SKU       string  `json:"sku"`
	Quantity  float64 `json:"quantity"`
	Warehouse string  `json:"warehouse,omitempty"`
}

// KeyCache resolves a WMS natural key to a previously reconciled
// provider identifier without a network call. Adapters consult it before
// querying the provider; a miss falls through to the provider lookup.
type KeyCache interface {
	GetByNaturalKey(ctx context.Context, provider models.ProviderType, entityType models.EntityType, wmsKey string) (*models.ExternalMapping, error)
}

// Adapter is the capability set every ERP provider integration must
// implement. The gateway holds a reference to this interface, never to a
// concrete adapter.
type Adapter interface {
	// Type returns the provider this adapter talks to
	Type() models.ProviderType

	// Authenticate performs the provider's OAuth2 client-credentials
	// flow and caches the token in the credential store. It returns
	// false on any failure, never an error; the caller decides whether
	// to retry or abort.
	Authenticate(ctx context.Context) bool

	// TestConnection issues a cheap read against a provider health
	// endpoint using the current (or freshly obtained) token
	TestConnection(ctx context.Context) bool

	// Supports reports whether the adapter implements the entity type
	Supports(entityType models.EntityType) bool

	// TransformOutbound maps a WMS record to the provider's wire schema.
	// The mapping is total for supported entity types and supplies
	// provider-required defaults when the WMS record omits optional
	// fields.
	TransformOutbound(entityType models.EntityType, record models.EntityRecord) (map[string]interface{}, error)

	// Reconcile looks the record up by its natural key against the
	// provider, updates in place when found, creates otherwise.
	//
	// The existence check is a read-before-write race: two concurrent
	// reconciliations of the same natural key may both observe "not
	// found" and both create. That limitation is accepted, not hidden.
	Reconcile(ctx context.Context, entityType models.EntityType, record models.EntityRecord) (*ReconcileResult, error)

	// GetInventoryLevels reads provider-side on-hand quantities
	GetInventoryLevels(ctx context.Context, skus []string) (map[string]*InventoryLevel, error)

	// UpdateInventoryLevel pushes one WMS quantity to the provider
	UpdateInventoryLevel(ctx context.Context, update InventoryUpdate) error

	// MapOrderStatus translates a WMS document status to the provider's
	// code. Total: an unrecognized WMS status maps to the provider's
	// draft/default code instead of failing.
	MapOrderStatus(status models.OrderStatus) string

	// MapProviderOrderStatus is the inverse translation; lossy where the
	// provider's granularity differs
	MapProviderOrderStatus(code string) models.OrderStatus

	// MapSalesOrderStatus translates a WMS sales order status
	MapSalesOrderStatus(status models.SalesOrderStatus) string

	// MapProviderSalesOrderStatus is the inverse sales order translation
	MapProviderSalesOrderStatus(code string) models.SalesOrderStatus
}

// AuthenticationError indicates the OAuth2 flow failed (bad credentials
// or provider outage)
type AuthenticationError struct {
	Provider models.ProviderType
	Reason   string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed for provider %s: %s", e.Provider, e.Reason)
}

// RejectionError is a well-formed request the provider refused
// (validation error, conflict). Per-record, not batch-fatal.
type RejectionError struct {
	Provider   models.ProviderType
	StatusCode int
	Message    string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("provider %s rejected request (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// UnsupportedEntityError indicates the caller requested an entity type
// the adapter does not implement. Fails fast, before any network call.
type UnsupportedEntityError struct {
	Provider   models.ProviderType
	EntityType models.EntityType
}

func (e *UnsupportedEntityError) Error() string {
	return fmt.Sprintf("provider %s does not support entity type %s", e.Provider, e.EntityType)
}
