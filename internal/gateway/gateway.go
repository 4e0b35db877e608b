package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"erp-connector-service/internal/credentials"
	"erp-connector-service/internal/events"
	"erp-connector-service/internal/idempotency"
	"erp-connector-service/internal/models"
	"erp-connector-service/internal/providers"
	"erp-connector-service/internal/repository"
	"erp-connector-service/internal/transport"
)

// State is the gateway's authentication lifecycle state
type State string

const (
	StateUnauthenticated State = "UNAUTHENTICATED"
	StateAuthenticating  State = "AUTHENTICATING"
	StateAuthenticated   State = "AUTHENTICATED"
)

// ErrCircuitOpen is returned when the provider's circuit breaker is
// rejecting calls after repeated failures
var ErrCircuitOpen = errors.New("provider circuit breaker is open")

// RecordResult is the per-record outcome of a batch sync. Results are
// positional: Results[i] corresponds to the i-th input record.
type RecordResult struct {
	Key         string                    `json:"key"`
	Success     bool                      `json:"success"`
	Action      providers.ReconcileAction `json:"action,omitempty"`
	ProviderKey string                    `json:"providerKey,omitempty"`
	Error       string                    `json:"error,omitempty"`
}

// BatchResult is the outcome of one SyncData call
type BatchResult struct {
	Success   bool           `json:"success"`
	Processed int            `json:"processed"`
	Results   []RecordResult `json:"results"`
}

// Status is a point-in-time snapshot of one provider gateway
type Status struct {
	Provider    models.ProviderType `json:"provider"`
	State       State               `json:"state"`
	TokenCached bool                `json:"tokenCached"`
	Reachable   bool                `json:"reachable"`
	LastSyncAt  *time.Time          `json:"lastSyncAt,omitempty"`
	Calls       int64               `json:"calls"`
	Errors      int64               `json:"errors"`
}

// Gateway drives one provider adapter: it owns the authentication state
// machine, wraps batch syncs in idempotency, and records integration
// events for every operation.
type Gateway struct {
	adapter  providers.Adapter
	creds    *credentials.Store
	idem     *idempotency.Service
	recorder events.Recorder
	breaker  *transport.CircuitBreaker
	log      *logrus.Entry

	mappings    *repository.MappingRepository
	connections *repository.ConnectionRepository

	mu    sync.Mutex
	state State

	callCount  atomic.Int64
	errorCount atomic.Int64
}

// NewGateway creates a gateway for one provider adapter
func NewGateway(adapter providers.Adapter, creds *credentials.Store, idem *idempotency.Service, recorder events.Recorder) *Gateway {
	return &Gateway{
		adapter:  adapter,
		creds:    creds,
		idem:     idem,
		recorder: recorder,
		breaker:  transport.NewCircuitBreaker(5, 30*time.Second),
		log:      logrus.WithField("provider", adapter.Type()),
		state:    StateUnauthenticated,
	}
}

// SetMappingRepository enables persisting reconciled natural-key to
// provider-key mappings
func (g *Gateway) SetMappingRepository(repo *repository.MappingRepository) {
	g.mappings = repo
}

// SetConnectionRepository enables last-sync bookkeeping on the stored
// connection profile
func (g *Gateway) SetConnectionRepository(repo *repository.ConnectionRepository) {
	g.connections = repo
}

// Provider returns the provider this gateway drives
func (g *Gateway) Provider() models.ProviderType {
	return g.adapter.Type()
}

// State returns the current authentication state
func (g *Gateway) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Authenticate drives the state machine through one authentication
// attempt and reports whether the gateway ended up authenticated
func (g *Gateway) Authenticate(ctx context.Context) bool {
	return g.ensureAuthenticated(ctx) == nil
}

// ensureAuthenticated makes sure a usable token is cached, running the
// adapter's OAuth2 flow when it is not. The network call happens outside
// the state lock; a failed attempt resets to UNAUTHENTICATED.
func (g *Gateway) ensureAuthenticated(ctx context.Context) error {
	g.mu.Lock()
	if g.state == StateAuthenticated && g.creds.HasToken() {
		g.mu.Unlock()
		return nil
	}
	g.state = StateAuthenticating
	g.mu.Unlock()

	ok := g.adapter.Authenticate(ctx)
	if !ok {
		// One transparent retry covers transient token endpoint blips
		ok = g.adapter.Authenticate(ctx)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if !ok {
		g.state = StateUnauthenticated
		return &providers.AuthenticationError{Provider: g.adapter.Type(), Reason: "authentication failed"}
	}
	g.state = StateAuthenticated
	return nil
}

// SyncData reconciles a batch of records against the provider. The whole
// batch runs under an idempotency key derived from the entity type so an
// identical retry replays the stored outcome instead of re-syncing.
// Individual record failures do not abort the batch; authentication
// failures do, and leave no idempotency record behind.
func (g *Gateway) SyncData(ctx context.Context, entityType models.EntityType, records []models.EntityRecord) (*BatchResult, error) {
	g.callCount.Add(1)

	if !models.IsValidEntityType(entityType) || !g.adapter.Supports(entityType) {
		g.errorCount.Add(1)
		return nil, &providers.UnsupportedEntityError{Provider: g.adapter.Type(), EntityType: entityType}
	}
	if len(records) == 0 {
		return &BatchResult{Success: true, Processed: 0, Results: []RecordResult{}}, nil
	}
	if !g.breaker.Allow() {
		g.errorCount.Add(1)
		return nil, ErrCircuitOpen
	}

	if err := g.ensureAuthenticated(ctx); err != nil {
		g.errorCount.Add(1)
		g.breaker.RecordFailure()
		return nil, err
	}

	g.recorder.Record(ctx, models.IntegrationEvent{
		Provider:   g.adapter.Type(),
		Kind:       models.EventSyncStarted,
		EntityType: entityType,
		Payload:    models.JSONB{"records": len(records)},
	})

	idemKey := "sync_" + string(entityType)
	result, err := g.idem.Do(ctx, idemKey, records, func(ctx context.Context) (interface{}, error) {
		return g.processBatch(ctx, entityType, records)
	})
	if err != nil {
		g.errorCount.Add(1)
		g.breaker.RecordFailure()
		g.recorder.Record(ctx, models.IntegrationEvent{
			Provider:   g.adapter.Type(),
			Kind:       models.EventSyncFailed,
			EntityType: entityType,
			Payload:    models.JSONB{"error": err.Error()},
		})
		return nil, err
	}

	var batch BatchResult
	if err := json.Unmarshal(result.Value, &batch); err != nil {
		g.errorCount.Add(1)
		return nil, fmt.Errorf("failed to decode batch result: %w", err)
	}

	g.breaker.RecordSuccess()
	if !result.Replayed {
		g.recorder.Record(ctx, models.IntegrationEvent{
			Provider:   g.adapter.Type(),
			Kind:       models.EventSyncCompleted,
			EntityType: entityType,
			Payload: models.JSONB{
				"processed": batch.Processed,
				"success":   batch.Success,
			},
		})
		g.touchLastSync(ctx)
	}
	return &batch, nil
}

// processBatch reconciles each record in order. A per-record failure is
// captured in its slot; an authentication failure aborts the batch so
// nothing is stored and a retry re-runs it.
func (g *Gateway) processBatch(ctx context.Context, entityType models.EntityType, records []models.EntityRecord) (*BatchResult, error) {
	results := make([]RecordResult, 0, len(records))
	allOK := true

	for _, record := range records {
		outcome, err := g.adapter.Reconcile(ctx, entityType, record)
		if err != nil {
			var authErr *providers.AuthenticationError
			if errors.As(err, &authErr) {
				return nil, err
			}
			allOK = false
			results = append(results, RecordResult{Key: record.Key, Success: false, Error: err.Error()})
			g.recorder.Record(ctx, models.IntegrationEvent{
				Provider:   g.adapter.Type(),
				Kind:       models.EventRecordFailed,
				EntityType: entityType,
				RecordKey:  record.Key,
				Payload:    models.JSONB{"error": err.Error()},
			})
			continue
		}

		results = append(results, RecordResult{
			Key:         record.Key,
			Success:     true,
			Action:      outcome.Action,
			ProviderKey: outcome.ProviderKey,
		})
		g.recorder.Record(ctx, models.IntegrationEvent{
			Provider:   g.adapter.Type(),
			Kind:       models.EventRecordSynced,
			EntityType: entityType,
			RecordKey:  record.Key,
			Payload: models.JSONB{
				"action":      string(outcome.Action),
				"providerKey": outcome.ProviderKey,
			},
		})
		g.storeMapping(ctx, entityType, record.Key, outcome.ProviderKey)
	}

	return &BatchResult{Success: allOK, Processed: len(results), Results: results}, nil
}

// storeMapping persists the natural-key to provider-key mapping; errors
// are logged, never surfaced, because the sync itself already succeeded
func (g *Gateway) storeMapping(ctx context.Context, entityType models.EntityType, wmsKey, providerKey string) {
	if g.mappings == nil {
		return
	}
	now := time.Now()
	err := g.mappings.Upsert(ctx, &models.ExternalMapping{
		Provider:     g.adapter.Type(),
		EntityType:   entityType,
		WMSKey:       wmsKey,
		ProviderKey:  providerKey,
		SyncStatus:   models.MappingSynced,
		LastSyncedAt: &now,
	})
	if err != nil {
		g.log.WithError(err).WithField("key", wmsKey).Warn("failed to persist key mapping")
	}
}

func (g *Gateway) touchLastSync(ctx context.Context) {
	if g.connections == nil {
		return
	}
	if err := g.connections.TouchLastSync(ctx, g.adapter.Type(), time.Now()); err != nil {
		g.log.WithError(err).Warn("failed to update last sync timestamp")
	}
}

// CreatePurchaseOrder reconciles a single purchase order record. The
// call runs under idemKey, or a key derived from the order number when
// the caller supplied none, so retrying an identical create replays the
// stored outcome instead of reaching the provider again.
func (g *Gateway) CreatePurchaseOrder(ctx context.Context, idemKey string, record models.EntityRecord) (*providers.ReconcileResult, error) {
	g.callCount.Add(1)

	if err := g.ensureAuthenticated(ctx); err != nil {
		g.errorCount.Add(1)
		return nil, err
	}

	if idemKey == "" {
		idemKey = "po_" + record.Key
	}
	result, err := g.idem.Do(ctx, idemKey, record, func(ctx context.Context) (interface{}, error) {
		outcome, err := g.adapter.Reconcile(ctx, models.EntityPurchaseOrder, record)
		if err != nil {
			return nil, err
		}

		g.recorder.Record(ctx, models.IntegrationEvent{
			Provider:   g.adapter.Type(),
			Kind:       models.EventPurchaseOrderCreated,
			EntityType: models.EntityPurchaseOrder,
			RecordKey:  record.Key,
			Payload: models.JSONB{
				"action":      string(outcome.Action),
				"providerKey": outcome.ProviderKey,
			},
		})
		g.storeMapping(ctx, models.EntityPurchaseOrder, record.Key, outcome.ProviderKey)
		return outcome, nil
	})
	if err != nil {
		g.errorCount.Add(1)
		return nil, err
	}

	var outcome providers.ReconcileResult
	if err := json.Unmarshal(result.Value, &outcome); err != nil {
		g.errorCount.Add(1)
		return nil, fmt.Errorf("failed to decode reconcile result: %w", err)
	}
	return &outcome, nil
}

// GetInventoryLevels reads provider-side on-hand quantities
func (g *Gateway) GetInventoryLevels(ctx context.Context, skus []string) (map[string]*providers.InventoryLevel, error) {
	g.callCount.Add(1)

	if err := g.ensureAuthenticated(ctx); err != nil {
		g.errorCount.Add(1)
		return nil, err
	}

	levels, err := g.adapter.GetInventoryLevels(ctx, skus)
	if err != nil {
		g.errorCount.Add(1)
		return nil, err
	}
	return levels, nil
}

// UpdateInventoryLevels pushes a batch of quantity updates. Like
// SyncData, one SKU's failure does not abort the rest, the batch runs
// under idemKey (falling back to a fixed key when the caller supplied
// none), and an identical retry replays the stored outcome without
// touching the provider.
func (g *Gateway) UpdateInventoryLevels(ctx context.Context, idemKey string, updates []providers.InventoryUpdate) (*BatchResult, error) {
	g.callCount.Add(1)

	if err := g.ensureAuthenticated(ctx); err != nil {
		g.errorCount.Add(1)
		return nil, err
	}

	if idemKey == "" {
		idemKey = "update_inventory"
	}
	result, err := g.idem.Do(ctx, idemKey, updates, func(ctx context.Context) (interface{}, error) {
		return g.pushInventory(ctx, updates)
	})
	if err != nil {
		g.errorCount.Add(1)
		return nil, err
	}

	var batch BatchResult
	if err := json.Unmarshal(result.Value, &batch); err != nil {
		g.errorCount.Add(1)
		return nil, fmt.Errorf("failed to decode batch result: %w", err)
	}
	if !batch.Success && !result.Replayed {
		g.errorCount.Add(1)
	}
	return &batch, nil
}

// pushInventory applies each quantity update in order. An
// authentication failure aborts the batch so nothing is stored and a
// retry re-runs it.
func (g *Gateway) pushInventory(ctx context.Context, updates []providers.InventoryUpdate) (*BatchResult, error) {
	results := make([]RecordResult, 0, len(updates))
	allOK := true
	for _, update := range updates {
		if err := g.adapter.UpdateInventoryLevel(ctx, update); err != nil {
			var authErr *providers.AuthenticationError
			if errors.As(err, &authErr) {
				return nil, err
			}
			allOK = false
			results = append(results, RecordResult{Key: update.SKU, Success: false, Error: err.Error()})
			continue
		}
		results = append(results, RecordResult{Key: update.SKU, Success: true})
	}

	g.recorder.Record(ctx, models.IntegrationEvent{
		Provider:   g.adapter.Type(),
		Kind:       models.EventInventoryUpdated,
		EntityType: models.EntityInventory,
		Payload:    models.JSONB{"updated": len(results), "success": allOK},
	})
	return &BatchResult{Success: allOK, Processed: len(results), Results: results}, nil
}

// TestConnection checks provider reachability with the current token
func (g *Gateway) TestConnection(ctx context.Context) bool {
	if err := g.ensureAuthenticated(ctx); err != nil {
		return false
	}
	return g.adapter.TestConnection(ctx)
}

// GetStatus reports the gateway's current state without mutating it: no
// re-authentication is attempted and the state machine does not move
func (g *Gateway) GetStatus(ctx context.Context) Status {
	status := Status{
		Provider:    g.adapter.Type(),
		State:       g.State(),
		TokenCached: g.creds.HasToken(),
		Calls:       g.callCount.Load(),
		Errors:      g.errorCount.Load(),
	}

	if status.TokenCached {
		status.Reachable = g.adapter.TestConnection(ctx)
	}

	if g.connections != nil {
		if conn, err := g.connections.GetByProvider(ctx, g.adapter.Type()); err == nil && conn != nil {
			status.LastSyncAt = conn.LastSyncAt
		}
	}
	return status
}
