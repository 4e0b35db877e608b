package dynamics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"erp-connector-service/internal/credentials"
	"erp-connector-service/internal/models"
	"erp-connector-service/internal/providers"
	"erp-connector-service/internal/transport"
)

type captureRecorder struct {
	mu     sync.Mutex
	events []models.IntegrationEvent
}

func (c *captureRecorder) Record(ctx context.Context, event models.IntegrationEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureRecorder) kinds() []models.EventKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.EventKind, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Kind)
	}
	return out
}

type staticKeyCache struct {
	mapping *models.ExternalMapping
}

func (s *staticKeyCache) GetByNaturalKey(ctx context.Context, provider models.ProviderType, entityType models.EntityType, wmsKey string) (*models.ExternalMapping, error) {
	return s.mapping, nil
}

// newTestAdapter wires an adapter against a fake Dynamics environment.
// The returned mux serves both the token endpoint and the OData surface.
func newTestAdapter(t *testing.T, mux *http.ServeMux) (*Adapter, *captureRecorder, *credentials.Store) {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	store, err := credentials.NewStore(models.ProviderDynamics, credentials.ProviderConfig{
		Endpoint:     server.URL,
		TenantID:     "tenant-1",
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		Resource:     server.URL,
	})
	require.NoError(t, err)

	recorder := &captureRecorder{}
	adapter := NewAdapter(store, transport.NewClient(5*time.Second), recorder)
	adapter.authBase = server.URL
	return adapter, recorder, store
}

func tokenHandler(hits *int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			*hits++
		}
		if err := r.ParseForm(); err != nil || r.PostFormValue("client_secret") != "secret-1" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"invalid_client","error_description":"client secret is invalid"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		// AAD v1 reports expires_in as a string
		w.Write([]byte(`{"access_token":"token-abc","token_type":"Bearer","expires_in":"3600"}`))
	}
}

func TestAuthenticateCachesToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/tenant-1/oauth2/token", tokenHandler(nil))

	adapter, recorder, store := newTestAdapter(t, mux)

	ok := adapter.Authenticate(context.Background())
	require.True(t, ok)

	token, hasToken := store.Token()
	require.True(t, hasToken)
	assert.Equal(t, "token-abc", token.Value)
	assert.Contains(t, recorder.kinds(), models.EventAuthenticationSuccess)
}

func TestAuthenticateWrongSecret(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/tenant-1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_client","error_description":"client secret is invalid"}`))
	})

	adapter, recorder, store := newTestAdapter(t, mux)

	ok := adapter.Authenticate(context.Background())
	assert.False(t, ok)
	assert.False(t, store.HasToken())
	assert.Contains(t, recorder.kinds(), models.EventAuthenticationFailure)
}

func TestReconcileCreatesWhenAbsent(t *testing.T) {
	var created bool
	mux := http.NewServeMux()
	mux.HandleFunc("/tenant-1/oauth2/token", tokenHandler(nil))
	mux.HandleFunc("/data/Products", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(`{"value":[]}`))
		case http.MethodPost:
			created = true
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"ProductNumber":"SKU-1"}`))
		}
	})

	adapter, _, _ := newTestAdapter(t, mux)

	result, err := adapter.Reconcile(context.Background(), models.EntityProduct, models.EntityRecord{
		Key:    "SKU-1",
		Fields: models.JSONB{"name": "Widget", "price": 9.5},
	})
	require.NoError(t, err)

	assert.True(t, created)
	assert.Equal(t, providers.ActionCreate, result.Action)
	assert.Equal(t, "SKU-1", result.ProviderKey)
}

func TestReconcileUpdatesWhenPresent(t *testing.T) {
	var patchedPath string
	mux := http.NewServeMux()
	mux.HandleFunc("/tenant-1/oauth2/token", tokenHandler(nil))
	mux.HandleFunc("/data/Products", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"value":[{"ProductNumber":"SKU-1"}]}`))
	})
	mux.HandleFunc("/data/Products('SKU-1')", func(w http.ResponseWriter, r *http.Request) {
		patchedPath = r.URL.Path
		require.Equal(t, http.MethodPatch, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNoContent)
	})

	adapter, _, _ := newTestAdapter(t, mux)

	result, err := adapter.Reconcile(context.Background(), models.EntityProduct, models.EntityRecord{Key: "SKU-1"})
	require.NoError(t, err)

	assert.Equal(t, providers.ActionUpdate, result.Action)
	assert.Equal(t, "SKU-1", result.ProviderKey)
	assert.Equal(t, "/data/Products('SKU-1')", patchedPath)
}

func TestReconcileKeyCacheSkipsLookup(t *testing.T) {
	var lookups int
	mux := http.NewServeMux()
	mux.HandleFunc("/tenant-1/oauth2/token", tokenHandler(nil))
	mux.HandleFunc("/data/Products", func(w http.ResponseWriter, r *http.Request) {
		lookups++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"value":[]}`))
	})
	mux.HandleFunc("/data/Products('P-77')", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	adapter, _, _ := newTestAdapter(t, mux)
	adapter.SetKeyCache(&staticKeyCache{mapping: &models.ExternalMapping{
		Provider:    models.ProviderDynamics,
		EntityType:  models.EntityProduct,
		WMSKey:      "SKU-1",
		ProviderKey: "P-77",
	}})

	result, err := adapter.Reconcile(context.Background(), models.EntityProduct, models.EntityRecord{Key: "SKU-1"})
	require.NoError(t, err)

	assert.Equal(t, providers.ActionUpdate, result.Action)
	assert.Equal(t, "P-77", result.ProviderKey)
	assert.Zero(t, lookups)
}

func TestReconcileUnsupportedEntity(t *testing.T) {
	adapter, _, _ := newTestAdapter(t, http.NewServeMux())

	_, err := adapter.Reconcile(context.Background(), models.EntityType("LEDGER"), models.EntityRecord{Key: "x"})
	var unsupported *providers.UnsupportedEntityError
	require.ErrorAs(t, err, &unsupported)
}

func TestTokenIsReusedAcrossRequests(t *testing.T) {
	tokenHits := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/tenant-1/oauth2/token", tokenHandler(&tokenHits))
	mux.HandleFunc("/data/Companies", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-abc", r.Header.Get("Authorization"))
		assert.Equal(t, "4.0", r.Header.Get("OData-Version"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"value":[{}]}`))
	})

	adapter, _, _ := newTestAdapter(t, mux)

	assert.True(t, adapter.TestConnection(context.Background()))
	assert.True(t, adapter.TestConnection(context.Background()))
	assert.Equal(t, 1, tokenHits)
}

func TestStatusMapsAreTotal(t *testing.T) {
	adapter, _, _ := newTestAdapter(t, http.NewServeMux())

	for _, s := range models.AllOrderStatuses {
		assert.NotEmpty(t, adapter.MapOrderStatus(s))
	}
	for _, s := range models.AllSalesOrderStatuses {
		assert.NotEmpty(t, adapter.MapSalesOrderStatus(s))
	}

	// Unknown values fall back to the draft-equivalent defaults
	assert.Equal(t, "Draft", adapter.MapOrderStatus(models.OrderStatus("bogus")))
	assert.Equal(t, "None", adapter.MapSalesOrderStatus(models.SalesOrderStatus("bogus")))
	assert.Equal(t, models.OrderPending, adapter.MapProviderOrderStatus("Unmapped"))
	assert.Equal(t, models.SalesOrderPending, adapter.MapProviderSalesOrderStatus("Unmapped"))
}

func TestPurchaseStatusRoundTrip(t *testing.T) {
	adapter, _, _ := newTestAdapter(t, http.NewServeMux())

	for _, s := range models.AllOrderStatuses {
		assert.Equal(t, s, adapter.MapProviderOrderStatus(adapter.MapOrderStatus(s)))
	}

	// Invoiced has no WMS counterpart and collapses onto completed
	assert.Equal(t, models.OrderCompleted, adapter.MapProviderOrderStatus("Invoiced"))
}

func TestSalesStatusMappingIsLossy(t *testing.T) {
	adapter, _, _ := newTestAdapter(t, http.NewServeMux())

	// confirmed and processing share the Backorder code; the inverse
	// picks confirmed
	assert.Equal(t, adapter.MapSalesOrderStatus(models.SalesOrderConfirmed), adapter.MapSalesOrderStatus(models.SalesOrderProcessing))
	assert.Equal(t, models.SalesOrderConfirmed, adapter.MapProviderSalesOrderStatus("Backorder"))
}

func TestTransformOutboundSuppliesDefaults(t *testing.T) {
	adapter, _, _ := newTestAdapter(t, http.NewServeMux())

	payload, err := adapter.TransformOutbound(models.EntityCustomer, models.EntityRecord{Key: "CUST-9"})
	require.NoError(t, err)

	assert.Equal(t, "CUST-9", payload["CustomerAccount"])
	assert.Equal(t, "CUST-9", payload["OrganizationName"])
	assert.Equal(t, "USD", payload["SalesCurrencyCode"])
	assert.Equal(t, "DEFAULT", payload["CustomerGroupId"])
}

func TestTransformOutboundAllEntityTypes(t *testing.T) {
	adapter, _, _ := newTestAdapter(t, http.NewServeMux())

	for _, entityType := range models.AllEntityTypes {
		payload, err := adapter.TransformOutbound(entityType, models.EntityRecord{Key: "K-1", Status: "pending"})
		require.NoError(t, err, "entity type %s", entityType)
		assert.NotEmpty(t, payload, "entity type %s", entityType)
	}
}
