package oracle

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

func newTestAdapter(t *testing.T, mux *http.ServeMux) (*Adapter, *captureRecorder, *credentials.Store) {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	store, err := credentials.NewStore(models.ProviderOracle, credentials.ProviderConfig{
		Endpoint:     server.URL,
		InstanceID:   "fa-test",
		ClientID:     "client-1",
		ClientSecret: "secret-1",
	})
	require.NoError(t, err)

	recorder := &captureRecorder{}
	adapter := NewAdapter(store, transport.NewClient(5*time.Second), recorder)
	return adapter, recorder, store
}

func tokenHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-1" || pass != "secret-1" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"invalid_client"}`))
			return
		}
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostFormValue("grant_type"))
		assert.NotEmpty(t, r.PostFormValue("scope"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"oracle-token","token_type":"Bearer","expires_in":3600}`))
	}
}

func TestAuthenticateUsesBasicAuth(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/v1/token", tokenHandler(t))

	adapter, recorder, store := newTestAdapter(t, mux)

	ok := adapter.Authenticate(context.Background())
	require.True(t, ok)

	token, hasToken := store.Token()
	require.True(t, hasToken)
	assert.Equal(t, "oracle-token", token.Value)
	assert.Contains(t, recorder.kinds(), models.EventAuthenticationSuccess)
}

func TestAuthenticateRejectedCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/v1/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_client"}`))
	})

	adapter, recorder, store := newTestAdapter(t, mux)

	assert.False(t, adapter.Authenticate(context.Background()))
	assert.False(t, store.HasToken())
	assert.Contains(t, recorder.kinds(), models.EventAuthenticationFailure)
}

func TestReconcileLookupUsesQueryPredicate(t *testing.T) {
	var gotQuery string
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/v1/token", tokenHandler(t))
	mux.HandleFunc("/fscmRestApi/resources/11.13.18.05/itemsV2", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			gotQuery = r.URL.Query().Get("q")
			w.Write([]byte(`{"items":[],"count":0}`))
		case http.MethodPost:
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"ItemNumber":"SKU-9"}`))
		}
	})

	adapter, _, _ := newTestAdapter(t, mux)

	result, err := adapter.Reconcile(context.Background(), models.EntityProduct, models.EntityRecord{Key: "SKU-9"})
	require.NoError(t, err)

	assert.Equal(t, "ItemNumber='SKU-9'", gotQuery)
	assert.Equal(t, providers.ActionCreate, result.Action)
	assert.Equal(t, "SKU-9", result.ProviderKey)
}

func TestReconcileUpdatesExistingItem(t *testing.T) {
	var patched bool
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/v1/token", tokenHandler(t))
	mux.HandleFunc("/fscmRestApi/resources/11.13.18.05/itemsV2", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[{"ItemNumber":"SKU-9"}],"count":1}`))
	})
	mux.HandleFunc("/fscmRestApi/resources/11.13.18.05/itemsV2/SKU-9", func(w http.ResponseWriter, r *http.Request) {
		patched = true
		require.Equal(t, http.MethodPatch, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ItemNumber":"SKU-9"}`))
	})

	adapter, _, _ := newTestAdapter(t, mux)

	result, err := adapter.Reconcile(context.Background(), models.EntityProduct, models.EntityRecord{Key: "SKU-9"})
	require.NoError(t, err)

	assert.True(t, patched)
	assert.Equal(t, providers.ActionUpdate, result.Action)
}

func TestRejectionCarriesStatusAndMessage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/v1/token", tokenHandler(t))
	mux.HandleFunc("/fscmRestApi/resources/11.13.18.05/itemsV2", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"title":"Bad Request","detail":"ItemClass is invalid"}`))
	})

	adapter, _, _ := newTestAdapter(t, mux)

	_, err := adapter.Reconcile(context.Background(), models.EntityProduct, models.EntityRecord{Key: "SKU-9"})
	var rejection *providers.RejectionError
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, http.StatusBadRequest, rejection.StatusCode)
	assert.Contains(t, rejection.Message, "ItemClass is invalid")
}

func TestGetInventoryLevels(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/v1/token", tokenHandler(t))
	mux.HandleFunc("/fscmRestApi/resources/11.13.18.05/inventoryOnhandBalances", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[
			{"ItemNumber":"SKU-1","PrimaryQuantity":42,"OrganizationCode":"WH-MAIN"},
			{"ItemNumber":"SKU-2","PrimaryQuantity":0,"OrganizationCode":"WH-MAIN"}
		],"count":2}`))
	})

	adapter, _, _ := newTestAdapter(t, mux)

	levels, err := adapter.GetInventoryLevels(context.Background(), []string{"SKU-1", "SKU-2"})
	require.NoError(t, err)

	require.Len(t, levels, 2)
	assert.Equal(t, 42.0, levels["SKU-1"].Quantity)
	assert.Equal(t, "WH-MAIN", levels["SKU-1"].Warehouse)
	assert.Zero(t, levels["SKU-2"].Quantity)
}

func TestStatusMapsAreTotal(t *testing.T) {
	adapter, _, _ := newTestAdapter(t, http.NewServeMux())

	for _, s := range models.AllOrderStatuses {
		assert.NotEmpty(t, adapter.MapOrderStatus(s))
	}
	for _, s := range models.AllSalesOrderStatuses {
		assert.NotEmpty(t, adapter.MapSalesOrderStatus(s))
	}

	assert.Equal(t, "INCOMPLETE", adapter.MapOrderStatus(models.OrderStatus("bogus")))
	assert.Equal(t, "DRAFT", adapter.MapSalesOrderStatus(models.SalesOrderStatus("bogus")))
	assert.Equal(t, models.OrderPending, adapter.MapProviderOrderStatus("UNKNOWN"))
	assert.Equal(t, models.SalesOrderPending, adapter.MapProviderSalesOrderStatus("UNKNOWN"))
}

func TestPurchaseStatusRoundTrip(t *testing.T) {
	adapter, _, _ := newTestAdapter(t, http.NewServeMux())

	for _, s := range models.AllOrderStatuses {
		assert.Equal(t, s, adapter.MapProviderOrderStatus(adapter.MapOrderStatus(s)))
	}
	assert.Equal(t, models.OrderCompleted, adapter.MapProviderOrderStatus("CLOSED FOR RECEIVING"))
}

func TestTransformOutboundAllEntityTypes(t *testing.T) {
	adapter, _, _ := newTestAdapter(t, http.NewServeMux())

	for _, entityType := range models.AllEntityTypes {
		payload, err := adapter.TransformOutbound(entityType, models.EntityRecord{Key: "K-1", Status: "pending"})
		require.NoError(t, err, "entity type %s", entityType)
		assert.NotEmpty(t, payload, "entity type %s", entityType)
	}
}
