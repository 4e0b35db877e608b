package oracle

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"erp-connector-service/internal/credentials"
	"erp-connector-service/internal/events"
	"erp-connector-service/internal/models"
	"erp-connector-service/internal/providers"
	"erp-connector-service/internal/transport"
)

const (
	tokenPath = "/oauth2/v1/token"

	// Oracle Fusion REST API version pinned for all FSCM resources
	restVersion = "11.13.18.05"
	restBase    = "/fscmRestApi/resources/" + restVersion

	defaultScope = "urn:opc:resource:fa:instanceid=%s"
)

// resource describes the Fusion REST collection backing one WMS entity
// type
type resource struct {
	path     string
	keyField string
}

var entityResources = map[models.EntityType]resource{
	models.EntityProduct:       {path: "itemsV2", keyField: "ItemNumber"},
	models.EntityCustomer:      {path: "receivablesCustomerAccounts", keyField: "AccountNumber"},
	models.EntitySupplier:      {path: "suppliers", keyField: "SupplierNumber"},
	models.EntityPurchaseOrder: {path: "purchaseOrders", keyField: "OrderNumber"},
	models.EntitySalesOrder:    {path: "salesOrdersForOrderHub", keyField: "OrderNumber"},
	models.EntityReceipt:       {path: "receivingReceiptRequests", keyField: "ReceiptNumber"},
	models.EntityShipment:      {path: "shipments", keyField: "Shipment"},
	models.EntityInvoice:       {path: "invoices", keyField: "InvoiceNumber"},
	models.EntityPayment:       {path: "payablesPayments", keyField: "PaymentNumber"},
	models.EntityInventory:     {path: "inventoryOnhandBalances", keyField: "ItemNumber"},
}

// Adapter implements providers.Adapter for Oracle ERP Cloud (Fusion)
type Adapter struct {
	creds    *credentials.Store
	tc       *transport.Client
	recorder events.Recorder
	keyCache providers.KeyCache
	limiter  *rate.Limiter
	retrier  *transport.Retrier
	log      *logrus.Entry
}

// NewAdapter creates an Oracle ERP Cloud adapter
func NewAdapter(creds *credentials.Store, tc *transport.Client, recorder events.Recorder) *Adapter {
	return &Adapter{
		creds:    creds,
		tc:       tc,
		recorder: recorder,
		limiter:  rate.NewLimiter(rate.Limit(5), 1), // Fusion throttles harder than Dynamics
		retrier:  transport.NewRetrier(transport.DefaultRetryConfig()),
		log:      logrus.WithField("provider", models.ProviderOracle),
	}
}

// SetKeyCache wires the local mapping cache consulted before provider
// natural-key lookups
func (a *Adapter) SetKeyCache(cache providers.KeyCache) {
	a.keyCache = cache
}

// Type returns the provider type
func (a *Adapter) Type() models.ProviderType {
	return models.ProviderOracle
}

// Supports reports whether the entity type is implemented
func (a *Adapter) Supports(entityType models.EntityType) bool {
	_, ok := entityResources[entityType]
	return ok
}

// Authenticate performs the IDCS client-credentials grant and caches
// the resulting token. Returns false on any failure.
func (a *Adapter) Authenticate(ctx context.Context) bool {
	cfg := a.creds.Config()
	tokenURL := strings.TrimRight(cfg.Endpoint, "/") + tokenPath

	scope := cfg.Resource
	if scope == "" {
		scope = fmt.Sprintf(defaultScope, cfg.InstanceID)
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", scope)

	basic := base64.StdEncoding.EncodeToString([]byte(cfg.ClientID + ":" + cfg.ClientSecret))
	headers := map[string]string{"Authorization": "Basic " + basic}

	resp, err := a.tc.Execute(ctx, http.MethodPost, tokenURL, form, headers)
	if err != nil {
		a.log.WithError(err).Warn("token request failed")
		a.recordAuthFailure(ctx, err.Error())
		return false
	}
	if !resp.Success {
		a.recordAuthFailure(ctx, resp.Err)
		return false
	}

	body, ok := resp.Data.(map[string]interface{})
	if !ok {
		a.recordAuthFailure(ctx, "unexpected token response shape")
		return false
	}

	accessToken, _ := body["access_token"].(string)
	if accessToken == "" {
		a.recordAuthFailure(ctx, "token response missing access_token")
		return false
	}

	expiresIn := 3600
	if v, ok := body["expires_in"].(float64); ok && v > 0 {
		expiresIn = int(v)
	}
	token := credentials.AuthToken{
		Value:     accessToken,
		ExpiresAt: time.Now().Add(time.Duration(expiresIn) * time.Second),
	}
	a.creds.SetToken(token)

	a.recorder.Record(ctx, models.IntegrationEvent{
		Provider: models.ProviderOracle,
		Kind:     models.EventAuthenticationSuccess,
		Payload:  models.JSONB{"expiresAt": token.ExpiresAt.Format(time.RFC3339)},
	})
	return true
}

// TestConnection reads one item from the items collection
func (a *Adapter) TestConnection(ctx context.Context) bool {
	query := url.Values{}
	query.Set("limit", "1")
	query.Set("onlyData", "true")

	resp, err := a.doRequest(ctx, http.MethodGet, "itemsV2", query, nil)
	ok := err == nil && resp != nil && resp.Success
	a.recorder.Record(ctx, models.IntegrationEvent{
		Provider: models.ProviderOracle,
		Kind:     models.EventConnectionTested,
		Payload:  models.JSONB{"success": ok},
	})
	return ok
}

// Reconcile looks the record up by natural key and updates or creates it
func (a *Adapter) Reconcile(ctx context.Context, entityType models.EntityType, record models.EntityRecord) (*providers.ReconcileResult, error) {
	res, ok := entityResources[entityType]
	if !ok {
		return nil, &providers.UnsupportedEntityError{Provider: models.ProviderOracle, EntityType: entityType}
	}

	payload, err := a.TransformOutbound(entityType, record)
	if err != nil {
		return nil, err
	}

	if a.keyCache != nil {
		mapping, err := a.keyCache.GetByNaturalKey(ctx, models.ProviderOracle, entityType, record.Key)
		if err == nil && mapping != nil {
			if err := a.updateEntity(ctx, res, mapping.ProviderKey, payload); err != nil {
				return nil, err
			}
			return &providers.ReconcileResult{Action: providers.ActionUpdate, ProviderKey: mapping.ProviderKey}, nil
		}
	}

	providerKey, found, err := a.lookupByNaturalKey(ctx, res, record.Key)
	if err != nil {
		return nil, err
	}

	if found {
		if err := a.updateEntity(ctx, res, providerKey, payload); err != nil {
			return nil, err
		}
		return &providers.ReconcileResult{Action: providers.ActionUpdate, ProviderKey: providerKey}, nil
	}

	createdKey, err := a.createEntity(ctx, res, record.Key, payload)
	if err != nil {
		return nil, err
	}
	return &providers.ReconcileResult{Action: providers.ActionCreate, ProviderKey: createdKey}, nil
}

// lookupByNaturalKey queries the collection with a q= predicate on the
// natural key field
func (a *Adapter) lookupByNaturalKey(ctx context.Context, res resource, key string) (string, bool, error) {
	query := url.Values{}
	query.Set("q", fmt.Sprintf("%s='%s'", res.keyField, escapeQueryValue(key)))
	query.Set("limit", "1")
	query.Set("onlyData", "true")

	resp, err := a.doRequest(ctx, http.MethodGet, res.path, query, nil)
	if err != nil {
		return "", false, err
	}
	if !resp.Success {
		return "", false, a.rejection(resp)
	}

	items := collectionItems(resp)
	if len(items) == 0 {
		return "", false, nil
	}
	providerKey := objString(items[0], res.keyField)
	if providerKey == "" {
		providerKey = key
	}
	return providerKey, true, nil
}

// updateEntity patches one child of the collection
func (a *Adapter) updateEntity(ctx context.Context, res resource, providerKey string, payload map[string]interface{}) error {
	path := res.path + "/" + url.PathEscape(providerKey)
	resp, err := a.doRequest(ctx, http.MethodPatch, path, nil, payload)
	if err != nil {
		return err
	}
	if !resp.Success {
		return a.rejection(resp)
	}
	return nil
}

// createEntity posts a new child and returns the key the provider minted
func (a *Adapter) createEntity(ctx context.Context, res resource, fallbackKey string, payload map[string]interface{}) (string, error) {
	resp, err := a.doRequest(ctx, http.MethodPost, res.path, nil, payload)
	if err != nil {
		return "", err
	}
	if !resp.Success {
		return "", a.rejection(resp)
	}

	if body, ok := resp.Data.(map[string]interface{}); ok {
		if key := objString(body, res.keyField); key != "" {
			return key, nil
		}
	}
	return fallbackKey, nil
}

// GetInventoryLevels reads on-hand balances for the given SKUs
func (a *Adapter) GetInventoryLevels(ctx context.Context, skus []string) (map[string]*providers.InventoryLevel, error) {
	if len(skus) == 0 {
		return map[string]*providers.InventoryLevel{}, nil
	}

	clauses := make([]string, 0, len(skus))
	for _, sku := range skus {
		clauses = append(clauses, fmt.Sprintf("ItemNumber='%s'", escapeQueryValue(sku)))
	}
	query := url.Values{}
	query.Set("q", strings.Join(clauses, " or "))
	query.Set("onlyData", "true")

	resp, err := a.doRequest(ctx, http.MethodGet, "inventoryOnhandBalances", query, nil)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, a.rejection(resp)
	}

	result := make(map[string]*providers.InventoryLevel)
	for _, item := range collectionItems(resp) {
		sku := objString(item, "ItemNumber")
		if sku == "" {
			continue
		}
		result[sku] = &providers.InventoryLevel{
			SKU:       sku,
			Quantity:  objFloat(item, "PrimaryQuantity"),
			Warehouse: objString(item, "OrganizationCode"),
			UpdatedAt: time.Now(),
		}
	}
	return result, nil
}

// UpdateInventoryLevel posts a miscellaneous transaction adjusting one
// SKU's on-hand balance
func (a *Adapter) UpdateInventoryLevel(ctx context.Context, update providers.InventoryUpdate) error {
	warehouse := update.Warehouse
	if warehouse == "" {
		warehouse = "WH-MAIN"
	}
	payload := map[string]interface{}{
		"ItemNumber":          update.SKU,
		"TransactionQuantity": update.Quantity,
		"OrganizationCode":    warehouse,
		"TransactionTypeName": "Miscellaneous receipt",
	}

	resp, err := a.doRequest(ctx, http.MethodPost, "inventoryStagedTransactions", nil, payload)
	if err != nil {
		return err
	}
	if !resp.Success {
		return a.rejection(resp)
	}
	return nil
}

// doRequest performs one authenticated Fusion REST request
func (a *Adapter) doRequest(ctx context.Context, method, path string, query url.Values, body interface{}) (*transport.Response, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, &transport.NetworkError{Op: method, URL: path, Err: err}
	}

	token, err := a.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	cfg := a.creds.Config()
	fullURL := strings.TrimRight(cfg.Endpoint, "/") + restBase + "/" + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	headers := map[string]string{
		"Authorization": "Bearer " + token,
		"Accept":        "application/json",
	}

	var resp *transport.Response
	if method == http.MethodGet {
		// Reads are safe to retry on transient failures; writes go out once.
		var rr *transport.RetryResult
		resp, rr = a.retrier.Do(ctx, func(ctx context.Context) (*transport.Response, error) {
			return a.tc.Execute(ctx, method, fullURL, body, headers)
		})
		if resp == nil {
			return nil, rr.LastError
		}
	} else {
		resp, err = a.tc.Execute(ctx, method, fullURL, body, headers)
		if err != nil {
			return nil, err
		}
	}
	if resp.StatusCode == http.StatusUnauthorized {
		a.creds.ClearToken()
	}
	return resp, nil
}

func (a *Adapter) ensureToken(ctx context.Context) (string, error) {
	if token, ok := a.creds.Token(); ok {
		return token.Value, nil
	}
	if !a.Authenticate(ctx) {
		return "", &providers.AuthenticationError{Provider: models.ProviderOracle, Reason: "client-credentials grant failed"}
	}
	token, ok := a.creds.Token()
	if !ok {
		return "", &providers.AuthenticationError{Provider: models.ProviderOracle, Reason: "no token after authentication"}
	}
	return token.Value, nil
}

func (a *Adapter) rejection(resp *transport.Response) error {
	if resp.StatusCode == http.StatusUnauthorized {
		return &providers.AuthenticationError{Provider: models.ProviderOracle, Reason: resp.Err}
	}
	return &providers.RejectionError{
		Provider:   models.ProviderOracle,
		StatusCode: resp.StatusCode,
		Message:    resp.Err,
	}
}

func (a *Adapter) recordAuthFailure(ctx context.Context, reason string) {
	a.recorder.Record(ctx, models.IntegrationEvent{
		Provider: models.ProviderOracle,
		Kind:     models.EventAuthenticationFailure,
		Payload:  models.JSONB{"reason": reason},
	})
}

// collectionItems extracts the "items" array from a Fusion collection
// response
func collectionItems(resp *transport.Response) []map[string]interface{} {
	body, ok := resp.Data.(map[string]interface{})
	if !ok {
		return nil
	}
	raw, ok := body["items"].([]interface{})
	if !ok {
		return nil
	}
	items := make([]map[string]interface{}, 0, len(raw))
	for _, entry := range raw {
		if obj, ok := entry.(map[string]interface{}); ok {
			items = append(items, obj)
		}
	}
	return items
}

// escapeQueryValue doubles single quotes inside q= string literals
func escapeQueryValue(v string) string {
	return strings.ReplaceAll(v, "'", "''")
}

func objString(obj map[string]interface{}, key string) string {
	v, _ := obj[key].(string)
	return v
}

func objFloat(obj map[string]interface{}, key string) float64 {
	switch v := obj[key].(type) {
	case float64:
		return v
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return 0
}
