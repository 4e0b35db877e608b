package dynamics

import (
	"context"
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
	// Azure AD host for the OAuth2 client-credentials grant
	defaultAuthBase = "https://login.microsoftonline.com"

	odataVersion = "4.0"
	dataPath     = "/data"
)

// resource describes the OData data entity backing one WMS entity type
type resource struct {
	path     string // OData entity set
	keyField string // field holding the natural key
}

// entityResources maps every supported WMS entity type to its Dynamics
// 365 data entity
var entityResources = map[models.EntityType]resource{
	models.EntityProduct:       {path: "Products", keyField: "ProductNumber"},
	models.EntityCustomer:      {path: "CustomersV3", keyField: "CustomerAccount"},
	models.EntitySupplier:      {path: "VendorsV2", keyField: "VendorAccountNumber"},
	models.EntityPurchaseOrder: {path: "PurchaseOrderHeadersV2", keyField: "PurchaseOrderNumber"},
	models.EntitySalesOrder:    {path: "SalesOrderHeadersV2", keyField: "SalesOrderNumber"},
	models.EntityReceipt:       {path: "ProductReceiptHeaders", keyField: "ProductReceiptNumber"},
	models.EntityShipment:      {path: "SalesShipmentHeaders", keyField: "ShipmentId"},
	models.EntityInvoice:       {path: "VendorInvoiceHeaders", keyField: "InvoiceNumber"},
	models.EntityPayment:       {path: "CustomerPaymentEntries", keyField: "PaymentReference"},
	models.EntityInventory:     {path: "InventoryOnhandItems", keyField: "ItemNumber"},
}

// Adapter implements providers.Adapter for Microsoft Dynamics 365
type Adapter struct {
	creds    *credentials.Store
	tc       *transport.Client
	recorder events.Recorder
	keyCache providers.KeyCache
	limiter  *rate.Limiter
	retrier  *transport.Retrier
	log      *logrus.Entry
	authBase string
}

// NewAdapter creates a Dynamics 365 adapter
func NewAdapter(creds *credentials.Store, tc *transport.Client, recorder events.Recorder) *Adapter {
	return &Adapter{
		creds:    creds,
		tc:       tc,
		recorder: recorder,
		limiter:  rate.NewLimiter(rate.Limit(10), 1), // 10 requests per second
		retrier:  transport.NewRetrier(transport.DefaultRetryConfig()),
		log:      logrus.WithField("provider", models.ProviderDynamics),
		authBase: defaultAuthBase,
	}
}

// SetKeyCache wires the local mapping cache consulted before provider
// natural-key lookups
func (a *Adapter) SetKeyCache(cache providers.KeyCache) {
	a.keyCache = cache
}

// Type returns the provider type
func (a *Adapter) Type() models.ProviderType {
	return models.ProviderDynamics
}

// Supports reports whether the entity type is implemented
func (a *Adapter) Supports(entityType models.EntityType) bool {
	_, ok := entityResources[entityType]
	return ok
}

// Authenticate performs the Azure AD client-credentials grant and caches
// the resulting token. Returns false on any failure.
func (a *Adapter) Authenticate(ctx context.Context) bool {
	cfg := a.creds.Config()
	tokenURL := fmt.Sprintf("%s/%s/oauth2/token", a.authBase, cfg.TenantID)

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", cfg.ClientID)
	form.Set("client_secret", cfg.ClientSecret)
	form.Set("resource", cfg.Resource)

	resp, err := a.tc.Execute(ctx, http.MethodPost, tokenURL, form, nil)
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

	// Azure AD v1 reports expires_in as a string of seconds
	expiresIn := numericField(body, "expires_in", 3600)
	token := credentials.AuthToken{
		Value:     accessToken,
		ExpiresAt: time.Now().Add(time.Duration(expiresIn) * time.Second),
	}
	a.creds.SetToken(token)

	a.recorder.Record(ctx, models.IntegrationEvent{
		Provider: models.ProviderDynamics,
		Kind:     models.EventAuthenticationSuccess,
		Payload:  models.JSONB{"expiresAt": token.ExpiresAt.Format(time.RFC3339)},
	})
	return true
}

// TestConnection issues a cheap metadata read against the OData service
// root
func (a *Adapter) TestConnection(ctx context.Context) bool {
	resp, err := a.doRequest(ctx, http.MethodGet, "Companies", url.Values{"$top": []string{"1"}}, nil)
	ok := err == nil && resp != nil && resp.Success
	a.recorder.Record(ctx, models.IntegrationEvent{
		Provider: models.ProviderDynamics,
		Kind:     models.EventConnectionTested,
		Payload:  models.JSONB{"success": ok},
	})
	return ok
}

// Reconcile looks the record up by natural key and updates or creates it
func (a *Adapter) Reconcile(ctx context.Context, entityType models.EntityType, record models.EntityRecord) (*providers.ReconcileResult, error) {
	res, ok := entityResources[entityType]
	if !ok {
		return nil, &providers.UnsupportedEntityError{Provider: models.ProviderDynamics, EntityType: entityType}
	}

	payload, err := a.TransformOutbound(entityType, record)
	if err != nil {
		return nil, err
	}

	// Local mapping cache first: a hit skips the provider lookup
	if a.keyCache != nil {
		mapping, err := a.keyCache.GetByNaturalKey(ctx, models.ProviderDynamics, entityType, record.Key)
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

// lookupByNaturalKey queries the entity set by the natural key field
func (a *Adapter) lookupByNaturalKey(ctx context.Context, res resource, key string) (string, bool, error) {
	query := url.Values{}
	query.Set("$filter", fmt.Sprintf("%s eq '%s'", res.keyField, escapeODataValue(key)))
	query.Set("$top", "1")

	resp, err := a.doRequest(ctx, http.MethodGet, res.path, query, nil)
	if err != nil {
		return "", false, err
	}
	if !resp.Success {
		return "", false, a.rejection(resp)
	}

	items := odataItems(resp)
	if len(items) == 0 {
		return "", false, nil
	}
	providerKey := objString(items[0], res.keyField)
	if providerKey == "" {
		providerKey = key
	}
	return providerKey, true, nil
}

// updateEntity patches the entity addressed by its provider key
func (a *Adapter) updateEntity(ctx context.Context, res resource, providerKey string, payload map[string]interface{}) error {
	path := fmt.Sprintf("%s('%s')", res.path, escapeODataValue(providerKey))
	resp, err := a.doRequest(ctx, http.MethodPatch, path, nil, payload)
	if err != nil {
		return err
	}
	if !resp.Success {
		return a.rejection(resp)
	}
	return nil
}

// createEntity posts a new entity and returns the key the provider minted
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

// GetInventoryLevels reads on-hand quantities for the given SKUs
func (a *Adapter) GetInventoryLevels(ctx context.Context, skus []string) (map[string]*providers.InventoryLevel, error) {
	if len(skus) == 0 {
		return map[string]*providers.InventoryLevel{}, nil
	}

	clauses := make([]string, 0, len(skus))
	for _, sku := range skus {
		clauses = append(clauses, fmt.Sprintf("ItemNumber eq '%s'", escapeODataValue(sku)))
	}
	query := url.Values{}
	query.Set("$filter", strings.Join(clauses, " or "))

	resp, err := a.doRequest(ctx, http.MethodGet, "InventoryOnhandItems", query, nil)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, a.rejection(resp)
	}

	result := make(map[string]*providers.InventoryLevel)
	for _, item := range odataItems(resp) {
		sku := objString(item, "ItemNumber")
		if sku == "" {
			continue
		}
		result[sku] = &providers.InventoryLevel{
			SKU:       sku,
			Quantity:  objFloat(item, "AvailableOnHandQuantity"),
			Warehouse: objString(item, "InventorySiteId"),
			UpdatedAt: time.Now(),
		}
	}
	return result, nil
}

// UpdateInventoryLevel posts an on-hand adjustment for one SKU
func (a *Adapter) UpdateInventoryLevel(ctx context.Context, update providers.InventoryUpdate) error {
	payload := map[string]interface{}{
		"ItemNumber":      update.SKU,
		"AdjustedOnHand":  update.Quantity,
		"InventorySiteId": defaultString(update.Warehouse, "WH-MAIN"),
		"JournalNameId":   "IAdj",
	}

	resp, err := a.doRequest(ctx, http.MethodPost, "InventoryAdjustmentEntries", nil, payload)
	if err != nil {
		return err
	}
	if !resp.Success {
		return a.rejection(resp)
	}
	return nil
}

// doRequest performs one authenticated OData request
func (a *Adapter) doRequest(ctx context.Context, method, path string, query url.Values, body interface{}) (*transport.Response, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, &transport.NetworkError{Op: method, URL: path, Err: err}
	}

	token, err := a.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	cfg := a.creds.Config()
	fullURL := strings.TrimRight(cfg.Endpoint, "/") + dataPath + "/" + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	headers := map[string]string{
		"Authorization": "Bearer " + token,
		"OData-Version": odataVersion,
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
		// Token was revoked or expired server-side; drop it so the next
		// caller re-authenticates.
		a.creds.ClearToken()
	}
	return resp, nil
}

// ensureToken returns a valid access token, re-authenticating when the
// cached one is missing or stale
func (a *Adapter) ensureToken(ctx context.Context) (string, error) {
	if token, ok := a.creds.Token(); ok {
		return token.Value, nil
	}
	if !a.Authenticate(ctx) {
		return "", &providers.AuthenticationError{Provider: models.ProviderDynamics, Reason: "client-credentials grant failed"}
	}
	token, ok := a.creds.Token()
	if !ok {
		return "", &providers.AuthenticationError{Provider: models.ProviderDynamics, Reason: "no token after authentication"}
	}
	return token.Value, nil
}

func (a *Adapter) rejection(resp *transport.Response) error {
	if resp.StatusCode == http.StatusUnauthorized {
		return &providers.AuthenticationError{Provider: models.ProviderDynamics, Reason: resp.Err}
	}
	return &providers.RejectionError{
		Provider:   models.ProviderDynamics,
		StatusCode: resp.StatusCode,
		Message:    resp.Err,
	}
}

func (a *Adapter) recordAuthFailure(ctx context.Context, reason string) {
	a.recorder.Record(ctx, models.IntegrationEvent{
		Provider: models.ProviderDynamics,
		Kind:     models.EventAuthenticationFailure,
		Payload:  models.JSONB{"reason": reason},
	})
}

// odataItems extracts the "value" collection from an OData response
func odataItems(resp *transport.Response) []map[string]interface{} {
	body, ok := resp.Data.(map[string]interface{})
	if !ok {
		return nil
	}
	raw, ok := body["value"].([]interface{})
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

// escapeODataValue doubles single quotes for OData string literals
func escapeODataValue(v string) string {
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

// numericField reads a JSON field that providers report either as a
// number or a numeric string
func numericField(obj map[string]interface{}, key string, fallback int) int {
	switch v := obj[key].(type) {
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
