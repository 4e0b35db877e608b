package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"erp-connector-service/internal/gateway"
	"erp-connector-service/internal/models"
	"erp-connector-service/internal/providers"
)

// GatewayHandler exposes the sync, inventory and status endpoints for
// configured ERP providers
type GatewayHandler struct {
	registry *gateway.Registry
}

// NewGatewayHandler creates a new gateway handler
func NewGatewayHandler(registry *gateway.Registry) *GatewayHandler {
	return &GatewayHandler{registry: registry}
}

func (h *GatewayHandler) resolve(c *gin.Context) *gateway.Gateway {
	provider := models.ProviderType(strings.ToUpper(c.Param("provider")))
	if !models.IsValidProviderType(provider) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown provider"})
		return nil
	}
	gw := h.registry.Get(provider)
	if gw == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "provider not configured"})
		return nil
	}
	return gw
}

// SyncRequest is the body of a batch sync call
type SyncRequest struct {
	EntityType models.EntityType     `json:"entityType" binding:"required"`
	Records    []models.EntityRecord `json:"records" binding:"required"`
}

// Sync reconciles a batch of WMS records against the provider
func (h *GatewayHandler) Sync(c *gin.Context) {
	gw := h.resolve(c)
	if gw == nil {
		return
	}

	var req SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := gw.SyncData(c.Request.Context(), req.EntityType, req.Records)
	if err != nil {
		writeGatewayError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// TestConnection checks provider reachability
func (h *GatewayHandler) TestConnection(c *gin.Context) {
	gw := h.resolve(c)
	if gw == nil {
		return
	}

	ok := gw.TestConnection(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"reachable": ok}})
}

// Status reports the gateway's current state
func (h *GatewayHandler) Status(c *gin.Context) {
	gw := h.resolve(c)
	if gw == nil {
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gw.GetStatus(c.Request.Context())})
}

// GetInventory reads provider-side on-hand levels for the skus query
// parameter (comma separated)
func (h *GatewayHandler) GetInventory(c *gin.Context) {
	gw := h.resolve(c)
	if gw == nil {
		return
	}

	raw := c.Query("skus")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "skus query parameter is required"})
		return
	}
	skus := strings.Split(raw, ",")
	for i := range skus {
		skus[i] = strings.TrimSpace(skus[i])
	}

	levels, err := gw.GetInventoryLevels(c.Request.Context(), skus)
	if err != nil {
		writeGatewayError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": levels})
}

// InventoryUpdateRequest is the body of an inventory push call
type InventoryUpdateRequest struct {
	Updates []providers.InventoryUpdate `json:"updates" binding:"required"`
}

// UpdateInventory pushes WMS quantities to the provider
func (h *GatewayHandler) UpdateInventory(c *gin.Context) {
	gw := h.resolve(c)
	if gw == nil {
		return
	}

	var req InventoryUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := gw.UpdateInventoryLevels(c.Request.Context(), c.GetHeader("Idempotency-Key"), req.Updates)
	if err != nil {
		writeGatewayError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// CreatePurchaseOrder reconciles one purchase order record
func (h *GatewayHandler) CreatePurchaseOrder(c *gin.Context) {
	gw := h.resolve(c)
	if gw == nil {
		return
	}

	var record models.EntityRecord
	if err := c.ShouldBindJSON(&record); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if record.Key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key is required"})
		return
	}

	result, err := gw.CreatePurchaseOrder(c.Request.Context(), c.GetHeader("Idempotency-Key"), record)
	if err != nil {
		writeGatewayError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": result})
}

// ListProviders lists configured providers
func (h *GatewayHandler) ListProviders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.registry.Providers()})
}

// writeGatewayError maps the connector's error taxonomy to HTTP statuses
func writeGatewayError(c *gin.Context, err error) {
	var authErr *providers.AuthenticationError
	var rejErr *providers.RejectionError
	var unsupportedErr *providers.UnsupportedEntityError

	switch {
	case errors.As(err, &authErr):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.As(err, &unsupportedErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.As(err, &rejErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case errors.Is(err, gateway.ErrCircuitOpen):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
