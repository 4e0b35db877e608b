package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"erp-connector-service/internal/models"
	"erp-connector-service/internal/repository"
)

// ConnectionHandler exposes stored ERP connection profiles
type ConnectionHandler struct {
	repo *repository.ConnectionRepository
}

// NewConnectionHandler creates a new connection handler
func NewConnectionHandler(repo *repository.ConnectionRepository) *ConnectionHandler {
	return &ConnectionHandler{repo: repo}
}

// List returns all connection profiles
func (h *ConnectionHandler) List(c *gin.Context) {
	connections, err := h.repo.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": connections})
}

// Get returns a single connection profile
func (h *ConnectionHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	connection, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if connection == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "connection not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": connection})
}

// UpdateRequest holds the mutable connection profile fields
type UpdateRequest struct {
	IsEnabled *bool        `json:"isEnabled"`
	Config    models.JSONB `json:"config"`
}

// Update toggles or reconfigures a connection profile
func (h *ConnectionHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	connection, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if connection == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "connection not found"})
		return
	}

	if req.IsEnabled != nil {
		connection.IsEnabled = *req.IsEnabled
	}
	if req.Config != nil {
		connection.Config = req.Config
	}

	if err := h.repo.Update(c.Request.Context(), connection); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": connection})
}
