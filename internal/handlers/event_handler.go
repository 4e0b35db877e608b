package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"erp-connector-service/internal/models"
	"erp-connector-service/internal/repository"
)

// EventHandler exposes the integration event log
type EventHandler struct {
	repo *repository.EventRepository
}

// NewEventHandler creates a new event handler
func NewEventHandler(repo *repository.EventRepository) *EventHandler {
	return &EventHandler{repo: repo}
}

// List returns integration events, newest first
func (h *EventHandler) List(c *gin.Context) {
	opts := repository.EventListOptions{
		Provider:   models.ProviderType(strings.ToUpper(c.Query("provider"))),
		Kind:       models.EventKind(c.Query("kind")),
		EntityType: models.EntityType(strings.ToUpper(c.Query("entityType"))),
	}

	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
			return
		}
		opts.Since = since
	}
	if raw := c.Query("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			opts.Limit = limit
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil {
			opts.Offset = offset
		}
	}

	events, total, err := h.repo.List(c.Request.Context(), opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  events,
		"total": total,
	})
}
