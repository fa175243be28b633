// api/handlers/access_handlers.go
package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"logisticsassist/api/middleware"
	"logisticsassist/api/models"
	"logisticsassist/api/store"
	"logisticsassist/api/telemetry"
	"logisticsassist/api/utils"
)

// AccessTrigger starts the visitor-access pipeline for a session.
type AccessTrigger interface {
	Trigger(sessionID string, req telemetry.IdentityRequest) bool
}

type AccessHandlers struct {
	Pipeline AccessTrigger
	Store    store.AccessEventStore
}

func NewAccessHandlers(p AccessTrigger, s store.AccessEventStore) *AccessHandlers {
	return &AccessHandlers{Pipeline: p, Store: s}
}

var noReport models.AccessBeaconRequest

// triggerAccess hands the request identity to the pipeline. It never blocks
// and never affects the response.
func triggerAccess(p AccessTrigger, c *gin.Context, reported models.AccessBeaconRequest) {
	p.Trigger(middleware.SessionID(c), telemetry.IdentityRequest{
		RemoteIP:   c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
		ReportedIP: reported.IP,
		ReportedUA: reported.UserAgent,
	})
}

// Beacon accepts identity values echoed back by the client. A missing or
// malformed body is treated as "nothing reported".
func (h *AccessHandlers) Beacon(c *gin.Context) {
	var req models.AccessBeaconRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			req = models.AccessBeaconRequest{}
		}
	}
	triggerAccess(h.Pipeline, c, req)
	c.Status(http.StatusAccepted)
}

func (h *AccessHandlers) ListAccessEvents(c *gin.Context) {
	limit, ok := parseLimit(c, store.DefaultListLimit)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	events, err := h.Store.ListAccessEvents(ctx, limit)
	if err != nil {
		log.Printf("Error listing access events: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve access events"})
		return
	}
	if events == nil {
		events = []models.AccessEvent{}
	}

	c.JSON(http.StatusOK, events)
}

func (h *AccessHandlers) GetTopValues(c *gin.Context) {
	field := c.DefaultQuery("field", "country")
	if !utils.IsValidGroupField(field) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'field' parameter. Use country, city or browser."})
		return
	}

	limit, ok := parseLimit(c, 10)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	results, err := h.Store.TopAccessValues(ctx, field, uint64(limit))
	if err != nil {
		if errors.Is(err, store.ErrInvalidField) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Printf("Error getting top %s values: %v", field, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve access statistics"})
		return
	}
	if results == nil {
		results = []models.CountResult{}
	}

	c.JSON(http.StatusOK, gin.H{"field": field, "results": results})
}

const maxListLimit = 1000

// parseLimit reads ?limit=, writing a 400 and returning false when it is not
// a positive integer.
func parseLimit(c *gin.Context, def int) (int, bool) {
	limitParam := c.Query("limit")
	if limitParam == "" {
		return def, true
	}
	parsed, err := strconv.Atoi(limitParam)
	if err != nil || parsed <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'limit' parameter. Must be a positive integer."})
		return 0, false
	}
	return min(parsed, maxListLimit), true
}
