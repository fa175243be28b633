package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"logisticsassist/api/catalog"
	"logisticsassist/api/models"
	"logisticsassist/api/store"
)

type InteractionHandlers struct {
	Store    store.InteractionStore
	Catalog  *catalog.Catalog
	Location *time.Location
	Now      func() time.Time
}

func NewInteractionHandlers(s store.InteractionStore, cat *catalog.Catalog, loc *time.Location) *InteractionHandlers {
	return &InteractionHandlers{Store: s, Catalog: cat, Location: loc, Now: time.Now}
}

// SaveInteraction stores a walkthrough of the chosen scenario. The checklist
// is copied from the catalog at save time.
func (h *InteractionHandlers) SaveInteraction(c *gin.Context) {
	var req models.SaveInteractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	scenario, err := h.Catalog.Get(req.Category)
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownScenario) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown scenario", "category": req.Category})
			return
		}
		log.Printf("Error looking up scenario %q: %v", req.Category, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load scenario"})
		return
	}

	rec := models.InteractionRecord{
		Timestamp:    h.Now().In(h.Location).Truncate(time.Millisecond),
		Category:     scenario.Name,
		Steps:        scenario.Steps,
		MocaTemplate: scenario.MocaTemplate,
		Notes:        req.Notes,
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	if err := h.Store.InsertInteraction(ctx, &rec); err != nil {
		log.Printf("Error saving interaction for %q: %v", rec.Category, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save interaction"})
		return
	}

	c.JSON(http.StatusCreated, rec)
}

func (h *InteractionHandlers) ListInteractions(c *gin.Context) {
	limit, ok := parseLimit(c, store.DefaultListLimit)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	records, err := h.Store.ListInteractions(ctx, limit)
	if err != nil {
		log.Printf("Error listing interactions: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve interactions"})
		return
	}
	if records == nil {
		records = []models.InteractionRecord{}
	}

	c.JSON(http.StatusOK, records)
}
