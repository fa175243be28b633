package store

import (
	"context"
	"errors"

	"logisticsassist/api/models"
)

// DefaultListLimit applies when a caller passes a non-positive limit.
const DefaultListLimit = 100

var ErrInvalidField = errors.New("invalid group field")

// AccessEventStore is the append-only log of visitor access events.
type AccessEventStore interface {
	InsertAccessEvent(ctx context.Context, ev *models.AccessEvent) error
	ListAccessEvents(ctx context.Context, limit int) ([]models.AccessEvent, error)
	TopAccessValues(ctx context.Context, field string, limit uint64) ([]models.CountResult, error)
}

// InteractionStore is the append-only log of saved scenario walkthroughs.
type InteractionStore interface {
	InsertInteraction(ctx context.Context, rec *models.InteractionRecord) error
	ListInteractions(ctx context.Context, limit int) ([]models.InteractionRecord, error)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
