package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"

	"logisticsassist/api/models"
)

// InteractionPGStore keeps interaction records in PostgreSQL.
type InteractionPGStore struct {
	db  *sql.DB
	loc *time.Location
}

func NewInteractionPGStore(db *sql.DB, loc *time.Location) *InteractionPGStore {
	return &InteractionPGStore{db: db, loc: loc}
}

// InsertInteraction appends rec and fills in its ID.
func (s *InteractionPGStore) InsertInteraction(ctx context.Context, rec *models.InteractionRecord) error {
	query := `
		INSERT INTO interactions (timestamp, category, steps, moca_template, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id;
	`
	steps := rec.Steps
	if steps == nil {
		steps = []string{}
	}
	err := s.db.QueryRowContext(ctx, query,
		rec.Timestamp,
		rec.Category,
		pq.Array(steps),
		rec.MocaTemplate,
		rec.Notes,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("failed to insert interaction: %w", err)
	}

	log.Printf("Interaction saved in DB: ID=%d, Category=%s", rec.ID, rec.Category)
	return nil
}

func (s *InteractionPGStore) ListInteractions(ctx context.Context, limit int) ([]models.InteractionRecord, error) {
	query := `
		SELECT id, timestamp, category, steps, moca_template, notes
		FROM interactions
		ORDER BY timestamp DESC
		LIMIT $1;
	`
	rows, err := s.db.QueryContext(ctx, query, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer rows.Close()

	var results []models.InteractionRecord
	for rows.Next() {
		var rec models.InteractionRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.Timestamp,
			&rec.Category,
			pq.Array(&rec.Steps),
			&rec.MocaTemplate,
			&rec.Notes,
		); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		rec.Timestamp = rec.Timestamp.In(s.loc)
		results = append(results, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows for interactions: %w", err)
	}

	return results, nil
}
