// api/store/access_store.go
package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"logisticsassist/api/database"
	"logisticsassist/api/models"
	"logisticsassist/api/utils"
)

// AccessStore keeps access events in ClickHouse.
type AccessStore struct {
	DB  *database.ClickHouseClient
	loc *time.Location
}

func NewAccessStore(chClient *database.ClickHouseClient, loc *time.Location) *AccessStore {
	return &AccessStore{
		DB:  chClient,
		loc: loc,
	}
}

func (s *AccessStore) InsertAccessEvent(ctx context.Context, ev *models.AccessEvent) error {
	id := uuid.New()

	batch, err := s.DB.Conn.PrepareBatch(ctx, `
		INSERT INTO access_events (
			event_id, session_id, timestamp, ip, city, country, user_agent, browser
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}

	if err := batch.Append(
		id,
		ev.SessionID,
		ev.Timestamp,
		ev.IP,
		ev.City,
		ev.Country,
		ev.UserAgent,
		ev.Browser,
	); err != nil {
		return fmt.Errorf("failed to append access event: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	ev.ID = id.String()
	log.Printf("Inserted access event %s for session %s.", ev.ID, ev.SessionID)
	return nil
}

func (s *AccessStore) ListAccessEvents(ctx context.Context, limit int) ([]models.AccessEvent, error) {
	rows, err := s.DB.Conn.Query(ctx, `
		SELECT toString(event_id), session_id, timestamp, ip, city, country, user_agent, browser
		FROM access_events
		ORDER BY timestamp DESC
		LIMIT ?
	`, uint64(normalizeLimit(limit)))
	if err != nil {
		return nil, fmt.Errorf("failed to query access events: %w", err)
	}
	defer rows.Close()

	var results []models.AccessEvent
	for rows.Next() {
		var (
			ev        models.AccessEvent
			userAgent *string
			browser   *string
		)
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.Timestamp, &ev.IP, &ev.City, &ev.Country, &userAgent, &browser); err != nil {
			log.Printf("Error scanning row for access events: %v", err)
			continue
		}
		ev.Timestamp = ev.Timestamp.In(s.loc)
		ev.UserAgent = userAgent
		ev.Browser = browser
		results = append(results, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows for access events: %w", err)
	}

	return results, nil
}

var clickHouseGroupExpr = map[string]string{
	"country": "country",
	"city":    "city",
	"browser": "ifNull(browser, 'Unknown')",
}

func (s *AccessStore) TopAccessValues(ctx context.Context, field string, limit uint64) ([]models.CountResult, error) {
	if !utils.IsValidGroupField(field) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidField, field)
	}
	if limit == 0 {
		limit = 10
	}

	query := fmt.Sprintf(`
		SELECT %s AS value, count() AS visits
		FROM access_events
		GROUP BY value
		ORDER BY visits DESC, value ASC
		LIMIT ?
	`, clickHouseGroupExpr[field])

	rows, err := s.DB.Conn.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top %s values: %w", field, err)
	}
	defer rows.Close()

	var results []models.CountResult
	for rows.Next() {
		var value string
		var count uint64
		if err := rows.Scan(&value, &count); err != nil {
			log.Printf("Error scanning row for top %s values: %v", field, err)
			continue
		}
		results = append(results, models.CountResult{Value: value, Count: count})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows for top %s values: %w", field, err)
	}

	return results, nil
}
