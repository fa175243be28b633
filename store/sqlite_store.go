package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"logisticsassist/api/database"
	"logisticsassist/api/models"
	"logisticsassist/api/utils"
)

// SQLiteStore keeps both collections in one SQLite file. Writes go through
// the serialized database.Worker.
type SQLiteStore struct {
	db     *sql.DB
	writer *database.Worker
	loc    *time.Location
}

func NewSQLiteStore(db *sql.DB, writer *database.Worker, loc *time.Location) *SQLiteStore {
	return &SQLiteStore{db: db, writer: writer, loc: loc}
}

func (s *SQLiteStore) InsertAccessEvent(ctx context.Context, ev *models.AccessEvent) error {
	var userAgent, browser any
	if ev.UserAgent != nil {
		userAgent = *ev.UserAgent
	}
	if ev.Browser != nil {
		browser = *ev.Browser
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO access_events(
  session_id, timestamp, recorded_ms, ip, city, country, user_agent, browser
) VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`,
			ev.SessionID, ev.Timestamp.Format(time.RFC3339Nano), ev.Timestamp.UnixMilli(),
			ev.IP, ev.City, ev.Country, userAgent, browser,
		)
		if err != nil {
			return fmt.Errorf("InsertAccessEvent: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("InsertAccessEvent last id: %w", err)
		}
		ev.ID = fmt.Sprintf("%d", id)
		return nil
	})
}

func (s *SQLiteStore) ListAccessEvents(ctx context.Context, limit int) ([]models.AccessEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, session_id, timestamp, ip, city, country, user_agent, browser
FROM access_events
ORDER BY recorded_ms DESC, id DESC
LIMIT ?;
`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("ListAccessEvents: %w", err)
	}
	defer rows.Close()

	var out []models.AccessEvent
	for rows.Next() {
		var (
			id        int64
			ts        string
			ev        models.AccessEvent
			userAgent sql.NullString
			browser   sql.NullString
		)
		if err := rows.Scan(&id, &ev.SessionID, &ts, &ev.IP, &ev.City, &ev.Country, &userAgent, &browser); err != nil {
			return nil, fmt.Errorf("ListAccessEvents scan: %w", err)
		}
		ev.ID = fmt.Sprintf("%d", id)
		if ev.Timestamp, err = s.parseTime(ts); err != nil {
			return nil, err
		}
		if userAgent.Valid {
			ev.UserAgent = &userAgent.String
		}
		if browser.Valid {
			ev.Browser = &browser.String
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListAccessEvents rows: %w", err)
	}
	return out, nil
}

var sqliteGroupExpr = map[string]string{
	"country": "country",
	"city":    "city",
	"browser": "COALESCE(browser, 'Unknown')",
}

func (s *SQLiteStore) TopAccessValues(ctx context.Context, field string, limit uint64) ([]models.CountResult, error) {
	if !utils.IsValidGroupField(field) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidField, field)
	}
	if limit == 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
SELECT %s AS value, COUNT(*) AS visits
FROM access_events
GROUP BY value
ORDER BY visits DESC, value ASC
LIMIT ?;
`, sqliteGroupExpr[field]), int64(limit))
	if err != nil {
		return nil, fmt.Errorf("TopAccessValues: %w", err)
	}
	defer rows.Close()

	var out []models.CountResult
	for rows.Next() {
		var r models.CountResult
		if err := rows.Scan(&r.Value, &r.Count); err != nil {
			return nil, fmt.Errorf("TopAccessValues scan: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("TopAccessValues rows: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) InsertInteraction(ctx context.Context, rec *models.InteractionRecord) error {
	steps := rec.Steps
	if steps == nil {
		steps = []string{}
	}
	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("InsertInteraction encode steps: %w", err)
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO interactions(
  timestamp, recorded_ms, category, steps, moca_template, notes
) VALUES (?, ?, ?, ?, ?, ?);
`,
			rec.Timestamp.Format(time.RFC3339Nano), rec.Timestamp.UnixMilli(),
			rec.Category, string(stepsJSON), rec.MocaTemplate, rec.Notes,
		)
		if err != nil {
			return fmt.Errorf("InsertInteraction: %w", err)
		}
		rec.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("InsertInteraction last id: %w", err)
		}
		return nil
	})
}

func (s *SQLiteStore) ListInteractions(ctx context.Context, limit int) ([]models.InteractionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, timestamp, category, steps, moca_template, notes
FROM interactions
ORDER BY recorded_ms DESC, id DESC
LIMIT ?;
`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("ListInteractions: %w", err)
	}
	defer rows.Close()

	var out []models.InteractionRecord
	for rows.Next() {
		var (
			rec       models.InteractionRecord
			ts        string
			stepsJSON string
		)
		if err := rows.Scan(&rec.ID, &ts, &rec.Category, &stepsJSON, &rec.MocaTemplate, &rec.Notes); err != nil {
			return nil, fmt.Errorf("ListInteractions scan: %w", err)
		}
		if rec.Timestamp, err = s.parseTime(ts); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(stepsJSON), &rec.Steps); err != nil {
			return nil, fmt.Errorf("ListInteractions decode steps for %d: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListInteractions rows: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) parseTime(v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored timestamp %q: %w", v, err)
	}
	return t.In(s.loc), nil
}
