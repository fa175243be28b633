package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"logisticsassist/api/models"
	"logisticsassist/api/utils"
)

// Memory is an in-memory implementation of both stores, for tests and local
// experiments. Records are copied on the way in and out.
type Memory struct {
	mu           sync.Mutex
	events       []models.AccessEvent
	interactions []models.InteractionRecord
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) InsertAccessEvent(_ context.Context, ev *models.AccessEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.ID = strconv.Itoa(len(m.events) + 1)
	m.events = append(m.events, copyEvent(*ev))
	return nil
}

func (m *Memory) ListAccessEvents(_ context.Context, limit int) ([]models.AccessEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit = normalizeLimit(limit)
	out := make([]models.AccessEvent, 0, min(limit, len(m.events)))
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, copyEvent(m.events[i]))
	}
	return out, nil
}

func (m *Memory) TopAccessValues(_ context.Context, field string, limit uint64) ([]models.CountResult, error) {
	if !utils.IsValidGroupField(field) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidField, field)
	}
	if limit == 0 {
		limit = 10
	}

	m.mu.Lock()
	counts := make(map[string]uint64)
	for _, ev := range m.events {
		counts[groupValue(ev, field)]++
	}
	m.mu.Unlock()

	out := make([]models.CountResult, 0, len(counts))
	for v, c := range counts {
		out = append(out, models.CountResult{Value: v, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	if uint64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) InsertInteraction(_ context.Context, rec *models.InteractionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.ID = int64(len(m.interactions) + 1)
	m.interactions = append(m.interactions, copyInteraction(*rec))
	return nil
}

func (m *Memory) ListInteractions(_ context.Context, limit int) ([]models.InteractionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit = normalizeLimit(limit)
	out := make([]models.InteractionRecord, 0, min(limit, len(m.interactions)))
	for i := len(m.interactions) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, copyInteraction(m.interactions[i]))
	}
	return out, nil
}

func groupValue(ev models.AccessEvent, field string) string {
	switch field {
	case "city":
		return ev.City
	case "browser":
		if ev.Browser == nil {
			return "Unknown"
		}
		return *ev.Browser
	default:
		return ev.Country
	}
}

func copyEvent(ev models.AccessEvent) models.AccessEvent {
	if ev.UserAgent != nil {
		ua := *ev.UserAgent
		ev.UserAgent = &ua
	}
	if ev.Browser != nil {
		b := *ev.Browser
		ev.Browser = &b
	}
	return ev
}

func copyInteraction(rec models.InteractionRecord) models.InteractionRecord {
	rec.Steps = append([]string(nil), rec.Steps...)
	return rec
}
