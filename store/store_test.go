package store_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"logisticsassist/api/database"
	"logisticsassist/api/models"
	"logisticsassist/api/store"
)

type bothStores interface {
	store.AccessEventStore
	store.InteractionStore
}

func newSQLiteStore(t *testing.T) bothStores {
	t.Helper()
	ctx := context.Background()
	db, err := database.OpenSQLiteMemory(ctx, strings.ReplaceAll(t.Name(), "/", "_"))
	if err != nil {
		t.Fatalf("OpenSQLiteMemory: %v", err)
	}
	writer := database.NewWorker(db)
	t.Cleanup(func() {
		writer.Close()
		db.Close()
	})
	return store.NewSQLiteStore(db, writer, time.UTC)
}

func forEachStore(t *testing.T, fn func(t *testing.T, s bothStores)) {
	t.Run("memory", func(t *testing.T) { fn(t, store.NewMemory()) })
	t.Run("sqlite", func(t *testing.T) { fn(t, newSQLiteStore(t)) })
}

func ptr(s string) *string { return &s }

func event(session string, at time.Time, country, city string, browser *string) *models.AccessEvent {
	return &models.AccessEvent{
		SessionID: session,
		Timestamp: at,
		IP:        "203.0.113.7",
		City:      city,
		Country:   country,
		Browser:   browser,
	}
}

func TestAccessEvents_RoundTrip(t *testing.T) {
	forEachStore(t, func(t *testing.T, s bothStores) {
		ctx := context.Background()
		base := time.Date(2024, 5, 1, 10, 0, 0, 123_000_000, time.UTC)

		first := event("s1", base, "US", "Springfield", ptr("Edge"))
		first.UserAgent = ptr("Mozilla/5.0 Edg/120")
		second := event("s2", base.Add(time.Minute), "Unknown", "Unknown", nil)

		for _, ev := range []*models.AccessEvent{first, second} {
			if err := s.InsertAccessEvent(ctx, ev); err != nil {
				t.Fatalf("insert: %v", err)
			}
			if ev.ID == "" {
				t.Fatal("insert did not assign an id")
			}
		}

		got, err := s.ListAccessEvents(ctx, 10)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("len = %d, want 2", len(got))
		}
		if got[0].SessionID != "s2" || got[1].SessionID != "s1" {
			t.Errorf("order = %s, %s; want newest first", got[0].SessionID, got[1].SessionID)
		}
		if !got[1].Timestamp.Equal(base) {
			t.Errorf("timestamp = %s, want %s", got[1].Timestamp, base)
		}
		if got[1].Browser == nil || *got[1].Browser != "Edge" {
			t.Errorf("browser = %v", got[1].Browser)
		}
		if got[1].UserAgent == nil || *got[1].UserAgent != "Mozilla/5.0 Edg/120" {
			t.Errorf("user agent = %v", got[1].UserAgent)
		}
		if got[0].Browser != nil || got[0].UserAgent != nil {
			t.Errorf("absent fields came back as %v / %v", got[0].Browser, got[0].UserAgent)
		}

		limited, err := s.ListAccessEvents(ctx, 1)
		if err != nil {
			t.Fatalf("list limited: %v", err)
		}
		if len(limited) != 1 || limited[0].SessionID != "s2" {
			t.Errorf("limited = %+v", limited)
		}
	})
}

func TestAccessEvents_TopValues(t *testing.T) {
	forEachStore(t, func(t *testing.T, s bothStores) {
		ctx := context.Background()
		at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
		for i, ev := range []*models.AccessEvent{
			event("a", at, "US", "Springfield", ptr("Chrome")),
			event("b", at, "US", "Shelbyville", ptr("Chrome")),
			event("c", at, "Colombia", "Bogota", ptr("Firefox")),
			event("d", at, "Colombia", "Bogota", nil),
			event("e", at, "US", "Springfield", nil),
		} {
			ev.Timestamp = at.Add(time.Duration(i) * time.Second)
			if err := s.InsertAccessEvent(ctx, ev); err != nil {
				t.Fatalf("insert: %v", err)
			}
		}

		countries, err := s.TopAccessValues(ctx, "country", 10)
		if err != nil {
			t.Fatalf("top country: %v", err)
		}
		want := []models.CountResult{{Value: "US", Count: 3}, {Value: "Colombia", Count: 2}}
		if !equalCounts(countries, want) {
			t.Errorf("countries = %+v, want %+v", countries, want)
		}

		browsers, err := s.TopAccessValues(ctx, "browser", 10)
		if err != nil {
			t.Fatalf("top browser: %v", err)
		}
		want = []models.CountResult{{Value: "Chrome", Count: 2}, {Value: "Unknown", Count: 2}, {Value: "Firefox", Count: 1}}
		if !equalCounts(browsers, want) {
			t.Errorf("browsers = %+v, want %+v", browsers, want)
		}

		cities, err := s.TopAccessValues(ctx, "city", 1)
		if err != nil {
			t.Fatalf("top city: %v", err)
		}
		want = []models.CountResult{{Value: "Bogota", Count: 2}}
		if !equalCounts(cities, want) {
			t.Errorf("cities = %+v, want %+v", cities, want)
		}

		if _, err := s.TopAccessValues(ctx, "ip", 10); !errors.Is(err, store.ErrInvalidField) {
			t.Errorf("invalid field err = %v", err)
		}
	})
}

func equalCounts(got, want []models.CountResult) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestInteractions_RoundTrip(t *testing.T) {
	forEachStore(t, func(t *testing.T, s bothStores) {
		ctx := context.Background()
		at := time.Date(2024, 5, 1, 15, 30, 0, 0, time.UTC)

		rec := &models.InteractionRecord{
			Timestamp:    at,
			Category:     "Lost order",
			Steps:        []string{"Validate address", "Check tracking"},
			MocaTemplate: "MOCA - Lost order",
			Notes:        "customer called twice",
		}
		if err := s.InsertInteraction(ctx, rec); err != nil {
			t.Fatalf("insert: %v", err)
		}
		if rec.ID == 0 {
			t.Fatal("insert did not assign an id")
		}
		empty := &models.InteractionRecord{Timestamp: at.Add(time.Hour), Category: "Partial delivery", MocaTemplate: "MOCA - Partial"}
		if err := s.InsertInteraction(ctx, empty); err != nil {
			t.Fatalf("insert empty steps: %v", err)
		}

		// Mutating the caller's slice must not reach stored data.
		rec.Steps[0] = "changed"

		got, err := s.ListInteractions(ctx, 0)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("len = %d, want 2", len(got))
		}
		if got[0].Category != "Partial delivery" {
			t.Errorf("first = %q, want newest", got[0].Category)
		}
		if len(got[0].Steps) != 0 {
			t.Errorf("empty steps came back as %v", got[0].Steps)
		}
		old := got[1]
		if old.Steps[0] != "Validate address" || len(old.Steps) != 2 {
			t.Errorf("steps = %v", old.Steps)
		}
		if old.Notes != "customer called twice" || old.MocaTemplate != "MOCA - Lost order" {
			t.Errorf("record = %+v", old)
		}
		if !old.Timestamp.Equal(at) {
			t.Errorf("timestamp = %s", old.Timestamp)
		}
	})
}

func TestMemory_ListReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	if err := m.InsertAccessEvent(ctx, event("s", time.Now(), "US", "Springfield", ptr("Chrome"))); err != nil {
		t.Fatal(err)
	}

	first, _ := m.ListAccessEvents(ctx, 10)
	*first[0].Browser = "tampered"
	first[0].City = "tampered"

	second, _ := m.ListAccessEvents(ctx, 10)
	if *second[0].Browser != "Chrome" || second[0].City != "Springfield" {
		t.Errorf("stored event changed through a returned copy: %+v", second[0])
	}
}
