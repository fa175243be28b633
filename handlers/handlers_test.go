package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"logisticsassist/api/catalog"
	"logisticsassist/api/middleware"
	"logisticsassist/api/models"
	"logisticsassist/api/store"
	"logisticsassist/api/telemetry"
	"logisticsassist/api/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testAPIKey = "test-key"

type triggerCall struct {
	SessionID string
	Req       telemetry.IdentityRequest
}

type fakeTrigger struct {
	mu    sync.Mutex
	calls []triggerCall
}

func (f *fakeTrigger) Trigger(sessionID string, req telemetry.IdentityRequest) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, triggerCall{SessionID: sessionID, Req: req})
	return true
}

func (f *fakeTrigger) last(t *testing.T) triggerCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		t.Fatal("pipeline was not triggered")
	}
	return f.calls[len(f.calls)-1]
}

func (f *fakeTrigger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type testEnv struct {
	router  *gin.Engine
	mem     *store.Memory
	trigger *fakeTrigger
}

func newTestEnv(t *testing.T, operator models.Operator) *testEnv {
	t.Helper()
	cat, err := catalog.Load("")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	env := &testEnv{mem: store.NewMemory(), trigger: &fakeTrigger{}}
	tokens := utils.NewTokenIssuer("secret", time.Hour)

	r, err := NewRouter(RouterConfig{
		Access:       NewAccessHandlers(env.trigger, env.mem),
		Interactions: NewInteractionHandlers(env.mem, cat, time.UTC),
		Scenarios:    NewScenarioHandlers(cat, env.trigger, "https://api.ipify.org?format=json"),
		Auth:         NewAuthHandlers(operator, tokens, false),
		Tokens:       tokens,
		APIKey:       testAPIKey,
		SessionTTL:   time.Hour,
	})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	env.router = r
	return env
}

func (e *testEnv) do(method, path string, body any, setup ...func(*http.Request)) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, fn := range setup {
		fn(req)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func withAPIKey(r *http.Request) { r.Header.Set("X-API-KEY", testAPIKey) }

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.SessionCookie {
			return c
		}
	}
	return nil
}

func TestIndex_RendersAndTriggers(t *testing.T) {
	env := newTestEnv(t, models.Operator{})

	w := env.do(http.MethodGet, "/", nil, func(r *http.Request) {
		r.Header.Set("User-Agent", "Mozilla/5.0 Firefox/121.0")
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Lost order") {
		t.Error("page does not list scenarios")
	}

	cookie := sessionCookie(w)
	if cookie == nil {
		t.Fatal("no session cookie")
	}
	call := env.trigger.last(t)
	if call.SessionID != cookie.Value {
		t.Errorf("triggered session %q, cookie %q", call.SessionID, cookie.Value)
	}
	if call.Req.RemoteIP != "192.0.2.1" || call.Req.UserAgent != "Mozilla/5.0 Firefox/121.0" {
		t.Errorf("request = %+v", call.Req)
	}

	env.do(http.MethodGet, "/", nil, func(r *http.Request) { r.AddCookie(cookie) })
	if again := env.trigger.last(t); again.SessionID != cookie.Value {
		t.Errorf("second visit used session %q", again.SessionID)
	}
}

func TestBeacon(t *testing.T) {
	env := newTestEnv(t, models.Operator{})

	w := env.do(http.MethodPost, "/api/access", models.AccessBeaconRequest{IP: "203.0.113.7", UserAgent: "ua"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d", w.Code)
	}
	call := env.trigger.last(t)
	if call.Req.ReportedIP != "203.0.113.7" || call.Req.ReportedUA != "ua" {
		t.Errorf("request = %+v", call.Req)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/access", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("malformed body status = %d", w.Code)
	}
	if call := env.trigger.last(t); call.Req.ReportedIP != "" {
		t.Errorf("malformed body leaked values: %+v", call.Req)
	}
}

func TestScenarios(t *testing.T) {
	env := newTestEnv(t, models.Operator{})

	w := env.do(http.MethodGet, "/api/scenarios", nil)
	var list []models.Scenario
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 3 {
		t.Errorf("got %d scenarios", len(list))
	}

	w = env.do(http.MethodGet, "/api/scenarios/Partial%20delivery", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var s models.Scenario
	json.Unmarshal(w.Body.Bytes(), &s)
	if s.MocaTemplate != "Missing Items" {
		t.Errorf("scenario = %+v", s)
	}

	w = env.do(http.MethodGet, "/api/scenarios/Nope", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown scenario status = %d", w.Code)
	}
	var notFound struct {
		Available []string `json:"available"`
	}
	json.Unmarshal(w.Body.Bytes(), &notFound)
	if len(notFound.Available) != 3 || notFound.Available[0] != "Lost order" {
		t.Errorf("available = %v", notFound.Available)
	}
}

func TestIndex_PrivatePeerWaitsForBeacon(t *testing.T) {
	env := newTestEnv(t, models.Operator{})

	w := env.do(http.MethodGet, "/", nil, func(r *http.Request) {
		r.RemoteAddr = "10.0.0.5:41000"
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if env.trigger.count() != 0 {
		t.Fatalf("page from a private peer triggered the pipeline %d times", env.trigger.count())
	}
	body := w.Body.String()
	if !strings.Contains(body, "/api/access") || !strings.Contains(body, "api.ipify.org") {
		t.Error("page does not carry the access beacon")
	}

	cookie := sessionCookie(w)
	if cookie == nil {
		t.Fatal("no session cookie")
	}
	env.do(http.MethodPost, "/api/access", models.AccessBeaconRequest{IP: "203.0.113.50", UserAgent: "ua"}, func(r *http.Request) {
		r.RemoteAddr = "10.0.0.5:41000"
		r.AddCookie(cookie)
	})
	call := env.trigger.last(t)
	if call.SessionID != cookie.Value || call.Req.ReportedIP != "203.0.113.50" || call.Req.RemoteIP != "10.0.0.5" {
		t.Errorf("beacon call = %+v", call)
	}
}

func TestSaveInteraction(t *testing.T) {
	env := newTestEnv(t, models.Operator{})

	w := env.do(http.MethodPost, "/api/interactions", models.SaveInteractionRequest{Category: "Lost order", Notes: "called twice"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var rec models.InteractionRecord
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.ID == 0 || rec.MocaTemplate != "Lost Order" || len(rec.Steps) != 5 || rec.Notes != "called twice" {
		t.Errorf("record = %+v", rec)
	}

	stored, _ := env.mem.ListInteractions(context.Background(), 10)
	if len(stored) != 1 {
		t.Fatalf("stored %d interactions", len(stored))
	}

	for name, body := range map[string]any{
		"unknown category": models.SaveInteractionRequest{Category: "Damaged box"},
		"missing category": map[string]string{"notes": "x"},
	} {
		if w := env.do(http.MethodPost, "/api/interactions", body); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", name, w.Code)
		}
	}
}

func TestProtectedRoutes(t *testing.T) {
	env := newTestEnv(t, models.Operator{})

	for _, path := range []string{"/api/interactions", "/api/access-events", "/api/stats/top"} {
		if w := env.do(http.MethodGet, path, nil); w.Code != http.StatusUnauthorized {
			t.Errorf("%s without auth: status = %d", path, w.Code)
		}
	}

	w := env.do(http.MethodGet, "/api/access-events", nil, withAPIKey)
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("empty list: %d %s", w.Code, w.Body.String())
	}
}

func TestAccessEventsAndStats(t *testing.T) {
	env := newTestEnv(t, models.Operator{})
	ctx := context.Background()
	chrome := "Chrome"
	for _, country := range []string{"US", "US", "Colombia"} {
		env.mem.InsertAccessEvent(ctx, &models.AccessEvent{
			SessionID: country, Timestamp: time.Now(), IP: "203.0.113.7",
			City: "Unknown", Country: country, Browser: &chrome,
		})
	}

	w := env.do(http.MethodGet, "/api/access-events?limit=2", nil, withAPIKey)
	var events []models.AccessEvent
	json.Unmarshal(w.Body.Bytes(), &events)
	if len(events) != 2 {
		t.Errorf("got %d events, want 2", len(events))
	}

	w = env.do(http.MethodGet, "/api/stats/top", nil, withAPIKey)
	var top struct {
		Field   string               `json:"field"`
		Results []models.CountResult `json:"results"`
	}
	json.Unmarshal(w.Body.Bytes(), &top)
	if top.Field != "country" || len(top.Results) != 2 || top.Results[0].Value != "US" || top.Results[0].Count != 2 {
		t.Errorf("top = %+v", top)
	}

	for _, q := range []string{"?field=ip", "?limit=abc", "?limit=-1"} {
		if w := env.do(http.MethodGet, "/api/stats/top"+q, nil, withAPIKey); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", q, w.Code)
		}
	}
}

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	env := newTestEnv(t, models.Operator{Email: "ops@example.com", HashedPassword: hash})

	if w := env.do(http.MethodPost, "/api/login", models.LoginRequest{Email: "ops@example.com", Password: "wrong"}); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: status = %d", w.Code)
	}

	w := env.do(http.MethodPost, "/api/login", models.LoginRequest{Email: "OPS@example.com", Password: "hunter2"})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d body=%s", w.Code, w.Body.String())
	}
	var jwtCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "jwt_token" {
			jwtCookie = c
		}
	}
	if jwtCookie == nil {
		t.Fatal("no jwt cookie")
	}

	w = env.do(http.MethodGet, "/api/interactions", nil, func(r *http.Request) { r.AddCookie(jwtCookie) })
	if w.Code != http.StatusOK {
		t.Errorf("authenticated list status = %d", w.Code)
	}
}

func TestLogin_NotConfigured(t *testing.T) {
	env := newTestEnv(t, models.Operator{})
	w := env.do(http.MethodPost, "/api/login", models.LoginRequest{Email: "a@b.c", Password: "x"})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", w.Code)
	}
}

func TestSaveInteraction_StepsAreSnapshotted(t *testing.T) {
	scenarios := []models.Scenario{{
		Name:         "Lost order",
		Steps:        []string{"Validate identity", "Check GIPI"},
		MocaTemplate: "Lost Order",
	}}
	cat, err := catalog.New(scenarios)
	if err != nil {
		t.Fatal(err)
	}
	mem := store.NewMemory()
	h := NewInteractionHandlers(mem, cat, time.UTC)

	r := gin.New()
	r.POST("/interactions", h.SaveInteraction)
	body := strings.NewReader(`{"category":"Lost order"}`)
	req := httptest.NewRequest(http.MethodPost, "/interactions", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d", w.Code)
	}

	scenarios[0].Steps[0] = "edited"
	live, _ := cat.Get("Lost order")
	live.Steps[1] = "edited"

	stored, _ := mem.ListInteractions(context.Background(), 10)
	if len(stored) != 1 {
		t.Fatalf("stored %d", len(stored))
	}
	if got := stored[0].Steps; got[0] != "Validate identity" || got[1] != "Check GIPI" {
		t.Errorf("persisted steps changed: %v", got)
	}
}
