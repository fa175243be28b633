package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"logisticsassist/api/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func sessionRouter() *gin.Engine {
	r := gin.New()
	r.Use(Session(time.Hour, false))
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, SessionID(c))
	})
	return r
}

func TestSession_MintsCookie(t *testing.T) {
	w := httptest.NewRecorder()
	sessionRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookie {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("no session cookie set")
	}
	if !cookie.HttpOnly || cookie.MaxAge != 3600 {
		t.Errorf("cookie = %+v", cookie)
	}
	if w.Body.String() != cookie.Value {
		t.Errorf("context session %q != cookie %q", w.Body.String(), cookie.Value)
	}
}

func TestSession_ReusesValidCookie(t *testing.T) {
	id := utils.GenerateSessionID()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: id})

	w := httptest.NewRecorder()
	sessionRouter().ServeHTTP(w, req)

	if w.Body.String() != id {
		t.Errorf("session = %q, want %q", w.Body.String(), id)
	}
	if len(w.Result().Cookies()) != 0 {
		t.Error("valid cookie should not be reissued")
	}
}

func TestSession_ReplacesForgedCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "admin"})

	w := httptest.NewRecorder()
	sessionRouter().ServeHTTP(w, req)

	if got := w.Body.String(); got == "admin" || !utils.ValidSessionID(got) {
		t.Errorf("session = %q", got)
	}
}

func authRouter(tokens *utils.TokenIssuer) *gin.Engine {
	r := gin.New()
	r.GET("/private", AuthRequired(tokens, "key-123"), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("operator_email"))
	})
	return r
}

func TestAuthRequired(t *testing.T) {
	tokens := utils.NewTokenIssuer("secret", time.Hour)
	token, err := tokens.GenerateJWT("ops@example.com")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		setup  func(*http.Request)
		status int
	}{
		{"no credentials", func(*http.Request) {}, http.StatusUnauthorized},
		{"api key", func(r *http.Request) { r.Header.Set("X-API-KEY", "key-123") }, http.StatusOK},
		{"wrong api key", func(r *http.Request) { r.Header.Set("X-API-KEY", "nope") }, http.StatusUnauthorized},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusOK},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "jwt_token", Value: token}) }, http.StatusOK},
		{"bad token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer abc") }, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			authRouter(tokens).ServeHTTP(w, req)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware("https://assist.example.com"))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://assist.example.com" {
		t.Errorf("allow origin = %q", got)
	}
}
