package handlers

import (
	"embed"
	"html/template"
	"time"

	"github.com/gin-gonic/gin"

	"logisticsassist/api/middleware"
	"logisticsassist/api/utils"
)

//go:embed templates/*.html
var templatesFS embed.FS

type RouterConfig struct {
	Access       *AccessHandlers
	Interactions *InteractionHandlers
	Scenarios    *ScenarioHandlers
	Auth         *AuthHandlers

	Tokens         *utils.TokenIssuer
	APIKey         string
	FEOrigin       string
	TrustedProxies []string
	SessionTTL     time.Duration
	SecureCookies  bool
}

// NewRouter wires every route onto a fresh gin engine.
func NewRouter(cfg RouterConfig) (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}
	r.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/*.html")))

	r.Use(middleware.CORSMiddleware(cfg.FEOrigin))
	r.Use(middleware.Session(cfg.SessionTTL, cfg.SecureCookies))

	r.GET("/", cfg.Scenarios.Index)

	api := r.Group("/api")
	{
		api.GET("/scenarios", cfg.Scenarios.ListScenarios)
		api.GET("/scenarios/:name", cfg.Scenarios.GetScenario)
		api.POST("/interactions", cfg.Interactions.SaveInteraction)
		api.POST("/access", cfg.Access.Beacon)

		api.POST("/login", cfg.Auth.Login)
		api.POST("/logout", cfg.Auth.Logout)

		protected := api.Group("/")
		protected.Use(middleware.AuthRequired(cfg.Tokens, cfg.APIKey))
		{
			protected.GET("/interactions", cfg.Interactions.ListInteractions)
			protected.GET("/access-events", cfg.Access.ListAccessEvents)
			protected.GET("/stats/top", cfg.Access.GetTopValues)
		}
	}

	return r, nil
}
