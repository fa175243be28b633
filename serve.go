package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"logisticsassist/api/config"
	"logisticsassist/api/handlers"
	"logisticsassist/api/models"
	"logisticsassist/api/telemetry"
	"logisticsassist/api/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, loc, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg, loc)
	},
}

func serve(parent context.Context, cfg *config.Config, loc *time.Location) error {
	if parent == nil {
		parent = context.Background()
	}
	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	cat, err := loadCatalog(cfg.ScenariosFile)
	if err != nil {
		return err
	}

	initCtx, cancelInit := context.WithTimeout(parent, 30*time.Second)
	st, err := openStores(initCtx, cfg, loc)
	cancelInit()
	if err != nil {
		return err
	}
	defer st.Close()

	logger := log.Default()

	notifier := telemetry.NewTelegramNotifier(cfg.TelegramAPIURL, cfg.TelegramBotToken, cfg.TelegramChatID, cfg.NotifyTimeout)
	if !cfg.NotificationsEnabled() {
		log.Println("Telegram credentials not set; visit notifications are disabled")
	}

	gate := telemetry.NewSessionGate()
	pipeline := telemetry.NewPipeline(telemetry.PipelineConfig{
		Identity: telemetry.NewResolver(cfg.IPLookupURL, cfg.IdentityTimeout, logger),
		Geo:      telemetry.NewGeoEnricher(cfg.GeoURL, cfg.GeoTimeout, logger),
		Notifier: notifier,
		Recorder: telemetry.NewRecorder(st.Access, cfg.RecordTimeout),
		Gate:     gate,
		Logger:   logger,
		Location: loc,
	})

	sweeper := telemetry.NewSessionSweeper(gate, cfg.SessionTTL, 0, logger)
	sweeper.Start(parent)

	secure := cfg.GinMode == gin.ReleaseMode
	tokens := utils.NewTokenIssuer(cfg.JWTSecretKey, 24*time.Hour)
	operator := models.Operator{
		Email:          cfg.OperatorEmail,
		HashedPassword: []byte(cfg.OperatorPasswordHash),
	}

	router, err := handlers.NewRouter(handlers.RouterConfig{
		Access:         handlers.NewAccessHandlers(pipeline, st.Access),
		Interactions:   handlers.NewInteractionHandlers(st.Interactions, cat, loc),
		Scenarios:      handlers.NewScenarioHandlers(cat, pipeline, cfg.IPLookupURL),
		Auth:           handlers.NewAuthHandlers(operator, tokens, secure),
		Tokens:         tokens,
		APIKey:         cfg.AuthDefault,
		FEOrigin:       cfg.FEOrigin,
		TrustedProxies: cfg.TrustedProxies,
		SessionTTL:     cfg.SessionTTL,
		SecureCookies:  secure,
	})
	if err != nil {
		sweeper.Stop()
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Logistics Assist server starting on http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var serveErr error
	select {
	case <-quit:
	case <-parent.Done():
	case serveErr = <-errCh:
	}
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	if err := pipeline.Shutdown(ctx); err != nil {
		log.Printf("Access pipeline did not drain: %v", err)
	}
	sweeper.Stop()

	log.Println("Server exiting.")
	return serveErr
}
