// Command server runs the study-assistant HTTP API.
//
// Startup order: env file, config, logging, tracing, database, router, HTTP
// server. Shutdown drains in-flight requests before flushing the tracer.
//
// @title          Study Assistant API
// @version        1.0
// @description    Chat persistence and AI answer generation for the study assistant.
// @BasePath       /api
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/plugin/opentelemetry/tracing"

	_ "github.com/smartlearn/study-assistant-backend/docs"
	"github.com/smartlearn/study-assistant-backend/internal/config"
	"github.com/smartlearn/study-assistant-backend/internal/gemini"
	httpapi "github.com/smartlearn/study-assistant-backend/internal/http"
	"github.com/smartlearn/study-assistant-backend/internal/media"
	"github.com/smartlearn/study-assistant-backend/internal/observability"
	"github.com/smartlearn/study-assistant-backend/internal/repo"
	"github.com/smartlearn/study-assistant-backend/internal/services"
	"github.com/smartlearn/study-assistant-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Optional .env for local development; absence is not an error.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	sysutil.SetLogLevel(cfg.LogLevel)

	ctx := context.Background()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(flushCtx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}
	if cfg.OTEL.Enabled {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			log.Warn().Err(err).Msg("gorm tracing plugin")
		}
	}

	var provider services.Provider
	switch {
	case cfg.MockAI:
		log.Warn().Msg("MOCK_AI enabled, serving canned responses")
		provider = services.MockProvider{}
	default:
		client := gemini.NewClient(cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.BaseURL, cfg.Gemini.Timeout)
		if !client.Configured() {
			log.Warn().Msg("GEMINI_API_KEY not set, generation endpoints will answer 503")
		}
		provider = client
	}

	signer := media.NewSigner(cfg.ImageKitPrivateKey)
	if !signer.Configured() {
		log.Warn().Msg("IMAGE_KIT_PRIVATE_KEY not set, upload auth endpoint will answer 503")
	}

	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	httpapi.RegisterRoutes(engine, db, provider, signer, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	drainCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server stopped")
}
