// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns:
// tracing, correlation IDs, logging, panic recovery, metrics, CORS, security
// headers, idempotency, and rate limiting.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs
//  4. Recovery: capture panics after logger
//  5. Body size limiter and gzip (SSE route excluded from compression)
//  6. Metrics
//  7. CORS and security headers
//
// Authentication, idempotency validation, and rate limiting apply per route
// group: the auxiliary upload endpoints stay identity-free, the chat and
// generation endpoints require a caller, and the generation endpoints carry
// an additional tight per-user limiter because provider calls burn quota.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/smartlearn/study-assistant-backend/internal/cache"
	"github.com/smartlearn/study-assistant-backend/internal/config"
	"github.com/smartlearn/study-assistant-backend/internal/http/handlers"
	"github.com/smartlearn/study-assistant-backend/internal/http/middleware"
	"github.com/smartlearn/study-assistant-backend/internal/media"
	"github.com/smartlearn/study-assistant-backend/internal/repo"
	"github.com/smartlearn/study-assistant-backend/internal/services"
)

// RegisterRoutes attaches all middleware and endpoints to the given engine.
// The generation provider is injected so the entrypoint can choose between
// the real client and the offline mock.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, provider services.Provider, signer *media.Signer, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Body cap sized for the PDF upload endpoint, and gzip for everything
	// except the SSE stream (compression would buffer the increments).
	r.Use(limitBody(cfg.MaxUploadBytes + 1<<20))
	r.Use(gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedPaths([]string{cfg.APIBasePath + "/generate/stream"})))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) CORS posture (allow all when no allowlist configured)
	r.Use(corsFor(cfg))

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// API docs
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← provider/cache/db
	respCache := cache.NewResponseCache(cfg.CacheTTL, cfg.CacheSweepPeriod)
	genSvc := services.NewGenerateService(provider, respCache,
		cfg.MaxRetries, cfg.RetryBaseDelay,
		cfg.HistoryMaxTurns, cfg.MaxPromptChars, cfg.MaxStreamChars)
	chatSvc := services.NewChatService(db, cfg.IdempotencyTTL)

	genH := handlers.NewGenerateHandlers(genSvc)
	chatH := handlers.NewChatHandlers(chatSvc)
	uploadH := handlers.NewUploadHandlers(signer)

	api := groupWithPrefix(r, cfg.APIBasePath)

	// Auxiliary endpoints: no identity required, edge-limited by IP.
	edgeRL := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	aux := api.Group("", edgeRL.Handler())
	{
		aux.POST("/extract-pdf", uploadH.ExtractPDF)
		aux.GET("/upload", uploadH.UploadAuth)
	}

	// Authenticated surface.
	authed := api.Group("", middleware.Auth(middleware.AuthOptions{
		JWTSecret:   cfg.Auth.JWTSecret,
		AllowHeader: cfg.Auth.AllowHeader,
	}))

	// Idempotency validation before rate limiting so replays bypass buckets.
	authed.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		func(ctx context.Context, userID, chatID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, chatID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))
	authed.Use(edgeRL.Handler())

	// Chats
	authed.POST("/chats", chatH.CreateChat)
	authed.GET("/chats", chatH.ListChats)
	authed.GET("/chats/:id", chatH.GetChat)
	authed.PUT("/chats/:id", chatH.AppendTurn)
	authed.DELETE("/chats/:id", chatH.DeleteChat)
	authed.PATCH("/chats/:id/title", chatH.RenameChat)

	// Generation, behind the tight per-user AI limiter.
	aiRL := middleware.NewAIRateLimiter(cfg.AIPerMin, middleware.KeyByUserOrIP())
	gen := authed.Group("", aiRL.Handler())
	{
		gen.POST("/generate", genH.Generate)
		gen.POST("/generate/stream", genH.StreamGenerate)
	}
}

// corsFor builds the CORS middleware: permissive when no allowlist is
// configured, strict echo otherwise.
func corsFor(cfg config.Config) gin.HandlerFunc {
	common := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization",
			"X-User-ID", middleware.HeaderIdempotencyKey, "If-None-Match",
		},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		common.AllowAllOrigins = true
	} else {
		common.AllowOrigins = cfg.CORS.AllowedOrigins
	}
	return cors.New(common)
}

// limitBody caps the request body for all endpoints via http.MaxBytesReader;
// oversized bodies error on read downstream.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
