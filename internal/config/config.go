// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, the generative-AI
// provider, rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// GeminiConfig defines the upstream generative-AI provider settings.
type GeminiConfig struct {
	APIKey  string        // GEMINI_API_KEY; empty means the provider is unconfigured
	Model   string        // GEMINI_MODEL
	BaseURL string        // GEMINI_BASE_URL (override for tests/proxies)
	Timeout time.Duration // per-attempt HTTP timeout
}

// AuthConfig defines how caller identity is established.
type AuthConfig struct {
	JWTSecret   string // AUTH_JWT_SECRET; HMAC key for bearer tokens
	AllowHeader bool   // AUTH_ALLOW_HEADER; accept X-User-ID (dev/test only)
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DBPath string // SQLite path

	// Generation pipeline
	Gemini           GeminiConfig
	MockAI           bool          // MOCK_AI: canned responses, no provider calls
	MaxRetries       int           // provider attempts on rate-limit errors
	RetryBaseDelay   time.Duration // backoff base delay
	HistoryMaxTurns  int           // turns of history forwarded upstream
	MaxPromptChars   int           // per-text cap on the sync path
	MaxStreamChars   int           // per-text cap on the streaming path
	CacheTTL         time.Duration // response cache entry lifetime
	CacheSweepPeriod time.Duration // expired-entry purge interval

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0), all endpoints
	RateBurst int     // bucket size (>= 1)
	AIPerMin  int     // generate-endpoint requests per minute per user

	// Uploads
	MaxUploadBytes int64 // multipart PDF upload cap

	// Image CDN upload authentication
	ImageKitPrivateKey string // IMAGE_KIT_PRIVATE_KEY
	ImageKitPublicKey  string // IMAGE_KIT_PUBLIC_KEY

	// Auth
	Auth AuthConfig

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api")),

		// App
		DBPath: getenv("DB_PATH", "app.db"),

		// Generation pipeline
		Gemini: GeminiConfig{
			APIKey:  getenv("GEMINI_API_KEY", ""),
			Model:   getenv("GEMINI_MODEL", "gemini-2.0-flash-lite"),
			BaseURL: getenv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
			Timeout: getdur("GEMINI_TIMEOUT", 60*time.Second),
		},
		MockAI:           getbool("MOCK_AI", false),
		MaxRetries:       getint("AI_MAX_RETRIES", 3),
		RetryBaseDelay:   getdur("AI_RETRY_BASE_DELAY", time.Second),
		HistoryMaxTurns:  getint("AI_HISTORY_MAX_TURNS", 10),
		MaxPromptChars:   getint("AI_MAX_PROMPT_CHARS", 8000),
		MaxStreamChars:   getint("AI_MAX_STREAM_CHARS", 2000),
		CacheTTL:         getdur("AI_CACHE_TTL", time.Hour),
		CacheSweepPeriod: getdur("AI_CACHE_SWEEP", 10*time.Minute),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),
		AIPerMin:  getint("AI_RATE_PER_MIN", 15),

		// Uploads
		MaxUploadBytes: int64(getint("MAX_UPLOAD_BYTES", 10<<20)),

		// Image CDN
		ImageKitPrivateKey: getenv("IMAGE_KIT_PRIVATE_KEY", ""),
		ImageKitPublicKey:  getenv("IMAGE_KIT_PUBLIC_KEY", ""),

		// Auth
		Auth: AuthConfig{
			JWTSecret:   getenv("AUTH_JWT_SECRET", ""),
			AllowHeader: getbool("AUTH_ALLOW_HEADER", false),
		},

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "study-assistant-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.Gemini.Timeout <= 0 {
		return cfg, errors.New("GEMINI_TIMEOUT must be > 0")
	}
	if cfg.MaxRetries < 1 {
		return cfg, errors.New("AI_MAX_RETRIES must be >= 1")
	}
	if cfg.RetryBaseDelay <= 0 {
		return cfg, errors.New("AI_RETRY_BASE_DELAY must be > 0")
	}
	if cfg.HistoryMaxTurns < 1 {
		return cfg, errors.New("AI_HISTORY_MAX_TURNS must be >= 1")
	}
	if cfg.MaxPromptChars < 1 || cfg.MaxStreamChars < 1 {
		return cfg, errors.New("prompt character caps must be >= 1")
	}
	if cfg.CacheTTL <= 0 || cfg.CacheSweepPeriod <= 0 {
		return cfg, errors.New("cache TTL and sweep period must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.AIPerMin < 1 {
		return cfg, errors.New("AI_RATE_PER_MIN must be >= 1")
	}
	if cfg.MaxUploadBytes <= 0 {
		return cfg, errors.New("MAX_UPLOAD_BYTES must be > 0")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
