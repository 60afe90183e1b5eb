package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.GinMode != "release" {
		t.Errorf("GinMode = %q", cfg.GinMode)
	}
	if cfg.APIBasePath != "/api" {
		t.Errorf("APIBasePath = %q", cfg.APIBasePath)
	}
	if cfg.Gemini.Model != "gemini-2.0-flash-lite" {
		t.Errorf("Gemini.Model = %q", cfg.Gemini.Model)
	}
	if cfg.MaxRetries != 3 || cfg.RetryBaseDelay != time.Second {
		t.Errorf("retry defaults = %d, %v", cfg.MaxRetries, cfg.RetryBaseDelay)
	}
	if cfg.HistoryMaxTurns != 10 {
		t.Errorf("HistoryMaxTurns = %d", cfg.HistoryMaxTurns)
	}
	if cfg.MaxPromptChars != 8000 || cfg.MaxStreamChars != 2000 {
		t.Errorf("caps = %d, %d", cfg.MaxPromptChars, cfg.MaxStreamChars)
	}
	if cfg.CacheTTL != time.Hour || cfg.CacheSweepPeriod != 10*time.Minute {
		t.Errorf("cache = %v, %v", cfg.CacheTTL, cfg.CacheSweepPeriod)
	}
	if cfg.AIPerMin != 15 {
		t.Errorf("AIPerMin = %d", cfg.AIPerMin)
	}
	if cfg.MaxUploadBytes != 10<<20 {
		t.Errorf("MaxUploadBytes = %d", cfg.MaxUploadBytes)
	}
	if cfg.MockAI || cfg.SwaggerEnabled || cfg.Auth.AllowHeader {
		t.Errorf("boolean defaults flipped: %+v", cfg)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("GIN_MODE", "DEBUG")
	t.Setenv("API_BASE_PATH", "v2/api/")
	t.Setenv("AI_HISTORY_MAX_TURNS", "4")
	t.Setenv("AI_CACHE_TTL", "30m")
	t.Setenv("MOCK_AI", "yes")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("AUTH_ALLOW_HEADER", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9999" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.GinMode != "debug" {
		t.Errorf("GinMode = %q", cfg.GinMode)
	}
	if cfg.APIBasePath != "/v2/api" {
		t.Errorf("APIBasePath = %q", cfg.APIBasePath)
	}
	if cfg.HistoryMaxTurns != 4 {
		t.Errorf("HistoryMaxTurns = %d", cfg.HistoryMaxTurns)
	}
	if cfg.CacheTTL != 30*time.Minute {
		t.Errorf("CacheTTL = %v", cfg.CacheTTL)
	}
	if !cfg.MockAI || !cfg.Auth.AllowHeader {
		t.Errorf("booleans not parsed: %+v", cfg)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.CORS.AllowedOrigins) != 2 ||
		cfg.CORS.AllowedOrigins[0] != want[0] || cfg.CORS.AllowedOrigins[1] != want[1] {
		t.Errorf("origins = %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		key, val, wantSub string
	}{
		{"LOG_LEVEL", "verbose", "LOG_LEVEL"},
		{"AI_MAX_RETRIES", "0", "AI_MAX_RETRIES"},
		{"AI_HISTORY_MAX_TURNS", "0", "AI_HISTORY_MAX_TURNS"},
		{"RATE_BURST", "0", "RATE_BURST"},
		{"AI_RATE_PER_MIN", "0", "AI_RATE_PER_MIN"},
		{"MAX_UPLOAD_BYTES", "-1", "MAX_UPLOAD_BYTES"},
		{"OTEL_TRACES_SAMPLER_ARG", "2", "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			t.Setenv(tc.key, tc.val)
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.wantSub) {
				t.Errorf("Load err = %v, want mention of %s", err, tc.wantSub)
			}
		})
	}
}

func TestLoadNormalizesWarning(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warning")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestNormalizeBasePath(t *testing.T) {
	cases := map[string]string{
		"":       "/",
		"/":      "/",
		"api":    "/api",
		"/api/":  "/api",
		"/api//": "/api",
	}
	for in, want := range cases {
		if got := normalizeBasePath(in); got != want {
			t.Errorf("normalizeBasePath(%q) = %q, want %q", in, got, want)
		}
	}
}
