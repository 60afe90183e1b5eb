// Package services – GenerateService
//
// This file implements the AI-request mediation layer: the component that
// sits between HTTP handlers and the generative provider. It owns the policy
// pipeline shared by the synchronous and streaming entry points:
//
//	validate → truncate history → cache lookup (sync only) → cap lengths →
//	retry-wrapped provider call → cache store (sync only)
//
// Streaming responses are never cached: caching partial-token streams is a
// complexity/correctness tradeoff this layer does not take.
//
// Observability: both entry points are OpenTelemetry-instrumented, and the
// counters in metrics.go record cache effectiveness and retry pressure.
package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/smartlearn/study-assistant-backend/internal/cache"
	"github.com/smartlearn/study-assistant-backend/internal/gemini"
	"github.com/smartlearn/study-assistant-backend/internal/retry"
)

// Provider is the outbound generation contract. *gemini.Client implements it;
// tests and MOCK mode substitute fakes.
type Provider interface {
	// Generate returns the full response text for one exchange.
	Generate(ctx context.Context, history []gemini.Turn, message string) (string, error)

	// Stream delivers the response as ordered text increments via onChunk.
	// Chunks already delivered are final even when Stream returns an error.
	Stream(ctx context.Context, history []gemini.Turn, message string, onChunk func(text string) error) error
}

// GenerateService orchestrates cache, truncation, and retry policy around
// provider calls.
type GenerateService struct {
	Provider Provider
	Cache    *cache.ResponseCache

	// MaxRetries is the attempt budget per request, including the first call.
	MaxRetries int
	// RetryBaseDelay seeds the exponential backoff schedule.
	RetryBaseDelay time.Duration

	// HistoryMaxTurns bounds how many trailing history entries are forwarded.
	HistoryMaxTurns int
	// MaxPromptChars caps each submitted text on the synchronous path.
	MaxPromptChars int
	// MaxStreamChars caps each submitted text on the streaming path.
	MaxStreamChars int
}

// NewGenerateService constructs a GenerateService with the given policy
// knobs. Zero values fall back to the documented defaults.
func NewGenerateService(p Provider, c *cache.ResponseCache, maxRetries int, baseDelay time.Duration, maxTurns, maxPromptChars, maxStreamChars int) *GenerateService {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	if maxTurns <= 0 {
		maxTurns = 10
	}
	if maxPromptChars <= 0 {
		maxPromptChars = 8000
	}
	if maxStreamChars <= 0 {
		maxStreamChars = 2000
	}
	return &GenerateService{
		Provider:        p,
		Cache:           c,
		MaxRetries:      maxRetries,
		RetryBaseDelay:  baseDelay,
		HistoryMaxTurns: maxTurns,
		MaxPromptChars:  maxPromptChars,
		MaxStreamChars:  maxStreamChars,
	}
}

// TruncateHistory returns the last max entries of history in original order.
// Histories at or under the bound are returned unchanged. Pure.
func TruncateHistory(history []gemini.Turn, max int) []gemini.Turn {
	if max <= 0 || len(history) <= max {
		return history
	}
	return history[len(history)-max:]
}

// clipRunes bounds s to max runes without splitting a codepoint.
func clipRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}

// capAll applies the per-text character bound to the message and every
// history entry, returning fresh slices so callers' inputs stay untouched.
func capAll(history []gemini.Turn, message string, max int) ([]gemini.Turn, string) {
	out := make([]gemini.Turn, len(history))
	for i, t := range history {
		out[i] = gemini.Turn{Role: t.Role, Text: clipRunes(t.Text, max)}
	}
	return out, clipRunes(message, max)
}

// fingerprintEntries adapts provider turns to the cache package's entry type.
func fingerprintEntries(history []gemini.Turn) []cache.Entry {
	out := make([]cache.Entry, len(history))
	for i, t := range history {
		out[i] = cache.Entry{Role: t.Role, Text: t.Text}
	}
	return out
}

// Generate runs the synchronous mediation pipeline and returns the response
// text plus whether it came from the cache.
func (s *GenerateService) Generate(ctx context.Context, userID string, history []gemini.Turn, message string) (text string, cached bool, err error) {
	tr := otel.Tracer("services/GenerateService")
	ctx, span := tr.Start(ctx, "Generate",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("history.len", len(history)),
		),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		} else if cached {
			outcome = "cache_hit"
		}
		generationDuration.WithLabelValues("sync", outcome).Observe(time.Since(start).Seconds())
	}()

	message = strings.TrimSpace(message)
	if message == "" {
		return "", false, ErrEmptyMessage
	}

	truncated := TruncateHistory(history, s.HistoryMaxTurns)
	key := cache.Fingerprint(fingerprintEntries(truncated), message)
	if v, ok := s.Cache.Get(key); ok {
		cacheHits.Inc()
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return v, true, nil
	}
	cacheMisses.Inc()
	span.SetAttributes(attribute.Bool("cache.hit", false))

	capped, cappedMsg := capAll(truncated, message, s.MaxPromptChars)
	text, err = retry.Do(ctx, s.retryConfig(), func(ctx context.Context) (string, error) {
		return s.Provider.Generate(ctx, capped, cappedMsg)
	})
	if err != nil {
		return "", false, err
	}

	s.Cache.Set(key, text)
	return text, false, nil
}

// Stream runs the streaming mediation pipeline, delivering text increments
// through onChunk in order. The response cache is bypassed entirely. A
// rate-limit failure is retried only while nothing has been delivered yet;
// once the first chunk is out, every error is final.
func (s *GenerateService) Stream(ctx context.Context, userID string, history []gemini.Turn, message string, onChunk func(text string) error) (err error) {
	tr := otel.Tracer("services/GenerateService")
	ctx, span := tr.Start(ctx, "Stream",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("history.len", len(history)),
		),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		generationDuration.WithLabelValues("stream", outcome).Observe(time.Since(start).Seconds())
	}()

	message = strings.TrimSpace(message)
	if message == "" {
		return ErrEmptyMessage
	}

	truncated := TruncateHistory(history, s.HistoryMaxTurns)
	capped, cappedMsg := capAll(truncated, message, s.MaxStreamChars)

	delivered := false
	wrapped := func(text string) error {
		delivered = true
		return onChunk(text)
	}

	cfg := s.retryConfig()
	base := cfg.Retryable
	cfg.Retryable = func(e error) bool { return !delivered && base(e) }

	_, err = retry.Do(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.Provider.Stream(ctx, capped, cappedMsg, wrapped)
	})
	return err
}

// retryConfig builds the shared retry policy: rate-limit-class errors only.
func (s *GenerateService) retryConfig() retry.Config {
	return retry.Config{
		Attempts:  s.MaxRetries,
		BaseDelay: s.RetryBaseDelay,
		Retryable: func(err error) bool {
			if gemini.IsRateLimited(err) {
				providerRetries.Inc()
				return true
			}
			return false
		},
	}
}
