// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements transport-level idempotency support for the
// append-turn endpoint (PUT /chats/:id). It validates the Idempotency-Key
// header, stashes the normalized key in the context, and optionally consults
// a persistence-backed lookup to flag replays so the rate limiter can let
// resubmissions through without consuming tokens.
//
// The middleware never serves a cached payload itself; the service layer owns
// the dedupe decision.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header clients use to convey a stable
// key for an unsafe operation so retries can be deduplicated.
const HeaderIdempotencyKey = "Idempotency-Key"

// Context keys stashing idempotency state; accessed via the helpers below.
const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

// GetIdempotencyKey returns the validated key stored by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether the lookup recognized this (user, chat, key)
// tuple as already applied.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions configures header validation.
type IdempotencyOptions struct {
	// MaxLen caps accepted key length; <= 0 defaults to 200.
	MaxLen int
	// Pattern restricts allowed characters; nil uses a conservative
	// token pattern: ^[A-Za-z0-9._~\-:]+$
	Pattern *regexp.Regexp
}

// IdempotencyLookup answers whether a still-valid record exists for
// (userID, chatID, key) at now. Lookup failures must not block processing;
// return an error only for the caller to log.
type IdempotencyLookup func(ctx context.Context, userID, chatID, key string, now time.Time) (exists bool, err error)

// IdempotencyValidator validates the Idempotency-Key header when present,
// stashes it, and marks replay plus rate-limit bypass when the lookup finds a
// prior record. Absent headers make the middleware a no-op; malformed headers
// are rejected with 400 before any work happens.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			rid, _ := c.Get(requestIDKey)
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": asString(rid),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}

		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			uid, _ := UserIDFrom(c)
			chatID := c.Param("id")
			if exists, _ := lookup(c.Request.Context(), uid, chatID, key, time.Now().UTC()); exists {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}

		c.Next()
	}
}
