// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements an in-memory, per-identity token-bucket rate limiter
// built on golang.org/x/time/rate, with opportunistic eviction of idle
// buckets. Two instances are installed in practice: a general per-IP/user
// edge limiter, and a much tighter per-user limiter guarding the generation
// endpoints (provider calls cost real money and quota).
//
// The limiter is process-local. Horizontally scaled deployments need a
// distributed limiter to enforce a global budget.
package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc selects the identity used to key a rate-limit bucket.
type keyFunc func(*gin.Context) string

// KeyByUserOrIP prefers the authenticated user ID and falls back to client
// IP. Keys are prefixed so the two namespaces cannot collide.
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if uid, ok := UserIDFrom(c); ok {
			return "user:" + uid
		}
		return "ip:" + c.ClientIP()
	}
}

// visitor pairs a bucket with its last access time for idle eviction.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter enforces per-key token-bucket limits. Safe for concurrent use.
type RateLimiter struct {
	rps        rate.Limit
	burst      int
	keyFn      keyFunc
	retryAfter int // seconds advertised on 429

	mu       sync.Mutex
	visitors map[string]*visitor
	ttl      time.Duration
	cleanupN uint64
}

// NewRateLimiter constructs an edge limiter with the given tokens-per-second
// and burst, keyed by keyFn. Rejections advertise Retry-After: 1.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:        rate.Limit(rps),
		burst:      burst,
		keyFn:      keyFn,
		retryAfter: 1,
		visitors:   make(map[string]*visitor),
		ttl:        10 * time.Minute,
	}
}

// NewAIRateLimiter constructs the generation-endpoint limiter: perMinute
// requests per user, refilled continuously, with the full minute budget
// available as burst. Rejections advertise Retry-After: 60, matching the
// retry_after hint in the error body.
func NewAIRateLimiter(perMinute int, keyFn keyFunc) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 15
	}
	rl := NewRateLimiter(float64(perMinute)/60.0, perMinute, keyFn)
	rl.retryAfter = 60
	return rl
}

// getVisitor returns the bucket for key, creating it if absent. Idle buckets
// are swept after a threshold of lookups; the sweep runs before the fetch so
// a stale bucket can be evicted even when it is the one requested.
func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	rl.cleanupN++
	if rl.cleanupN >= 5000 {
		for k, vv := range rl.visitors {
			if now.Sub(vv.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.cleanupN = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		lim := v.limiter
		rl.mu.Unlock()
		return lim
	}

	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	rl.mu.Unlock()
	return lim
}

// Handler returns the enforcement middleware. Idempotent replays flagged by
// IdempotencyValidator bypass limiting so resubmissions are served without
// burning tokens.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		if rl.getVisitor(rl.keyFn(c)).Allow() {
			c.Next()
			return
		}

		c.Header("Retry-After", strconv.Itoa(rl.retryAfter))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id":  c.Writer.Header().Get(requestIDHeader),
			"code":        "rate_limited",
			"message":     "rate limit exceeded",
			"retry_after": rl.retryAfter,
		})
	}
}

// IsRateBypass reports whether IdempotencyValidator marked this request as a
// replay that should skip limiting.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}
