// Package cache provides an in-memory TTL cache for full (non-streamed)
// generation responses. Identical prompts against identical truncated history
// are answered from memory without touching the provider.
//
// The cache is process-local and best-effort: entries vanish on restart and
// are never shared across replicas. That matches its purpose of absorbing
// repeat submissions, not acting as a durable store.
package cache

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// fingerprintMaxLen bounds key length so pathological prompts cannot bloat
// the key space. Collisions between long prompts sharing a 250-byte prefix
// are accepted.
const fingerprintMaxLen = 250

// Entry is a prior exchange as seen by the fingerprint. Kept minimal so the
// cache package does not depend on domain or provider types.
type Entry struct {
	Role string
	Text string
}

// ResponseCache stores generated response text keyed by conversation
// fingerprint.
type ResponseCache struct {
	c *gocache.Cache
}

// NewResponseCache creates a cache whose entries live for ttl and are swept
// every sweep interval.
func NewResponseCache(ttl, sweep time.Duration) *ResponseCache {
	return &ResponseCache{c: gocache.New(ttl, sweep)}
}

// Fingerprint derives the cache key for a (history, message) pair. History
// entries are serialized as "role:text" joined by "|", followed by the new
// user message, then truncated to a fixed byte length.
func Fingerprint(history []Entry, message string) string {
	var b strings.Builder
	for i, e := range history {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(e.Role)
		b.WriteByte(':')
		b.WriteString(e.Text)
	}
	if b.Len() > 0 {
		b.WriteByte('|')
	}
	b.WriteString("user:")
	b.WriteString(message)

	key := b.String()
	if len(key) > fingerprintMaxLen {
		key = key[:fingerprintMaxLen]
	}
	return key
}

// Get returns the cached response for key, if present and unexpired.
func (rc *ResponseCache) Get(key string) (string, bool) {
	v, ok := rc.c.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Set stores a response under key with the cache's default TTL.
func (rc *ResponseCache) Set(key, response string) {
	rc.c.SetDefault(key, response)
}

// Flush removes every entry. Used by tests and MOCK mode resets.
func (rc *ResponseCache) Flush() {
	rc.c.Flush()
}

// Len reports the number of unexpired entries.
func (rc *ResponseCache) Len() int {
	return rc.c.ItemCount()
}
