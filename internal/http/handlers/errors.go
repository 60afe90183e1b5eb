// Package handlers defines the HTTP-layer error codes used across the API.
//
// Codes are lowercase snake_case and stable: clients branch on them
// programmatically, so renaming one is a breaking change. Handlers pick the
// most specific matching code and pass it to fail() with the HTTP status.
package handlers

const (
	// ErrCodeBadRequest covers malformed or missing request fields: empty
	// message, empty rename title, non-PDF upload, oversized upload.
	ErrCodeBadRequest = "bad_request"

	// ErrCodeUnauthenticated is returned when no caller identity could be
	// established, uniformly regardless of the underlying cause.
	ErrCodeUnauthenticated = "unauthenticated"

	// ErrCodeNotFound covers a chat that does not exist or belongs to a
	// different owner; the two are indistinguishable on purpose.
	ErrCodeNotFound = "not_found"

	// ErrCodeRateLimited is returned when the provider quota is exhausted
	// after the retry budget, or when the per-user AI limiter rejects.
	ErrCodeRateLimited = "rate_limited"

	// ErrCodeContentBlocked is returned when the provider's safety filter
	// rejected the prompt or response.
	ErrCodeContentBlocked = "content_blocked"

	// ErrCodeUpstreamUnavailable is returned when the provider is not
	// configured or unreachable.
	ErrCodeUpstreamUnavailable = "upstream_unavailable"

	// ErrCodeInternal is the generic server-side failure code.
	ErrCodeInternal = "internal_error"

	// ErrCodeMethodNotAllowed is emitted by the router for known paths hit
	// with an unsupported verb.
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
