// Package gemini implements a minimal client for the Google generative
// language REST API. This file defines the provider error taxonomy that the
// generation mediator and HTTP layer branch on.
//
// Classification rules:
//   - Rate-limit class: HTTP 429, gRPC-style status RESOURCE_EXHAUSTED, or a
//     quota mention in the message. Only these are retried.
//   - Blocked class: the safety filter rejected the prompt or terminated the
//     response. Never retried; surfaced as a client error.
//   - Everything else (network, validation, parse failures) propagates as-is.
package gemini

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNotConfigured is returned by a client constructed without an API key.
// The HTTP layer maps it to 503.
var ErrNotConfigured = errors.New("gemini: provider not configured")

// APIError is a non-2xx response from the provider.
type APIError struct {
	Code    int    // HTTP status code
	Status  string // gRPC-style status string, e.g. "RESOURCE_EXHAUSTED"
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("gemini: api error status=%d (%s): %s", e.Code, e.Status, e.Message)
}

// BlockedError indicates the safety filter rejected the prompt or stopped
// the response mid-generation.
type BlockedError struct {
	Reason string // block reason or finish reason, e.g. "SAFETY"
}

// Error implements the error interface.
func (e *BlockedError) Error() string {
	return fmt.Sprintf("gemini: content blocked (%s)", e.Reason)
}

// IsRateLimited reports whether err is a rate-limit-class failure: the only
// class the retry wrapper is allowed to retry.
func IsRateLimited(err error) bool {
	var ae *APIError
	if errors.As(err, &ae) {
		if ae.Code == http.StatusTooManyRequests {
			return true
		}
		if ae.Status == "RESOURCE_EXHAUSTED" {
			return true
		}
		low := strings.ToLower(ae.Message)
		return strings.Contains(low, "quota") || strings.Contains(low, "429")
	}
	return false
}

// IsBlocked reports whether err is a safety-filter rejection.
func IsBlocked(err error) bool {
	var be *BlockedError
	return errors.As(err, &be)
}
