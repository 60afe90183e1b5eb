// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the standard response utilities used across all
// endpoints: the structured error envelope and helpers that keep success and
// failure shapes uniform.
//
// Conventions:
//   - All error responses return an ErrorResponse with a stable `code`.
//   - fail() centralizes error formatting and logs 5xx responses with the
//     request-scoped logger.
//   - ok() and noContent() keep success responses consistent.
//
// Example error response:
//
//	HTTP/1.1 429 Too Many Requests
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "rate_limited",
//	  "message": "AI service is busy, please retry shortly",
//	  "retry_after": 60
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smartlearn/study-assistant-backend/internal/http/middleware"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
//
// RequestID echoes X-Request-ID so client reports can be matched to server
// logs. Code is a stable machine-readable string (see errors.go). RetryAfter,
// present only on rate-limit responses, is the suggested wait in seconds.
type ErrorResponse struct {
	RequestID  string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	Code       string `json:"code" example:"not_found"`
	Message    string `json:"message" example:"resource not found"`
	RetryAfter int    `json:"retry_after,omitempty" example:"60"`
}

// fail aborts the request with a structured error, logging 5xx server-side.
func fail(c *gin.Context, status int, code, msg string) {
	failWith(c, status, ErrorResponse{Code: code, Message: msg})
}

// failWith is the full-envelope variant used when extra fields (retry_after)
// must be set.
func failWith(c *gin.Context, status int, resp ErrorResponse) {
	resp.RequestID = c.Writer.Header().Get("X-Request-ID")

	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", resp.Code).
			Str("message", resp.Message).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail() for router-level handlers (404/405).
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes a success JSON response with the given status.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes an HTTP 204 No Content response.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
