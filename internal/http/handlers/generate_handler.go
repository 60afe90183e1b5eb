// Generation HTTP handlers.
//
// This file exposes the AI endpoints:
//   - POST /generate         (request/response)
//   - POST /generate/stream  (server-sent events)
//
// Handlers are transport-thin: they bind the request, call the generation
// service, and translate errors into the shared taxonomy. The streaming
// handler additionally owns the SSE framing: once headers are committed,
// failures become a terminal {"error": ...} event instead of a status code.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/smartlearn/study-assistant-backend/internal/gemini"
	"github.com/smartlearn/study-assistant-backend/internal/http/middleware"
	"github.com/smartlearn/study-assistant-backend/internal/services"
)

// rateLimitRetryAfter is the suggested client wait when provider quota is
// exhausted, in seconds.
const rateLimitRetryAfter = 60

// Generator defines the mediation operations consumed by the HTTP layer.
// Implementations must be safe for concurrent use and honor ctx.
type Generator interface {
	// Generate returns the response text and whether it was served from cache.
	Generate(ctx context.Context, userID string, history []gemini.Turn, message string) (string, bool, error)
	// Stream delivers the response as ordered increments via onChunk.
	Stream(ctx context.Context, userID string, history []gemini.Turn, message string, onChunk func(text string) error) error
}

// HistoryEntry is one prior exchange supplied by the client.
type HistoryEntry struct {
	Role string `json:"role" example:"user"`
	Text string `json:"text" example:"What is osmosis?"`
}

// GenerateRequest is the JSON payload for both generation endpoints.
type GenerateRequest struct {
	Message string         `json:"message" binding:"required" example:"Explain photosynthesis simply"`
	History []HistoryEntry `json:"history"`
}

// GenerateResponse is the synchronous endpoint's success body.
type GenerateResponse struct {
	Response string `json:"response"`
	Cached   bool   `json:"cached"`
}

// GenerateHandlers groups the AI endpoints around a Generator.
type GenerateHandlers struct {
	gen Generator
}

// NewGenerateHandlers binds the generation endpoints to gen.
func NewGenerateHandlers(gen Generator) *GenerateHandlers {
	return &GenerateHandlers{gen: gen}
}

func toTurns(entries []HistoryEntry) []gemini.Turn {
	out := make([]gemini.Turn, len(entries))
	for i, e := range entries {
		out[i] = gemini.Turn{Role: e.Role, Text: e.Text}
	}
	return out
}

// Generate godoc
// @ID          generate
// @Summary     Generate an AI response
// @Description Runs the study-assistant model over the message plus prior history. Identical requests within the cache TTL are answered from cache.
// @Tags        Generation
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.GenerateRequest  true  "Message and history"
//
// @Success     200  {object}  handlers.GenerateResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Empty message or blocked content"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     429  {object}  handlers.ErrorResponse  "Provider quota exhausted"
// @Failure     503  {object}  handlers.ErrorResponse  "Provider not configured"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /generate [post]
func (h *GenerateHandlers) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message is required")
		return
	}

	text, cached, err := h.gen.Generate(c.Request.Context(), userID(c), toTurns(req.History), req.Message)
	if err != nil {
		writeGenerateError(c, err)
		return
	}
	ok(c, http.StatusOK, GenerateResponse{Response: text, Cached: cached})
}

// StreamGenerate godoc
// @ID          generateStream
// @Summary     Generate an AI response as an event stream
// @Description Same contract as /generate but delivered as SSE data frames: {"text": ...} increments, then {"done": true} or {"error": ...}.
// @Tags        Generation
// @Accept      json
// @Produce     text/event-stream
//
// @Param       body  body  handlers.GenerateRequest  true  "Message and history"
//
// @Success     200  {string}  string  "event stream"
// @Failure     400  {object}  handlers.ErrorResponse  "Empty message"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Router      /generate/stream [post]
func (h *GenerateHandlers) StreamGenerate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message is required")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, canFlush := c.Writer.(http.Flusher)
	send := func(frame any) {
		payload, err := json.Marshal(frame)
		if err != nil {
			return
		}
		_, _ = c.Writer.Write([]byte("data: "))
		_, _ = c.Writer.Write(payload)
		_, _ = c.Writer.Write([]byte("\n\n"))
		if canFlush {
			flusher.Flush()
		}
	}

	ctx := c.Request.Context()
	err := h.gen.Stream(ctx, userID(c), toTurns(req.History), req.Message, func(text string) error {
		if e := ctx.Err(); e != nil {
			return e
		}
		send(gin.H{"text": text})
		return nil
	})

	switch {
	case err == nil:
		send(gin.H{"done": true})
	case errors.Is(err, context.Canceled):
		// Client went away; nothing left to write.
	default:
		middleware.LoggerFrom(c).Warn().Err(err).Msg("stream failed")
		send(gin.H{"error": userFacingStreamError(err)})
	}
}

// writeGenerateError maps mediation failures onto the shared taxonomy.
func writeGenerateError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrEmptyMessage):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message is required")
	case gemini.IsBlocked(err):
		fail(c, http.StatusBadRequest, ErrCodeContentBlocked, "request was blocked by the content safety filter")
	case errors.Is(err, gemini.ErrNotConfigured):
		fail(c, http.StatusServiceUnavailable, ErrCodeUpstreamUnavailable, "AI service is not configured")
	case gemini.IsRateLimited(err):
		c.Header("Retry-After", strconv.Itoa(rateLimitRetryAfter))
		failWith(c, http.StatusTooManyRequests, ErrorResponse{
			Code:       ErrCodeRateLimited,
			Message:    "AI service is busy, please retry shortly",
			RetryAfter: rateLimitRetryAfter,
		})
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to generate response")
	}
}

// userFacingStreamError keeps provider internals out of the terminal SSE
// error frame.
func userFacingStreamError(err error) string {
	switch {
	case errors.Is(err, services.ErrEmptyMessage):
		return "message is required"
	case gemini.IsBlocked(err):
		return "request was blocked by the content safety filter"
	case errors.Is(err, gemini.ErrNotConfigured):
		return "AI service is not configured"
	case gemini.IsRateLimited(err):
		return "AI service is busy, please retry shortly"
	default:
		return "failed to generate response"
	}
}

// userID extracts the authenticated user id stored by the auth middleware.
func userID(c *gin.Context) string {
	uid, _ := middleware.UserIDFrom(c)
	return uid
}
