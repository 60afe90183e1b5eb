// Chat HTTP handlers.
//
// This file exposes REST endpoints for chat resources:
//   - POST   /chats            (create from first message)
//   - GET    /chats            (owner's chat list, weak ETag support)
//   - GET    /chats/{id}       (full chat with history)
//   - PUT    /chats/{id}       (append a turn, Idempotency-Key aware)
//   - DELETE /chats/{id}       (remove chat and list entry)
//   - PATCH  /chats/{id}/title (rename list entry)
//
// Handlers are transport-thin: they validate input, call the chat service,
// and translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/smartlearn/study-assistant-backend/internal/domain"
	"github.com/smartlearn/study-assistant-backend/internal/http/middleware"
	"github.com/smartlearn/study-assistant-backend/internal/services"
)

// ChatManager defines the chat lifecycle operations consumed by the HTTP
// layer. Implementations must be safe for concurrent use and honor ctx.
type ChatManager interface {
	// Create starts a chat from its first user message.
	Create(ctx context.Context, userID, text string) (*domain.Chat, error)
	// List returns the owner's chat-list entries, newest first.
	List(ctx context.Context, userID string) ([]domain.ChatListEntry, error)
	// ListStats returns (count, latest update) for ETag generation.
	ListStats(ctx context.Context, userID string) (int64, *time.Time, error)
	// Get returns the full chat with ordered history, owner-scoped.
	Get(ctx context.Context, userID, chatID string) (*domain.Chat, error)
	// AppendTurn appends an optional user message and a model message.
	AppendTurn(ctx context.Context, userID, chatID, question, answer, imageRef, idemKey string) (int, error)
	// Delete removes the chat and its list entry.
	Delete(ctx context.Context, userID, chatID string) error
	// Rename updates the chat's list-entry title.
	Rename(ctx context.Context, userID, chatID, title string) error
}

// ChatHandlers groups the chat endpoints around a ChatManager.
type ChatHandlers struct {
	chats ChatManager
}

// NewChatHandlers binds the chat endpoints to svc.
func NewChatHandlers(svc ChatManager) *ChatHandlers {
	return &ChatHandlers{chats: svc}
}

//
// DTOs
//

// CreateChatRequest is the JSON payload for creating a chat.
type CreateChatRequest struct {
	// Text is the first user message; it also seeds the chat title.
	Text string `json:"text" binding:"required" example:"Explain photosynthesis"`
}

// CreateChatResponse returns the identifier of the created chat.
type CreateChatResponse struct {
	ID string `json:"id" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
}

// AppendTurnRequest is the JSON payload for appending a turn.
type AppendTurnRequest struct {
	// Question is the user message; omit for a model-only append.
	Question string `json:"question" example:"Why does that happen?"`
	// Answer is the model response. Required.
	Answer string `json:"answer" binding:"required" example:"Because sunlight drives the reaction."`
	// Img optionally references an externally hosted image on the question.
	Img string `json:"img" example:"https://ik.imagekit.io/demo/diagram.png"`
}

// RenameChatRequest is the JSON payload for renaming a chat.
type RenameChatRequest struct {
	Title string `json:"title" binding:"required" example:"Biology revision"`
}

//
// Handlers
//

// CreateChat godoc
// @ID          createChat
// @Summary     Start a new chat
// @Description Creates a chat from the first user message and adds it to the caller's chat list, titled with the message's first characters.
// @Tags        Chats
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CreateChatRequest  true  "First message"
//
// @Success     201  {object}  handlers.CreateChatResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Empty message"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /chats [post]
func (h *ChatHandlers) CreateChat(c *gin.Context) {
	var req CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text is required")
		return
	}

	chat, err := h.chats.Create(c.Request.Context(), userID(c), req.Text)
	if err != nil {
		if errors.Is(err, services.ErrEmptyMessage) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text is required")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to create chat")
		return
	}
	ok(c, http.StatusCreated, CreateChatResponse{ID: chat.ID})
}

// ListChats godoc
// @ID          listChats
// @Summary     List the caller's chats
// @Description Returns chat-list entries sorted newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Chats
// @Produce     json
//
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
//
// @Success     200  {array}   domain.ChatListEntry
// @Header      200  {string}  ETag  "Weak ETag for the current list"
// @Success     304  {string}  string  "Not Modified"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /chats [get]
func (h *ChatHandlers) ListChats(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)

	// ETag pre-check, best effort: a stats failure just skips 304 handling.
	if count, maxTS, err := h.chats.ListStats(ctx, uid); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.Unix()
		}
		etag := fmt.Sprintf(`W/"chats:%s:%d:%d"`, uid, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	entries, err := h.chats.List(ctx, uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to list chats")
		return
	}
	ok(c, http.StatusOK, entries)
}

// GetChat godoc
// @ID          getChat
// @Summary     Get a chat with its history
// @Description Returns the full chat document. A chat that does not exist and one owned by another user are both 404.
// @Tags        Chats
// @Produce     json
//
// @Param       id  path  string  true  "Chat ID"  format(uuid)
//
// @Success     200  {object}  domain.Chat
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     404  {object}  handlers.ErrorResponse  "Chat not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /chats/{id} [get]
func (h *ChatHandlers) GetChat(c *gin.Context) {
	chat, err := h.chats.Get(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrChatNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "chat not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to load chat")
		return
	}
	ok(c, http.StatusOK, chat)
}

// AppendTurn godoc
// @ID          appendTurn
// @Summary     Append a turn to a chat
// @Description Appends a user message (when question is present) followed by a model message. Safe to resubmit with an Idempotency-Key header.
// @Tags        Chats
// @Accept      json
//
// @Param       id               path    string  true   "Chat ID"  format(uuid)
// @Param       Idempotency-Key  header  string  false  "Stable key deduplicating resubmissions"
// @Param       body             body    handlers.AppendTurnRequest  true  "Turn payload"
//
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Missing answer"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     404  {object}  handlers.ErrorResponse  "Chat not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /chats/{id} [put]
func (h *ChatHandlers) AppendTurn(c *gin.Context) {
	var req AppendTurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "answer is required")
		return
	}

	// The validator already matched this (user, chat, key) tuple against a
	// live idempotency record: the turn is applied, nothing left to do. The
	// service re-checks on the write path for requests racing the first
	// submission.
	if middleware.IsReplay(c) {
		noContent(c)
		return
	}
	idemKey, _ := middleware.GetIdempotencyKey(c)

	_, err := h.chats.AppendTurn(c.Request.Context(), userID(c), c.Param("id"), req.Question, req.Answer, req.Img, idemKey)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyAnswer):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "answer is required")
		case errors.Is(err, services.ErrChatNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "chat not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to append turn")
		}
		return
	}
	noContent(c)
}

// DeleteChat godoc
// @ID          deleteChat
// @Summary     Delete a chat
// @Description Removes the chat and its chat-list entry. Deleting a foreign or missing chat reports not found and mutates nothing.
// @Tags        Chats
//
// @Param       id  path  string  true  "Chat ID"  format(uuid)
//
// @Success     204  {string}  string  "No Content"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     404  {object}  handlers.ErrorResponse  "Chat not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /chats/{id} [delete]
func (h *ChatHandlers) DeleteChat(c *gin.Context) {
	if err := h.chats.Delete(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		if errors.Is(err, services.ErrChatNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "chat not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to delete chat")
		return
	}
	noContent(c)
}

// RenameChat godoc
// @ID          renameChat
// @Summary     Rename a chat
// @Description Updates the chat-list title. Titles are trimmed and capped; empty titles are rejected.
// @Tags        Chats
// @Accept      json
//
// @Param       id    path  string  true  "Chat ID"  format(uuid)
// @Param       body  body  handlers.RenameChatRequest  true  "New title"
//
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Empty title"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     404  {object}  handlers.ErrorResponse  "Chat not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /chats/{id}/title [patch]
func (h *ChatHandlers) RenameChat(c *gin.Context) {
	var req RenameChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title is required")
		return
	}

	if err := h.chats.Rename(c.Request.Context(), userID(c), c.Param("id"), req.Title); err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyTitle):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title is required")
		case errors.Is(err, services.ErrChatNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "chat not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to rename chat")
		}
		return
	}
	noContent(c)
}
