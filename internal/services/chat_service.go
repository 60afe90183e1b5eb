// Package services – ChatService
//
// This file implements ChatService, which owns the lifecycle of chat
// aggregates and the per-user chat list. It validates and normalizes input,
// enforces ownership scoping, and coordinates the two-write flows (chat plus
// list entry) whose partial-failure outcomes are deliberate: a crash between
// the chat write and the list write can leave the list missing or carrying a
// dangling entry, and no reconciliation runs.
//
// Service-level errors (e.g. ErrChatNotFound) are returned for predictable
// cases so handlers can map them to HTTP results consistently.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/smartlearn/study-assistant-backend/internal/domain"
	"github.com/smartlearn/study-assistant-backend/internal/repo"
)

const (
	// titleFromMessageLen is how much of the first message seeds the title.
	titleFromMessageLen = 40
	// titleMaxLen caps titles set through rename.
	titleMaxLen = 100
)

// ChatService provides chat-level operations: create, list, get, append,
// delete, rename.
type ChatService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB

	// IdempotencyTTL bounds how long an Idempotency-Key suppresses a
	// resubmitted append. Zero disables the dedupe path.
	IdempotencyTTL time.Duration
}

// NewChatService constructs a ChatService.
func NewChatService(db *gorm.DB, idempotencyTTL time.Duration) *ChatService {
	return &ChatService{DB: db, IdempotencyTTL: idempotencyTTL}
}

// Create starts a new chat owned by userID from its initial user message,
// then adds a list entry titled with the message's first characters. The two
// writes are a saga, not a transaction: if the list write fails the chat
// still exists and the error is returned for the caller to surface.
func (s *ChatService) Create(ctx context.Context, userID, text string) (*domain.Chat, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	chat, err := repo.CreateChat(ctx, s.DB, userID, text)
	if err != nil {
		return nil, err
	}

	if _, err := repo.AddChatListEntry(ctx, s.DB, userID, chat.ID, clipRunes(text, titleFromMessageLen)); err != nil {
		return nil, err
	}
	return chat, nil
}

// List returns the owner's chat-list entries, newest first. A user with no
// chats gets an empty slice.
func (s *ChatService) List(ctx context.Context, userID string) ([]domain.ChatListEntry, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "List",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	return repo.ListChatListEntries(ctx, s.DB, userID)
}

// ListStats returns (count, latest update time) for the owner's chat list,
// used by the HTTP layer for conditional responses.
func (s *ChatService) ListStats(ctx context.Context, userID string) (int64, *time.Time, error) {
	return repo.ChatListStats(ctx, s.DB, userID)
}

// Get returns the full chat with its ordered history, scoped to the owner.
// A chat that does not exist and a chat owned by someone else are both
// ErrChatNotFound.
func (s *ChatService) Get(ctx context.Context, userID, chatID string) (*domain.Chat, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "Get",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("chat.id", chatID),
		),
	)
	defer span.End()

	chat, err := repo.GetChat(ctx, s.DB, chatID, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrChatNotFound
	}
	return chat, err
}

// AppendTurn appends a turn to the chat's history: a user message when
// question is non-empty, always followed by a model message carrying answer.
// imageRef, when set, attaches to the user message. Returns how many messages
// were appended (0 when an idempotency key suppressed a resubmission).
func (s *ChatService) AppendTurn(ctx context.Context, userID, chatID, question, answer, imageRef, idemKey string) (int, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "AppendTurn",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("chat.id", chatID),
		),
	)
	defer span.End()

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return 0, ErrEmptyAnswer
	}
	question = strings.TrimSpace(question)

	if idemKey != "" && s.IdempotencyTTL > 0 {
		ok, err := s.claimIdempotency(ctx, userID, chatID, idemKey)
		if err != nil {
			return 0, err
		}
		if !ok {
			span.SetAttributes(attribute.Bool("idempotent.replay", true))
			return 0, nil
		}
	}

	var msgs []domain.Message
	if question != "" {
		msgs = append(msgs, domain.Message{Role: domain.RoleUser, Text: question, ImageRef: imageRef})
	}
	msgs = append(msgs, domain.Message{Role: domain.RoleModel, Text: answer})

	if err := repo.AppendMessages(ctx, s.DB, chatID, userID, msgs); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return 0, ErrChatNotFound
		}
		return 0, err
	}
	return len(msgs), nil
}

// claimIdempotency reports whether this (user, chat, key) tuple is fresh.
// The ownership check happens later in the append itself, so a claim against
// a foreign chat burns a key but mutates nothing.
func (s *ChatService) claimIdempotency(ctx context.Context, userID, chatID, key string) (bool, error) {
	if _, err := repo.GetIdempotency(ctx, s.DB, userID, chatID, key, time.Now().UTC()); err == nil {
		return false, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return false, err
	}
	if _, err := repo.CreateIdempotency(ctx, s.DB, userID, chatID, key, s.IdempotencyTTL); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete removes the chat and then its list entry. When the chat is absent
// or foreign the list is left untouched and ErrChatNotFound is returned.
func (s *ChatService) Delete(ctx context.Context, userID, chatID string) error {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "Delete",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("chat.id", chatID),
		),
	)
	defer span.End()

	if err := repo.DeleteChat(ctx, s.DB, chatID, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrChatNotFound
		}
		return err
	}
	return repo.RemoveChatListEntry(ctx, s.DB, userID, chatID)
}

// Rename updates the list-entry title for chatID. Titles are trimmed and
// clipped; empty titles are rejected before any write.
func (s *ChatService) Rename(ctx context.Context, userID, chatID, title string) error {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "Rename",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("chat.id", chatID),
		),
	)
	defer span.End()

	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}
	if utf8.RuneCountInString(title) > titleMaxLen {
		title = clipRunes(title, titleMaxLen)
	}

	err := repo.RenameChatListEntry(ctx, s.DB, userID, chatID, title)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrChatNotFound
	}
	return err
}
