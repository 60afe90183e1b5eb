// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Chat
// aggregate and its message history.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a chat is not found (or is owned by someone else), functions
//     return gorm.ErrRecordNotFound (also exported here as ErrNotFound).
//     Callers cannot distinguish "absent" from "not yours" by design.
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// This repository is designed to be wrapped by a higher-level service
// (see services.ChatService) which enforces business rules and the
// cross-aggregate chat-list bookkeeping.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/smartlearn/study-assistant-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateChat inserts a new Chat row owned by userID together with its first
// user message. Both rows are written in one transaction so a chat can never
// exist with an empty history.
func CreateChat(ctx context.Context, db *gorm.DB, userID, text string) (*domain.Chat, error) {
	c := &domain.Chat{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		first := &domain.Message{
			ID:        uuid.NewString(),
			ChatID:    c.ID,
			Role:      domain.RoleUser,
			Text:      text,
			Seq:       0,
			CreatedAt: time.Now().UTC(),
		}
		return tx.Create(first).Error
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetChat fetches a single chat by its ID and owner (userID), with its full
// message history ordered by Seq ascending. If the record does not exist or
// belongs to another owner, it returns ErrNotFound.
func GetChat(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Chat, error) {
	var c domain.Chat
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	err = db.WithContext(ctx).
		Where("chat_id = ?", id).
		Order("seq ASC").
		Find(&c.History).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ChatExists reports whether a chat with the given ID is owned by userID.
func ChatExists(ctx context.Context, db *gorm.DB, id, userID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Chat{}).
		Where("id = ? AND user_id = ?", id, userID).
		Count(&n).Error
	return n > 0, err
}

// AppendMessages appends the given messages to the chat's history in order,
// scoped to the owner. Seq values are assigned from the current maximum
// inside the transaction, so the pair lands contiguously even under
// concurrent appends (relative order across racing requests is whichever
// transaction commits first).
//
// Returns ErrNotFound without writing anything when the chat does not exist
// for that owner.
func AppendMessages(ctx context.Context, db *gorm.DB, chatID, userID string, msgs []domain.Message) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := ChatExists(ctx, tx, chatID, userID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}

		var next int64
		if err := tx.Raw(
			"SELECT COALESCE(MAX(seq), -1) + 1 FROM messages WHERE chat_id = ?", chatID,
		).Scan(&next).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		for i := range msgs {
			msgs[i].ID = uuid.NewString()
			msgs[i].ChatID = chatID
			msgs[i].Seq = next + int64(i)
			msgs[i].CreatedAt = now
			if err := tx.Create(&msgs[i]).Error; err != nil {
				return err
			}
		}

		// Touch the parent so list ETags change.
		return tx.Model(&domain.Chat{}).
			Where("id = ?", chatID).
			Update("updated_at", now).Error
	})
}

// DeleteChat removes a chat and its messages, scoped to the owner. Message
// rows are removed explicitly rather than relying on the FK cascade, which
// SQLite only honors when foreign_keys is on.
//
// Returns ErrNotFound when no chat matched; in that case nothing is deleted.
func DeleteChat(ctx context.Context, db *gorm.DB, id, userID string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&domain.Chat{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("chat_id = ?", id).Delete(&domain.Message{}).Error
	})
}
