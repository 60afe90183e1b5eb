// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the per-user
// chat list (the sidebar aggregate).
//
// The chat list is intentionally written separately from the Chat aggregate:
// services perform the chat write first and the list write second, accepting
// that a crash between the two leaves the list missing an entry. Functions
// here therefore never join against the chats table.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/smartlearn/study-assistant-backend/internal/domain"
)

// AddChatListEntry appends an entry for chatID to userID's chat list.
// The entry's CreatedAt mirrors the chat's creation time so list ordering
// matches chat age.
func AddChatListEntry(ctx context.Context, db *gorm.DB, userID, chatID, title string) (*domain.ChatListEntry, error) {
	e := &domain.ChatListEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		ChatID:    chatID,
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}

// ListChatListEntries returns all entries in userID's chat list ordered by
// creation time descending (most recent first). A user with no chats gets an
// empty slice, not an error.
func ListChatListEntries(ctx context.Context, db *gorm.DB, userID string) ([]domain.ChatListEntry, error) {
	out := []domain.ChatListEntry{}
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

// RenameChatListEntry updates the title of the entry for chatID in userID's
// list. If no rows are affected (entry missing or not owned by userID), it
// returns ErrNotFound.
func RenameChatListEntry(ctx context.Context, db *gorm.DB, userID, chatID, title string) error {
	res := db.WithContext(ctx).
		Model(&domain.ChatListEntry{}).
		Where("user_id = ? AND chat_id = ?", userID, chatID).
		Update("title", title)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// RemoveChatListEntry pulls the entry for chatID from userID's list. Removing
// an entry that does not exist is not an error: delete flows call this after
// the chat row is already gone and the list may never have had the entry.
func RemoveChatListEntry(ctx context.Context, db *gorm.DB, userID, chatID string) error {
	return db.WithContext(ctx).
		Where("user_id = ? AND chat_id = ?", userID, chatID).
		Delete(&domain.ChatListEntry{}).Error
}
