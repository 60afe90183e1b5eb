// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/smartlearn/study-assistant-backend/internal/domain"
)

// ChatListStats returns aggregate metadata for a user's chat list: the total
// number of entries and the maximum UpdatedAt timestamp among them. When the
// user has no entries, the returned count is 0 and maxUpdatedAt is nil.
//
// The pair (count, maxUpdatedAt) changes whenever an entry is added, removed,
// or renamed, which makes it a cheap weak-ETag source for the list endpoint.
func ChatListStats(ctx context.Context, db *gorm.DB, userID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.ChatListEntry{}).Where("user_id = ?", userID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
