// Package domain defines the persistence models for chats, their message
// history, and the per-user chat list. These types are mapped with GORM and
// form the core data layer of the study-assistant backend.
package domain

import (
	"time"
)

// Message roles. The assistant side is called "model" on the wire to match
// the upstream generative API vocabulary.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Chat represents a conversation owned by a user. The chat itself carries no
// title; titles live on the owner's ChatListEntry so that renaming never
// touches the conversation document.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - UserID: identifier of the chat owner; indexed for efficient retrieval.
//     Immutable after creation.
//   - History: ordered messages, append-only; loaded on demand.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//
// Chats are hard-deleted: once removed there is no archive or soft-delete
// marker, and their messages cascade away with them.
type Chat struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_user_chats"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// History is the ordered conversation; populated by repo.GetChat.
	History []Message `json:"history" gorm:"foreignKey:ChatID;references:ID"`
}

// TableName returns the database table name for Chat.
func (Chat) TableName() string { return "chats" }

// Message is a single utterance within a chat, authored either by "user" or
// "model". User messages may carry an opaque reference to an externally
// hosted image. Messages are immutable once appended.
//
// Seq orders messages within a chat: it is assigned inside the append
// transaction, so a user/model pair always lands in submission order.
type Message struct {
	ID        string    `json:"id"                  gorm:"type:char(36);primaryKey"`
	ChatID    string    `json:"chat_id"             gorm:"type:char(36);not null;index:idx_chat_msgs,priority:1"`
	Role      string    `json:"role"                gorm:"type:varchar(16);not null;check:role IN ('user','model')"`
	Text      string    `json:"text"                gorm:"type:text;not null"`
	ImageRef  string    `json:"image_ref,omitempty" gorm:"type:varchar(512)"`
	Seq       int64     `json:"seq"                 gorm:"not null;index:idx_chat_msgs,priority:2"`
	CreatedAt time.Time `json:"created_at"`

	// Chat is the parent conversation. Messages are cascade-deleted
	// if their chat is removed.
	Chat Chat `json:"-" gorm:"foreignKey:ChatID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// ChatListEntry is one row of a user's chat list: the sidebar view of a chat
// with its display title. Entries are unique per chat and scoped to the
// owner. The entry is written in a second step after the chat itself, so a
// crash between the two writes can leave a chat without a list entry; that
// window is accepted and the list is treated as eventually consistent.
type ChatListEntry struct {
	ID        string    `json:"-"          gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"-"          gorm:"type:varchar(64);not null;index:idx_user_chatlist"`
	ChatID    string    `json:"id"         gorm:"type:char(36);not null;uniqueIndex:ux_chatlist_chat"`
	Title     string    `json:"title"      gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`
}

// TableName returns the database table name for ChatListEntry.
func (ChatListEntry) TableName() string { return "chat_list_entries" }
