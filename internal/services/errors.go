// Package services defines the business logic for generation and chat
// persistence. This file centralizes common service-level error values so
// that they can be consistently returned by service methods and checked by
// callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the handler
// layer.
package services

import "errors"

var (
	// ErrChatNotFound indicates that the requested chat does not exist or is
	// not accessible to the current user. Handlers must not distinguish the
	// two causes.
	ErrChatNotFound = errors.New("chat not found")

	// ErrEmptyMessage is returned when a generation or chat-creation request
	// carries an empty or whitespace-only message.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrEmptyAnswer is returned when an append-turn request is missing the
	// required model answer text.
	ErrEmptyAnswer = errors.New("answer is empty")

	// ErrEmptyTitle is returned when a rename request carries an empty or
	// whitespace-only title.
	ErrEmptyTitle = errors.New("title is empty")
)
