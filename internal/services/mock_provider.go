package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/smartlearn/study-assistant-backend/internal/gemini"
)

// mockChunkSize controls how the mock splits its streaming output.
const mockChunkSize = 48

// MockProvider implements Provider without network access. It is used when
// MOCK_AI is enabled (local development without an API key) and by tests;
// responses are derived from the incoming message so the chat UI stays
// exercisable end to end.
type MockProvider struct{}

// Generate returns a canned study-assistant style answer echoing the prompt.
func (MockProvider) Generate(_ context.Context, history []gemini.Turn, message string) (string, error) {
	return mockAnswer(history, message), nil
}

// Stream delivers the canned answer in fixed-size increments, honoring
// context cancellation between chunks.
func (MockProvider) Stream(ctx context.Context, history []gemini.Turn, message string, onChunk func(text string) error) error {
	answer := mockAnswer(history, message)
	runes := []rune(answer)
	for start := 0; start < len(runes); start += mockChunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + mockChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		if err := onChunk(string(runes[start:end])); err != nil {
			return err
		}
	}
	return nil
}

func mockAnswer(history []gemini.Turn, message string) string {
	topic := message
	if len(topic) > 60 {
		topic = topic[:60]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## Study notes\n\nYou asked: %q.\n\n", topic)
	b.WriteString("1. Key idea: this is a mock response generated without calling the AI provider.\n")
	b.WriteString("2. Context carried: ")
	fmt.Fprintf(&b, "%d prior message(s).\n", len(history))
	b.WriteString("3. Next step: set GEMINI_API_KEY and disable MOCK_AI for real answers.\n")
	return b.String()
}
