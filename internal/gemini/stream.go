package gemini

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Stream performs a streaming generation call via the SSE transport
// (streamGenerateContent?alt=sse) and invokes onChunk for every text delta in
// arrival order. onChunk runs on the calling goroutine; returning an error
// from it aborts the stream and propagates that error.
//
// A safety block mid-stream surfaces as a *BlockedError after any text that
// was already delivered. Callers must treat delivered chunks as final.
func (c *Client) Stream(ctx context.Context, history []Turn, message string, onChunk func(text string) error) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	req, err := c.newHTTPRequest(ctx, "streamGenerateContent?alt=sse", c.buildRequest(history, message))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("gemini: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		return apiErrorFrom(resp.StatusCode, body)
	}

	scanner := bufio.NewScanner(resp.Body)
	// Individual SSE events can carry large markdown blocks.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	delivered := false
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var event generateResponse
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			return fmt.Errorf("gemini: parse stream event: %w", err)
		}
		if event.PromptFeedback != nil && event.PromptFeedback.BlockReason != "" {
			return &BlockedError{Reason: event.PromptFeedback.BlockReason}
		}
		for _, cand := range event.Candidates {
			for _, p := range cand.Content.Parts {
				if p.Text == "" {
					continue
				}
				if err := onChunk(p.Text); err != nil {
					return err
				}
				delivered = true
			}
			if cand.FinishReason == "SAFETY" {
				return &BlockedError{Reason: cand.FinishReason}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("gemini: read stream: %w", err)
	}
	if !delivered {
		return fmt.Errorf("gemini: empty response")
	}
	return nil
}
