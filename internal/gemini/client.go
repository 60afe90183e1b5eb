// Package gemini implements a minimal client for the Google generative
// language REST API (generateContent and streamGenerateContent). There is no
// official Go SDK in use here; the wire format is small enough that a thin
// net/http client keeps the dependency surface flat and the error mapping
// explicit.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// systemInstruction steers the model toward study-assistant behavior. Plain
// Unicode math only: the chat UI renders markdown, not LaTeX.
const systemInstruction = `You are an expert AI study assistant. Explain concepts at the
appropriate education level, create practice quizzes, summarize study
materials into key points, and walk through problems step by step.

Formatting rules:
- Use markdown headings, numbered lists, and bullet points.
- Never use LaTeX or dollar-sign math markup. Write formulas in plain
  Unicode instead: F = m × a, E = mc², σ = F/A, ax² + bx + c = 0.
- Keep tables simple (plain dashes, at most 4-5 columns); prefer lists.

Teaching approach: start with the big picture before details, connect new
concepts to familiar ones, add mnemonics where they help, be concise, and
end with actionable next steps or practice suggestions.`

// Turn is one prior exchange entry forwarded as conversation context.
type Turn struct {
	Role string // "user" or "model"; anything unrecognized is sent as "user"
	Text string
}

// Client talks to the generative language API. A Client with an empty API key
// is valid but returns ErrNotConfigured from every call, which lets the rest
// of the stack treat "unconfigured" as a normal runtime condition (503)
// instead of a startup failure.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client

	// streamClient carries no whole-request Timeout: a healthy SSE stream
	// may legitimately run longer than any single-attempt budget. The
	// timeout instead bounds dialing plus response headers, and the request
	// context governs the body read.
	streamClient *http.Client
}

// NewClient creates a Gemini client. timeout bounds each HTTP attempt; the
// retry wrapper above this client decides how many attempts happen. On the
// streaming transport the timeout covers only connection setup and response
// headers, never the delivery of an in-progress stream.
func NewClient(apiKey, model, baseURL string, timeout time.Duration) *Client {
	streamTransport := http.DefaultTransport
	if t, ok := http.DefaultTransport.(*http.Transport); ok {
		ct := t.Clone()
		ct.ResponseHeaderTimeout = timeout
		streamTransport = ct
	}
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		streamClient: &http.Client{
			Transport: streamTransport,
		},
	}
}

// Configured reports whether the client has an API key.
func (c *Client) Configured() bool { return c.apiKey != "" }

// ---- wire types ----

type wirePart struct {
	Text string `json:"text"`
}

type wireContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []wirePart `json:"parts"`
}

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type generationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
	TopP            float64 `json:"topP,omitempty"`
	TopK            int     `json:"topK,omitempty"`
}

type generateRequest struct {
	SystemInstruction *wireContent     `json:"system_instruction,omitempty"`
	Contents          []wireContent    `json:"contents"`
	SafetySettings    []safetySetting  `json:"safetySettings,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []wirePart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// defaultSafetySettings blocks medium-and-above harm across the four
// standard categories.
var defaultSafetySettings = []safetySetting{
	{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
	{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
	{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
	{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
}

// buildRequest assembles the request body shared by both transports.
func (c *Client) buildRequest(history []Turn, message string) generateRequest {
	contents := make([]wireContent, 0, len(history)+1)
	for _, t := range history {
		role := "user"
		if t.Role == "model" {
			role = "model"
		}
		contents = append(contents, wireContent{
			Role:  role,
			Parts: []wirePart{{Text: t.Text}},
		})
	}
	contents = append(contents, wireContent{
		Role:  "user",
		Parts: []wirePart{{Text: message}},
	})

	return generateRequest{
		SystemInstruction: &wireContent{Parts: []wirePart{{Text: systemInstruction}}},
		Contents:          contents,
		SafetySettings:    defaultSafetySettings,
		GenerationConfig: generationConfig{
			MaxOutputTokens: 8192,
			Temperature:     0.7,
			TopP:            0.9,
			TopK:            40,
		},
	}
}

// newHTTPRequest builds an authenticated POST against the given model method
// ("generateContent" or "streamGenerateContent?alt=sse").
func (c *Client) newHTTPRequest(ctx context.Context, method string, body any) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("gemini: marshal request: %w", err)
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:%s", c.baseURL, c.model, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("gemini: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)
	return req, nil
}

// apiErrorFrom decodes a non-2xx body into an *APIError. Bodies that are not
// the standard error envelope still produce a usable error with the raw text.
func apiErrorFrom(status int, body []byte) *APIError {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error.Message != "" {
		code := er.Error.Code
		if code == 0 {
			code = status
		}
		return &APIError{Code: code, Status: er.Error.Status, Message: er.Error.Message}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 400 {
		msg = msg[:400]
	}
	return &APIError{Code: status, Message: msg}
}

// Generate performs a blocking generation call and returns the full response
// text. History entries and the message are sent verbatim; length capping is
// the caller's concern.
func (c *Client) Generate(ctx context.Context, history []Turn, message string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	req, err := c.newHTTPRequest(ctx, "generateContent", c.buildRequest(history, message))
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("gemini: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apiErrorFrom(resp.StatusCode, body)
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("gemini: parse response: %w", err)
	}
	return textFrom(&parsed)
}

// textFrom extracts candidate text or converts block signals into errors.
func textFrom(r *generateResponse) (string, error) {
	if r.PromptFeedback != nil && r.PromptFeedback.BlockReason != "" {
		return "", &BlockedError{Reason: r.PromptFeedback.BlockReason}
	}
	if len(r.Candidates) == 0 {
		return "", fmt.Errorf("gemini: empty response")
	}
	cand := r.Candidates[0]
	if cand.FinishReason == "SAFETY" {
		return "", &BlockedError{Reason: cand.FinishReason}
	}
	var b strings.Builder
	for _, p := range cand.Content.Parts {
		b.WriteString(p.Text)
	}
	text := b.String()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("gemini: empty response")
	}
	return text, nil
}
