package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/smartlearn/study-assistant-backend/internal/gemini"
	"github.com/smartlearn/study-assistant-backend/internal/services"
)

func init() { gin.SetMode(gin.TestMode) }

// ----- Fake generator -----

type fakeGenerator struct {
	text   string
	cached bool
	err    error

	streamParts []string
	streamErr   error

	gotUser    string
	gotMessage string
	gotHistory []gemini.Turn
}

func (f *fakeGenerator) Generate(_ context.Context, userID string, history []gemini.Turn, message string) (string, bool, error) {
	f.gotUser, f.gotHistory, f.gotMessage = userID, history, message
	return f.text, f.cached, f.err
}

func (f *fakeGenerator) Stream(_ context.Context, userID string, history []gemini.Turn, message string, onChunk func(string) error) error {
	f.gotUser, f.gotHistory, f.gotMessage = userID, history, message
	for _, p := range f.streamParts {
		if err := onChunk(p); err != nil {
			return err
		}
	}
	return f.streamErr
}

func genRouter(g Generator) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("userID", "u1") })
	h := NewGenerateHandlers(g)
	r.POST("/generate", h.Generate)
	r.POST("/generate/stream", h.StreamGenerate)
	return r
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGenerate_OK(t *testing.T) {
	g := &fakeGenerator{text: "Photosynthesis converts light into sugar."}
	r := genRouter(g)

	w := postJSON(r, "/generate", `{"message":"explain photosynthesis","history":[{"role":"user","text":"hi"},{"role":"model","text":"hello"}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp GenerateResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Response != g.text || resp.Cached {
		t.Errorf("resp = %+v", resp)
	}
	if g.gotUser != "u1" || g.gotMessage != "explain photosynthesis" || len(g.gotHistory) != 2 {
		t.Errorf("generator got (%q, %q, %d turns)", g.gotUser, g.gotMessage, len(g.gotHistory))
	}
}

func TestGenerate_CachedFlagPassesThrough(t *testing.T) {
	r := genRouter(&fakeGenerator{text: "hit", cached: true})
	w := postJSON(r, "/generate", `{"message":"m"}`)

	var resp GenerateResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Cached {
		t.Error("cached = false, want true")
	}
}

func TestGenerate_ErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"empty message", services.ErrEmptyMessage, http.StatusBadRequest, ErrCodeBadRequest},
		{"blocked", &gemini.BlockedError{Reason: "SAFETY"}, http.StatusBadRequest, ErrCodeContentBlocked},
		{"unconfigured", gemini.ErrNotConfigured, http.StatusServiceUnavailable, ErrCodeUpstreamUnavailable},
		{"rate limited", &gemini.APIError{Code: 429}, http.StatusTooManyRequests, ErrCodeRateLimited},
		{"other", errors.New("boom"), http.StatusInternalServerError, ErrCodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := genRouter(&fakeGenerator{err: tc.err})
			w := postJSON(r, "/generate", `{"message":"m"}`)

			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			var resp ErrorResponse
			_ = json.Unmarshal(w.Body.Bytes(), &resp)
			if resp.Code != tc.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tc.wantCode)
			}
		})
	}
}

func TestGenerate_RateLimitedIncludesRetryAfter(t *testing.T) {
	r := genRouter(&fakeGenerator{err: &gemini.APIError{Code: 429}})
	w := postJSON(r, "/generate", `{"message":"m"}`)

	if got := w.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After = %q", got)
	}
	var resp ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.RetryAfter != 60 {
		t.Errorf("retry_after = %d", resp.RetryAfter)
	}
}

func TestGenerate_MissingMessage(t *testing.T) {
	r := genRouter(&fakeGenerator{})
	for _, body := range []string{`{}`, `{"history":[]}`, `not json`} {
		w := postJSON(r, "/generate", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q status = %d, want 400", body, w.Code)
		}
	}
}

func TestStreamGenerate_FramesAndDone(t *testing.T) {
	r := genRouter(&fakeGenerator{streamParts: []string{"Hel", "lo"}})
	w := postJSON(r, "/generate/stream", `{"message":"hi"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := w.Body.String()
	wantFrames := []string{
		`data: {"text":"Hel"}`,
		`data: {"text":"lo"}`,
		`data: {"done":true}`,
	}
	idx := -1
	for _, frame := range wantFrames {
		next := strings.Index(body, frame)
		if next < 0 || next < idx {
			t.Fatalf("frame %q missing or out of order in %q", frame, body)
		}
		idx = next
	}
}

func TestStreamGenerate_ErrorBecomesTerminalFrame(t *testing.T) {
	r := genRouter(&fakeGenerator{
		streamParts: []string{"partial"},
		streamErr:   &gemini.APIError{Code: 429},
	})
	w := postJSON(r, "/generate/stream", `{"message":"hi"}`)

	body := w.Body.String()
	if !strings.Contains(body, `data: {"text":"partial"}`) {
		t.Errorf("partial chunk missing: %q", body)
	}
	if !strings.Contains(body, `data: {"error":"AI service is busy, please retry shortly"}`) {
		t.Errorf("terminal error frame missing: %q", body)
	}
	if strings.Contains(body, `"done"`) {
		t.Error("done frame present after error")
	}
}

func TestStreamGenerate_MissingMessageIsPlainJSONError(t *testing.T) {
	r := genRouter(&fakeGenerator{})
	w := postJSON(r, "/generate/stream", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if strings.Contains(w.Header().Get("Content-Type"), "event-stream") {
		t.Error("validation failure should not commit SSE headers")
	}
}
