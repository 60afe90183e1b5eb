package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/smartlearn/study-assistant-backend/internal/config"
	"github.com/smartlearn/study-assistant-backend/internal/domain"
	"github.com/smartlearn/study-assistant-backend/internal/media"
	"github.com/smartlearn/study-assistant-backend/internal/services"
)

func testConfig() config.Config {
	return config.Config{
		APIBasePath:      "/api",
		MockAI:           true,
		MaxRetries:       3,
		RetryBaseDelay:   time.Millisecond,
		HistoryMaxTurns:  10,
		MaxPromptChars:   8000,
		MaxStreamChars:   2000,
		CacheTTL:         time.Minute,
		CacheSweepPeriod: time.Minute,
		RateRPS:          1000,
		RateBurst:        1000,
		AIPerMin:         1000,
		MaxUploadBytes:   10 << 20,
		Auth:             config.AuthConfig{AllowHeader: true},
		IdempotencyTTL:   time.Hour,
		OTEL:             config.OTELConfig{ServiceName: "test"},
	}
}

func testRouter(t *testing.T, cfg config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Chat{}, &domain.Message{}, &domain.ChatListEntry{}, &domain.Idempotency{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	r := gin.New()
	RegisterRoutes(r, db, services.MockProvider{}, media.NewSigner(""), cfg)
	return r
}

func TestHealth(t *testing.T) {
	r := testRouter(t, testConfig())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestNoRouteEnvelope(t *testing.T) {
	r := testRouter(t, testConfig())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Code string `json:"code"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Code != "not_found" {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	r := testRouter(t, testConfig())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/health", nil))

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r := testRouter(t, testConfig())
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Accept-Encoding", "identity")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestChatsRequireIdentity(t *testing.T) {
	r := testRouter(t, testConfig())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/chats", nil))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestUploadAuthIsIdentityFree(t *testing.T) {
	// Unconfigured signer answers 503, not 401: the route must be reachable
	// without credentials.
	r := testRouter(t, testConfig())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/upload", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestChatFlowEndToEnd(t *testing.T) {
	r := testRouter(t, testConfig())

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-User-ID", "router-user")
		req.Header.Set("Accept-Encoding", "identity")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := do(http.MethodPost, "/api/chats", `{"text":"what is osmosis?"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d body = %s", w.Code, w.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	if created.ID == "" {
		t.Fatalf("missing chat id")
	}

	w = do(http.MethodPut, "/api/chats/"+created.ID,
		`{"question":"and reverse osmosis?","answer":"Pressure-driven."}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("append status = %d body = %s", w.Code, w.Body.String())
	}

	w = do(http.MethodGet, "/api/chats/"+created.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "reverse osmosis") {
		t.Errorf("history missing appended turn: %s", w.Body.String())
	}

	w = do(http.MethodGet, "/api/chats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}

	w = do(http.MethodDelete, "/api/chats/"+created.ID, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
}

func TestGenerateWithMockProvider(t *testing.T) {
	r := testRouter(t, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/generate",
		strings.NewReader(`{"message":"explain photosynthesis"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "router-user")
	req.Header.Set("Accept-Encoding", "identity")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Response string `json:"response"`
		Cached   bool   `json:"cached"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Response == "" {
		t.Errorf("empty response")
	}
	if resp.Cached {
		t.Errorf("first call marked cached")
	}
}

func TestRequestIDHeaderSet(t *testing.T) {
	r := testRouter(t, testConfig())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Header().Get("X-Request-ID") == "" {
		t.Errorf("missing X-Request-ID")
	}
}
