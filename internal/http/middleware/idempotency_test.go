package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func idemRouter(lookup IdempotencyLookup) *gin.Engine {
	r := gin.New()
	r.Use(RequestID())
	r.Use(func(c *gin.Context) { c.Set("userID", "u1") })
	r.Use(IdempotencyValidator(IdempotencyOptions{}, lookup))
	r.PUT("/chats/:id", func(c *gin.Context) {
		key, _ := GetIdempotencyKey(c)
		c.JSON(http.StatusOK, gin.H{"key": key, "replay": IsReplay(c)})
	})
	return r
}

func TestIdempotencyValidator_NoHeaderIsNoop(t *testing.T) {
	r := idemRouter(nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/chats/c1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"key":""`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestIdempotencyValidator_RejectsMalformedKey(t *testing.T) {
	r := idemRouter(nil)

	for _, bad := range []string{"has space", "emoji🙂", strings.Repeat("k", 201)} {
		req := httptest.NewRequest(http.MethodPut, "/chats/c1", nil)
		req.Header.Set(HeaderIdempotencyKey, bad)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("key %q status = %d, want 400", bad, w.Code)
		}
	}
}

func TestIdempotencyValidator_MarksReplay(t *testing.T) {
	var gotUser, gotChat, gotKey string
	lookup := func(_ context.Context, userID, chatID, key string, _ time.Time) (bool, error) {
		gotUser, gotChat, gotKey = userID, chatID, key
		return key == "seen-before", nil
	}
	r := idemRouter(lookup)

	req := httptest.NewRequest(http.MethodPut, "/chats/c9", nil)
	req.Header.Set(HeaderIdempotencyKey, "seen-before")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if gotUser != "u1" || gotChat != "c9" || gotKey != "seen-before" {
		t.Errorf("lookup args = (%q, %q, %q)", gotUser, gotChat, gotKey)
	}
	if !strings.Contains(w.Body.String(), `"replay":true`) {
		t.Errorf("body = %s", w.Body.String())
	}

	// Fresh key: stashed but not a replay.
	req = httptest.NewRequest(http.MethodPut, "/chats/c9", nil)
	req.Header.Set(HeaderIdempotencyKey, "fresh-key")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if !strings.Contains(w.Body.String(), `"replay":false`) {
		t.Errorf("body = %s", w.Body.String())
	}
}
