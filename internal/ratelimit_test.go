package internal

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestRateLimitSheds tests that a burst beyond the bucket size is rejected.
func TestRateLimitSheds(t *testing.T) {
	handler := NewRateLimitHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}), 1, 2)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/review/webhook", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusAccepted || codes[1] != http.StatusAccepted {
		t.Fatalf("expected first two requests accepted, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Fatalf("expected third request limited, got %v", codes)
	}
}

// TestRateLimitDisabled tests that a zero rps leaves the handler untouched.
func TestRateLimitDisabled(t *testing.T) {
	handler := NewRateLimitHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}), 0, 0)

	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/review/webhook", nil))
		if rec.Code != http.StatusAccepted {
			t.Fatalf("expected all requests accepted, got %d on attempt %d", rec.Code, i)
		}
	}
}
