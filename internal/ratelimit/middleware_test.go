package ratelimit_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/veridex-labs/veridex/internal/model"
	"github.com/veridex-labs/veridex/internal/ratelimit"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareAllowsUnderLimit(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(10, 5)
	defer limiter.Close()

	h := ratelimit.Middleware(limiter, ratelimit.IPKeyFunc, nil)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/v1/identities", nil)
	req.RemoteAddr = "10.0.0.1:50000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestMiddlewareRejectsOverLimit(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(0.001, 1)
	defer limiter.Close()

	h := ratelimit.Middleware(limiter, ratelimit.IPKeyFunc, nil)(okHandler())

	first := httptest.NewRequest(http.MethodPost, "/v1/identities", nil)
	first.RemoteAddr = "10.0.0.2:50000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, first)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", rec.Code)
	}

	second := httptest.NewRequest(http.MethodPost, "/v1/identities", nil)
	second.RemoteAddr = "10.0.0.2:50001" // same IP, different port
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, second)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("Retry-After header missing")
	}

	var body model.APIError
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal error body: %v", err)
	}
	if body.Error.Code != model.ErrCodeRateLimited {
		t.Fatalf("error code = %q, want %q", body.Error.Code, model.ErrCodeRateLimited)
	}
}

func TestMiddlewareSkipsEmptyKey(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(0.001, 1)
	defer limiter.Close()

	skipAll := func(*http.Request) string { return "" }
	h := ratelimit.Middleware(limiter, skipAll, nil)(okHandler())

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/identities", nil)
		req.RemoteAddr = "10.0.0.3:50000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200 (key skipped)", i, rec.Code)
		}
	}
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("limiter down")
}
func (failingLimiter) Close() error { return nil }

func TestMiddlewareFailsOpenOnLimiterError(t *testing.T) {
	h := ratelimit.Middleware(failingLimiter{}, ratelimit.IPKeyFunc, nil)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/v1/identities", nil)
	req.RemoteAddr = "10.0.0.4:50000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (fail open)", rec.Code)
	}
}

func TestIPKeyFuncStripsPort(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.9:12345"
	if got := ratelimit.IPKeyFunc(req); got != "192.168.1.9" {
		t.Fatalf("key = %q, want 192.168.1.9", got)
	}
}
