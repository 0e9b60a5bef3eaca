package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/studytrack/backend/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New(logging.Config{Level: "error", Format: "text", Output: io.Discard})
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORSPreflight(t *testing.T) {
	handler := NewCORSMiddleware([]string{"*"}).Handler(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/tasks", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("Allow-Origin = %q", got)
	}
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	handler := NewCORSMiddleware([]string{"https://app.example.com"}).Handler(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, X-Trace-ID" {
		t.Fatalf("Allow-Headers = %q", got)
	}
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	handler := NewCORSMiddleware([]string{"https://app.example.com"}).Handler(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	req.Header.Set("Origin", "https://evil.example.net")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("Allow-Origin should be empty for unknown origin, got %q", got)
	}
}

func TestRateLimiterRejectsBurstOverflow(t *testing.T) {
	handler := NewRateLimiter(1, 2, testLogger()).Handler(okHandler())

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)
	}

	if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK {
		t.Fatalf("first two requests should pass, got %v", statuses)
	}
	if statuses[2] != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want %d", statuses[2], http.StatusTooManyRequests)
	}
}

func TestRateLimiterKeysByRemoteAddr(t *testing.T) {
	handler := NewRateLimiter(1, 1, testLogger()).Handler(okHandler())

	for _, addr := range []string{"10.0.0.1:5000", "10.0.0.2:5000"} {
		req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request from %s status = %d, want %d", addr, rec.Code, http.StatusOK)
		}
	}
}

func TestTracingGeneratesAndEchoesTraceID(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.GetTraceID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := NewTracingMiddleware(testLogger()).Handler(inner)

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen == "" {
		t.Fatal("trace ID missing from request context")
	}
	if got := rec.Header().Get("X-Trace-ID"); got != seen {
		t.Fatalf("response trace ID %q does not match context trace ID %q", got, seen)
	}
}

func TestTracingPreservesInboundTraceID(t *testing.T) {
	handler := NewTracingMiddleware(testLogger()).Handler(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	req.Header.Set("X-Trace-ID", "abc123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Trace-ID"); got != "abc123" {
		t.Fatalf("trace ID = %q, want abc123", got)
	}
}
