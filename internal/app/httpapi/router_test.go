package httpapi

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "github.com/studytrack/backend/internal/errors"
	"github.com/studytrack/backend/internal/logging"
)

func quietLog() *logging.Logger {
	return logging.New(logging.Config{Level: "error", Format: "text", Output: io.Discard})
}

func namedHandler(name string, calls *[]string) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		*calls = append(*calls, name)
		writeJSON(w, http.StatusOK, map[string]string{"handler": name})
		return nil
	}
}

func TestResolvePrefersStaticOverVariable(t *testing.T) {
	var calls []string
	// Variable route registered first; the static route must still win.
	router, err := NewRouter(RouterConfig{
		Routes: []Route{
			{Method: http.MethodGet, Pattern: "/tasks/{id}", Handler: namedHandler("byID", &calls)},
			{Method: http.MethodGet, Pattern: "/tasks/stats", Handler: namedHandler("stats", &calls)},
		},
		Log: quietLog(),
	})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	rt, err := router.Resolve("/tasks/stats", http.MethodGet)
	if err != nil {
		t.Fatalf("Resolve /tasks/stats: %v", err)
	}
	if rt.Pattern != "/tasks/stats" {
		t.Fatalf("resolved %q, want /tasks/stats", rt.Pattern)
	}

	rt, err = router.Resolve("/tasks/7", http.MethodGet)
	if err != nil {
		t.Fatalf("Resolve /tasks/7: %v", err)
	}
	if rt.Pattern != "/tasks/{id}" {
		t.Fatalf("resolved %q, want /tasks/{id}", rt.Pattern)
	}
}

func TestResolveTieBreaksByRegistrationOrder(t *testing.T) {
	var calls []string
	router, err := NewRouter(RouterConfig{
		Routes: []Route{
			{Method: http.MethodGet, Pattern: "/things/{a}", Handler: namedHandler("first", &calls)},
			{Method: http.MethodGet, Pattern: "/things/{b}", Handler: namedHandler("second", &calls)},
		},
		Log: quietLog(),
	})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/things/x", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if len(calls) != 1 || calls[0] != "first" {
		t.Fatalf("equally specific routes must dispatch in registration order, got %v", calls)
	}
}

func TestResolveUnmatched(t *testing.T) {
	router, err := NewRouter(RouterConfig{
		Routes: []Route{
			{Method: http.MethodGet, Pattern: "/tasks", Handler: func(w http.ResponseWriter, r *http.Request) error { return nil }},
		},
		Log: quietLog(),
	})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	if _, err := router.Resolve("/nowhere", http.MethodGet); !apperrors.IsNotFound(err) {
		t.Fatalf("unmatched path: got %v, want not-found", err)
	}

	_, err = router.Resolve("/tasks", http.MethodDelete)
	svcErr := apperrors.GetServiceError(err)
	if svcErr == nil || svcErr.HTTPStatus != http.StatusMethodNotAllowed {
		t.Fatalf("method mismatch: got %v, want 405", err)
	}
}

func TestDispatchInvokesHandlerAtMostOnce(t *testing.T) {
	var calls []string
	router, err := NewRouter(RouterConfig{
		Routes: []Route{
			{Method: http.MethodGet, Pattern: "/tasks", Handler: namedHandler("list", &calls)},
			{Method: http.MethodGet, Pattern: "/tasks/{id}", Handler: namedHandler("byID", &calls)},
		},
		Log: quietLog(),
	})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if len(calls) != 1 {
		t.Fatalf("handler invoked %d times, want 1", len(calls))
	}
}

func TestPanicProducesGenericServerError(t *testing.T) {
	router, err := NewRouter(RouterConfig{
		Routes: []Route{
			{Method: http.MethodGet, Pattern: "/boom", Handler: func(w http.ResponseWriter, r *http.Request) error {
				panic("secret detail")
			}},
		},
		Log: quietLog(),
	})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "secret detail") {
		t.Fatalf("panic detail leaked to client: %s", rec.Body.String())
	}
}

func TestUnknownErrorMapsToGenericServerError(t *testing.T) {
	router, err := NewRouter(RouterConfig{
		Routes: []Route{
			{Method: http.MethodGet, Pattern: "/fail", Handler: func(w http.ResponseWriter, r *http.Request) error {
				return errors.New("database password is hunter2")
			}},
		},
		Log: quietLog(),
	})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/fail", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "hunter2") {
		t.Fatalf("internal detail leaked to client: %s", rec.Body.String())
	}
}

func TestNewRouterRejectsBadRoutes(t *testing.T) {
	cases := []Route{
		{Method: "", Pattern: "/x", Handler: func(w http.ResponseWriter, r *http.Request) error { return nil }},
		{Method: http.MethodGet, Pattern: "x", Handler: func(w http.ResponseWriter, r *http.Request) error { return nil }},
		{Method: http.MethodGet, Pattern: "/x", Handler: nil},
	}
	for i, rt := range cases {
		if _, err := NewRouter(RouterConfig{Routes: []Route{rt}, Log: quietLog()}); err == nil {
			t.Fatalf("case %d: expected construction to fail", i)
		}
	}
}
