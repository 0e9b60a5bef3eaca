package httpapi

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/gorilla/mux"

	apperrors "github.com/studytrack/backend/internal/errors"
	"github.com/studytrack/backend/internal/logging"
)

// HandlerFunc is a route handler that reports failure instead of writing
// error responses itself. The router maps the returned error to exactly one
// response.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Route binds one method and path pattern to a handler. Patterns use
// {name} segments for variables, e.g. "/tasks/{id}".
type Route struct {
	Method  string
	Pattern string
	Handler HandlerFunc
}

// RouterConfig is the explicit configuration for a Router. There is no
// package-level route registry; every route is passed in here.
type RouterConfig struct {
	Routes []Route
	Log    *logging.Logger
	Audit  *AuditLog
}

// Router resolves request paths to handlers. Resolution prefers the most
// specific matching pattern: static segments beat variable segments, with
// registration order breaking remaining ties.
type Router struct {
	mux    *mux.Router
	routes []Route
	log    *logging.Logger
	audit  *AuditLog
}

// NewRouter validates and indexes the configured routes.
func NewRouter(cfg RouterConfig) (*Router, error) {
	log := cfg.Log
	if log == nil {
		log = logging.NewDefault("httpapi")
	}

	routes := make([]Route, len(cfg.Routes))
	copy(routes, cfg.Routes)
	for i, rt := range routes {
		if rt.Method == "" {
			return nil, fmt.Errorf("route %d: method is required", i)
		}
		if !strings.HasPrefix(rt.Pattern, "/") {
			return nil, fmt.Errorf("route %d: pattern %q must start with /", i, rt.Pattern)
		}
		if rt.Handler == nil {
			return nil, fmt.Errorf("route %d: handler is required", i)
		}
		routes[i].Method = strings.ToUpper(rt.Method)
	}

	// Most specific first; SliceStable keeps registration order for ties.
	sort.SliceStable(routes, func(i, j int) bool {
		return moreSpecific(routes[i].Pattern, routes[j].Pattern)
	})

	r := &Router{
		mux:    mux.NewRouter(),
		routes: routes,
		log:    log,
		audit:  cfg.Audit,
	}

	for i, rt := range routes {
		r.mux.Handle(rt.Pattern, r.wrap(rt)).Methods(rt.Method).Name(fmt.Sprintf("route-%d", i))
	}
	r.mux.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeServiceError(w, apperrors.NotFound(fmt.Sprintf("no route for %s", req.URL.Path)))
	})
	r.mux.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeServiceError(w, apperrors.MethodNotAllowed(req.Method, req.URL.Path))
	})

	return r, nil
}

// Resolve returns the route that would handle the given path and method
// without invoking its handler.
func (r *Router) Resolve(path, method string) (Route, error) {
	req := &http.Request{
		Method: strings.ToUpper(method),
		URL:    &url.URL{Path: path},
	}

	// With NotFound/MethodNotAllowed handlers installed, Match reports true
	// and records the failure in MatchErr instead.
	var match mux.RouteMatch
	matched := r.mux.Match(req, &match)
	if !matched || match.MatchErr != nil || match.Route == nil {
		if match.MatchErr == mux.ErrMethodMismatch {
			return Route{}, apperrors.MethodNotAllowed(method, path)
		}
		return Route{}, apperrors.NotFound(fmt.Sprintf("no route for %s", path))
	}

	name := match.Route.GetName()
	var idx int
	if _, err := fmt.Sscanf(name, "route-%d", &idx); err != nil || idx < 0 || idx >= len(r.routes) {
		return Route{}, apperrors.Internal(fmt.Sprintf("unindexed route %q", name), nil)
	}
	return r.routes[idx], nil
}

// ServeHTTP dispatches to the matched route's handler. The handler runs at
// most once per request and every failure, including a panic, produces
// exactly one error response.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	rec := &auditRecorder{ResponseWriter: w, status: http.StatusOK}
	r.mux.ServeHTTP(rec, req)

	if r.audit != nil {
		r.audit.Add(AuditEntry{
			Path:       req.URL.Path,
			Method:     req.Method,
			Status:     rec.status,
			RemoteAddr: req.RemoteAddr,
			UserAgent:  req.UserAgent(),
		})
	}
}

func (r *Router) wrap(rt Route) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				r.log.WithContext(req.Context()).
					WithField("panic", fmt.Sprintf("%v", rec)).
					WithField("path", req.URL.Path).
					Error("handler panicked")
				writeServiceError(w, apperrors.Internal("internal server error", nil))
			}
		}()

		if err := rt.Handler(w, req); err != nil {
			r.writeFailure(w, req, err)
		}
	})
}

// writeFailure maps a handler error to one response. Unknown errors are
// reported as a generic internal failure; the cause stays in the logs.
func (r *Router) writeFailure(w http.ResponseWriter, req *http.Request, err error) {
	svcErr := apperrors.GetServiceError(err)
	if svcErr == nil {
		svcErr = apperrors.Internal("internal server error", err)
	}

	if svcErr.HTTPStatus >= http.StatusInternalServerError {
		r.log.WithContext(req.Context()).
			WithError(err).
			WithField("path", req.URL.Path).
			WithField("method", req.Method).
			Error("request failed")
		// Never leak internal details to clients.
		svcErr = &apperrors.ServiceError{
			Code:       svcErr.Code,
			Message:    "internal server error",
			HTTPStatus: svcErr.HTTPStatus,
		}
		if svcErr.Code == apperrors.CodeUnavailable {
			svcErr.Message = "service unavailable"
		}
	}

	writeServiceError(w, svcErr)
}

// moreSpecific orders patterns segment by segment: static segments beat
// variables, and on a shared prefix the longer pattern wins.
func moreSpecific(a, b string) bool {
	as := strings.Split(strings.Trim(a, "/"), "/")
	bs := strings.Split(strings.Trim(b, "/"), "/")

	for i := 0; i < len(as) && i < len(bs); i++ {
		aVar := isVariableSegment(as[i])
		bVar := isVariableSegment(bs[i])
		if aVar != bVar {
			return bVar
		}
	}
	return len(as) > len(bs)
}

func isVariableSegment(seg string) bool {
	return strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}")
}

type auditRecorder struct {
	http.ResponseWriter
	status int
}

func (r *auditRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
