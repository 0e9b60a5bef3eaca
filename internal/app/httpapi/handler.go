package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	app "github.com/studytrack/backend/internal/app"
	"github.com/studytrack/backend/internal/app/domain/parent"
	"github.com/studytrack/backend/internal/app/domain/student"
	"github.com/studytrack/backend/internal/app/domain/task"
	"github.com/studytrack/backend/internal/app/metrics"
	apperrors "github.com/studytrack/backend/internal/errors"
	"github.com/studytrack/backend/internal/logging"
	"github.com/studytrack/backend/internal/platform/migrations"
)

// HandlerConfig wires the HTTP layer explicitly. DB is optional; when nil
// the database endpoints report the in-memory mode.
type HandlerConfig struct {
	App   *app.Application
	DB    *sql.DB
	Log   *logging.Logger
	Audit *AuditLog
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app   *app.Application
	db    *sql.DB
	log   *logging.Logger
	audit *AuditLog
}

// NewHandler returns the router exposing the REST API.
func NewHandler(cfg HandlerConfig) (*Router, error) {
	if cfg.App == nil {
		return nil, fmt.Errorf("handler requires an application")
	}
	log := cfg.Log
	if log == nil {
		log = logging.NewDefault("httpapi")
	}

	h := &handler{app: cfg.App, db: cfg.DB, log: log, audit: cfg.Audit}

	metricsHandler := metrics.Handler()
	routes := []Route{
		{Method: http.MethodGet, Pattern: "/", Handler: h.index},
		{Method: http.MethodPost, Pattern: "/", Handler: h.echoQuery},
		{Method: http.MethodGet, Pattern: "/healthz", Handler: h.health},
		{Method: http.MethodGet, Pattern: "/metrics", Handler: func(w http.ResponseWriter, r *http.Request) error {
			metricsHandler.ServeHTTP(w, r)
			return nil
		}},
		{Method: http.MethodGet, Pattern: "/db/status", Handler: h.dbStatus},
		{Method: http.MethodPost, Pattern: "/db/build", Handler: h.dbBuild},
		{Method: http.MethodGet, Pattern: "/audit", Handler: h.auditEntries},

		{Method: http.MethodPost, Pattern: "/students", Handler: h.createStudent},
		{Method: http.MethodGet, Pattern: "/students", Handler: h.listStudents},
		{Method: http.MethodGet, Pattern: "/students/{id}", Handler: h.getStudent},
		{Method: http.MethodPut, Pattern: "/students/{id}", Handler: h.updateStudent},
		{Method: http.MethodDelete, Pattern: "/students/{id}", Handler: h.deleteStudent},
		{Method: http.MethodGet, Pattern: "/students/{id}/tasks", Handler: h.studentTasks},

		{Method: http.MethodPost, Pattern: "/parents", Handler: h.createParent},
		{Method: http.MethodGet, Pattern: "/parents", Handler: h.listParents},
		{Method: http.MethodGet, Pattern: "/parents/{id}", Handler: h.getParent},
		{Method: http.MethodPut, Pattern: "/parents/{id}", Handler: h.updateParent},
		{Method: http.MethodDelete, Pattern: "/parents/{id}", Handler: h.deleteParent},
		{Method: http.MethodGet, Pattern: "/parents/{id}/tasks", Handler: h.parentTasks},

		{Method: http.MethodPost, Pattern: "/tasks", Handler: h.createTask},
		{Method: http.MethodGet, Pattern: "/tasks", Handler: h.listTasks},
		{Method: http.MethodGet, Pattern: "/tasks/{id}", Handler: h.getTask},
		{Method: http.MethodPut, Pattern: "/tasks/{id}", Handler: h.updateTask},
		{Method: http.MethodDelete, Pattern: "/tasks/{id}", Handler: h.deleteTask},
		{Method: http.MethodPost, Pattern: "/tasks/{id}/complete", Handler: h.completeTask},
		{Method: http.MethodGet, Pattern: "/tasks/{id}/history", Handler: h.taskHistory},
	}

	return NewRouter(RouterConfig{Routes: routes, Log: log, Audit: cfg.Audit})
}

// Health and database endpoints ----------------------------------------------

func (h *handler) index(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, map[string]string{"service": "studytrack-backend"})
	return nil
}

// echoQuery reflects the submitted query back to the caller, a quick
// connectivity check for clients.
func (h *handler) echoQuery(w http.ResponseWriter, r *http.Request) error {
	var payload struct {
		Query any `json:"query"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil && err != io.EOF {
		return apperrors.Validation(err.Error())
	}
	if payload.Query == nil {
		payload.Query = r.URL.Query().Get("query")
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": payload.Query})
	return nil
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	return nil
}

func (h *handler) dbStatus(w http.ResponseWriter, r *http.Request) error {
	if h.db == nil {
		writeJSON(w, http.StatusOK, map[string]string{"database": "memory"})
		return nil
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	ready, err := migrations.Ready(ctx, h.db)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{
			"database": "unavailable",
			"detail":   err.Error(),
		})
		return nil
	}
	if !ready {
		writeJSON(w, http.StatusOK, map[string]string{"database": "not ready"})
		return nil
	}
	writeJSON(w, http.StatusOK, map[string]string{"database": "ok"})
	return nil
}

// dbBuild applies the schema in the background so a slow database never
// stalls the request.
func (h *handler) dbBuild(w http.ResponseWriter, r *http.Request) error {
	if h.db == nil {
		return apperrors.Validation("no database configured")
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := migrations.Apply(ctx, h.db); err != nil {
			h.log.WithError(err).Error("background schema build failed")
			return
		}
		h.log.Info("schema build complete")
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "building"})
	return nil
}

func (h *handler) auditEntries(w http.ResponseWriter, r *http.Request) error {
	if h.audit == nil {
		writeJSON(w, http.StatusOK, []AuditEntry{})
		return nil
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return apperrors.Validation(fmt.Sprintf("invalid limit %q", raw))
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, h.audit.ListLimit(limit))
	return nil
}

// Student endpoints -----------------------------------------------------------

type studentPayload struct {
	Name        string `json:"name"`
	GradeLevel  string `json:"grade_level"`
	DateOfBirth string `json:"date_of_birth"`
}

type studentResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	GradeLevel  string    `json:"grade_level,omitempty"`
	DateOfBirth string    `json:"date_of_birth,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toStudentResponse(s student.Student) studentResponse {
	return studentResponse{
		ID:          s.ID,
		Name:        s.Name,
		GradeLevel:  s.GradeLevel,
		DateOfBirth: s.DateOfBirth,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func (h *handler) createStudent(w http.ResponseWriter, r *http.Request) error {
	var payload studentPayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		return apperrors.Validation(err.Error())
	}

	created, err := h.app.Students.Create(r.Context(), student.Student{
		Name:        payload.Name,
		GradeLevel:  payload.GradeLevel,
		DateOfBirth: payload.DateOfBirth,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, toStudentResponse(created))
	return nil
}

func (h *handler) listStudents(w http.ResponseWriter, r *http.Request) error {
	records, err := h.app.Students.List(r.Context())
	if err != nil {
		return err
	}
	out := make([]studentResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toStudentResponse(rec))
	}
	writeJSON(w, http.StatusOK, out)
	return nil
}

func (h *handler) getStudent(w http.ResponseWriter, r *http.Request) error {
	rec, err := h.app.Students.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, toStudentResponse(rec))
	return nil
}

func (h *handler) updateStudent(w http.ResponseWriter, r *http.Request) error {
	var payload studentPayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		return apperrors.Validation(err.Error())
	}

	updated, err := h.app.Students.Update(r.Context(), student.Student{
		ID:          mux.Vars(r)["id"],
		Name:        payload.Name,
		GradeLevel:  payload.GradeLevel,
		DateOfBirth: payload.DateOfBirth,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, toStudentResponse(updated))
	return nil
}

func (h *handler) deleteStudent(w http.ResponseWriter, r *http.Request) error {
	removed, err := h.app.Students.Delete(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
	return nil
}

func (h *handler) studentTasks(w http.ResponseWriter, r *http.Request) error {
	records, err := h.app.Students.Tasks(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, toTaskResponses(records))
	return nil
}

// Parent endpoints ------------------------------------------------------------

type parentPayload struct {
	Name     string   `json:"name"`
	ChildIDs []string `json:"child_ids"`
}

type parentResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ChildIDs  []string  `json:"child_ids"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toParentResponse(p parent.Parent) parentResponse {
	children := p.ChildIDs
	if children == nil {
		children = []string{}
	}
	return parentResponse{
		ID:        p.ID,
		Name:      p.Name,
		ChildIDs:  children,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func (h *handler) createParent(w http.ResponseWriter, r *http.Request) error {
	var payload parentPayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		return apperrors.Validation(err.Error())
	}

	created, err := h.app.Parents.Create(r.Context(), parent.Parent{
		Name:     payload.Name,
		ChildIDs: payload.ChildIDs,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, toParentResponse(created))
	return nil
}

func (h *handler) listParents(w http.ResponseWriter, r *http.Request) error {
	records, err := h.app.Parents.List(r.Context())
	if err != nil {
		return err
	}
	out := make([]parentResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toParentResponse(rec))
	}
	writeJSON(w, http.StatusOK, out)
	return nil
}

func (h *handler) getParent(w http.ResponseWriter, r *http.Request) error {
	rec, err := h.app.Parents.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, toParentResponse(rec))
	return nil
}

func (h *handler) updateParent(w http.ResponseWriter, r *http.Request) error {
	var payload parentPayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		return apperrors.Validation(err.Error())
	}

	updated, err := h.app.Parents.Update(r.Context(), parent.Parent{
		ID:       mux.Vars(r)["id"],
		Name:     payload.Name,
		ChildIDs: payload.ChildIDs,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, toParentResponse(updated))
	return nil
}

func (h *handler) deleteParent(w http.ResponseWriter, r *http.Request) error {
	removed, err := h.app.Parents.Delete(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
	return nil
}

func (h *handler) parentTasks(w http.ResponseWriter, r *http.Request) error {
	records, err := h.app.Parents.ChildTasks(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, toTaskResponses(records))
	return nil
}

// Task endpoints --------------------------------------------------------------

type taskPayload struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Completed   bool       `json:"completed"`
	StudentID   string     `json:"student_id"`
	DueAt       *time.Time `json:"due_at"`
}

type taskResponse struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Completed   bool       `json:"completed"`
	StudentID   string     `json:"student_id"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toTaskResponse(t task.Task) taskResponse {
	resp := taskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		StudentID:   t.StudentID,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if !t.DueAt.IsZero() {
		due := t.DueAt
		resp.DueAt = &due
	}
	return resp
}

func toTaskResponses(records []task.Task) []taskResponse {
	out := make([]taskResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toTaskResponse(rec))
	}
	return out
}

func taskFromPayload(id string, payload taskPayload) task.Task {
	rec := task.Task{
		ID:          id,
		Title:       payload.Title,
		Description: payload.Description,
		Completed:   payload.Completed,
		StudentID:   payload.StudentID,
	}
	if payload.DueAt != nil {
		rec.DueAt = payload.DueAt.UTC()
	}
	return rec
}

func (h *handler) createTask(w http.ResponseWriter, r *http.Request) error {
	var payload taskPayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		return apperrors.Validation(err.Error())
	}

	created, err := h.app.Tasks.Create(r.Context(), taskFromPayload("", payload))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, toTaskResponse(created))
	return nil
}

func (h *handler) listTasks(w http.ResponseWriter, r *http.Request) error {
	records, err := h.app.Tasks.List(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, toTaskResponses(records))
	return nil
}

func (h *handler) getTask(w http.ResponseWriter, r *http.Request) error {
	rec, err := h.app.Tasks.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, toTaskResponse(rec))
	return nil
}

func (h *handler) updateTask(w http.ResponseWriter, r *http.Request) error {
	var payload taskPayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		return apperrors.Validation(err.Error())
	}

	updated, err := h.app.Tasks.Update(r.Context(), taskFromPayload(mux.Vars(r)["id"], payload))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, toTaskResponse(updated))
	return nil
}

func (h *handler) deleteTask(w http.ResponseWriter, r *http.Request) error {
	removed, err := h.app.Tasks.Delete(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
	return nil
}

func (h *handler) completeTask(w http.ResponseWriter, r *http.Request) error {
	var payload struct {
		Completed *bool `json:"completed"`
	}
	// An empty body means "mark completed".
	if err := decodeJSON(r.Body, &payload); err != nil && err != io.EOF {
		return apperrors.Validation(err.Error())
	}
	completed := true
	if payload.Completed != nil {
		completed = *payload.Completed
	}

	updated, err := h.app.Tasks.SetCompleted(r.Context(), mux.Vars(r)["id"], completed)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, toTaskResponse(updated))
	return nil
}

func (h *handler) taskHistory(w http.ResponseWriter, r *http.Request) error {
	changes, err := h.app.Tasks.History(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		return err
	}
	type changeResponse struct {
		ID        string    `json:"id"`
		TaskID    string    `json:"task_id"`
		Completed bool      `json:"completed"`
		ChangedAt time.Time `json:"changed_at"`
	}
	out := make([]changeResponse, 0, len(changes))
	for _, c := range changes {
		out = append(out, changeResponse{
			ID:        c.ID,
			TaskID:    c.TaskID,
			Completed: c.Completed,
			ChangedAt: c.ChangedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
	return nil
}

// Helpers ---------------------------------------------------------------------

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeServiceError(w http.ResponseWriter, svcErr *apperrors.ServiceError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(svcErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"error": svcErr})
}
