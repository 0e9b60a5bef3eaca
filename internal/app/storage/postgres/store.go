// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/lib/pq"

	"github.com/studytrack/backend/internal/app/domain/parent"
	"github.com/studytrack/backend/internal/app/domain/student"
	"github.com/studytrack/backend/internal/app/domain/task"
	"github.com/studytrack/backend/internal/app/storage"
	apperrors "github.com/studytrack/backend/internal/errors"
)

// Store implements the storage interfaces over a shared *sql.DB. The pool is
// owned by the caller; every query acquires and releases connections through
// database/sql so no exit path can leak one.
type Store struct {
	db *sql.DB
}

var _ storage.StudentStore = (*Store)(nil)
var _ storage.ParentStore = (*Store)(nil)
var _ storage.TaskStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// classify maps driver errors onto the service taxonomy: absent rows are
// NotFound, constraint violations are Validation, anything else means the
// store is unreachable or misbehaving.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound(op + ": record not found")
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// Class 23 covers integrity constraint violations.
		if len(pqErr.Code) >= 2 && pqErr.Code[:2] == "23" {
			return apperrors.Validation(op + ": " + pqErr.Message)
		}
	}
	return apperrors.Unavailable(op+": store unavailable", err)
}

// parseKey converts an external string key to the BIGSERIAL column value.
// Keys that are not integers cannot refer to any row, so they map to NotFound
// rather than a driver cast error.
func parseKey(kind, id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, apperrors.NotFound(fmt.Sprintf("%s %s not found", kind, id))
	}
	return n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// --- StudentStore -----------------------------------------------------------

func (s *Store) CreateStudent(ctx context.Context, rec student.Student) (student.Student, error) {
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO students (name, grade_level, date_of_birth, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, rec.Name, rec.GradeLevel, nullString(rec.DateOfBirth), rec.CreatedAt, rec.UpdatedAt).Scan(&id)
	if err != nil {
		return student.Student{}, classify("create student", err)
	}
	rec.ID = strconv.FormatInt(id, 10)
	return rec, nil
}

func (s *Store) GetStudent(ctx context.Context, id string) (student.Student, error) {
	key, err := parseKey("student", id)
	if err != nil {
		return student.Student{}, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, grade_level, date_of_birth, created_at, updated_at
		FROM students
		WHERE id = $1
	`, key)

	rec, err := scanStudent(row)
	if err != nil {
		return student.Student{}, classify("get student", err)
	}
	return rec, nil
}

func (s *Store) UpdateStudent(ctx context.Context, rec student.Student) (student.Student, error) {
	key, err := parseKey("student", rec.ID)
	if err != nil {
		return student.Student{}, err
	}
	rec.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE students
		SET name = $2, grade_level = $3, date_of_birth = $4, updated_at = $5
		WHERE id = $1
	`, key, rec.Name, rec.GradeLevel, nullString(rec.DateOfBirth), rec.UpdatedAt)
	if err != nil {
		return student.Student{}, classify("update student", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return student.Student{}, apperrors.NotFound(fmt.Sprintf("student %s not found", rec.ID))
	}
	return rec, nil
}

func (s *Store) DeleteStudent(ctx context.Context, id string) (bool, error) {
	key, err := parseKey("student", id)
	if err != nil {
		return false, nil
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, key)
	if err != nil {
		return false, classify("delete student", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func (s *Store) ListStudents(ctx context.Context) ([]student.Student, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, grade_level, date_of_birth, created_at, updated_at
		FROM students
		ORDER BY id
	`)
	if err != nil {
		return nil, classify("list students", err)
	}
	defer rows.Close()

	var result []student.Student
	for rows.Next() {
		rec, err := scanStudent(rows)
		if err != nil {
			return nil, classify("list students", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list students", err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStudent(row rowScanner) (student.Student, error) {
	var (
		rec   student.Student
		id    int64
		grade sql.NullString
		dob   sql.NullString
	)
	if err := row.Scan(&id, &rec.Name, &grade, &dob, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return student.Student{}, err
	}
	rec.ID = strconv.FormatInt(id, 10)
	rec.GradeLevel = grade.String
	rec.DateOfBirth = dob.String
	return rec, nil
}

// --- ParentStore ------------------------------------------------------------

func (s *Store) CreateParent(ctx context.Context, rec parent.Parent) (parent.Parent, error) {
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return parent.Parent{}, classify("create parent", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO parents (name, created_at, updated_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`, rec.Name, rec.CreatedAt, rec.UpdatedAt).Scan(&id)
	if err != nil {
		return parent.Parent{}, classify("create parent", err)
	}
	rec.ID = strconv.FormatInt(id, 10)

	if err := replaceChildrenTx(ctx, tx, id, rec.ChildIDs); err != nil {
		return parent.Parent{}, classify("create parent", err)
	}
	if err := tx.Commit(); err != nil {
		return parent.Parent{}, classify("create parent", err)
	}
	return rec, nil
}

func (s *Store) GetParent(ctx context.Context, id string) (parent.Parent, error) {
	key, err := parseKey("parent", id)
	if err != nil {
		return parent.Parent{}, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, created_at, updated_at
		FROM parents
		WHERE id = $1
	`, key)

	var (
		rec   parent.Parent
		rowID int64
	)
	if err := row.Scan(&rowID, &rec.Name, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return parent.Parent{}, classify("get parent", err)
	}
	rec.ID = strconv.FormatInt(rowID, 10)

	children, err := s.listChildren(ctx, rowID)
	if err != nil {
		return parent.Parent{}, err
	}
	rec.ChildIDs = children
	return rec, nil
}

func (s *Store) UpdateParent(ctx context.Context, rec parent.Parent) (parent.Parent, error) {
	rec.UpdatedAt = time.Now().UTC()

	id, err := parseKey("parent", rec.ID)
	if err != nil {
		return parent.Parent{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return parent.Parent{}, classify("update parent", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE parents
		SET name = $2, updated_at = $3
		WHERE id = $1
	`, id, rec.Name, rec.UpdatedAt)
	if err != nil {
		return parent.Parent{}, classify("update parent", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return parent.Parent{}, apperrors.NotFound(fmt.Sprintf("parent %s not found", rec.ID))
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM parent_children WHERE parent_id = $1`, id); err != nil {
		return parent.Parent{}, classify("update parent", err)
	}
	if err := replaceChildrenTx(ctx, tx, id, rec.ChildIDs); err != nil {
		return parent.Parent{}, classify("update parent", err)
	}
	if err := tx.Commit(); err != nil {
		return parent.Parent{}, classify("update parent", err)
	}
	return rec, nil
}

func (s *Store) DeleteParent(ctx context.Context, id string) (bool, error) {
	key, err := parseKey("parent", id)
	if err != nil {
		return false, nil
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM parents WHERE id = $1`, key)
	if err != nil {
		return false, classify("delete parent", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func (s *Store) ListParents(ctx context.Context) ([]parent.Parent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, created_at, updated_at
		FROM parents
		ORDER BY id
	`)
	if err != nil {
		return nil, classify("list parents", err)
	}
	defer rows.Close()

	var result []parent.Parent
	var rowIDs []int64
	for rows.Next() {
		var (
			rec   parent.Parent
			rowID int64
		)
		if err := rows.Scan(&rowID, &rec.Name, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, classify("list parents", err)
		}
		rec.ID = strconv.FormatInt(rowID, 10)
		result = append(result, rec)
		rowIDs = append(rowIDs, rowID)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list parents", err)
	}

	for i, rowID := range rowIDs {
		children, err := s.listChildren(ctx, rowID)
		if err != nil {
			return nil, err
		}
		result[i].ChildIDs = children
	}
	return result, nil
}

func (s *Store) listChildren(ctx context.Context, parentID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT student_id FROM parent_children WHERE parent_id = $1 ORDER BY student_id
	`, parentID)
	if err != nil {
		return nil, classify("list children", err)
	}
	defer rows.Close()

	var children []string
	for rows.Next() {
		var studentID int64
		if err := rows.Scan(&studentID); err != nil {
			return nil, classify("list children", err)
		}
		children = append(children, strconv.FormatInt(studentID, 10))
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list children", err)
	}
	return children, nil
}

func replaceChildrenTx(ctx context.Context, tx *sql.Tx, parentID int64, childIDs []string) error {
	for _, child := range childIDs {
		studentID, err := strconv.ParseInt(child, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid student id %q", child)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO parent_children (parent_id, student_id) VALUES ($1, $2)
		`, parentID, studentID); err != nil {
			return err
		}
	}
	return nil
}

// --- TaskStore --------------------------------------------------------------

func (s *Store) CreateTask(ctx context.Context, rec task.Task) (task.Task, error) {
	studentKey, err := parseKey("student", rec.StudentID)
	if err != nil {
		return task.Task{}, apperrors.Validation(fmt.Sprintf("student_id %q is not a valid key", rec.StudentID))
	}

	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO tasks (title, description, completed, student_id, due_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, rec.Title, rec.Description, rec.Completed, studentKey, nullTime(rec.DueAt), rec.CreatedAt, rec.UpdatedAt).Scan(&id)
	if err != nil {
		return task.Task{}, classify("create task", err)
	}
	rec.ID = strconv.FormatInt(id, 10)
	return rec, nil
}

func (s *Store) GetTask(ctx context.Context, id string) (task.Task, error) {
	key, err := parseKey("task", id)
	if err != nil {
		return task.Task{}, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, completed, student_id, due_at, created_at, updated_at
		FROM tasks
		WHERE id = $1
	`, key)

	rec, err := scanTask(row)
	if err != nil {
		return task.Task{}, classify("get task", err)
	}
	return rec, nil
}

func (s *Store) UpdateTask(ctx context.Context, rec task.Task) (task.Task, error) {
	key, err := parseKey("task", rec.ID)
	if err != nil {
		return task.Task{}, err
	}
	studentKey, err := parseKey("student", rec.StudentID)
	if err != nil {
		return task.Task{}, apperrors.Validation(fmt.Sprintf("student_id %q is not a valid key", rec.StudentID))
	}
	rec.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET title = $2, description = $3, completed = $4, student_id = $5, due_at = $6, updated_at = $7
		WHERE id = $1
	`, key, rec.Title, rec.Description, rec.Completed, studentKey, nullTime(rec.DueAt), rec.UpdatedAt)
	if err != nil {
		return task.Task{}, classify("update task", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return task.Task{}, apperrors.NotFound(fmt.Sprintf("task %s not found", rec.ID))
	}
	return rec, nil
}

func (s *Store) DeleteTask(ctx context.Context, id string) (bool, error) {
	key, err := parseKey("task", id)
	if err != nil {
		return false, nil
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, key)
	if err != nil {
		return false, classify("delete task", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func (s *Store) ListTasks(ctx context.Context) ([]task.Task, error) {
	return s.queryTasks(ctx, `
		SELECT id, title, description, completed, student_id, due_at, created_at, updated_at
		FROM tasks
		ORDER BY id
	`)
}

func (s *Store) ListTasksByStudent(ctx context.Context, studentID string) ([]task.Task, error) {
	key, err := parseKey("student", studentID)
	if err != nil {
		return nil, err
	}
	return s.queryTasks(ctx, `
		SELECT id, title, description, completed, student_id, due_at, created_at, updated_at
		FROM tasks
		WHERE student_id = $1
		ORDER BY id
	`, key)
}

func (s *Store) queryTasks(ctx context.Context, query string, args ...any) ([]task.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("list tasks", err)
	}
	defer rows.Close()

	var result []task.Task
	for rows.Next() {
		rec, err := scanTask(rows)
		if err != nil {
			return nil, classify("list tasks", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list tasks", err)
	}
	return result, nil
}

func scanTask(row rowScanner) (task.Task, error) {
	var (
		rec       task.Task
		id        int64
		studentID int64
		dueAt     sql.NullTime
	)
	if err := row.Scan(&id, &rec.Title, &rec.Description, &rec.Completed, &studentID, &dueAt, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return task.Task{}, err
	}
	rec.ID = strconv.FormatInt(id, 10)
	rec.StudentID = strconv.FormatInt(studentID, 10)
	if dueAt.Valid {
		rec.DueAt = dueAt.Time
	}
	return rec, nil
}

func (s *Store) AppendStatusChange(ctx context.Context, change task.StatusChange) (task.StatusChange, error) {
	taskKey, err := parseKey("task", change.TaskID)
	if err != nil {
		return task.StatusChange{}, err
	}
	if change.ChangedAt.IsZero() {
		change.ChangedAt = time.Now().UTC()
	}

	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO task_status_history (task_id, completed, changed_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`, taskKey, change.Completed, change.ChangedAt).Scan(&id)
	if err != nil {
		return task.StatusChange{}, classify("append status change", err)
	}
	change.ID = strconv.FormatInt(id, 10)
	return change, nil
}

func (s *Store) ListStatusHistory(ctx context.Context, taskID string) ([]task.StatusChange, error) {
	key, err := parseKey("task", taskID)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, completed, changed_at
		FROM task_status_history
		WHERE task_id = $1
		ORDER BY id
	`, key)
	if err != nil {
		return nil, classify("list status history", err)
	}
	defer rows.Close()

	var result []task.StatusChange
	for rows.Next() {
		var (
			change task.StatusChange
			id     int64
			taskID int64
		)
		if err := rows.Scan(&id, &taskID, &change.Completed, &change.ChangedAt); err != nil {
			return nil, classify("list status history", err)
		}
		change.ID = strconv.FormatInt(id, 10)
		change.TaskID = strconv.FormatInt(taskID, 10)
		result = append(result, change)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list status history", err)
	}
	return result, nil
}
