// Package memory provides an in-memory implementation of the storage
// interfaces. It is safe for concurrent use and is primarily intended for
// tests and local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/studytrack/backend/internal/app/domain/parent"
	"github.com/studytrack/backend/internal/app/domain/student"
	"github.com/studytrack/backend/internal/app/domain/task"
	"github.com/studytrack/backend/internal/app/storage"
	apperrors "github.com/studytrack/backend/internal/errors"
)

// Store keeps all records behind a single mutex, which also gives the
// per-key serialization the update contract requires.
type Store struct {
	mu            sync.RWMutex
	nextID        int64
	nextHistoryID int64
	students      map[string]student.Student
	parents       map[string]parent.Parent
	tasks         map[string]task.Task
	history       map[string][]task.StatusChange
}

var _ storage.StudentStore = (*Store)(nil)
var _ storage.ParentStore = (*Store)(nil)
var _ storage.TaskStore = (*Store)(nil)

// New creates an empty store. Keys are sequential integers rendered as
// strings, starting at "1".
func New() *Store {
	return &Store{
		nextID:        1,
		nextHistoryID: 1,
		students:      make(map[string]student.Student),
		parents:       make(map[string]parent.Parent),
		tasks:         make(map[string]task.Task),
		history:       make(map[string][]task.StatusChange),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

func (s *Store) nextHistoryIDLocked() string {
	id := s.nextHistoryID
	s.nextHistoryID++
	return fmt.Sprintf("%d", id)
}

// StudentStore implementation -------------------------------------------------

func (s *Store) CreateStudent(_ context.Context, rec student.Student) (student.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = s.nextIDLocked()
	} else if _, exists := s.students[rec.ID]; exists {
		return student.Student{}, apperrors.Validation(fmt.Sprintf("student %s already exists", rec.ID))
	}

	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	s.students[rec.ID] = rec
	return rec, nil
}

func (s *Store) GetStudent(_ context.Context, id string) (student.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.students[id]
	if !ok {
		return student.Student{}, apperrors.NotFound(fmt.Sprintf("student %s not found", id))
	}
	return rec, nil
}

func (s *Store) UpdateStudent(_ context.Context, rec student.Student) (student.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.students[rec.ID]
	if !ok {
		return student.Student{}, apperrors.NotFound(fmt.Sprintf("student %s not found", rec.ID))
	}

	rec.CreatedAt = original.CreatedAt
	rec.UpdatedAt = time.Now().UTC()

	s.students[rec.ID] = rec
	return rec, nil
}

func (s *Store) DeleteStudent(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.students[id]; !ok {
		return false, nil
	}
	delete(s.students, id)
	return true, nil
}

func (s *Store) ListStudents(_ context.Context) ([]student.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]student.Student, 0, len(s.students))
	for _, rec := range s.students {
		result = append(result, rec)
	}
	sortByID(result, func(r student.Student) string { return r.ID })
	return result, nil
}

// ParentStore implementation --------------------------------------------------

func (s *Store) CreateParent(_ context.Context, rec parent.Parent) (parent.Parent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = s.nextIDLocked()
	} else if _, exists := s.parents[rec.ID]; exists {
		return parent.Parent{}, apperrors.Validation(fmt.Sprintf("parent %s already exists", rec.ID))
	}

	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.ChildIDs = append([]string(nil), rec.ChildIDs...)

	s.parents[rec.ID] = rec
	return cloneParent(rec), nil
}

func (s *Store) GetParent(_ context.Context, id string) (parent.Parent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.parents[id]
	if !ok {
		return parent.Parent{}, apperrors.NotFound(fmt.Sprintf("parent %s not found", id))
	}
	return cloneParent(rec), nil
}

func (s *Store) UpdateParent(_ context.Context, rec parent.Parent) (parent.Parent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.parents[rec.ID]
	if !ok {
		return parent.Parent{}, apperrors.NotFound(fmt.Sprintf("parent %s not found", rec.ID))
	}

	rec.CreatedAt = original.CreatedAt
	rec.UpdatedAt = time.Now().UTC()
	rec.ChildIDs = append([]string(nil), rec.ChildIDs...)

	s.parents[rec.ID] = rec
	return cloneParent(rec), nil
}

func (s *Store) DeleteParent(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.parents[id]; !ok {
		return false, nil
	}
	delete(s.parents, id)
	return true, nil
}

func (s *Store) ListParents(_ context.Context) ([]parent.Parent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]parent.Parent, 0, len(s.parents))
	for _, rec := range s.parents {
		result = append(result, cloneParent(rec))
	}
	sortByID(result, func(r parent.Parent) string { return r.ID })
	return result, nil
}

// TaskStore implementation ----------------------------------------------------

func (s *Store) CreateTask(_ context.Context, rec task.Task) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = s.nextIDLocked()
	} else if _, exists := s.tasks[rec.ID]; exists {
		return task.Task{}, apperrors.Validation(fmt.Sprintf("task %s already exists", rec.ID))
	}

	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	s.tasks[rec.ID] = rec
	return rec, nil
}

func (s *Store) GetTask(_ context.Context, id string) (task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.tasks[id]
	if !ok {
		return task.Task{}, apperrors.NotFound(fmt.Sprintf("task %s not found", id))
	}
	return rec, nil
}

func (s *Store) UpdateTask(_ context.Context, rec task.Task) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.tasks[rec.ID]
	if !ok {
		return task.Task{}, apperrors.NotFound(fmt.Sprintf("task %s not found", rec.ID))
	}

	rec.CreatedAt = original.CreatedAt
	rec.UpdatedAt = time.Now().UTC()

	s.tasks[rec.ID] = rec
	return rec, nil
}

func (s *Store) DeleteTask(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return false, nil
	}
	delete(s.tasks, id)
	delete(s.history, id)
	return true, nil
}

func (s *Store) ListTasks(_ context.Context) ([]task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]task.Task, 0, len(s.tasks))
	for _, rec := range s.tasks {
		result = append(result, rec)
	}
	sortByID(result, func(r task.Task) string { return r.ID })
	return result, nil
}

func (s *Store) ListTasksByStudent(_ context.Context, studentID string) ([]task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []task.Task
	for _, rec := range s.tasks {
		if rec.StudentID == studentID {
			result = append(result, rec)
		}
	}
	sortByID(result, func(r task.Task) string { return r.ID })
	return result, nil
}

func (s *Store) AppendStatusChange(_ context.Context, change task.StatusChange) (task.StatusChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[change.TaskID]; !ok {
		return task.StatusChange{}, apperrors.NotFound(fmt.Sprintf("task %s not found", change.TaskID))
	}

	change.ID = s.nextHistoryIDLocked()
	if change.ChangedAt.IsZero() {
		change.ChangedAt = time.Now().UTC()
	}

	s.history[change.TaskID] = append(s.history[change.TaskID], change)
	return change, nil
}

func (s *Store) ListStatusHistory(_ context.Context, taskID string) ([]task.StatusChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.history[taskID]
	result := make([]task.StatusChange, len(entries))
	copy(result, entries)
	return result, nil
}

func cloneParent(p parent.Parent) parent.Parent {
	p.ChildIDs = append([]string(nil), p.ChildIDs...)
	return p
}

// sortByID orders records by numeric key so listings are stable.
func sortByID[T any](items []T, id func(T) string) {
	sort.Slice(items, func(i, j int) bool {
		a, b := id(items[i]), id(items[j])
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		return a < b
	})
}
