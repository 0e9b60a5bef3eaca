// Package tasks manages task records and their completion history.
package tasks

import (
	"context"
	"fmt"

	"github.com/studytrack/backend/internal/app/domain/task"
	"github.com/studytrack/backend/internal/app/metrics"
	"github.com/studytrack/backend/internal/app/storage"
	apperrors "github.com/studytrack/backend/internal/errors"
	"github.com/studytrack/backend/internal/logging"
)

// Service manages tasks. Every completion-state transition is recorded in
// the status history.
type Service struct {
	store    storage.TaskStore
	students storage.StudentStore
	log      *logging.Logger
}

// New constructs a task service.
func New(store storage.TaskStore, students storage.StudentStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("tasks")
	}
	return &Service{store: store, students: students, log: log}
}

// Create validates and stores a new task. The referenced student must exist.
func (s *Service) Create(ctx context.Context, rec task.Task) (task.Task, error) {
	if err := rec.Validate(); err != nil {
		return task.Task{}, apperrors.Validation(err.Error())
	}
	if _, err := s.students.GetStudent(ctx, rec.StudentID); err != nil {
		if apperrors.IsNotFound(err) {
			return task.Task{}, apperrors.Validation(fmt.Sprintf("student %s does not exist", rec.StudentID))
		}
		return task.Task{}, err
	}

	created, err := s.store.CreateTask(ctx, rec)
	if err != nil {
		return task.Task{}, err
	}
	s.log.WithContext(ctx).
		WithField("task_id", created.ID).
		WithField("student_id", created.StudentID).
		Info("task created")

	if created.Completed {
		s.recordTransition(ctx, created)
	}
	return created, nil
}

// Get fetches a task by key.
func (s *Service) Get(ctx context.Context, id string) (task.Task, error) {
	return s.store.GetTask(ctx, id)
}

// Update replaces a task atomically. A change in completion state appends a
// history entry; other updates do not.
func (s *Service) Update(ctx context.Context, rec task.Task) (task.Task, error) {
	if err := rec.Validate(); err != nil {
		return task.Task{}, apperrors.Validation(err.Error())
	}

	previous, err := s.store.GetTask(ctx, rec.ID)
	if err != nil {
		return task.Task{}, err
	}
	if rec.StudentID != previous.StudentID {
		if _, err := s.students.GetStudent(ctx, rec.StudentID); err != nil {
			if apperrors.IsNotFound(err) {
				return task.Task{}, apperrors.Validation(fmt.Sprintf("student %s does not exist", rec.StudentID))
			}
			return task.Task{}, err
		}
	}

	updated, err := s.store.UpdateTask(ctx, rec)
	if err != nil {
		return task.Task{}, err
	}
	s.log.WithContext(ctx).
		WithField("task_id", updated.ID).
		Info("task updated")

	if updated.Completed != previous.Completed {
		s.recordTransition(ctx, updated)
		if updated.Completed {
			metrics.RecordTaskCompletion()
		}
	}
	return updated, nil
}

// SetCompleted flips only the completion flag, leaving other fields intact.
func (s *Service) SetCompleted(ctx context.Context, id string, completed bool) (task.Task, error) {
	rec, err := s.store.GetTask(ctx, id)
	if err != nil {
		return task.Task{}, err
	}
	if rec.Completed == completed {
		return rec, nil
	}
	rec.Completed = completed
	return s.Update(ctx, rec)
}

// Delete removes a task and its history. Idempotent; the bool reports
// whether a record was actually removed.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	removed, err := s.store.DeleteTask(ctx, id)
	if err != nil {
		return false, err
	}
	if removed {
		s.log.WithContext(ctx).
			WithField("task_id", id).
			Info("task deleted")
	}
	return removed, nil
}

// List returns all tasks ordered by key.
func (s *Service) List(ctx context.Context) ([]task.Task, error) {
	return s.store.ListTasks(ctx)
}

// History returns the completion-state transitions of a task in order. The
// task must exist.
func (s *Service) History(ctx context.Context, taskID string) ([]task.StatusChange, error) {
	if _, err := s.store.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	return s.store.ListStatusHistory(ctx, taskID)
}

// recordTransition appends a history entry. History failures must not fail
// the write that triggered them; they are logged and dropped.
func (s *Service) recordTransition(ctx context.Context, rec task.Task) {
	_, err := s.store.AppendStatusChange(ctx, task.StatusChange{
		TaskID:    rec.ID,
		Completed: rec.Completed,
	})
	if err != nil {
		s.log.WithContext(ctx).
			WithError(err).
			WithField("task_id", rec.ID).
			Warn("record status change failed")
	}
}
