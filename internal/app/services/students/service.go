// Package students manages student records.
package students

import (
	"context"
	"fmt"

	"github.com/studytrack/backend/internal/app/domain/student"
	"github.com/studytrack/backend/internal/app/domain/task"
	"github.com/studytrack/backend/internal/app/storage"
	apperrors "github.com/studytrack/backend/internal/errors"
	"github.com/studytrack/backend/internal/logging"
)

// Service manages student records and their tasks.
type Service struct {
	store storage.StudentStore
	tasks storage.TaskStore
	log   *logging.Logger
}

// New constructs a student service.
func New(store storage.StudentStore, tasks storage.TaskStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("students")
	}
	return &Service{store: store, tasks: tasks, log: log}
}

// Create validates and stores a new student.
func (s *Service) Create(ctx context.Context, rec student.Student) (student.Student, error) {
	if err := rec.Validate(); err != nil {
		return student.Student{}, apperrors.Validation(err.Error())
	}

	created, err := s.store.CreateStudent(ctx, rec)
	if err != nil {
		return student.Student{}, err
	}
	s.log.WithContext(ctx).
		WithField("student_id", created.ID).
		Info("student created")
	return created, nil
}

// Get fetches a student by key.
func (s *Service) Get(ctx context.Context, id string) (student.Student, error) {
	return s.store.GetStudent(ctx, id)
}

// Update replaces a student's mutable fields atomically.
func (s *Service) Update(ctx context.Context, rec student.Student) (student.Student, error) {
	if err := rec.Validate(); err != nil {
		return student.Student{}, apperrors.Validation(err.Error())
	}

	updated, err := s.store.UpdateStudent(ctx, rec)
	if err != nil {
		return student.Student{}, err
	}
	s.log.WithContext(ctx).
		WithField("student_id", updated.ID).
		Info("student updated")
	return updated, nil
}

// Delete removes a student. Deleting an absent student is not an error; the
// bool reports whether a record was actually removed.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	removed, err := s.store.DeleteStudent(ctx, id)
	if err != nil {
		return false, err
	}
	if removed {
		s.log.WithContext(ctx).
			WithField("student_id", id).
			Info("student deleted")
	}
	return removed, nil
}

// List returns all students ordered by key.
func (s *Service) List(ctx context.Context) ([]student.Student, error) {
	return s.store.ListStudents(ctx)
}

// Tasks returns the tasks assigned to a student. The student must exist.
func (s *Service) Tasks(ctx context.Context, studentID string) ([]task.Task, error) {
	if _, err := s.store.GetStudent(ctx, studentID); err != nil {
		return nil, fmt.Errorf("student lookup failed: %w", err)
	}
	return s.tasks.ListTasksByStudent(ctx, studentID)
}
