// Package parents manages parent records and child scoping.
package parents

import (
	"context"
	"fmt"
	"sort"

	"github.com/studytrack/backend/internal/app/domain/parent"
	"github.com/studytrack/backend/internal/app/domain/task"
	"github.com/studytrack/backend/internal/app/storage"
	apperrors "github.com/studytrack/backend/internal/errors"
	"github.com/studytrack/backend/internal/logging"
)

// Service manages parent records. Child links are validated against the
// student store so a parent can never reference a student that does not
// exist.
type Service struct {
	store    storage.ParentStore
	students storage.StudentStore
	tasks    storage.TaskStore
	log      *logging.Logger
}

// New constructs a parent service.
func New(store storage.ParentStore, students storage.StudentStore, tasks storage.TaskStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("parents")
	}
	return &Service{store: store, students: students, tasks: tasks, log: log}
}

// Create validates and stores a new parent.
func (s *Service) Create(ctx context.Context, rec parent.Parent) (parent.Parent, error) {
	if err := rec.Validate(); err != nil {
		return parent.Parent{}, apperrors.Validation(err.Error())
	}
	if err := s.checkChildren(ctx, rec.ChildIDs); err != nil {
		return parent.Parent{}, err
	}

	created, err := s.store.CreateParent(ctx, rec)
	if err != nil {
		return parent.Parent{}, err
	}
	s.log.WithContext(ctx).
		WithField("parent_id", created.ID).
		WithField("children", len(created.ChildIDs)).
		Info("parent created")
	return created, nil
}

// Get fetches a parent by key.
func (s *Service) Get(ctx context.Context, id string) (parent.Parent, error) {
	return s.store.GetParent(ctx, id)
}

// Update replaces a parent's fields and child links atomically.
func (s *Service) Update(ctx context.Context, rec parent.Parent) (parent.Parent, error) {
	if err := rec.Validate(); err != nil {
		return parent.Parent{}, apperrors.Validation(err.Error())
	}
	if err := s.checkChildren(ctx, rec.ChildIDs); err != nil {
		return parent.Parent{}, err
	}

	updated, err := s.store.UpdateParent(ctx, rec)
	if err != nil {
		return parent.Parent{}, err
	}
	s.log.WithContext(ctx).
		WithField("parent_id", updated.ID).
		Info("parent updated")
	return updated, nil
}

// Delete removes a parent. Idempotent; the bool reports whether a record was
// actually removed.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	removed, err := s.store.DeleteParent(ctx, id)
	if err != nil {
		return false, err
	}
	if removed {
		s.log.WithContext(ctx).
			WithField("parent_id", id).
			Info("parent deleted")
	}
	return removed, nil
}

// List returns all parents ordered by key.
func (s *Service) List(ctx context.Context) ([]parent.Parent, error) {
	return s.store.ListParents(ctx)
}

// ChildTasks returns the tasks of every student linked to the parent,
// ordered by task key. Tasks of unlinked students are never included.
func (s *Service) ChildTasks(ctx context.Context, parentID string) ([]task.Task, error) {
	rec, err := s.store.GetParent(ctx, parentID)
	if err != nil {
		return nil, err
	}

	var all []task.Task
	for _, childID := range rec.ChildIDs {
		tasks, err := s.tasks.ListTasksByStudent(ctx, childID)
		if err != nil {
			return nil, fmt.Errorf("list tasks for student %s: %w", childID, err)
		}
		all = append(all, tasks...)
	}

	sort.Slice(all, func(i, j int) bool {
		a, b := all[i].ID, all[j].ID
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		return a < b
	})
	return all, nil
}

func (s *Service) checkChildren(ctx context.Context, childIDs []string) error {
	for _, id := range childIDs {
		if _, err := s.students.GetStudent(ctx, id); err != nil {
			if apperrors.IsNotFound(err) {
				return apperrors.Validation(fmt.Sprintf("child %s does not exist", id))
			}
			return err
		}
	}
	return nil
}
