// Package reminders runs the scheduled overdue-task sweep.
package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/studytrack/backend/internal/app/domain/task"
	"github.com/studytrack/backend/internal/app/metrics"
	"github.com/studytrack/backend/internal/app/storage"
	"github.com/studytrack/backend/internal/logging"
)

// Service periodically scans tasks, publishes open/overdue counts, and logs
// a reminder for every overdue task. It participates in the application
// lifecycle as a managed service.
type Service struct {
	store    storage.TaskStore
	schedule string
	cron     *cron.Cron
	log      *logging.Logger
	now      func() time.Time
}

// New constructs the reminder sweeper with a cron schedule such as
// "@hourly" or "*/15 * * * *".
func New(store storage.TaskStore, schedule string, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("reminders")
	}
	return &Service{
		store:    store,
		schedule: schedule,
		log:      log,
		now:      time.Now,
	}
}

// Name implements system.Service.
func (s *Service) Name() string { return "reminders" }

// Start validates the schedule and begins the cron loop.
func (s *Service) Start(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() {
		if err := s.Sweep(context.Background()); err != nil {
			s.log.WithError(err).Warn("reminder sweep failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", s.schedule, err)
	}
	s.cron = c
	c.Start()
	s.log.WithField("schedule", s.schedule).Info("reminder sweeper started")
	return nil
}

// Stop halts the cron loop, waiting for an in-flight sweep to finish.
func (s *Service) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	s.cron = nil
	return nil
}

// Sweep counts open and overdue tasks, publishes the counts, and logs one
// reminder per overdue task.
func (s *Service) Sweep(ctx context.Context) error {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		metrics.RecordReminderSweep(false)
		return fmt.Errorf("list tasks: %w", err)
	}

	now := s.now().UTC()
	open := 0
	var overdue []task.Task
	for _, t := range tasks {
		if t.Completed {
			continue
		}
		open++
		if t.Overdue(now) {
			overdue = append(overdue, t)
		}
	}

	metrics.SetTaskCounts(open, len(overdue))
	metrics.RecordReminderSweep(true)

	for _, t := range overdue {
		s.log.WithField("task_id", t.ID).
			WithField("student_id", t.StudentID).
			WithField("due_at", t.DueAt.Format(time.RFC3339)).
			Warn("task overdue")
	}

	s.log.WithField("open", open).
		WithField("overdue", len(overdue)).
		Debug("reminder sweep complete")
	return nil
}

// WithClock overrides the time source. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}
