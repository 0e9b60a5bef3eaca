package app

import (
	"context"
	"fmt"

	"github.com/studytrack/backend/internal/app/services/parents"
	"github.com/studytrack/backend/internal/app/services/reminders"
	"github.com/studytrack/backend/internal/app/services/students"
	"github.com/studytrack/backend/internal/app/services/tasks"
	"github.com/studytrack/backend/internal/app/storage"
	"github.com/studytrack/backend/internal/app/storage/memory"
	"github.com/studytrack/backend/internal/app/system"
	"github.com/studytrack/backend/internal/logging"
)

// Stores encapsulates persistence dependencies. Nil stores default to a
// shared in-memory implementation.
type Stores struct {
	Students storage.StudentStore
	Parents  storage.ParentStore
	Tasks    storage.TaskStore
}

// Options tunes application construction.
type Options struct {
	// ReminderSchedule is a cron expression for the overdue-task sweep.
	// Empty disables the sweeper.
	ReminderSchedule string
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logging.Logger

	Students  *students.Service
	Parents   *parents.Service
	Tasks     *tasks.Service
	Reminders *reminders.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logging.Logger) (*Application, error) {
	if log == nil {
		log = logging.NewDefault("app")
	}

	mem := memory.New()
	if stores.Students == nil {
		stores.Students = mem
	}
	if stores.Parents == nil {
		stores.Parents = mem
	}
	if stores.Tasks == nil {
		stores.Tasks = mem
	}

	manager := system.NewManager()

	studentService := students.New(stores.Students, stores.Tasks, log)
	parentService := parents.New(stores.Parents, stores.Students, stores.Tasks, log)
	taskService := tasks.New(stores.Tasks, stores.Students, log)

	for _, name := range []string{"students", "parents", "tasks"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}

	var reminderService *reminders.Service
	if opts.ReminderSchedule != "" {
		reminderService = reminders.New(stores.Tasks, opts.ReminderSchedule, log)
		if err := manager.Register(reminderService); err != nil {
			return nil, fmt.Errorf("register %s: %w", reminderService.Name(), err)
		}
	} else {
		log.Warn("reminder schedule empty; overdue-task sweeper disabled")
	}

	return &Application{
		manager:   manager,
		log:       log,
		Students:  studentService,
		Parents:   parentService,
		Tasks:     taskService,
		Reminders: reminderService,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
