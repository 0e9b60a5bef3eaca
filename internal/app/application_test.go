package app

import (
	"context"
	"io"
	"testing"

	"github.com/studytrack/backend/internal/app/domain/student"
	"github.com/studytrack/backend/internal/logging"
)

func testLog() *logging.Logger {
	return logging.New(logging.Config{Level: "error", Format: "text", Output: io.Discard})
}

func TestNewDefaultsToSharedMemoryStore(t *testing.T) {
	ctx := context.Background()

	a, err := New(Stores{}, Options{}, testLog())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// All services must see the same store: a student created through the
	// student service is visible to the task service's validation.
	created, err := a.Students.Create(ctx, student.Student{Name: "alice"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	tasks, err := a.Students.Tasks(ctx, created.ID)
	if err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("new student should have no tasks, got %d", len(tasks))
	}
}

func TestLifecycleWithReminders(t *testing.T) {
	ctx := context.Background()

	a, err := New(Stores{}, Options{ReminderSchedule: "@hourly"}, testLog())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.Reminders == nil {
		t.Fatal("reminder service should be wired when a schedule is set")
	}

	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := a.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestRemindersDisabledWithoutSchedule(t *testing.T) {
	a, err := New(Stores{}, Options{}, testLog())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.Reminders != nil {
		t.Fatal("reminder service should be nil without a schedule")
	}
}
