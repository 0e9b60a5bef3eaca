package tasks

import (
	"context"
	"io"
	"testing"

	"github.com/studytrack/backend/internal/app/domain/student"
	"github.com/studytrack/backend/internal/app/domain/task"
	"github.com/studytrack/backend/internal/app/storage/memory"
	apperrors "github.com/studytrack/backend/internal/errors"
	"github.com/studytrack/backend/internal/logging"
)

func newService(t *testing.T) (*Service, string) {
	t.Helper()
	store := memory.New()
	log := logging.New(logging.Config{Level: "error", Format: "text", Output: io.Discard})

	alice, err := store.CreateStudent(context.Background(), student.Student{Name: "alice"})
	if err != nil {
		t.Fatalf("CreateStudent: %v", err)
	}
	return New(store, store, log), alice.ID
}

func TestCreateRequiresExistingStudent(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, task.Task{Title: "essay", StudentID: "99"})
	if !apperrors.IsValidation(err) {
		t.Fatalf("expected validation error for unknown student, got %v", err)
	}
}

func TestCompletionTransitionRecordsHistory(t *testing.T) {
	svc, studentID := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, task.Task{Title: "essay", StudentID: studentID})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	done, err := svc.SetCompleted(ctx, created.ID, true)
	if err != nil {
		t.Fatalf("SetCompleted: %v", err)
	}
	if !done.Completed {
		t.Fatal("task should be completed")
	}

	// Setting the same state again must not append another entry.
	if _, err := svc.SetCompleted(ctx, created.ID, true); err != nil {
		t.Fatalf("repeat SetCompleted: %v", err)
	}

	reopened, err := svc.SetCompleted(ctx, created.ID, false)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.Completed {
		t.Fatal("task should be reopened")
	}

	history, err := svc.History(ctx, created.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("got %d history entries, want 2", len(history))
	}
	if !history[0].Completed || history[1].Completed {
		t.Fatalf("unexpected transition order: %+v", history)
	}
}

func TestUpdateWithoutCompletionChangeSkipsHistory(t *testing.T) {
	svc, studentID := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, task.Task{Title: "essay", StudentID: studentID})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	created.Title = "longer essay"
	if _, err := svc.Update(ctx, created); err != nil {
		t.Fatalf("Update: %v", err)
	}

	history, err := svc.History(ctx, created.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("title-only update should not record history, got %+v", history)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	svc, studentID := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, task.Task{Title: "essay", StudentID: studentID})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	removed, err := svc.Delete(ctx, created.ID)
	if err != nil || !removed {
		t.Fatalf("first delete: removed=%v err=%v", removed, err)
	}
	removed, err = svc.Delete(ctx, created.ID)
	if err != nil || removed {
		t.Fatalf("second delete: removed=%v err=%v", removed, err)
	}

	if _, err := svc.Get(ctx, created.ID); !apperrors.IsNotFound(err) {
		t.Fatalf("Get after delete: got %v, want not-found", err)
	}

	if _, err := svc.History(ctx, created.ID); !apperrors.IsNotFound(err) {
		t.Fatalf("History after delete: got %v, want not-found", err)
	}
}
