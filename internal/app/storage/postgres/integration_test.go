package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/studytrack/backend/internal/app/domain/student"
	"github.com/studytrack/backend/internal/app/domain/task"
	apperrors "github.com/studytrack/backend/internal/errors"
	"github.com/studytrack/backend/internal/platform/migrations"
)

func TestStoreIntegration(t *testing.T) {
	_ = godotenv.Load() // allow .env for local runs
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := migrations.Apply(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	store := New(db)

	stu, err := store.CreateStudent(ctx, student.Student{Name: "alice", GradeLevel: "10"})
	if err != nil {
		t.Fatalf("create student: %v", err)
	}

	created, err := store.CreateTask(ctx, task.Task{Title: "Math Homework", StudentID: stu.ID})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	got, err := store.GetTask(ctx, created.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Title != "Math Homework" || got.StudentID != stu.ID {
		t.Fatalf("unexpected task %#v", got)
	}

	got.Completed = true
	if _, err := store.UpdateTask(ctx, got); err != nil {
		t.Fatalf("update task: %v", err)
	}

	removed, err := store.DeleteTask(ctx, created.ID)
	if err != nil || !removed {
		t.Fatalf("delete task: removed=%v err=%v", removed, err)
	}
	if _, err := store.GetTask(ctx, created.ID); !apperrors.IsNotFound(err) {
		t.Fatalf("expected NotFound after delete, got %v", err)
	}
}
