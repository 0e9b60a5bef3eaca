package rediscache

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/studytrack/backend/internal/app/domain/task"
	"github.com/studytrack/backend/internal/app/storage/memory"
	"github.com/studytrack/backend/internal/logging"
)

// unreachableClient returns a Redis client pointed at a port nothing listens
// on, so every cache call fails fast.
func unreachableClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
	})
}

func quietLogger() *logging.Logger {
	return logging.New(logging.Config{Level: "error", Format: "text", Output: io.Discard})
}

func TestCacheDegradesToInnerStore(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	cache := New(inner, unreachableClient(), time.Minute, quietLogger())

	created, err := cache.CreateTask(ctx, task.Task{Title: "read chapter 3", StudentID: "1"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	got, err := cache.GetTask(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetTask with unreachable cache: %v", err)
	}
	if got.Title != "read chapter 3" {
		t.Fatalf("got title %q, want %q", got.Title, "read chapter 3")
	}

	got.Completed = true
	if _, err := cache.UpdateTask(ctx, got); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}

	removed, err := cache.DeleteTask(ctx, created.ID)
	if err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if !removed {
		t.Fatal("expected delete to remove the task")
	}
}

func TestCachePassesThroughLists(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	cache := New(inner, unreachableClient(), time.Minute, quietLogger())

	if _, err := cache.CreateTask(ctx, task.Task{Title: "a", StudentID: "7"}); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if _, err := cache.CreateTask(ctx, task.Task{Title: "b", StudentID: "8"}); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	all, err := cache.ListTasks(ctx)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d tasks, want 2", len(all))
	}

	mine, err := cache.ListTasksByStudent(ctx, "7")
	if err != nil {
		t.Fatalf("ListTasksByStudent: %v", err)
	}
	if len(mine) != 1 || mine[0].Title != "a" {
		t.Fatalf("unexpected student tasks: %+v", mine)
	}
}
