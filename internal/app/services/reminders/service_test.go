package reminders

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/studytrack/backend/internal/app/domain/task"
	"github.com/studytrack/backend/internal/app/storage/memory"
	"github.com/studytrack/backend/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New(logging.Config{Level: "error", Format: "text", Output: io.Discard})
}

func TestSweepCountsOverdueTasks(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := store.CreateTask(ctx, task.Task{Title: "late", StudentID: "1", DueAt: now.Add(-time.Hour)})
	require.NoError(t, err)
	_, err = store.CreateTask(ctx, task.Task{Title: "on time", StudentID: "1", DueAt: now.Add(time.Hour)})
	require.NoError(t, err)
	_, err = store.CreateTask(ctx, task.Task{Title: "done late", StudentID: "1", DueAt: now.Add(-time.Hour), Completed: true})
	require.NoError(t, err)

	svc := New(store, "@hourly", testLogger()).WithClock(func() time.Time { return now })
	require.NoError(t, svc.Sweep(ctx))
}

func TestStartRejectsBadSchedule(t *testing.T) {
	svc := New(memory.New(), "not a schedule", testLogger())
	require.Error(t, svc.Start(context.Background()))
}

func TestStartAndStop(t *testing.T) {
	svc := New(memory.New(), "@hourly", testLogger())
	ctx := context.Background()

	require.NoError(t, svc.Start(ctx))
	require.NoError(t, svc.Stop(ctx))
	// Stop on a stopped service is a no-op.
	require.NoError(t, svc.Stop(ctx))
}
