// Package rediscache decorates a TaskStore with a Redis read-through cache
// for single-task lookups. Cache failures never fail a request; the inner
// store is always the source of truth.
package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/studytrack/backend/internal/app/domain/task"
	"github.com/studytrack/backend/internal/app/storage"
	"github.com/studytrack/backend/internal/logging"
)

// TaskCache wraps a TaskStore, caching GetTask results and invalidating on
// every write. List operations always go to the inner store.
type TaskCache struct {
	inner  storage.TaskStore
	client *redis.Client
	ttl    time.Duration
	log    *logging.Logger
}

var _ storage.TaskStore = (*TaskCache)(nil)

// New builds a TaskCache around inner using the given Redis client.
func New(inner storage.TaskStore, client *redis.Client, ttl time.Duration, log *logging.Logger) *TaskCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &TaskCache{inner: inner, client: client, ttl: ttl, log: log}
}

func taskKey(id string) string {
	return fmt.Sprintf("task:%s", id)
}

func (c *TaskCache) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	created, err := c.inner.CreateTask(ctx, t)
	if err != nil {
		return task.Task{}, err
	}
	c.set(ctx, created)
	return created, nil
}

func (c *TaskCache) GetTask(ctx context.Context, id string) (task.Task, error) {
	raw, err := c.client.Get(ctx, taskKey(id)).Result()
	if err == nil {
		var cached task.Task
		if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil {
			return cached, nil
		}
		// Corrupt entry: drop it and fall through to the store.
		c.invalidate(ctx, id)
	} else if err != redis.Nil {
		c.log.WithError(err).Warn("task cache read failed")
	}

	t, err := c.inner.GetTask(ctx, id)
	if err != nil {
		return task.Task{}, err
	}
	c.set(ctx, t)
	return t, nil
}

func (c *TaskCache) UpdateTask(ctx context.Context, t task.Task) (task.Task, error) {
	updated, err := c.inner.UpdateTask(ctx, t)
	if err != nil {
		return task.Task{}, err
	}
	c.set(ctx, updated)
	return updated, nil
}

func (c *TaskCache) DeleteTask(ctx context.Context, id string) (bool, error) {
	removed, err := c.inner.DeleteTask(ctx, id)
	if err != nil {
		return false, err
	}
	c.invalidate(ctx, id)
	return removed, nil
}

func (c *TaskCache) ListTasks(ctx context.Context) ([]task.Task, error) {
	return c.inner.ListTasks(ctx)
}

func (c *TaskCache) ListTasksByStudent(ctx context.Context, studentID string) ([]task.Task, error) {
	return c.inner.ListTasksByStudent(ctx, studentID)
}

func (c *TaskCache) AppendStatusChange(ctx context.Context, change task.StatusChange) (task.StatusChange, error) {
	return c.inner.AppendStatusChange(ctx, change)
}

func (c *TaskCache) ListStatusHistory(ctx context.Context, taskID string) ([]task.StatusChange, error) {
	return c.inner.ListStatusHistory(ctx, taskID)
}

func (c *TaskCache) set(ctx context.Context, t task.Task) {
	payload, err := json.Marshal(t)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, taskKey(t.ID), payload, c.ttl).Err(); err != nil {
		c.log.WithError(err).Warn("task cache write failed")
	}
}

func (c *TaskCache) invalidate(ctx context.Context, id string) {
	if err := c.client.Del(ctx, taskKey(id)).Err(); err != nil {
		c.log.WithError(err).Warn("task cache invalidation failed")
	}
}
