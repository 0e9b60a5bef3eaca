// Package task defines tasks and their completion history.
package task

import (
	"fmt"
	"strings"
	"time"
)

// Task is a unit of schoolwork assigned to a student. A zero DueAt means the
// task has no deadline.
type Task struct {
	ID          string
	Title       string
	Description string
	Completed   bool
	StudentID   string
	DueAt       time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// StatusChange records one completion-state transition of a task.
type StatusChange struct {
	ID        string
	TaskID    string
	Completed bool
	ChangedAt time.Time
}

// Validate checks the constraints enforced at construction time.
func (t Task) Validate() error {
	title := strings.TrimSpace(t.Title)
	if title == "" {
		return fmt.Errorf("title is required")
	}
	if len(title) > 200 {
		return fmt.Errorf("title must be at most 200 characters")
	}
	if strings.TrimSpace(t.StudentID) == "" {
		return fmt.Errorf("student_id is required")
	}
	return nil
}

// Overdue reports whether the task is open and past its due time.
func (t Task) Overdue(now time.Time) bool {
	return !t.Completed && !t.DueAt.IsZero() && t.DueAt.Before(now)
}
