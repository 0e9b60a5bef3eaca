package storage

import (
	"context"

	"github.com/studytrack/backend/internal/app/domain/parent"
	"github.com/studytrack/backend/internal/app/domain/student"
	"github.com/studytrack/backend/internal/app/domain/task"
)

// StudentStore persists student records.
type StudentStore interface {
	CreateStudent(ctx context.Context, s student.Student) (student.Student, error)
	GetStudent(ctx context.Context, id string) (student.Student, error)
	UpdateStudent(ctx context.Context, s student.Student) (student.Student, error)
	// DeleteStudent is idempotent; the bool reports whether a record was
	// actually removed.
	DeleteStudent(ctx context.Context, id string) (bool, error)
	ListStudents(ctx context.Context) ([]student.Student, error)
}

// ParentStore persists parent records and their child links.
type ParentStore interface {
	CreateParent(ctx context.Context, p parent.Parent) (parent.Parent, error)
	GetParent(ctx context.Context, id string) (parent.Parent, error)
	UpdateParent(ctx context.Context, p parent.Parent) (parent.Parent, error)
	DeleteParent(ctx context.Context, id string) (bool, error)
	ListParents(ctx context.Context) ([]parent.Parent, error)
}

// TaskStore persists tasks and their status history.
type TaskStore interface {
	CreateTask(ctx context.Context, t task.Task) (task.Task, error)
	GetTask(ctx context.Context, id string) (task.Task, error)
	UpdateTask(ctx context.Context, t task.Task) (task.Task, error)
	DeleteTask(ctx context.Context, id string) (bool, error)
	ListTasks(ctx context.Context) ([]task.Task, error)
	ListTasksByStudent(ctx context.Context, studentID string) ([]task.Task, error)

	AppendStatusChange(ctx context.Context, change task.StatusChange) (task.StatusChange, error)
	ListStatusHistory(ctx context.Context, taskID string) ([]task.StatusChange, error)
}
