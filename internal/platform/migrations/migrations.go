// Package migrations owns the relational schema. Statements are idempotent
// so Apply can run at every startup and from the build endpoint.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS students (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		grade_level TEXT NOT NULL DEFAULT '',
		date_of_birth TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS parents (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS parent_children (
		parent_id BIGINT NOT NULL REFERENCES parents(id) ON DELETE CASCADE,
		student_id BIGINT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
		PRIMARY KEY (parent_id, student_id)
	)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id BIGSERIAL PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		completed BOOLEAN NOT NULL DEFAULT FALSE,
		student_id BIGINT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
		due_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS task_status_history (
		id BIGSERIAL PRIMARY KEY,
		task_id BIGINT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		completed BOOLEAN NOT NULL,
		changed_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_student_id ON tasks(student_id)`,
}

// Apply executes all schema statements in order.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}

// Ready reports whether the schema has been applied. It drives the
// /db/status endpoint.
func Ready(ctx context.Context, db *sql.DB) (bool, error) {
	var name sql.NullString
	err := db.QueryRowContext(ctx, `SELECT to_regclass('tasks')`).Scan(&name)
	if err != nil {
		return false, err
	}
	return name.Valid, nil
}
