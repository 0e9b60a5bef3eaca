// Package student defines the student record.
package student

import (
	"fmt"
	"strings"
	"time"
)

// Student is a learner tracked by the backend. DateOfBirth is optional and,
// when set, must be a YYYY-MM-DD date.
type Student struct {
	ID          string
	Name        string
	GradeLevel  string
	DateOfBirth string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate checks the constraints enforced at construction time.
func (s Student) Validate() error {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if len(name) > 100 {
		return fmt.Errorf("name must be at most 100 characters")
	}
	if s.DateOfBirth != "" {
		if _, err := time.Parse("2006-01-02", s.DateOfBirth); err != nil {
			return fmt.Errorf("date_of_birth must be YYYY-MM-DD: %w", err)
		}
	}
	return nil
}
