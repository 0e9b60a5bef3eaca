// Package parent defines the parent record and its child links.
package parent

import (
	"fmt"
	"strings"
	"time"
)

// Parent is a guardian who can view the tasks of their linked students.
type Parent struct {
	ID        string
	Name      string
	ChildIDs  []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the constraints enforced at construction time.
func (p Parent) Validate() error {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if len(name) > 100 {
		return fmt.Errorf("name must be at most 100 characters")
	}
	seen := make(map[string]struct{}, len(p.ChildIDs))
	for _, id := range p.ChildIDs {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("child_ids must not contain empty entries")
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("child_ids contains duplicate %q", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// HasChild reports whether studentID is linked to this parent.
func (p Parent) HasChild(studentID string) bool {
	for _, id := range p.ChildIDs {
		if id == studentID {
			return true
		}
	}
	return false
}
