package search

import (
	"strings"

	"github.com/MikeSquared-Agency/Tasklens/internal/store"
)

// TaskText builds embeddable text from a task: title, description, notes,
// outcome, blocker and need, skipping empty fields, joined by single spaces.
func TaskText(t store.Task) string {
	fields := []string{t.Title, t.Description, t.Notes, t.Outcome, t.Blocker, t.Need}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, " ")
}
