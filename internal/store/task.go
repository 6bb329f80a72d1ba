package store

import (
	"context"
	"fmt"
)

// TaskTable is the externally owned task table embeddings reference.
const TaskTable = "task"

// Task is the read-only view of a task's searchable fields. Optional fields
// are empty strings when unset.
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Notes       string `json:"notes,omitempty"`
	Outcome     string `json:"outcome,omitempty"`
	Blocker     string `json:"blocker,omitempty"`
	Need        string `json:"need,omitempty"`
}

const taskColumns = `t.id, t.title, COALESCE(t.description, ''), COALESCE(t.notes, ''),
	COALESCE(t.outcome, ''), COALESCE(t.blocker, ''), COALESCE(t.need, '')`

// ListTasks returns every task ordered by id.
func ListTasks(ctx context.Context, db DBTX) ([]Task, error) {
	rows, err := db.Query(ctx, `SELECT `+taskColumns+` FROM `+TaskTable+` t ORDER BY t.id`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Notes, &t.Outcome, &t.Blocker, &t.Need); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// TasksWithoutEmbeddings returns up to limit tasks that have no embedding row
// yet and whose id sorts after afterID ("" starts from the first task).
func TasksWithoutEmbeddings(ctx context.Context, db DBTX, afterID string, limit int) ([]Task, error) {
	rows, err := db.Query(ctx, `
		SELECT `+taskColumns+`
		FROM `+TaskTable+` t
		LEFT JOIN `+EmbeddingTable+` e ON e.task_id = t.id
		WHERE e.task_id IS NULL AND t.id > $1
		ORDER BY t.id
		LIMIT $2
	`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("tasks without embeddings: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Notes, &t.Outcome, &t.Blocker, &t.Need); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// CountTasks returns the number of rows in the task table.
func CountTasks(ctx context.Context, db DBTX) (int64, error) {
	var n int64
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM `+TaskTable).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return n, nil
}
