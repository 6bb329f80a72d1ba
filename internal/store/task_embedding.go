package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

const (
	// EmbeddingTable holds one vector per task.
	EmbeddingTable = "task_embedding"

	// EmbeddingIDPrefix prefixes the task id to form an embedding row id.
	EmbeddingIDPrefix = "emb_"

	// sqlstate foreign_key_violation
	pgForeignKeyViolation = "23503"
)

// TaskEmbedding represents a stored vector embedding for a task.
type TaskEmbedding struct {
	ID        string          `json:"id"`
	TaskID    string          `json:"task_id"`
	Embedding pgvector.Vector `json:"-"`
	Model     string          `json:"model"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// SimilarTask is returned by nearest-neighbor queries.
type SimilarTask struct {
	TaskID     string  `json:"task_id"`
	Similarity float64 `json:"similarity"`
}

// EmbeddingID derives the embedding row id for a task.
func EmbeddingID(taskID string) string {
	return EmbeddingIDPrefix + taskID
}

// UpsertTaskEmbedding inserts or replaces the embedding for e.TaskID. The
// conflict target is the unique task_id, so concurrent writers for the same
// task converge on a single row. Returns ErrTaskGone when the task row no
// longer exists.
func UpsertTaskEmbedding(ctx context.Context, db DBTX, e *TaskEmbedding) error {
	e.ID = EmbeddingID(e.TaskID)
	err := db.QueryRow(ctx, `
		INSERT INTO `+EmbeddingTable+` (id, task_id, embedding, model, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (task_id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			model = EXCLUDED.model,
			updated_at = now()
		RETURNING created_at, updated_at
	`, e.ID, e.TaskID, e.Embedding, e.Model).
		Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("upsert embedding %s: %w", e.TaskID, ErrTaskGone)
		}
		return fmt.Errorf("upsert embedding %s: %w", e.TaskID, err)
	}
	return nil
}

// GetTaskEmbedding fetches the embedding for a task.
func GetTaskEmbedding(ctx context.Context, db DBTX, taskID string) (*TaskEmbedding, error) {
	e := &TaskEmbedding{}
	err := db.QueryRow(ctx, `
		SELECT id, task_id, embedding, model, created_at, updated_at
		FROM `+EmbeddingTable+` WHERE task_id = $1
	`, taskID).Scan(&e.ID, &e.TaskID, &e.Embedding, &e.Model, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get embedding %s: %w", taskID, err)
	}
	return e, nil
}

// DeleteTaskEmbedding removes the embedding for a task, if any.
func DeleteTaskEmbedding(ctx context.Context, db DBTX, taskID string) error {
	if _, err := db.Exec(ctx, `DELETE FROM `+EmbeddingTable+` WHERE task_id = $1`, taskID); err != nil {
		return fmt.Errorf("delete embedding %s: %w", taskID, err)
	}
	return nil
}

// FindSimilarTasks returns up to limit tasks whose cosine similarity to query
// is strictly greater than minSimilarity, most similar first.
func FindSimilarTasks(ctx context.Context, db DBTX, query pgvector.Vector, limit int, minSimilarity float64) ([]SimilarTask, error) {
	rows, err := db.Query(ctx, `
		SELECT task_id, (1 - (embedding <=> $1))::float8 AS similarity
		FROM `+EmbeddingTable+`
		WHERE 1 - (embedding <=> $1) > $2
		ORDER BY embedding <=> $1
		LIMIT $3
	`, query, minSimilarity, limit)
	if err != nil {
		return nil, fmt.Errorf("find similar: %w", err)
	}
	defer rows.Close()

	result := []SimilarTask{}
	for rows.Next() {
		var s SimilarTask
		if err := rows.Scan(&s.TaskID, &s.Similarity); err != nil {
			return nil, fmt.Errorf("scan similar: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// CountTaskEmbeddings returns the number of stored embeddings.
func CountTaskEmbeddings(ctx context.Context, db DBTX) (int64, error) {
	var n int64
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM `+EmbeddingTable).Scan(&n); err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return n, nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}
