package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/pgvector/pgvector-go"
)

// Stats summarizes index coverage.
type Stats struct {
	Tasks    int64 `json:"tasks_total"`
	Embedded int64 `json:"tasks_embedded"`
}

// VectorStore is the PostgreSQL/pgvector embedding store. It provisions its
// schema lazily on the first EnsureReady and remembers success for the rest
// of the process lifetime.
type VectorStore struct {
	db         *DB
	dimensions int
	logger     *slog.Logger
	ready      atomic.Bool
}

// NewVectorStore creates a store for vectors of the given dimensionality.
func NewVectorStore(db *DB, dimensions int, logger *slog.Logger) *VectorStore {
	return &VectorStore{db: db, dimensions: dimensions, logger: logger}
}

type provisionStep struct {
	name string
	sql  string
}

func pgProvisionSteps(dimensions int) []provisionStep {
	return []provisionStep{
		{"extension", `CREATE EXTENSION IF NOT EXISTS vector`},
		{"table", fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				task_id TEXT UNIQUE NOT NULL,
				embedding vector(%d),
				model TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`, EmbeddingTable, dimensions)},
		// Separate statement so tables created before the constraint existed get it too.
		{"foreign key", fmt.Sprintf(`
			DO $$ BEGIN
				ALTER TABLE %[1]s
				ADD CONSTRAINT %[1]s_task_id_fkey
				FOREIGN KEY (task_id) REFERENCES %[2]s(id) ON DELETE CASCADE;
			EXCEPTION
				WHEN duplicate_object THEN NULL;
			END $$`, EmbeddingTable, TaskTable)},
	}
}

// EnsureReady provisions the vector extension, the embedding table and its
// cascading foreign key. Failures are logged and swallowed: the store stays
// not-ready, the next call retries, and individual operations fail on their own.
func (s *VectorStore) EnsureReady(ctx context.Context) {
	if s.ready.Load() {
		return
	}
	if err := s.provision(ctx); err != nil {
		s.logger.Warn("vector store not ready", "error", err)
		return
	}
	s.ready.Store(true)
	s.logger.Info("vector store ready", "table", EmbeddingTable, "dimensions", s.dimensions)
}

// Ready reports whether provisioning has succeeded in this process.
func (s *VectorStore) Ready() bool {
	return s.ready.Load()
}

func (s *VectorStore) provision(ctx context.Context) error {
	for _, step := range pgProvisionSteps(s.dimensions) {
		if _, err := s.db.Pool.Exec(ctx, step.sql); err != nil {
			return &ProvisioningError{Step: step.name, Err: err}
		}
	}
	// Connections opened before the extension existed have no vector codec.
	s.db.Pool.Reset()
	return nil
}

// UpsertEmbedding stores e, replacing any previous vector for the same task.
func (s *VectorStore) UpsertEmbedding(ctx context.Context, e *TaskEmbedding) error {
	return opError("upsert embedding", UpsertTaskEmbedding(ctx, s.db.DBTX(), e))
}

// GetEmbedding fetches the embedding stored for a task.
func (s *VectorStore) GetEmbedding(ctx context.Context, taskID string) (*TaskEmbedding, error) {
	e, err := GetTaskEmbedding(ctx, s.db.DBTX(), taskID)
	return e, opError("get embedding", err)
}

// DeleteEmbedding removes the embedding for a task if present.
func (s *VectorStore) DeleteEmbedding(ctx context.Context, taskID string) error {
	return opError("delete embedding", DeleteTaskEmbedding(ctx, s.db.DBTX(), taskID))
}

// FindSimilar runs the similarity query with the vector bound as a parameter.
func (s *VectorStore) FindSimilar(ctx context.Context, query pgvector.Vector, limit int, minSimilarity float64) ([]SimilarTask, error) {
	res, err := FindSimilarTasks(ctx, s.db.DBTX(), query, limit, minSimilarity)
	return res, opError("similarity query", err)
}

// ListTasks returns every task in the task table.
func (s *VectorStore) ListTasks(ctx context.Context) ([]Task, error) {
	tasks, err := ListTasks(ctx, s.db.DBTX())
	return tasks, opError("list tasks", err)
}

// TasksWithoutEmbeddings returns up to limit tasks missing an embedding row,
// starting after afterID.
func (s *VectorStore) TasksWithoutEmbeddings(ctx context.Context, afterID string, limit int) ([]Task, error) {
	tasks, err := TasksWithoutEmbeddings(ctx, s.db.DBTX(), afterID, limit)
	return tasks, opError("tasks without embeddings", err)
}

// Stats counts tasks and stored embeddings.
func (s *VectorStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	var err error
	if st.Tasks, err = CountTasks(ctx, s.db.DBTX()); err != nil {
		return st, opError("stats", err)
	}
	if st.Embedded, err = CountTaskEmbeddings(ctx, s.db.DBTX()); err != nil {
		return st, opError("stats", err)
	}
	return st, nil
}

// HealthCheck pings the database.
func (s *VectorStore) HealthCheck(ctx context.Context) error {
	return s.db.HealthCheck(ctx)
}
