package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pgvector/pgvector-go"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteStore keeps tasks and embeddings in a single SQLite file. Vectors are
// stored in their text form and ranked in process, which suits small task
// sets and local development.
type SQLiteStore struct {
	db         *sql.DB
	path       string
	dimensions int
	logger     *slog.Logger
	ready      atomic.Bool
}

// OpenSQLite opens (creating if needed) the database file at path.
func OpenSQLite(path string, dimensions int, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma failed: %w", err)
		}
	}
	return &SQLiteStore{db: db, path: path, dimensions: dimensions, logger: logger}, nil
}

// DB exposes the underlying handle so callers can manage the task table.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func sqliteProvisionSteps() []provisionStep {
	return []provisionStep{
		{"task table", `
			CREATE TABLE IF NOT EXISTS ` + TaskTable + ` (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				description TEXT,
				notes TEXT,
				outcome TEXT,
				blocker TEXT,
				need TEXT
			)`},
		{"table", `
			CREATE TABLE IF NOT EXISTS ` + EmbeddingTable + ` (
				id TEXT PRIMARY KEY,
				task_id TEXT UNIQUE NOT NULL REFERENCES ` + TaskTable + `(id) ON DELETE CASCADE,
				embedding TEXT NOT NULL,
				model TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`},
	}
}

// EnsureReady creates the task and embedding tables. Failures are logged and
// the store stays not-ready.
func (s *SQLiteStore) EnsureReady(ctx context.Context) {
	if s.ready.Load() {
		return
	}
	for _, step := range sqliteProvisionSteps() {
		if _, err := s.db.ExecContext(ctx, step.sql); err != nil {
			s.logger.Warn("vector store not ready", "error", &ProvisioningError{Step: step.name, Err: err})
			return
		}
	}
	s.ready.Store(true)
	s.logger.Info("vector store ready", "path", s.path, "dimensions", s.dimensions)
}

// Ready reports whether provisioning has succeeded.
func (s *SQLiteStore) Ready() bool { return s.ready.Load() }

// UpsertTask inserts or replaces a task row. The SQLite backend owns its task
// table, so the lifecycle hooks write rows here before indexing them.
func (s *SQLiteStore) UpsertTask(ctx context.Context, t Task) error {
	s.EnsureReady(ctx)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO `+TaskTable+` (id, title, description, notes, outcome, blocker, need)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			notes = excluded.notes,
			outcome = excluded.outcome,
			blocker = excluded.blocker,
			need = excluded.need
	`, t.ID, t.Title, nullable(t.Description), nullable(t.Notes), nullable(t.Outcome), nullable(t.Blocker), nullable(t.Need))
	return opError("upsert task", err)
}

// DeleteTask removes a task row; its embedding cascades.
func (s *SQLiteStore) DeleteTask(ctx context.Context, id string) error {
	s.EnsureReady(ctx)
	_, err := s.db.ExecContext(ctx, `DELETE FROM `+TaskTable+` WHERE id = ?`, id)
	return opError("delete task", err)
}

// UpsertEmbedding stores e, replacing any previous vector for the same task.
func (s *SQLiteStore) UpsertEmbedding(ctx context.Context, e *TaskEmbedding) error {
	e.ID = EmbeddingID(e.TaskID)
	now := time.Now().UTC()
	var created string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO `+EmbeddingTable+` (id, task_id, embedding, model, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			embedding = excluded.embedding,
			model = excluded.model,
			updated_at = excluded.updated_at
		RETURNING created_at
	`, e.ID, e.TaskID, e.Embedding.String(), e.Model, now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano)).
		Scan(&created)
	if err != nil {
		if isSQLiteForeignKeyViolation(err) {
			err = fmt.Errorf("upsert embedding %s: %w", e.TaskID, ErrTaskGone)
		}
		return opError("upsert embedding", err)
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	e.UpdatedAt = now
	return nil
}

// GetEmbedding fetches the embedding stored for a task.
func (s *SQLiteStore) GetEmbedding(ctx context.Context, taskID string) (*TaskEmbedding, error) {
	e := &TaskEmbedding{}
	var created, updated string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, task_id, embedding, model, created_at, updated_at
		FROM `+EmbeddingTable+` WHERE task_id = ?
	`, taskID).Scan(&e.ID, &e.TaskID, &e.Embedding, &e.Model, &created, &updated)
	if err != nil {
		return nil, opError("get embedding", err)
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	e.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return e, nil
}

// DeleteEmbedding removes the embedding for a task if present.
func (s *SQLiteStore) DeleteEmbedding(ctx context.Context, taskID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM `+EmbeddingTable+` WHERE task_id = ?`, taskID)
	return opError("delete embedding", err)
}

// FindSimilar scores every stored vector against query and returns up to
// limit tasks with similarity strictly above minSimilarity, best first.
func (s *SQLiteStore) FindSimilar(ctx context.Context, query pgvector.Vector, limit int, minSimilarity float64) ([]SimilarTask, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT task_id, embedding FROM `+EmbeddingTable)
	if err != nil {
		return nil, opError("similarity query", err)
	}
	defer rows.Close()

	q := query.Slice()
	result := []SimilarTask{}
	for rows.Next() {
		var taskID string
		var v pgvector.Vector
		if err := rows.Scan(&taskID, &v); err != nil {
			return nil, opError("similarity query", err)
		}
		sim := CosineSimilarity(q, v.Slice())
		if sim > minSimilarity {
			result = append(result, SimilarTask{TaskID: taskID, Similarity: sim})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, opError("similarity query", err)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Similarity != result[j].Similarity {
			return result[i].Similarity > result[j].Similarity
		}
		return result[i].TaskID < result[j].TaskID
	})
	if limit >= 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ListTasks returns every task ordered by id.
func (s *SQLiteStore) ListTasks(ctx context.Context) ([]Task, error) {
	tasks, err := s.queryTasks(ctx, `SELECT `+sqliteTaskColumns+` FROM `+TaskTable+` t ORDER BY t.id`)
	return tasks, opError("list tasks", err)
}

// TasksWithoutEmbeddings returns up to limit tasks missing an embedding row
// whose id sorts after afterID. An empty afterID starts from the beginning.
func (s *SQLiteStore) TasksWithoutEmbeddings(ctx context.Context, afterID string, limit int) ([]Task, error) {
	tasks, err := s.queryTasks(ctx, `
		SELECT `+sqliteTaskColumns+`
		FROM `+TaskTable+` t
		LEFT JOIN `+EmbeddingTable+` e ON e.task_id = t.id
		WHERE e.task_id IS NULL AND t.id > ?
		ORDER BY t.id
		LIMIT ?
	`, afterID, limit)
	return tasks, opError("tasks without embeddings", err)
}

// Stats counts tasks and stored embeddings.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+TaskTable).Scan(&st.Tasks); err != nil {
		return st, opError("stats", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+EmbeddingTable).Scan(&st.Embedded); err != nil {
		return st, opError("stats", err)
	}
	return st, nil
}

// HealthCheck pings the database.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const sqliteTaskColumns = `t.id, t.title, COALESCE(t.description, ''), COALESCE(t.notes, ''),
	COALESCE(t.outcome, ''), COALESCE(t.blocker, ''), COALESCE(t.need, '')`

func (s *SQLiteStore) queryTasks(ctx context.Context, query string, args ...any) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
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

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isSQLiteForeignKeyViolation(err error) bool {
	var sqlErr *sqlite.Error
	if !errors.As(err, &sqlErr) {
		return false
	}
	code := sqlErr.Code()
	if code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY {
		return true
	}
	return code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(sqlErr.Error(), "FOREIGN KEY")
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// the lengths differ or either vector is zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
