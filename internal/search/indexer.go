package search

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pgvector/pgvector-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/MikeSquared-Agency/Tasklens/internal/metrics"
	"github.com/MikeSquared-Agency/Tasklens/internal/store"
)

var tracer = otel.Tracer("tasklens/search")

// Store is the embedding index backing the indexer and search engine.
// store.VectorStore and store.SQLiteStore both implement it.
type Store interface {
	EnsureReady(ctx context.Context)
	Ready() bool
	UpsertEmbedding(ctx context.Context, e *store.TaskEmbedding) error
	DeleteEmbedding(ctx context.Context, taskID string) error
	FindSimilar(ctx context.Context, query pgvector.Vector, limit int, minSimilarity float64) ([]store.SimilarTask, error)
	ListTasks(ctx context.Context) ([]store.Task, error)
	TasksWithoutEmbeddings(ctx context.Context, afterID string, limit int) ([]store.Task, error)
	Stats(ctx context.Context) (store.Stats, error)
}

// Embedder turns text into a vector. Satisfied by *embeddings.Embedder.
type Embedder interface {
	Embed(ctx context.Context, text string) (pgvector.Vector, error)
	Model() string
}

// Outcome classifies a best-effort index operation.
type Outcome string

const (
	OutcomeIndexed Outcome = "indexed"
	OutcomeRemoved Outcome = "removed"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Result is what an index operation did. Err is set only for OutcomeFailed.
type Result struct {
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"`
	Err     error   `json:"-"`
}

const (
	reasonNoText      = "no searchable text"
	reasonTaskDeleted = "task deleted"
)

// BackfillStats tallies a backfill run.
type BackfillStats struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// Indexer keeps task embeddings in step with task content. Its operations
// never fail the caller: errors are logged and reported in the Result.
type Indexer struct {
	store    Store
	embedder Embedder
	delay    time.Duration
	logger   *slog.Logger

	// cursor is the last task id IndexMissing visited.
	mu     sync.Mutex
	cursor string
}

// NewIndexer creates an indexer. delay is the pause between tasks in BackfillAll.
func NewIndexer(s Store, embedder Embedder, delay time.Duration, logger *slog.Logger) *Indexer {
	return &Indexer{store: s, embedder: embedder, delay: delay, logger: logger}
}

// IndexTask computes and stores the embedding for t.
func (ix *Indexer) IndexTask(ctx context.Context, t store.Task) Result {
	ctx, span := tracer.Start(ctx, "search.IndexTask")
	span.SetAttributes(attribute.String("task.id", t.ID))
	defer span.End()

	res := ix.indexTask(ctx, t)
	span.SetAttributes(attribute.String("index.outcome", string(res.Outcome)))
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
	}
	metrics.ObserveIndex(string(res.Outcome))
	return res
}

func (ix *Indexer) indexTask(ctx context.Context, t store.Task) Result {
	text := TaskText(t)
	if text == "" {
		ix.logger.Warn("task has no searchable text", "task_id", t.ID)
		return Result{Outcome: OutcomeSkipped, Reason: reasonNoText}
	}

	ix.store.EnsureReady(ctx)

	vec, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		ix.logger.Error("embedding task failed", "task_id", t.ID, "error", err)
		return Result{Outcome: OutcomeFailed, Err: err}
	}

	err = ix.store.UpsertEmbedding(ctx, &store.TaskEmbedding{
		TaskID:    t.ID,
		Embedding: vec,
		Model:     ix.embedder.Model(),
	})
	switch {
	case errors.Is(err, store.ErrTaskGone):
		ix.logger.Debug("task deleted before its embedding was stored", "task_id", t.ID)
		return Result{Outcome: OutcomeSkipped, Reason: reasonTaskDeleted}
	case err != nil:
		ix.logger.Error("storing task embedding failed", "task_id", t.ID, "error", err)
		return Result{Outcome: OutcomeFailed, Err: err}
	}

	ix.logger.Debug("task indexed", "task_id", t.ID)
	return Result{Outcome: OutcomeIndexed}
}

// DeleteIndex removes the embedding for taskID if one exists.
func (ix *Indexer) DeleteIndex(ctx context.Context, taskID string) Result {
	ctx, span := tracer.Start(ctx, "search.DeleteIndex")
	span.SetAttributes(attribute.String("task.id", taskID))
	defer span.End()

	res := Result{Outcome: OutcomeRemoved}
	ix.store.EnsureReady(ctx)
	if err := ix.store.DeleteEmbedding(ctx, taskID); err != nil {
		ix.logger.Error("removing task embedding failed", "task_id", taskID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		res = Result{Outcome: OutcomeFailed, Err: err}
	}
	metrics.ObserveIndex(string(res.Outcome))
	return res
}

// BackfillAll indexes every task sequentially, pausing between tasks. A failed
// task is counted and the run continues. The returned error is non-nil only
// when tasks cannot be listed or ctx ends; the tallies so far are still returned.
func (ix *Indexer) BackfillAll(ctx context.Context) (BackfillStats, error) {
	var stats BackfillStats

	ix.store.EnsureReady(ctx)
	tasks, err := ix.store.ListTasks(ctx)
	if err != nil {
		return stats, err
	}

	ix.logger.Info("backfill starting", "tasks", len(tasks))
	start := time.Now()

	for i, t := range tasks {
		if i > 0 && ix.delay > 0 {
			select {
			case <-ctx.Done():
				return stats, ctx.Err()
			case <-time.After(ix.delay):
			}
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if res := ix.IndexTask(ctx, t); res.Outcome == OutcomeFailed {
			stats.Failed++
		} else {
			stats.Success++
		}
	}

	ix.logger.Info("backfill complete",
		"success", stats.Success,
		"failed", stats.Failed,
		"duration", time.Since(start).String(),
	)
	return stats, nil
}

// IndexMissing embeds up to limit tasks that have no embedding yet and
// returns how many were indexed. Successive calls walk the task ids in order
// and wrap around at the end, so tasks that keep failing or are skipped do
// not starve the rest.
func (ix *Indexer) IndexMissing(ctx context.Context, limit int) (int, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.store.EnsureReady(ctx)
	tasks, err := ix.store.TasksWithoutEmbeddings(ctx, ix.cursor, limit)
	if err == nil && len(tasks) == 0 && ix.cursor != "" {
		ix.cursor = ""
		tasks, err = ix.store.TasksWithoutEmbeddings(ctx, "", limit)
	}
	if err != nil {
		return 0, err
	}
	if len(tasks) == 0 || len(tasks) < limit {
		ix.cursor = ""
	} else {
		ix.cursor = tasks[len(tasks)-1].ID
	}

	indexed := 0
	for _, t := range tasks {
		if err := ctx.Err(); err != nil {
			return indexed, err
		}
		if ix.IndexTask(ctx, t).Outcome == OutcomeIndexed {
			indexed++
		}
	}
	return indexed, nil
}

// Status reports index coverage.
type Status struct {
	TasksTotal    int64 `json:"tasks_total"`
	TasksEmbedded int64 `json:"tasks_embedded"`
	EmbeddingGap  int64 `json:"embedding_gap"`
	StoreReady    bool  `json:"store_ready"`
}

// Status returns task and embedding counts.
func (ix *Indexer) Status(ctx context.Context) (Status, error) {
	ix.store.EnsureReady(ctx)
	st, err := ix.store.Stats(ctx)
	if err != nil {
		return Status{StoreReady: ix.store.Ready()}, err
	}
	return Status{
		TasksTotal:    st.Tasks,
		TasksEmbedded: st.Embedded,
		EmbeddingGap:  st.Tasks - st.Embedded,
		StoreReady:    ix.store.Ready(),
	}, nil
}
