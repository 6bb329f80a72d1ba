package search

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/MikeSquared-Agency/Tasklens/internal/metrics"
)

// Match is one ranked search result.
type Match struct {
	TaskID     string  `json:"task_id"`
	Similarity float64 `json:"similarity"`
}

// Engine answers free-text similarity queries over the task index.
type Engine struct {
	store    Store
	embedder Embedder
	config   Config
	logger   *slog.Logger
}

// NewEngine creates a search engine.
func NewEngine(s Store, embedder Embedder, cfg Config, logger *slog.Logger) *Engine {
	return &Engine{store: s, embedder: embedder, config: cfg, logger: logger}
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config { return e.config }

// Search embeds query and returns up to limit tasks whose similarity is
// strictly greater than minSimilarity, most similar first. An empty slice
// means nothing cleared the floor. Errors are returned unchanged:
// embeddings.ErrEmptyInput, *embeddings.ProviderError or *store.OpError.
func (e *Engine) Search(ctx context.Context, query string, limit int, minSimilarity float64) ([]Match, error) {
	ctx, span := tracer.Start(ctx, "search.Search")
	defer span.End()

	limit = e.config.ClampLimit(limit)
	span.SetAttributes(
		attribute.Int("search.limit", limit),
		attribute.Float64("search.min_similarity", minSimilarity),
	)

	start := time.Now()
	matches, err := e.search(ctx, query, limit, minSimilarity)
	metrics.ObserveSearch(err, len(matches), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("search.results", len(matches)))
	return matches, nil
}

func (e *Engine) search(ctx context.Context, query string, limit int, minSimilarity float64) ([]Match, error) {
	e.store.EnsureReady(ctx)

	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	rows, err := e.store.FindSimilar(ctx, vec, limit, minSimilarity)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(rows))
	for _, r := range rows {
		matches = append(matches, Match{TaskID: r.TaskID, Similarity: r.Similarity})
	}
	e.logger.Debug("search complete", "results", len(matches), "limit", limit)
	return matches, nil
}
