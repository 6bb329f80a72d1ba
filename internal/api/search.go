package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/MikeSquared-Agency/Tasklens/internal/embeddings"
	"github.com/MikeSquared-Agency/Tasklens/internal/search"
)

// SearchNotifier is told about each successful search. Optional.
type SearchNotifier interface {
	SearchPerformed(ctx context.Context, resultCount, limit int) error
}

// SearchHandler serves task similarity search.
type SearchHandler struct {
	engine   *search.Engine
	notifier SearchNotifier
	logger   *slog.Logger
}

// NewSearchHandler creates a new SearchHandler. notifier may be nil.
func NewSearchHandler(engine *search.Engine, notifier SearchNotifier, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{engine: engine, notifier: notifier, logger: logger}
}

type searchResponse struct {
	Results      []search.Match `json:"results"`
	TotalResults int            `json:"total_results"`
}

// Search handles GET /api/tasks/search?q=&limit=&min_similarity=.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Query parameter q is required")
		return
	}

	cfg := h.engine.Config()
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer")
			return
		}
		limit = n
	}
	limit = cfg.ClampLimit(limit)

	minSimilarity := cfg.DefaultMinSimilarity
	if v := q.Get("min_similarity"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "min_similarity must be a number")
			return
		}
		minSimilarity = f
	}

	matches, err := h.engine.Search(r.Context(), query, limit, minSimilarity)
	if err != nil {
		var perr *embeddings.ProviderError
		switch {
		case errors.Is(err, embeddings.ErrEmptyInput):
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Query parameter q is required")
		case errors.As(err, &perr):
			h.logger.Warn("search provider failure", "provider", perr.Provider, "error", err)
			writeError(w, http.StatusServiceUnavailable, "SEARCH_UNAVAILABLE", "Search temporarily unavailable")
		default:
			h.logger.Error("search failed", "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Search failed")
		}
		return
	}

	if h.notifier != nil {
		if err := h.notifier.SearchPerformed(r.Context(), len(matches), limit); err != nil {
			h.logger.Warn("publishing search event failed", "error", err)
		}
	}

	writeSuccess(w, http.StatusOK, searchResponse{Results: matches, TotalResults: len(matches)})
}
