package api

import (
	"log/slog"
	"net/http"

	"github.com/MikeSquared-Agency/Tasklens/internal/search"
)

// AdminHandler provides index maintenance endpoints.
type AdminHandler struct {
	indexer *search.Indexer
	logger  *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(indexer *search.Indexer, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{indexer: indexer, logger: logger}
}

// Backfill handles POST /api/admin/embeddings/backfill. It runs to completion
// and returns the tallies.
func (h *AdminHandler) Backfill(w http.ResponseWriter, r *http.Request) {
	stats, err := h.indexer.BackfillAll(r.Context())
	if err != nil {
		h.logger.Error("backfill failed", "error", err, "success", stats.Success, "failed", stats.Failed)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Backfill failed")
		return
	}
	writeSuccess(w, http.StatusOK, stats)
}

// Status handles GET /api/admin/embeddings/status.
func (h *AdminHandler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.indexer.Status(r.Context())
	if err != nil {
		h.logger.Error("embedding status failed", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to read embedding status")
		return
	}
	writeSuccess(w, http.StatusOK, st)
}
