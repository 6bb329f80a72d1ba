// Package api provides HTTP handlers for the Tasklens REST API.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/MikeSquared-Agency/Tasklens/internal/hermes"
)

// HealthStore is the store view needed by the health check.
type HealthStore interface {
	HealthCheck(ctx context.Context) error
	Ready() bool
}

// HealthHandler provides the health endpoint.
type HealthHandler struct {
	store     HealthStore
	hermes    *hermes.Client
	startTime time.Time
}

// NewHealthHandler creates a new HealthHandler. hermesClient may be nil.
func NewHealthHandler(s HealthStore, hermesClient *hermes.Client) *HealthHandler {
	return &HealthHandler{
		store:     s,
		hermes:    hermesClient,
		startTime: time.Now(),
	}
}

// Health returns the service health status.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	dbStatus := "connected"
	if err := h.store.HealthCheck(r.Context()); err != nil {
		dbStatus = "disconnected"
	}

	hermesStatus := "disconnected"
	if h.hermes != nil && h.hermes.IsConnected() {
		hermesStatus = "connected"
	}

	resp := map[string]any{
		"status":         "healthy",
		"database":       dbStatus,
		"hermes":         hermesStatus,
		"vector_store":   h.store.Ready(),
		"uptime_seconds": int(time.Since(h.startTime).Seconds()),
	}
	if dbStatus == "disconnected" {
		resp["status"] = "degraded"
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
		"meta": map[string]any{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeSuccess writes a standard success response.
func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{
		"data": data,
		"meta": map[string]any{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}
