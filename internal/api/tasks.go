package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/Tasklens/internal/store"
)

// TaskHooks receives task lifecycle events. Satisfied by *hooks.Hooks.
type TaskHooks interface {
	TaskCreated(ctx context.Context, t store.Task)
	TaskUpdated(ctx context.Context, t store.Task)
	TaskDeleted(ctx context.Context, taskID string)
}

// TaskHandler exposes the lifecycle hooks to the task service over HTTP.
type TaskHandler struct {
	hooks TaskHooks
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(h TaskHooks) *TaskHandler {
	return &TaskHandler{hooks: h}
}

type indexRequest struct {
	Event       string `json:"event,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Notes       string `json:"notes,omitempty"`
	Outcome     string `json:"outcome,omitempty"`
	Blocker     string `json:"blocker,omitempty"`
	Need        string `json:"need,omitempty"`
}

// Index handles POST /api/tasks/{id}/index. The body carries the task's
// searchable fields and optionally "event": "created" (default "updated").
func (h *TaskHandler) Index(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Task ID is required")
		return
	}

	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	task := store.Task{
		ID:          id,
		Title:       req.Title,
		Description: req.Description,
		Notes:       req.Notes,
		Outcome:     req.Outcome,
		Blocker:     req.Blocker,
		Need:        req.Need,
	}

	event := "updated"
	switch req.Event {
	case "", "updated":
		h.hooks.TaskUpdated(r.Context(), task)
	case "created":
		event = "created"
		h.hooks.TaskCreated(r.Context(), task)
	default:
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "event must be created or updated")
		return
	}

	writeSuccess(w, http.StatusAccepted, map[string]any{"task_id": id, "event": event})
}

// Unindex handles DELETE /api/tasks/{id}/index.
func (h *TaskHandler) Unindex(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Task ID is required")
		return
	}
	h.hooks.TaskDeleted(r.Context(), id)
	writeSuccess(w, http.StatusAccepted, map[string]any{"task_id": id, "event": "deleted"})
}
