// Package hooks connects task lifecycle events to the embedding index.
// Every hook returns immediately; indexing runs in the background and never
// fails the mutation that triggered it.
package hooks

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/Tasklens/internal/search"
	"github.com/MikeSquared-Agency/Tasklens/internal/store"
)

// Event names a task lifecycle transition.
type Event string

const (
	EventCreated Event = "created"
	EventUpdated Event = "updated"
	EventDeleted Event = "deleted"
)

// Indexer is the part of search.Indexer the hooks drive.
type Indexer interface {
	IndexTask(ctx context.Context, t store.Task) search.Result
	DeleteIndex(ctx context.Context, taskID string) search.Result
}

// Notifier is told the outcome of each hook. Optional.
type Notifier interface {
	SearchIndexed(ctx context.Context, event Event, taskID string, res search.Result) error
}

// TaskWriter keeps a store-owned task table in step with lifecycle events.
// Satisfied by *store.SQLiteStore; the Postgres task table belongs to the
// task service and has no writer.
type TaskWriter interface {
	UpsertTask(ctx context.Context, t store.Task) error
	DeleteTask(ctx context.Context, id string) error
}

// Hooks dispatches lifecycle events to the indexer.
type Hooks struct {
	indexer  Indexer
	notifier Notifier
	writer   TaskWriter
	timeout  time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// Option configures Hooks.
type Option func(*Hooks)

// WithTaskWriter makes the hooks write the task row before indexing it and
// delete it on TaskDeleted.
func WithTaskWriter(w TaskWriter) Option {
	return func(h *Hooks) { h.writer = w }
}

// New creates lifecycle hooks. notifier may be nil. timeout bounds each
// background operation; zero means search.DefaultHookTimeout.
func New(indexer Indexer, notifier Notifier, timeout time.Duration, logger *slog.Logger, opts ...Option) *Hooks {
	if timeout <= 0 {
		timeout = search.DefaultHookTimeout
	}
	h := &Hooks{indexer: indexer, notifier: notifier, timeout: timeout, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// TaskCreated indexes a newly created task.
func (h *Hooks) TaskCreated(ctx context.Context, t store.Task) {
	h.dispatch(ctx, EventCreated, t.ID, func(ctx context.Context) search.Result {
		return h.index(ctx, t)
	})
}

// TaskUpdated re-indexes a task after its content changed.
func (h *Hooks) TaskUpdated(ctx context.Context, t store.Task) {
	h.dispatch(ctx, EventUpdated, t.ID, func(ctx context.Context) search.Result {
		return h.index(ctx, t)
	})
}

// TaskDeleted removes a task's embedding.
func (h *Hooks) TaskDeleted(ctx context.Context, taskID string) {
	h.dispatch(ctx, EventDeleted, taskID, func(ctx context.Context) search.Result {
		if h.writer != nil {
			if err := h.writer.DeleteTask(ctx, taskID); err != nil {
				h.logger.Warn("deleting task row failed", "task_id", taskID, "error", err)
			}
		}
		return h.indexer.DeleteIndex(ctx, taskID)
	})
}

// Wait blocks until all in-flight hook work has finished.
func (h *Hooks) Wait() {
	h.wg.Wait()
}

// Close stops accepting events and waits for in-flight work. Events that
// arrive afterwards are dropped.
func (h *Hooks) Close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.wg.Wait()
}

func (h *Hooks) index(ctx context.Context, t store.Task) search.Result {
	if h.writer != nil {
		if err := h.writer.UpsertTask(ctx, t); err != nil {
			h.logger.Warn("writing task row failed", "task_id", t.ID, "error", err)
			return search.Result{Outcome: search.OutcomeFailed, Err: err}
		}
	}
	return h.indexer.IndexTask(ctx, t)
}

func (h *Hooks) dispatch(ctx context.Context, event Event, taskID string, fn func(context.Context) search.Result) {
	// Detach from the request: the mutation response must not cancel indexing.
	ctx = context.WithoutCancel(ctx)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		h.logger.Warn("task hook dropped after shutdown", "event", string(event), "task_id", taskID)
		return
	}
	h.wg.Add(1)
	h.mu.Unlock()

	go func() {
		defer h.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, h.timeout)
		defer cancel()

		res := fn(ctx)
		h.logger.Debug("task hook done",
			"event", string(event),
			"task_id", taskID,
			"outcome", string(res.Outcome),
		)

		if h.notifier != nil {
			if err := h.notifier.SearchIndexed(ctx, event, taskID, res); err != nil {
				h.logger.Warn("publishing index outcome failed", "task_id", taskID, "error", err)
			}
		}
	}()
}
