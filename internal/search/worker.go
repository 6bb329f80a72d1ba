package search

import (
	"context"
	"log/slog"
	"time"
)

// Worker periodically embeds tasks that were missed by the lifecycle hooks,
// e.g. while the provider was unavailable.
type Worker struct {
	indexer *Indexer
	config  Config
	logger  *slog.Logger
	done    chan struct{}
}

// NewWorker creates a reconcile worker.
func NewWorker(indexer *Indexer, cfg Config, logger *slog.Logger) *Worker {
	return &Worker{indexer: indexer, config: cfg, logger: logger}
}

// Start launches the reconcile loop. It runs until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	if w.config.ReconcileInterval <= 0 {
		w.config.ReconcileInterval = DefaultConfig().ReconcileInterval
	}
	w.logger.Info("reconcile worker starting", "interval", w.config.ReconcileInterval.String())
	w.done = make(chan struct{})
	go func() {
		defer close(w.done)
		w.runLoop(ctx, "reconciler", w.config.ReconcileInterval, w.reconcile)
	}()
}

// Wait blocks until the loop started by Start has returned. Cancel the
// context passed to Start first.
func (w *Worker) Wait() {
	if w.done != nil {
		<-w.done
	}
}

func (w *Worker) runLoop(ctx context.Context, name string, interval time.Duration, fn func(ctx context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run once immediately
	if err := fn(ctx); err != nil {
		w.logger.Warn("reconcile initial run", "worker", name, "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("reconcile worker shutting down", "worker", name)
			return
		case <-ticker.C:
			if err := fn(ctx); err != nil {
				w.logger.Warn("reconcile worker error", "worker", name, "error", err)
			}
		}
	}
}

func (w *Worker) reconcile(ctx context.Context) error {
	n, err := w.indexer.IndexMissing(ctx, w.config.ReconcileBatchSize)
	if err != nil {
		return err
	}
	if n > 0 {
		w.logger.Info("reconciled task embeddings", "indexed", n)
	}
	return nil
}
