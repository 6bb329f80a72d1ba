package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/Tasklens/internal/hermes"
	"github.com/MikeSquared-Agency/Tasklens/internal/hooks"
	"github.com/MikeSquared-Agency/Tasklens/internal/search"
	"github.com/MikeSquared-Agency/Tasklens/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, event subscriber and reconcile worker",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	logger := newLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return err
	}
	defer a.Close()

	a.store.EnsureReady(ctx)

	// Hermes (NATS) is optional; the service works without it
	var hermesClient *hermes.Client
	var publisher *hermes.Publisher
	if a.cfg.NatsURL != "" {
		hermesClient, err = hermes.NewClient(a.cfg.NatsURL, logger)
		if err != nil {
			logger.Warn("failed to connect to Hermes (NATS), running without event bus", "error", err)
			hermesClient = nil
		} else {
			defer hermesClient.Close()
			publisher = hermes.NewPublisher(hermesClient, a.cfg.SubjectPrefix, logger)
			logger.Info("connected to Hermes (NATS)", "url", a.cfg.NatsURL)
		}
	}

	var notifier hooks.Notifier
	if publisher != nil {
		notifier = publisher
	}
	var hookOpts []hooks.Option
	if w, ok := a.store.(hooks.TaskWriter); ok {
		hookOpts = append(hookOpts, hooks.WithTaskWriter(w))
		logger.Info("task rows are maintained by the index hooks", "store", a.cfg.StoreBackend)
	}
	taskHooks := hooks.New(a.indexer, notifier, a.searchCfg.HookTimeout, logger, hookOpts...)

	var subscriber *hermes.Subscriber
	if hermesClient != nil {
		subscriber = hermes.NewSubscriber(hermesClient, taskHooks, a.cfg.SubjectPrefix, logger)
		if err := subscriber.Start(ctx); err != nil {
			logger.Warn("failed to start Hermes subscriber", "error", err)
			subscriber = nil
		}
	}

	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	var worker *search.Worker
	if a.searchCfg.ReconcileEnabled {
		worker = search.NewWorker(a.indexer, a.searchCfg, logger)
		worker.Start(workerCtx)
	}

	srv := server.New(a.cfg, server.Deps{
		Store:     a.store,
		Indexer:   a.indexer,
		Engine:    a.engine,
		Hooks:     taskHooks,
		Hermes:    hermesClient,
		Publisher: publisher,
	}, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Port),
		Handler:      srv.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // backfill responses stream after a long run
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Tasklens starting", "port", a.cfg.Port, "store", a.cfg.StoreBackend)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "error", err)
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	// Stop every producer of index work, then drain the hooks, before the
	// deferred store close runs.
	if subscriber != nil {
		subscriber.Stop()
	}
	stopWorker()
	if worker != nil {
		worker.Wait()
	}
	taskHooks.Close()
	logger.Info("Tasklens stopped")
	return nil
}
