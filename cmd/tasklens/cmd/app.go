package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/MikeSquared-Agency/Tasklens/internal/config"
	"github.com/MikeSquared-Agency/Tasklens/internal/embeddings"
	"github.com/MikeSquared-Agency/Tasklens/internal/search"
	"github.com/MikeSquared-Agency/Tasklens/internal/store"
)

// indexStore is a search.Store that can also report its health.
type indexStore interface {
	search.Store
	HealthCheck(ctx context.Context) error
}

// app is the composition root shared by the commands: one store handle and
// one provider client per process.
type app struct {
	cfg       *config.Config
	searchCfg search.Config
	logger    *slog.Logger
	store     indexStore
	embedder  *embeddings.Embedder
	indexer   *search.Indexer
	engine    *search.Engine
	closeFn   func()
}

func newApp(ctx context.Context, logger *slog.Logger) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	s, closeFn, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	provider := newProvider(cfg)
	logger.Info("embedding provider initialized", "backend", provider.Name(), "model", provider.Model())

	emb := embeddings.NewEmbedder(provider, embeddings.Config{
		Dimensions: cfg.EmbeddingDimensions,
		MaxChars:   cfg.EmbeddingMaxChars,
		Timeout:    cfg.EmbeddingTimeout,
	})

	scfg := search.ConfigFromEnv()
	return &app{
		cfg:       cfg,
		searchCfg: scfg,
		logger:    logger,
		store:     s,
		embedder:  emb,
		indexer:   search.NewIndexer(s, emb, scfg.BackfillDelay, logger),
		engine:    search.NewEngine(s, emb, scfg, logger),
		closeFn:   closeFn,
	}, nil
}

func (a *app) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (indexStore, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		s, err := store.OpenSQLite(cfg.SQLitePath, cfg.EmbeddingDimensions, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("opened sqlite store", "path", cfg.SQLitePath)
		return s, func() { _ = s.Close() }, nil
	default:
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("connected to database")
		return store.NewVectorStore(db, cfg.EmbeddingDimensions, logger), db.Close, nil
	}
}

func newProvider(cfg *config.Config) embeddings.Provider {
	// Timeouts come from the Embedder's per-call context.
	client := &http.Client{}

	switch cfg.EmbeddingBackend {
	case "openai":
		opts := []embeddings.OpenAIOption{
			embeddings.WithHTTPClient(client),
			embeddings.WithDimensions(cfg.EmbeddingDimensions),
		}
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, embeddings.WithBaseURL(cfg.OpenAIBaseURL))
		}
		return embeddings.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIModel, opts...)
	case "local":
		return embeddings.NewLocalProvider(cfg.LocalEmbeddingURL, "")
	default:
		return embeddings.NewSimpleProvider(cfg.EmbeddingDimensions)
	}
}
