package search_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/Tasklens/internal/embeddings"
	"github.com/MikeSquared-Agency/Tasklens/internal/search"
	"github.com/MikeSquared-Agency/Tasklens/internal/store"
)

func indexAll(t *testing.T, ix *search.Indexer, tasks ...store.Task) {
	t.Helper()
	for _, task := range tasks {
		if res := ix.IndexTask(context.Background(), task); res.Outcome != search.OutcomeIndexed {
			t.Fatalf("index %s: %+v", task.ID, res)
		}
	}
}

func TestSearchFindsCertificateTask(t *testing.T) {
	s := newTestStore(t)
	emb := newTestEmbedder(&keywordProvider{})
	ix := search.NewIndexer(s, emb, 0, testLogger())
	engine := search.NewEngine(s, emb, search.DefaultConfig(), testLogger())

	tasks := []store.Task{
		{ID: "1", Title: "Renew SSL certificates", Description: "certificate expiring"},
		{ID: "2", Title: "Fix login bug"},
	}
	seedTasks(t, s, tasks...)
	indexAll(t, ix, tasks...)

	matches, err := engine.Search(context.Background(), "certificate expiration", 5, 0.3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 1 || matches[0].TaskID != "1" {
		t.Fatalf("expected only task 1, got %+v", matches)
	}
	if matches[0].Similarity <= 0.3 {
		t.Errorf("expected similarity above floor, got %f", matches[0].Similarity)
	}
}

func TestSearchThresholdAndOrdering(t *testing.T) {
	s := newTestStore(t)
	emb := newTestEmbedder(&keywordProvider{})
	ix := search.NewIndexer(s, emb, 0, testLogger())
	engine := search.NewEngine(s, emb, search.DefaultConfig(), testLogger())

	tasks := []store.Task{
		{ID: "a", Title: "ssl ssl ssl"},
		{ID: "b", Title: "ssl ssl renew"},
		{ID: "c", Title: "ssl renew renew"},
		{ID: "d", Title: "login bug"},
	}
	seedTasks(t, s, tasks...)
	indexAll(t, ix, tasks...)

	matches, err := engine.Search(context.Background(), "ssl", 10, 0.2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	want := []string{"a", "b", "c"}
	if len(matches) != len(want) {
		t.Fatalf("expected %v, got %+v", want, matches)
	}
	for i, id := range want {
		if matches[i].TaskID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, matches[i].TaskID)
		}
		if matches[i].Similarity <= 0.2 {
			t.Errorf("position %d below floor: %f", i, matches[i].Similarity)
		}
		if i > 0 && matches[i].Similarity > matches[i-1].Similarity {
			t.Errorf("results not descending at %d", i)
		}
	}

	top, err := engine.Search(context.Background(), "ssl", 2, 0.2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(top) != 2 || top[0].TaskID != "a" || top[1].TaskID != "b" {
		t.Errorf("expected top 2 [a b], got %+v", top)
	}
}

func TestSearchNothingAboveFloor(t *testing.T) {
	s := newTestStore(t)
	emb := newTestEmbedder(&keywordProvider{})
	ix := search.NewIndexer(s, emb, 0, testLogger())
	engine := search.NewEngine(s, emb, search.DefaultConfig(), testLogger())
	task := store.Task{ID: "1", Title: "Fix login bug"}
	seedTasks(t, s, task)
	indexAll(t, ix, task)

	matches, err := engine.Search(context.Background(), "ssl certificate", 10, search.DefaultMinSimilarity)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if matches == nil || len(matches) != 0 {
		t.Errorf("expected empty non-nil result, got %#v", matches)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	s := newTestStore(t)
	p := &keywordProvider{}
	engine := search.NewEngine(s, newTestEmbedder(p), search.DefaultConfig(), testLogger())

	for _, q := range []string{"", "   \n\t"} {
		_, err := engine.Search(context.Background(), q, 10, 0.5)
		if !errors.Is(err, embeddings.ErrEmptyInput) {
			t.Errorf("query %q: expected ErrEmptyInput, got %v", q, err)
		}
	}
	if p.callCount() != 0 {
		t.Errorf("provider should not be called, got %d calls", p.callCount())
	}
}

func TestSearchProviderFailure(t *testing.T) {
	s := newTestStore(t)
	engine := search.NewEngine(s, newTestEmbedder(&keywordProvider{fail: "ssl"}), search.DefaultConfig(), testLogger())

	_, err := engine.Search(context.Background(), "ssl", 10, 0.5)
	var perr *embeddings.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ProviderError, got %v", err)
	}
}

func TestSearchStoreFailure(t *testing.T) {
	s := newTestStore(t)
	engine := search.NewEngine(s, newTestEmbedder(&keywordProvider{}), search.DefaultConfig(), testLogger())
	_ = s.Close()

	_, err := engine.Search(context.Background(), "ssl", 10, 0.5)
	var opErr *store.OpError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected *store.OpError, got %v", err)
	}
}

func TestClampLimit(t *testing.T) {
	cfg := search.DefaultConfig()
	tests := []struct {
		in, want int
	}{
		{0, search.DefaultLimit},
		{-3, search.DefaultLimit},
		{5, 5},
		{100, 100},
		{1000, search.MaxLimit},
	}
	for _, tt := range tests {
		if got := cfg.ClampLimit(tt.in); got != tt.want {
			t.Errorf("ClampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("SEARCH_DEFAULT_LIMIT", "20")
	t.Setenv("SEARCH_MAX_LIMIT", "50")
	t.Setenv("SEARCH_MIN_SIMILARITY", "0.7")
	t.Setenv("SEARCH_BACKFILL_DELAY", "250ms")
	t.Setenv("SEARCH_RECONCILE_ENABLED", "true")
	t.Setenv("SEARCH_RECONCILE_BATCH_SIZE", "not-a-number")

	cfg := search.ConfigFromEnv()
	if cfg.DefaultLimit != 20 || cfg.MaxLimit != 50 {
		t.Errorf("unexpected limits %+v", cfg)
	}
	if cfg.DefaultMinSimilarity != 0.7 {
		t.Errorf("expected min similarity 0.7, got %f", cfg.DefaultMinSimilarity)
	}
	if cfg.BackfillDelay != 250*time.Millisecond {
		t.Errorf("expected 250ms delay, got %v", cfg.BackfillDelay)
	}
	if !cfg.ReconcileEnabled {
		t.Error("expected reconcile enabled")
	}
	if cfg.ReconcileBatchSize != 50 {
		t.Errorf("expected fallback batch size 50, got %d", cfg.ReconcileBatchSize)
	}
	if cfg.HookTimeout != search.DefaultHookTimeout {
		t.Errorf("expected default hook timeout, got %v", cfg.HookTimeout)
	}
}

func TestWorkerReconciles(t *testing.T) {
	s := newTestStore(t)
	ix := search.NewIndexer(s, newTestEmbedder(&keywordProvider{}), 0, testLogger())
	seedTasks(t, s,
		store.Task{ID: "1", Title: "Renew SSL certificates"},
		store.Task{ID: "2", Title: "Fix login bug"},
	)

	cfg := search.DefaultConfig()
	cfg.ReconcileInterval = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	w := search.NewWorker(ix, cfg, testLogger())
	w.Start(ctx)
	defer func() {
		cancel()
		w.Wait()
	}()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if embeddingCount(t, s) == 2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("worker did not index missing tasks, have %d", embeddingCount(t, s))
}

func TestWorkerWaitReturnsAfterCancel(t *testing.T) {
	s := newTestStore(t)
	ix := search.NewIndexer(s, newTestEmbedder(&keywordProvider{}), 0, testLogger())

	cfg := search.DefaultConfig()
	cfg.ReconcileInterval = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	w := search.NewWorker(ix, cfg, testLogger())
	w.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		w.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}

	// Wait without Start must not block.
	search.NewWorker(ix, cfg, testLogger()).Wait()
}
