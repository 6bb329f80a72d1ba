package search_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pgvector/pgvector-go"

	"github.com/MikeSquared-Agency/Tasklens/internal/embeddings"
	"github.com/MikeSquared-Agency/Tasklens/internal/store"
)

// keywordAxes maps word stems onto vector axes; every other word lands on
// the final axis. Good enough to make related tasks point the same way.
var keywordAxes = []string{"certif", "expir", "renew", "ssl"}

const testDimensions = 5

type keywordProvider struct {
	mu    sync.Mutex
	calls int
	texts []string
	fail  string
}

func (p *keywordProvider) Name() string  { return "keyword" }
func (p *keywordProvider) Model() string { return "keyword-test" }

func (p *keywordProvider) Embed(_ context.Context, text string) (pgvector.Vector, error) {
	p.mu.Lock()
	p.calls++
	p.texts = append(p.texts, text)
	p.mu.Unlock()

	if p.fail != "" && strings.Contains(text, p.fail) {
		return pgvector.Vector{}, errors.New("provider unavailable")
	}

	v := make([]float32, testDimensions)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		axis := len(keywordAxes)
		for i, stem := range keywordAxes {
			if strings.Contains(w, stem) {
				axis = i
				break
			}
		}
		v[axis]++
	}
	return pgvector.NewVector(v), nil
}

func (p *keywordProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.OpenSQLite(filepath.Join(t.TempDir(), "search.db"), testDimensions, testLogger())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	s.EnsureReady(context.Background())
	return s
}

func newTestEmbedder(p *keywordProvider) *embeddings.Embedder {
	return embeddings.NewEmbedder(p, embeddings.Config{Dimensions: testDimensions})
}

func seedTasks(t *testing.T, s *store.SQLiteStore, tasks ...store.Task) {
	t.Helper()
	for _, task := range tasks {
		if err := s.UpsertTask(context.Background(), task); err != nil {
			t.Fatalf("seed task %s: %v", task.ID, err)
		}
	}
}

func embeddingCount(t *testing.T, s *store.SQLiteStore) int64 {
	t.Helper()
	st, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	return st.Embedded
}
