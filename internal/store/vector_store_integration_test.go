//go:build integration

// Integration tests for the pgvector store.
// Run with: go test ./internal/store/ -tags=integration -v
// Requires DATABASE_URL pointing at a PostgreSQL instance where the vector
// extension can be created.

package store

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

func integrationStore(t *testing.T) (*VectorStore, *DB) {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := NewDB(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(db.Close)

	if _, err := db.Pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS task (
		id TEXT PRIMARY KEY, title TEXT NOT NULL, description TEXT, notes TEXT,
		outcome TEXT, blocker TEXT, need TEXT)`); err != nil {
		t.Fatalf("create task table: %v", err)
	}

	s := NewVectorStore(db, 3, discardLogger())
	s.EnsureReady(ctx)
	if !s.Ready() {
		t.Fatal("expected vector store to be ready")
	}
	return s, db
}

func insertTask(t *testing.T, db *DB, title string) string {
	t.Helper()
	id := "it-" + uuid.NewString()
	if _, err := db.Pool.Exec(context.Background(), `INSERT INTO task (id, title) VALUES ($1, $2)`, id, title); err != nil {
		t.Fatalf("insert task: %v", err)
	}
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(), `DELETE FROM task WHERE id = $1`, id)
	})
	return id
}

func TestVectorStoreUpsertAndSearch(t *testing.T) {
	s, db := integrationStore(t)
	ctx := context.Background()

	near := insertTask(t, db, "near")
	far := insertTask(t, db, "far")
	if err := s.UpsertEmbedding(ctx, &TaskEmbedding{TaskID: near, Embedding: pgvector.NewVector([]float32{1, 0, 0}), Model: "test"}); err != nil {
		t.Fatalf("upsert near: %v", err)
	}
	if err := s.UpsertEmbedding(ctx, &TaskEmbedding{TaskID: far, Embedding: pgvector.NewVector([]float32{0, 1, 0}), Model: "test"}); err != nil {
		t.Fatalf("upsert far: %v", err)
	}
	// Second upsert replaces rather than duplicates.
	if err := s.UpsertEmbedding(ctx, &TaskEmbedding{TaskID: near, Embedding: pgvector.NewVector([]float32{0.9, 0.1, 0}), Model: "test2"}); err != nil {
		t.Fatalf("re-upsert near: %v", err)
	}

	got, err := s.GetEmbedding(ctx, near)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Model != "test2" {
		t.Errorf("expected model test2, got %s", got.Model)
	}

	res, err := s.FindSimilar(ctx, pgvector.NewVector([]float32{1, 0, 0}), 10, 0.5)
	if err != nil {
		t.Fatalf("find similar: %v", err)
	}
	found := false
	for _, r := range res {
		if r.TaskID == far {
			t.Errorf("orthogonal task should be below threshold: %+v", r)
		}
		if r.TaskID == near {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %s in results %+v", near, res)
	}
}

func TestVectorStoreTaskGone(t *testing.T) {
	s, _ := integrationStore(t)
	err := s.UpsertEmbedding(context.Background(), &TaskEmbedding{
		TaskID:    "missing-" + uuid.NewString(),
		Embedding: pgvector.NewVector([]float32{1, 0, 0}),
	})
	if !errors.Is(err, ErrTaskGone) {
		t.Fatalf("expected ErrTaskGone, got %v", err)
	}
}

func TestVectorStoreCascade(t *testing.T) {
	s, db := integrationStore(t)
	ctx := context.Background()
	id := insertTask(t, db, "cascade")
	if err := s.UpsertEmbedding(ctx, &TaskEmbedding{TaskID: id, Embedding: pgvector.NewVector([]float32{1, 1, 0})}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := db.Pool.Exec(ctx, `DELETE FROM task WHERE id = $1`, id); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	if _, err := s.GetEmbedding(ctx, id); err == nil {
		t.Error("expected embedding to be removed with its task")
	}
}
