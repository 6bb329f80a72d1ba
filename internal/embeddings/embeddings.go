// Package embeddings provides a swappable interface for text embedding generation.
package embeddings

import (
	"context"

	pgvector "github.com/pgvector/pgvector-go"
)

const (
	// DefaultDimensions is the embedding vector size of text-embedding-ada-002.
	// Changing it requires a new task_embedding table.
	DefaultDimensions = 1536

	// DefaultModel is the OpenAI model used when none is configured.
	DefaultModel = "text-embedding-ada-002"

	// DefaultMaxChars is the input budget sent to the provider, roughly 2k tokens.
	DefaultMaxChars = 8000
)

// Provider generates text embeddings.
type Provider interface {
	// Embed generates an embedding vector for the given text.
	Embed(ctx context.Context, text string) (pgvector.Vector, error)

	// Name returns the provider name for logging.
	Name() string

	// Model returns the model identifier stored alongside each vector.
	Model() string
}
