package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	pgvector "github.com/pgvector/pgvector-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MikeSquared-Agency/Tasklens/internal/metrics"
)

// ErrEmptyInput is returned when asked to embed blank text.
var ErrEmptyInput = errors.New("cannot generate embedding for empty text")

// ProviderError wraps any failure of the remote embedding call.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("embedding provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

var tracer = otel.Tracer("tasklens/embeddings")

// Config tunes an Embedder. Zero values fall back to the package defaults.
type Config struct {
	Dimensions int
	MaxChars   int
	Timeout    time.Duration
}

// Embedder validates and truncates input before handing it to a Provider,
// and checks that every vector it returns has the configured dimensionality.
type Embedder struct {
	provider   Provider
	dimensions int
	maxChars   int
	timeout    time.Duration
}

// NewEmbedder wraps a provider. The provider is shared by every caller.
func NewEmbedder(provider Provider, cfg Config) *Embedder {
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultMaxChars
	}
	return &Embedder{
		provider:   provider,
		dimensions: cfg.Dimensions,
		maxChars:   cfg.MaxChars,
		timeout:    cfg.Timeout,
	}
}

// Model returns the model identifier of the wrapped provider.
func (e *Embedder) Model() string { return e.provider.Model() }

// Dimensions returns the vector length every embedding must have.
func (e *Embedder) Dimensions() int { return e.dimensions }

// Embed converts text into a vector of Dimensions() floats.
func (e *Embedder) Embed(ctx context.Context, text string) (pgvector.Vector, error) {
	if strings.TrimSpace(text) == "" {
		return pgvector.Vector{}, ErrEmptyInput
	}
	text = Truncate(text, e.maxChars)

	name := e.provider.Name()
	ctx, span := tracer.Start(ctx, "embeddings.Embed", trace.WithAttributes(
		attribute.String("embedding.provider", name),
		attribute.String("embedding.model", e.provider.Model()),
		attribute.Int("embedding.input_chars", utf8.RuneCountInString(text)),
	))
	defer span.End()

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	vec, err := e.provider.Embed(ctx, text)
	if err == nil && len(vec.Slice()) != e.dimensions {
		err = fmt.Errorf("got %d dimensions, want %d", len(vec.Slice()), e.dimensions)
	}
	metrics.ObserveEmbed(name, err, time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
		return pgvector.Vector{}, &ProviderError{Provider: name, Err: err}
	}
	return vec, nil
}

// Truncate keeps the first maxChars characters of text.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	return string([]rune(text)[:maxChars])
}
