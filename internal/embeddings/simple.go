package embeddings

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	pgvector "github.com/pgvector/pgvector-go"
)

// SimpleProvider generates embeddings using keyword hashing. Not semantically
// meaningful, but deterministic and offline; useful for development and for
// running the service without provider credentials.
type SimpleProvider struct {
	dimensions int
}

// NewSimpleProvider creates a SimpleProvider producing vectors of the given size.
func NewSimpleProvider(dimensions int) *SimpleProvider {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &SimpleProvider{dimensions: dimensions}
}

// Name returns the provider name.
func (p *SimpleProvider) Name() string {
	return "simple"
}

// Model returns the model label recorded with each vector.
func (p *SimpleProvider) Model() string {
	return "simple-hash"
}

// Embed hashes each word (and each bigram, at half weight) into a dimension,
// then L2-normalizes the result.
func (p *SimpleProvider) Embed(_ context.Context, text string) (pgvector.Vector, error) {
	vec := make([]float32, p.dimensions)
	words := tokenize(text)

	for _, word := range words {
		vec[p.bucket(word)] += 1.0
	}
	for i := 0; i < len(words)-1; i++ {
		vec[p.bucket(words[i]+" "+words[i+1])] += 0.5
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}

	return pgvector.NewVector(vec), nil
}

func (p *SimpleProvider) bucket(token string) int {
	h := fnv.New64a()
	h.Write([]byte(token))
	return int(h.Sum64() % uint64(p.dimensions))
}

// tokenize splits text into lowercase word tokens.
func tokenize(text string) []string {
	text = strings.ToLower(text)
	for _, c := range ".,;:!?()[]{}\"'`~@#$%^&*+=|\\/<>" {
		text = strings.ReplaceAll(text, string(c), " ")
	}
	fields := strings.Fields(text)
	var result []string
	for _, f := range fields {
		if len(f) >= 2 {
			result = append(result, f)
		}
	}
	return result
}
