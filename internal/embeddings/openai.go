package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	pgvector "github.com/pgvector/pgvector-go"
)

const openAIBaseURL = "https://api.openai.com/v1"

// OpenAIProvider generates embeddings using OpenAI's API or any server that
// speaks the same /embeddings protocol.
type OpenAIProvider struct {
	apiKey     string
	model      string
	baseURL    string
	dimensions int
	client     *http.Client
}

// OpenAIOption configures an OpenAIProvider.
type OpenAIOption func(*OpenAIProvider)

// WithBaseURL points the provider at an OpenAI-compatible server.
func WithBaseURL(url string) OpenAIOption {
	return func(p *OpenAIProvider) { p.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) OpenAIOption {
	return func(p *OpenAIProvider) { p.client = c }
}

// WithDimensions requests a specific vector size. Only the text-embedding-3
// family honours it; other models always return their native size.
func WithDimensions(n int) OpenAIOption {
	return func(p *OpenAIProvider) { p.dimensions = n }
}

// NewOpenAIProvider creates a new OpenAI embedding provider.
func NewOpenAIProvider(apiKey, model string, opts ...OpenAIOption) *OpenAIProvider {
	if model == "" {
		model = DefaultModel
	}
	p := &OpenAIProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: openAIBaseURL,
		client:  &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Model returns the configured model.
func (p *OpenAIProvider) Model() string {
	return p.model
}

type openAIRequest struct {
	Input      string `json:"input"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type openAIResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Embed generates an embedding using the OpenAI API.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) (pgvector.Vector, error) {
	reqBody := openAIRequest{Input: text, Model: p.model}
	if strings.HasPrefix(p.model, "text-embedding-3") {
		reqBody.Dimensions = p.dimensions
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("calling OpenAI: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("reading response: %w", err)
	}

	var result openAIResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		if resp.StatusCode != http.StatusOK {
			return pgvector.Vector{}, fmt.Errorf("OpenAI returned %d: %s", resp.StatusCode, string(respBody))
		}
		return pgvector.Vector{}, fmt.Errorf("parsing response: %w", err)
	}

	if result.Error != nil {
		return pgvector.Vector{}, fmt.Errorf("OpenAI error (%d): %s", resp.StatusCode, result.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return pgvector.Vector{}, fmt.Errorf("OpenAI returned %d", resp.StatusCode)
	}

	if len(result.Data) == 0 {
		return pgvector.Vector{}, fmt.Errorf("no embeddings returned")
	}

	return pgvector.NewVector(result.Data[0].Embedding), nil
}
