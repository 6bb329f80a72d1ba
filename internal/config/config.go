// Package config provides environment-based configuration for Tasklens.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/MikeSquared-Agency/Tasklens/internal/encryption"
)

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config holds all configuration for the Tasklens service.
type Config struct {
	// Server
	Port     int
	LogLevel string
	APIToken string

	// Store
	StoreBackend string // "postgres" or "sqlite"
	DatabaseURL  string
	SQLitePath   string

	// Encryption
	EncryptionKeyPath string
	EncryptionKey     string // loaded from file or env

	// NATS / Hermes
	NatsURL       string
	SubjectPrefix string

	// Embeddings
	EmbeddingBackend    string // "openai", "local" or "simple"
	EmbeddingDimensions int
	EmbeddingMaxChars   int
	EmbeddingTimeout    time.Duration
	OpenAIAPIKey        string
	OpenAIAPIKeySealed  string
	OpenAIModel         string
	OpenAIBaseURL       string
	LocalEmbeddingURL   string

	// Rate limiting
	SearchRateLimit int           // requests per window per client
	RateWindow      time.Duration // window for rate limiting
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	c := &Config{
		Port:                envInt("TASKLENS_PORT", 8600),
		LogLevel:            envStr("TASKLENS_LOG_LEVEL", "info"),
		APIToken:            envStr("API_TOKEN", ""),
		StoreBackend:        envStr("STORE_BACKEND", BackendPostgres),
		DatabaseURL:         envStr("DATABASE_URL", ""),
		SQLitePath:          envStr("SQLITE_PATH", "tasklens.db"),
		EncryptionKeyPath:   envStr("ENCRYPTION_KEY_PATH", "/run/secrets/tasklens_encryption_key"),
		EncryptionKey:       envStr("ENCRYPTION_KEY", ""),
		NatsURL:             envStr("NATS_URL", ""),
		SubjectPrefix:       envStr("HERMES_SUBJECT_PREFIX", "swarm"),
		EmbeddingBackend:    envStr("EMBEDDING_BACKEND", "openai"),
		EmbeddingDimensions: envInt("EMBEDDING_DIMENSIONS", 1536),
		EmbeddingMaxChars:   envInt("EMBEDDING_MAX_CHARS", 8000),
		EmbeddingTimeout:    envDuration("EMBEDDING_TIMEOUT", 8*time.Second),
		OpenAIAPIKey:        envStr("OPENAI_API_KEY", ""),
		OpenAIAPIKeySealed:  envStr("OPENAI_API_KEY_SEALED", ""),
		OpenAIModel:         envStr("OPENAI_EMBEDDING_MODEL", "text-embedding-ada-002"),
		OpenAIBaseURL:       envStr("OPENAI_BASE_URL", ""),
		LocalEmbeddingURL:   envStr("LOCAL_EMBEDDING_URL", "http://localhost:8501"),
		SearchRateLimit:     envInt("SEARCH_RATE_LIMIT", 120),
		RateWindow:          time.Minute,
	}

	key, err := encryption.LoadKey(c.EncryptionKey, c.EncryptionKeyPath)
	if err != nil {
		return nil, err
	}
	c.EncryptionKey = key

	if err := c.unsealSecrets(); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// unsealSecrets decrypts OPENAI_API_KEY_SEALED when no clear key is given.
func (c *Config) unsealSecrets() error {
	if c.OpenAIAPIKey != "" || c.OpenAIAPIKeySealed == "" {
		return nil
	}
	if c.EncryptionKey == "" {
		return fmt.Errorf("OPENAI_API_KEY_SEALED is set but no encryption key is configured")
	}
	s, err := encryption.NewSealer(c.EncryptionKey)
	if err != nil {
		return err
	}
	apiKey, err := s.Open(c.OpenAIAPIKeySealed)
	if err != nil {
		return fmt.Errorf("unsealing OPENAI_API_KEY_SEALED: %w", err)
	}
	c.OpenAIAPIKey = apiKey
	return nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.EmbeddingBackend {
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY or OPENAI_API_KEY_SEALED is required for the openai backend")
		}
	case "local", "simple":
	default:
		return fmt.Errorf("unknown EMBEDDING_BACKEND %q", c.EmbeddingBackend)
	}

	if c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must be positive")
	}
	return nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
