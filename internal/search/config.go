// Package search keeps the task embedding index in step with the task table
// and answers similarity queries against it.
package search

import (
	"os"
	"strconv"
	"time"
)

const (
	DefaultLimit         = 10
	MaxLimit             = 100
	DefaultMinSimilarity = 0.5
	DefaultBackfillDelay = 100 * time.Millisecond
	DefaultHookTimeout   = 30 * time.Second
)

// Config holds search configuration loaded from environment variables.
type Config struct {
	DefaultLimit         int
	MaxLimit             int
	DefaultMinSimilarity float64

	// Pause between tasks during backfill, to stay under provider rate limits.
	BackfillDelay time.Duration
	HookTimeout   time.Duration

	// Reconcile worker
	ReconcileEnabled   bool
	ReconcileInterval  time.Duration
	ReconcileBatchSize int
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		DefaultLimit:         DefaultLimit,
		MaxLimit:             MaxLimit,
		DefaultMinSimilarity: DefaultMinSimilarity,
		BackfillDelay:        DefaultBackfillDelay,
		HookTimeout:          DefaultHookTimeout,
		ReconcileInterval:    5 * time.Minute,
		ReconcileBatchSize:   50,
	}
}

// ConfigFromEnv loads search configuration from environment variables.
func ConfigFromEnv() Config {
	d := DefaultConfig()
	return Config{
		DefaultLimit:         envIntOrDefault("SEARCH_DEFAULT_LIMIT", d.DefaultLimit),
		MaxLimit:             envIntOrDefault("SEARCH_MAX_LIMIT", d.MaxLimit),
		DefaultMinSimilarity: envFloatOrDefault("SEARCH_MIN_SIMILARITY", d.DefaultMinSimilarity),
		BackfillDelay:        envDurationOrDefault("SEARCH_BACKFILL_DELAY", d.BackfillDelay),
		HookTimeout:          envDurationOrDefault("SEARCH_HOOK_TIMEOUT", d.HookTimeout),
		ReconcileEnabled:     envOrDefault("SEARCH_RECONCILE_ENABLED", "") == "true",
		ReconcileInterval:    envDurationOrDefault("SEARCH_RECONCILE_INTERVAL", d.ReconcileInterval),
		ReconcileBatchSize:   envIntOrDefault("SEARCH_RECONCILE_BATCH_SIZE", d.ReconcileBatchSize),
	}
}

// ClampLimit applies the default for non-positive limits and caps at MaxLimit.
func (c Config) ClampLimit(limit int) int {
	if limit <= 0 {
		limit = c.DefaultLimit
	}
	if c.MaxLimit > 0 && limit > c.MaxLimit {
		limit = c.MaxLimit
	}
	return limit
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloatOrDefault(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOrDefault(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
