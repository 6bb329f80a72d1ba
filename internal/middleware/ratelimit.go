package middleware

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// RateLimiter is a sliding-window limiter keyed by client ID.
// Clients that have been idle for a full window are swept so arbitrary
// X-Client-ID values cannot grow the map without bound.
type RateLimiter struct {
	mu        sync.Mutex
	limits    map[string][]time.Time
	maxReqs   int
	window    time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(maxReqs int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limits:  make(map[string][]time.Time),
		maxReqs: maxReqs,
		window:  window,
		now:     time.Now,
	}
}

// Middleware rejects a client's requests beyond maxReqs per window with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := ClientIDFromContext(r.Context())
		if key == "" {
			key = r.RemoteAddr
		}

		if !rl.allow(key) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{
					"code":    "RATE_LIMITED",
					"message": "Too many search requests. Try again later.",
				},
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)
	if now.Sub(rl.lastSweep) >= rl.window {
		rl.sweep(cutoff)
		rl.lastSweep = now
	}

	valid := rl.limits[key][:0]
	for _, t := range rl.limits[key] {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= rl.maxReqs {
		rl.limits[key] = valid
		return false
	}

	rl.limits[key] = append(valid, now)
	return true
}

// sweep drops clients with no request after cutoff.
func (rl *RateLimiter) sweep(cutoff time.Time) {
	for key, times := range rl.limits {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(rl.limits, key)
		}
	}
}
