// Package middleware provides HTTP middleware for Tasklens.
package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// contextKey is a private type for context keys.
type contextKey string

const clientIDKey contextKey = "client_id"

// ClientIDFromContext extracts the calling client's ID from the request context.
func ClientIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(clientIDKey).(string); ok {
		return v
	}
	return ""
}

// ClientID reads the X-Client-ID header into the request context, falling
// back to the remote address.
func ClientID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Client-ID")
		if id == "" {
			id = r.RemoteAddr
		}
		ctx := context.WithValue(r.Context(), clientIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TokenAuth requires "Authorization: Bearer <token>" on every request except
// the health check. An empty token disables the check.
func TokenAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/health") {
				next.ServeHTTP(w, r)
				return
			}

			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{
						"code":    "UNAUTHORIZED",
						"message": "Missing or invalid API token",
					},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
