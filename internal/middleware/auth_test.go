package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestTokenAuth_DisabledWhenEmpty(t *testing.T) {
	h := TokenAuth("")(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/api/tasks/search?q=x", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestTokenAuth_HealthPassesThrough(t *testing.T) {
	h := TokenAuth("secret")(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestTokenAuth_RejectsMissingToken(t *testing.T) {
	h := TokenAuth("secret")(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/api/tasks/search?q=x", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestTokenAuth_RejectsWrongToken(t *testing.T) {
	h := TokenAuth("secret")(okHandler())
	req := httptest.NewRequest(http.MethodPost, "/api/tasks/t1/index", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestTokenAuth_RejectsNonBearerScheme(t *testing.T) {
	h := TokenAuth("secret")(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/api/tasks/search?q=x", nil)
	req.Header.Set("Authorization", "Basic secret")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestTokenAuth_AcceptsValidToken(t *testing.T) {
	h := TokenAuth("secret")(okHandler())
	req := httptest.NewRequest(http.MethodDelete, "/api/tasks/t1/index", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestClientID(t *testing.T) {
	var got string
	h := ClientID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClientIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Client-ID", "kanban-web")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "kanban-web" {
		t.Errorf("expected kanban-web, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "10.0.0.1:1234" {
		t.Errorf("expected remote addr fallback, got %q", got)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	h := ClientID(rl.Middleware(okHandler()))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/tasks/search?q=x", nil)
		req.Header.Set("X-Client-ID", "c1")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Errorf("unexpected codes %v", codes)
	}

	// Another client has its own budget.
	req := httptest.NewRequest(http.MethodGet, "/api/tasks/search?q=x", nil)
	req.Header.Set("X-Client-ID", "c2")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 for second client, got %d", w.Code)
	}
}
