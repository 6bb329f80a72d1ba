package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveEmbed_CountsByStatus(t *testing.T) {
	okBefore := testutil.ToFloat64(embedRequests.WithLabelValues("test-provider", "ok"))
	errBefore := testutil.ToFloat64(embedRequests.WithLabelValues("test-provider", "error"))

	ObserveEmbed("test-provider", nil, 10*time.Millisecond)
	ObserveEmbed("test-provider", errors.New("boom"), 10*time.Millisecond)
	ObserveEmbed("test-provider", nil, 10*time.Millisecond)

	if got := testutil.ToFloat64(embedRequests.WithLabelValues("test-provider", "ok")) - okBefore; got != 2 {
		t.Errorf("expected 2 ok calls, got %v", got)
	}
	if got := testutil.ToFloat64(embedRequests.WithLabelValues("test-provider", "error")) - errBefore; got != 1 {
		t.Errorf("expected 1 failed call, got %v", got)
	}
}

func TestObserveIndex(t *testing.T) {
	before := testutil.ToFloat64(indexOutcomes.WithLabelValues("skipped"))
	ObserveIndex("skipped")
	if got := testutil.ToFloat64(indexOutcomes.WithLabelValues("skipped")) - before; got != 1 {
		t.Errorf("expected 1 skipped, got %v", got)
	}
}

func TestHandler_ExposesCollectors(t *testing.T) {
	ObserveSearch(nil, 3, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{"tasklens_search_requests_total", "tasklens_search_results", "go_goroutines"} {
		if !strings.Contains(body, name) {
			t.Errorf("expected metrics output to contain %s", name)
		}
	}
}
