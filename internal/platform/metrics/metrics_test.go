package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_IndependentRegistries(t *testing.T) {
	t.Parallel()

	a, b := New(), New()
	a.ObserveStage("daily", "success", time.Second, 10)
	if got := testutil.ToFloat64(a.StageRuns.WithLabelValues("daily", "success")); got != 1 {
		t.Fatalf("a runs=%v", got)
	}
	if got := testutil.ToFloat64(b.StageRuns.WithLabelValues("daily", "success")); got != 0 {
		t.Fatalf("b runs=%v", got)
	}
	if got := testutil.ToFloat64(a.StageRows.WithLabelValues("daily")); got != 10 {
		t.Fatalf("rows=%v", got)
	}
}

func TestNil_IsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.ObserveStage("daily", "failed", time.Millisecond, 0)
	m.LeaseSkipped("weekly")
	m.Ingested("ga4", 3, map[string]int{"unresolved": 1})
	m.Resolved("page", 1)
	m.Collided(1)
	m.Request("GET", "/", 200)
}

func TestHandler_Exposes(t *testing.T) {
	t.Parallel()

	m := New()
	m.Ingested("ga4", 3, map[string]int{"invalid_date": 2})
	m.Request("POST", "/api/v1/ingest/{source}", 503)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`pulseboard_ingest_rows_total{source="ga4"} 3`,
		`pulseboard_ingest_dropped_total{reason="invalid_date",source="ga4"} 2`,
		`class="5xx"`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("missing %q in\n%s", want, body)
		}
	}
}

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	t.Parallel()

	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/aggregates/{granularity}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	r.Get("/ok", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })

	for _, p := range []string{"/aggregates/weekly", "/aggregates/monthly", "/ok"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", p, nil))
	}
	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/aggregates/{granularity}", "4xx")); got != 2 {
		t.Fatalf("pattern count=%v", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/ok", "2xx")); got != 1 {
		t.Fatalf("ok count=%v", got)
	}
}
