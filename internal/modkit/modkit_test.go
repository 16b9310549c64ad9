package modkit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"pulseboard/internal/modkit/httpkit"
	phttp "pulseboard/internal/platform/net/http"
)

func TestBuild_DefaultsAndOptions(t *testing.T) {
	t.Parallel()

	b := Build("rollups", "/rollups")
	if b.Name != "rollups" || b.Prefix != "/rollups" || b.Ports != nil || len(b.Mw) != 0 {
		t.Fatalf("defaults = %+v", b)
	}

	type ports struct{ N int }
	mw := func(next http.Handler) http.Handler { return next }
	b = Build("rollups", "/rollups",
		WithName("r2"),
		WithPrefix("/r2"),
		WithMiddlewares(mw, mw),
		WithPorts(ports{N: 3}),
	)
	if b.Name != "r2" || b.Prefix != "/r2" || len(b.Mw) != 2 {
		t.Fatalf("options not applied: %+v", b)
	}
	if p, ok := b.Ports.(ports); !ok || p.N != 3 {
		t.Fatalf("Ports = %#v", b.Ports)
	}
}

func TestRoutes_MountsUnderPrefixWithMiddleware(t *testing.T) {
	t.Parallel()

	tag := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Module", "meta")
			next.ServeHTTP(w, r)
		})
	}
	m := Build("meta", "/meta", WithMiddlewares(tag)).Routes("ports", func(r httpkit.Router) {
		httpkit.Get(r, "/ping", func(*http.Request) (any, error) { return "pong", nil })
	})
	if m.Name() != "meta" || m.Ports() != "ports" {
		t.Fatalf("Name/Ports = %q/%v", m.Name(), m.Ports())
	}

	mux := chi.NewRouter()
	m.MountRoutes(phttp.AdaptChi(mux))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/meta/ping", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("X-Module") != "meta" {
		t.Fatalf("status = %d header = %q", rec.Code, rec.Header().Get("X-Module"))
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("route leaked outside prefix: %d", rec.Code)
	}
}
