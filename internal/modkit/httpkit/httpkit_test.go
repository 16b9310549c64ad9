package httpkit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	perr "pulseboard/internal/platform/errors"
	pnet "pulseboard/internal/platform/net"
	phttp "pulseboard/internal/platform/net/http"
)

type nameIn struct {
	Name string `json:"name" validate:"required"`
}

func newRouter() (*chi.Mux, Router) {
	m := chi.NewRouter()
	return m, phttp.AdaptChi(m)
}

func serve(h http.Handler, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func envelope(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return env
}

func TestMountAPIV1_StackAndSugar(t *testing.T) {
	t.Parallel()

	m, r := newRouter()
	MountAPIV1(r, Stack(time.Second, zerolog.Nop()), func(api Router) {
		Get(api, "/things/{id}", func(r *http.Request) (any, error) {
			return map[string]string{"id": Param(r, "id")}, nil
		})
		PostJSON(api, "/things", func(_ *http.Request, in nameIn) (any, error) { return in, nil })
		PutJSON(api, "/things", func(_ *http.Request, in nameIn) (any, error) { return in, nil })
		Get(api, "/boom", func(*http.Request) (any, error) { panic("boom") })
	})

	tests := []struct {
		name, method, path, body string
		status                   int
		code                     string
	}{
		{"get with param", http.MethodGet, "/api/v1/things/7", "", http.StatusOK, ""},
		{"trailing slash stripped", http.MethodGet, "/api/v1/things/7/", "", http.StatusOK, ""},
		{"post ok", http.MethodPost, "/api/v1/things", `{"name":"a"}`, http.StatusOK, ""},
		{"put validation", http.MethodPut, "/api/v1/things", `{}`, http.StatusBadRequest, "validation"},
		{"post bad json", http.MethodPost, "/api/v1/things", `{`, http.StatusBadRequest, "json"},
		{"panic recovered", http.MethodGet, "/api/v1/boom", "", http.StatusInternalServerError, "panic"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(m, tc.method, tc.path, tc.body, nil)
			if rec.Code != tc.status {
				t.Fatalf("status = %d want %d body=%s", rec.Code, tc.status, rec.Body)
			}
			env := envelope(t, rec)
			if env.Code != tc.code {
				t.Fatalf("code = %q want %q", env.Code, tc.code)
			}
			if env.RequestID == "" {
				t.Fatal("request id missing from envelope")
			}
			if rec.Header().Get("Cache-Control") == "" {
				t.Fatal("no-cache headers missing")
			}
		})
	}
}

func TestPort_Parse(t *testing.T) {
	t.Parallel()

	p := NewPortFunc(func(tok string) (pnet.Caller, error) {
		if tok != "s3cret" {
			return pnet.Caller{}, perr.Unauthorizedf("nope")
		}
		return pnet.Caller{User: "ops", Org: "acme"}, nil
	})

	tests := []struct {
		name   string
		header string
		ok     bool
	}{
		{"valid", "Bearer s3cret", true},
		{"lowercase scheme", "bearer s3cret", true},
		{"extra spaces", "  Bearer   s3cret ", true},
		{"missing", "", false},
		{"basic scheme", "Basic s3cret", false},
		{"no token", "Bearer", false},
		{"wrong token", "Bearer other", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			c, err := p.Parse(req)
			if tc.ok {
				if err != nil || c.User != "ops" || c.Org != "acme" {
					t.Fatalf("got %+v, %v", c, err)
				}
				return
			}
			if !perr.IsCode(err, perr.ErrorCodeUnauthorized) {
				t.Fatalf("want unauthorized, got %v", err)
			}
		})
	}

	var nilParse Port
	if _, err := nilParse.Parse(httptest.NewRequest(http.MethodGet, "/", nil)); err == nil {
		t.Fatal("port without parser must reject")
	}
}

func TestProtected_RecordsAndEnforces(t *testing.T) {
	t.Parallel()

	m, r := newRouter()
	port := NewPortFunc(func(tok string) (pnet.Caller, error) {
		return pnet.Caller{User: tok}, nil
	})
	Get(r, "/open", func(*http.Request) (any, error) { return "ok", nil })
	Protected(r, port, func(sr Router) {
		sr.Route("/vault", func(v Router) {
			Get(v, "/items", func(r *http.Request) (any, error) { return User(r) })
			PostJSON(v, "/items", func(_ *http.Request, in nameIn) (any, error) { return in, nil })
		})
	})

	if rec := serve(m, http.MethodGet, "/open", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("open route status = %d", rec.Code)
	}
	rec := serve(m, http.MethodGet, "/vault/items", "", nil)
	if rec.Code != http.StatusUnauthorized || envelope(t, rec).Code != "unauthorized" {
		t.Fatalf("unauthenticated status = %d body=%s", rec.Code, rec.Body)
	}
	rec = serve(m, http.MethodGet, "/vault/items", "", map[string]string{"Authorization": "Bearer ops"})
	if rec.Code != http.StatusOK || envelope(t, rec).Data != "ops" {
		t.Fatalf("authenticated status = %d body=%s", rec.Code, rec.Body)
	}

	got := strings.Join(SecuredRoutes(), ",")
	for _, want := range []string{"GET /vault/items", "POST /vault/items"} {
		if !strings.Contains(got, want) {
			t.Fatalf("SecuredRoutes = %s, missing %s", got, want)
		}
	}
	if strings.Contains(got, "/open") {
		t.Fatalf("unprotected route recorded: %s", got)
	}
}

func TestScopeOrg(t *testing.T) {
	t.Parallel()

	req := func(org string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		return r.WithContext(pnet.WithCaller(r.Context(), pnet.Caller{User: "u", Org: org}))
	}

	if err := ScopeOrg(req(""), "any"); err != nil {
		t.Fatalf("unscoped token: %v", err)
	}
	if err := ScopeOrg(req("acme"), "acme"); err != nil {
		t.Fatalf("own org: %v", err)
	}
	if err := ScopeOrg(req("acme"), "other"); !perr.IsCode(err, perr.ErrorCodeForbidden) {
		t.Fatalf("foreign org: %v", err)
	}
	if err := ScopeOrg(httptest.NewRequest(http.MethodGet, "/", nil), "x"); err != nil {
		t.Fatalf("auth off: %v", err)
	}

	orgs, err := ScopeOrgs(req("acme"), nil)
	if err != nil || len(orgs) != 1 || orgs[0] != "acme" {
		t.Fatalf("empty list under scoped token = %v, %v", orgs, err)
	}
	if _, err := ScopeOrgs(req("acme"), []string{"acme", "b"}); !perr.IsCode(err, perr.ErrorCodeForbidden) {
		t.Fatalf("mixed list: %v", err)
	}
	if orgs, _ := ScopeOrgs(req(""), []string{"a", "b"}); len(orgs) != 2 {
		t.Fatalf("unscoped list narrowed: %v", orgs)
	}

	if _, err := User(httptest.NewRequest(http.MethodGet, "/", nil)); !perr.IsCode(err, perr.ErrorCodeUnauthorized) {
		t.Fatalf("User without caller: %v", err)
	}
}
