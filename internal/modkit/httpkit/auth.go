package httpkit

import (
	"net/http"
	"sort"
	"strings"
	"sync"

	perr "pulseboard/internal/platform/errors"
	pnet "pulseboard/internal/platform/net"
	phttp "pulseboard/internal/platform/net/http"
	"pulseboard/internal/platform/net/middleware"
)

// TokenFunc resolves a bearer token to its caller
type TokenFunc func(token string) (pnet.Caller, error)

// Port implements middleware.AuthPort over the Authorization header
type Port struct {
	parse TokenFunc
}

// NewPortFunc builds a Port from a token resolver
func NewPortFunc(fn TokenFunc) *Port { return &Port{parse: fn} }

// Parse reads "Bearer <token>"; any failure is unauthorized
func (p *Port) Parse(r *http.Request) (pnet.Caller, error) {
	s := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, raw, _ := strings.Cut(s, " ")
	raw = strings.TrimSpace(raw)
	if !strings.EqualFold(scheme, "bearer") || raw == "" {
		return pnet.Caller{}, perr.Unauthorizedf("missing bearer token")
	}
	if p.parse == nil {
		return pnet.Caller{}, perr.Unauthorizedf("invalid bearer token")
	}
	c, err := p.parse(raw)
	if err != nil || c.User == "" {
		return pnet.Caller{}, perr.Unauthorizedf("invalid bearer token")
	}
	return c, nil
}

// Auth renders auth failures with the platform envelope
func Auth(p middleware.AuthPort) func(http.Handler) http.Handler {
	return middleware.Auth(p, phttp.WriteError)
}

// User returns the authenticated caller name
func User(r *http.Request) (string, error) {
	c, ok := pnet.CallerFrom(r.Context())
	if !ok {
		return "", perr.Unauthorizedf("missing bearer token")
	}
	return c.User, nil
}

// ScopedOrg returns the organization the caller's token is scoped to
// empty means every organization
func ScopedOrg(r *http.Request) string {
	c, _ := pnet.CallerFrom(r.Context())
	return c.Org
}

// ScopeOrg rejects org when the caller's token is scoped to another organization
func ScopeOrg(r *http.Request, org string) error {
	if t := ScopedOrg(r); t != "" && t != org {
		return perr.Forbiddenf("token is scoped to organization %s", t)
	}
	return nil
}

// ScopeOrgs narrows a multi organization request to the caller's scope
// an empty list under a scoped token becomes that token's organization
func ScopeOrgs(r *http.Request, orgs []string) ([]string, error) {
	t := ScopedOrg(r)
	if t == "" {
		return orgs, nil
	}
	if len(orgs) == 0 {
		return []string{t}, nil
	}
	for _, o := range orgs {
		if o != t {
			return nil, perr.Forbiddenf("token is scoped to organization %s", t)
		}
	}
	return orgs, nil
}

var (
	securedMu sync.Mutex
	secured   = map[string]struct{}{}
)

// SecuredRoutes lists every "METHOD /path" registered through Protected, sorted
func SecuredRoutes() []string {
	securedMu.Lock()
	defer securedMu.Unlock()
	out := make([]string, 0, len(secured))
	for k := range secured {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Protected groups routes under bearer auth and records them for SecuredRoutes
func Protected(r Router, p middleware.AuthPort, fn func(Router)) {
	r.Group(func(gr Router) {
		gr.Use(Auth(p))
		fn(&securedRouter{Router: gr})
	})
}

type securedRouter struct {
	Router
	base string
}

func (s *securedRouter) mark(method, path string) {
	p := strings.TrimSuffix(s.base, "/") + "/" + strings.TrimPrefix(path, "/")
	securedMu.Lock()
	secured[method+" "+p] = struct{}{}
	securedMu.Unlock()
}

func (s *securedRouter) Route(prefix string, fn func(Router)) {
	base := strings.TrimSuffix(s.base, "/") + "/" + strings.TrimPrefix(prefix, "/")
	s.Router.Route(prefix, func(sub Router) {
		fn(&securedRouter{Router: sub, base: base})
	})
}

func (s *securedRouter) Get(path string, h phttp.Handler) {
	s.mark("GET", path)
	s.Router.Get(path, h)
}

func (s *securedRouter) Post(path string, h phttp.Handler) {
	s.mark("POST", path)
	s.Router.Post(path, h)
}

func (s *securedRouter) Put(path string, h phttp.Handler) {
	s.mark("PUT", path)
	s.Router.Put(path, h)
}

func (s *securedRouter) Delete(path string, h phttp.Handler) {
	s.mark("DELETE", path)
	s.Router.Delete(path, h)
}

func (s *securedRouter) Handle(path string, h http.Handler) {
	s.mark("ANY", path)
	s.Router.Handle(path, h)
}

func (s *securedRouter) Group(fn func(Router)) {
	s.Router.Group(func(g Router) {
		fn(&securedRouter{Router: g, base: s.base})
	})
}
