package middleware

import (
	"net/http"

	"github.com/rs/zerolog"

	pnet "pulseboard/internal/platform/net"
)

// AuthPort authenticates a request
type AuthPort interface {
	Parse(r *http.Request) (pnet.Caller, error)
}

// Auth stores the caller on the context and the request logger, or renders the parse error with fail
// a nil port lets every request through
func Auth(p AuthPort, fail ErrorWriter) Middleware {
	return func(next http.Handler) http.Handler {
		if p == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := p.Parse(r)
			if err != nil {
				fail(w, r, err)
				return
			}
			if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
				l.UpdateContext(func(zc zerolog.Context) zerolog.Context { return zc.Str("caller", c.User) })
			}
			next.ServeHTTP(w, r.WithContext(pnet.WithCaller(r.Context(), c)))
		})
	}
}
