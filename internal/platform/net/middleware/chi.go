// Package middleware holds the request pipeline pieces shared by every API
package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Middleware is a net/http decorator
type Middleware = func(http.Handler) http.Handler

// ErrorWriter renders err as the response of r
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// RequestID propagates X-Request-Id or mints one
func RequestID() Middleware { return chimw.RequestID }

// RealIP trusts X-Forwarded-For and X-Real-IP
func RealIP() Middleware { return chimw.RealIP }

// NoCache marks every response uncacheable
func NoCache() Middleware { return chimw.NoCache }

// StripSlashes routes /x/ as /x
func StripSlashes() Middleware { return chimw.StripSlashes }

// Heartbeat answers GET path with 200 before routing
func Heartbeat(path string) Middleware { return chimw.Heartbeat(path) }

// Timeout cancels the request context after d and answers 504 if nothing was written
func Timeout(d time.Duration) Middleware { return chimw.Timeout(d) }

// Compress gzips and deflates responses at level
func Compress(level int) Middleware { return chimw.Compress(level) }

// CORSOptions narrows go-chi/cors; empty lists fall back to the API's needs
type CORSOptions struct {
	AllowedOrigins []string
	AllowedHeaders []string
	MaxAge         int
}

// CORS answers preflight requests
func CORS(o CORSOptions) Middleware {
	headers := o.AllowedHeaders
	if len(headers) == 0 {
		headers = []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"}
	}
	origins := o.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: headers,
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         o.MaxAge,
	})
}
