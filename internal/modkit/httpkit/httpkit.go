// Package httpkit provides handler and routing helpers that alias the platform http package
// use these from modules so they do not import internal/platform/net/http directly
package httpkit

import (
	"compress/flate"
	"net/http"
	"time"

	"pulseboard/internal/platform/logger"
	phttp "pulseboard/internal/platform/net/http"
	"pulseboard/internal/platform/net/middleware"
)

type (
	// Router is a re-export of the platform router seam
	Router = phttp.Router

	// Envelope is the response body of every endpoint
	Envelope = phttp.Envelope
)

// Get mounts a body-less handler
func Get(r Router, path string, h func(*http.Request) (any, error)) {
	r.Get(path, phttp.Handle(h))
}

// PostJSON decodes and validates T before calling h
func PostJSON[T any](r Router, path string, h func(*http.Request, T) (any, error)) {
	r.Post(path, phttp.HandleJSON(h))
}

// PutJSON decodes and validates T before calling h
func PutJSON[T any](r Router, path string, h func(*http.Request, T) (any, error)) {
	r.Put(path, phttp.HandleJSON(h))
}

// Param returns a path parameter such as {stage} of the matched route
func Param(r *http.Request, key string) string { return phttp.URLParam(r, key) }

// MountAPIV1 mounts a subrouter under /api/v1 with mw applied
func MountAPIV1(r Router, mw []func(http.Handler) http.Handler, mount func(Router)) {
	r.Route("/api/v1", func(api Router) {
		if len(mw) > 0 {
			api.Use(mw...)
		}
		mount(api)
	})
}

// Stack is the per request middleware of the api scope
func Stack(timeout time.Duration, log logger.Logger) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		middleware.RequestID(),
		middleware.RealIP(),
		middleware.AccessLog(log),
		middleware.Recover(phttp.WriteError),
		middleware.NoCache(),
		middleware.CORS(middleware.CORSOptions{}),
		middleware.Compress(flate.BestSpeed),
		middleware.StripSlashes(),
		middleware.Timeout(timeout),
	}
}
