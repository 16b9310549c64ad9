package middleware

import (
	"net/http"
	"runtime/debug"

	perr "pulseboard/internal/platform/errors"
	"pulseboard/internal/platform/logger"
)

// Recover turns a handler panic into a panic coded error rendered by fail
// http.ErrAbortHandler is re-raised so net/http can abort the connection
func Recover(fail ErrorWriter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}
				logger.C(r.Context()).Error().
					Interface("panic", v).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")
				fail(w, r, perr.PanicErrf("internal error"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
