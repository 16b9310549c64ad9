package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"pulseboard/internal/platform/logger"
	pnet "pulseboard/internal/platform/net"
)

// AccessLog puts a request scoped logger on the context and logs one line per request
// 5xx log at error, 4xx at warn, the rest at info
func AccessLog(base logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLog := base.With().Str("request_id", pnet.RequestID(r.Context())).Logger()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			ctx := reqLog.WithContext(r.Context())
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Auth may have stamped the caller onto the same logger
			l := logger.C(ctx)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			ev := l.Info()
			switch {
			case status >= 500:
				ev = l.Error()
			case status >= 400:
				ev = l.Warn()
			}
			ev.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("elapsed", time.Since(start)).
				Str("remote", r.RemoteAddr).
				Msg("http request")
		})
	}
}
