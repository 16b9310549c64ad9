// Package swaggerkit mounts the Swagger UI and the JSON spec
package swaggerkit

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"pulseboard/internal/platform/config"
	phttp "pulseboard/internal/platform/net/http"
)

// Mount serves the UI under /api/docs when enabled
// CORE_API_DOCS_TITLE_SUFFIX is appended to the spec title
func Mount(r phttp.Router, enabled bool) {
	if !enabled {
		return
	}
	suffix := config.New().Prefix("CORE_API_").MayString("DOCS_TITLE_SUFFIX", "")

	r.Get("/api/docs", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/docs/", http.StatusPermanentRedirect)
	})
	r.Get("/api/docs/doc.json", serveDocJSON("/api/v1", suffix))
	r.Handle("/api/docs/*", httpSwagger.Handler(
		httpSwagger.InstanceName("api"),
		httpSwagger.URL("/api/docs/doc.json"),
	))
}
