// Package module wires source ingestion into the API using modkit
package module

import (
	"pulseboard/internal/modkit"
	"pulseboard/internal/modkit/httpkit"

	"pulseboard/internal/services/api/ingest/domain"
	ihttp "pulseboard/internal/services/api/ingest/http"
)

// Ports declares the injected service ports
type Ports = domain.Ports

// New constructs the ingest module; ports must be injected with modkit.WithPorts
func New(_ modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build("ingest", "/ingest", opts...)
	p, _ := b.Ports.(Ports)
	if p.Normalizer == nil || p.Daily == nil {
		panic("ingest API module requires the Normalizer and Daily ports")
	}
	return b.Routes(p, func(r httpkit.Router) { ihttp.Register(r, p) })
}
