// Package module wires rollup triggers and the run ledger into the API using modkit
package module

import (
	"pulseboard/internal/modkit"
	"pulseboard/internal/modkit/httpkit"

	"pulseboard/internal/services/api/rollups/domain"
	rhttp "pulseboard/internal/services/api/rollups/http"
)

// Ports declares the injected service ports
type Ports = domain.Ports

// New constructs the rollups module; ports must be injected with modkit.WithPorts
func New(_ modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build("rollups", "/rollups", opts...)
	p, _ := b.Ports.(Ports)
	if p.Engine == nil {
		panic("rollups API module requires the Engine port")
	}
	return b.Routes(p, func(r httpkit.Router) { rhttp.Register(r, p) })
}
