// Package module wires aggregate reads into the API using modkit
package module

import (
	"pulseboard/internal/modkit"
	"pulseboard/internal/modkit/httpkit"

	"pulseboard/internal/services/api/aggregates/domain"
	ahttp "pulseboard/internal/services/api/aggregates/http"
)

// Ports declares the injected service ports
type Ports = domain.Ports

// New constructs the aggregates module; ports must be injected with modkit.WithPorts
func New(_ modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build("aggregates", "/aggregates", opts...)
	p, _ := b.Ports.(Ports)
	if p.Engine == nil {
		panic("aggregates API module requires the Engine port")
	}
	return b.Routes(p, func(r httpkit.Router) { ahttp.Register(r, p) })
}
