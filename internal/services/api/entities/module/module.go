// Package module wires the entity map into the API using modkit
package module

import (
	"pulseboard/internal/modkit"
	"pulseboard/internal/modkit/httpkit"

	"pulseboard/internal/services/api/entities/domain"
	ehttp "pulseboard/internal/services/api/entities/http"
)

// Ports declares the injected service ports
type Ports = domain.Ports

// New constructs the entities module; ports must be injected with modkit.WithPorts
func New(_ modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build("entities-api", "/entities", opts...)
	p, _ := b.Ports.(Ports)
	if p.Entities == nil {
		panic("entities API module requires the Entities port")
	}
	return b.Routes(p, func(r httpkit.Router) { ehttp.Register(r, p) })
}
