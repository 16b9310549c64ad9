// Package module wires the metrics normalizer as a module.Module
package module

import (
	"pulseboard/internal/modkit"
	"pulseboard/internal/modkit/httpkit"

	nmdom "pulseboard/internal/services/normalizer/domain"
	nmservice "pulseboard/internal/services/normalizer/service"
	"pulseboard/internal/services/normalizer/sources"
)

// Ports exported by the normalizer module
type Ports struct {
	Normalizer nmdom.Port
}

// Module implements module.Module for the normalizer
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the module with every built-in source adapter
// it panics when the adapter registry is inconsistent, which is a programming error
func New(deps modkit.Deps, resolver nmdom.Resolver, stager nmdom.Stager) *Module {
	reg, err := sources.NewRegistry(sources.All()...)
	if err != nil {
		panic(err)
	}
	svc := nmservice.New(reg, resolver, stager, deps.Log.With().Str("component", "normalizer").Logger(), deps.Metrics)
	return &Module{deps: deps, ports: Ports{Normalizer: svc}}
}

// Name returns the module name
func (m *Module) Name() string { return "normalizer" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// MountRoutes is a no-op; the ingest api module owns the HTTP surface
func (m *Module) MountRoutes(_ httpkit.Router) {}
