// Package module wires the entity map as a module.Module
package module

import (
	"pulseboard/internal/core/canonical"
	"pulseboard/internal/modkit"
	"pulseboard/internal/modkit/httpkit"
	"pulseboard/internal/modkit/repokit"

	entdom "pulseboard/internal/services/entities/domain"
	entrepo "pulseboard/internal/services/entities/repo"
	entservice "pulseboard/internal/services/entities/service"
)

// Ports exported by the entities module
type Ports struct {
	Entities entdom.Port
	Seeder   *entservice.Svc
}

// Module implements module.Module for the entity map
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the entities module; deps.PG is required
func New(deps modkit.Deps) *Module {
	svc := entservice.New(
		repokit.TxRunner(deps.PG),
		entrepo.NewPG(),
		deps.Log.With().Str("component", "entities").Logger(),
		deps.Metrics,
	)
	svc.IDs = canonical.Resolver{FoldUnicode: deps.Cfg.Prefix("CORE_ENTITY_").MayBool("FOLD_UNICODE", false)}
	return &Module{deps: deps, ports: Ports{Entities: svc, Seeder: svc}}
}

// Name returns the module name
func (m *Module) Name() string { return "entities" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// MountRoutes is a no-op; the api/entities module owns the HTTP surface
func (m *Module) MountRoutes(_ httpkit.Router) {}
