// Package module wires the daily metrics store as a module.Module
package module

import (
	"pulseboard/internal/modkit"
	"pulseboard/internal/modkit/httpkit"
	"pulseboard/internal/modkit/repokit"

	dsdom "pulseboard/internal/services/dailystore/domain"
	dsrepo "pulseboard/internal/services/dailystore/repo"
	dsservice "pulseboard/internal/services/dailystore/service"
)

// Ports exported by the daily store module
type Ports struct {
	Store dsdom.Port
}

// Module implements module.Module for the daily metrics store
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the module; active is usually the entities port and may be nil
func New(deps modkit.Deps, active dsdom.ActiveFilter) *Module {
	svc := dsservice.New(
		repokit.TxRunner(deps.PG),
		dsrepo.NewPG(),
		dsrepo.NewFacts(deps.CH),
		active,
		deps.Log.With().Str("component", "dailystore").Logger(),
		deps.Metrics,
	)
	return &Module{deps: deps, ports: Ports{Store: svc}}
}

// Name returns the module name
func (m *Module) Name() string { return "dailystore" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// MountRoutes is a no-op; ingest and read routes live in the api modules
func (m *Module) MountRoutes(_ httpkit.Router) {}
