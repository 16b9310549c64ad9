// Package module wires the rollup engine as a module.Module
package module

import (
	"pulseboard/internal/modkit"
	"pulseboard/internal/modkit/httpkit"
	"pulseboard/internal/modkit/repokit"

	dsdom "pulseboard/internal/services/dailystore/domain"
	rdom "pulseboard/internal/services/rollup/domain"
	"pulseboard/internal/services/rollup/guardrails"
	rrepo "pulseboard/internal/services/rollup/repo"
	rservice "pulseboard/internal/services/rollup/service"
)

// Ports exported by the rollup module
type Ports struct {
	Engine rdom.Port
}

// Module implements module.Module for the rollup engine
type Module struct {
	deps  modkit.Deps
	opts  Options
	ports Ports
}

// New constructs and wires the engine from deps.Cfg
// daily and active are the daily store and entity ports
func New(deps modkit.Deps, daily rdom.Daily, active dsdom.ActiveFilter) (*Module, error) {
	opts := FromConfig(deps.Cfg)

	lease, err := guardrails.New(opts.LockBackend, deps.PG, deps.Redis, guardrails.Owner("rollup"), opts.LeaseTTL)
	if err != nil {
		return nil, err
	}

	svc := rservice.New(rservice.Deps{
		DB:      repokit.TxRunner(deps.PG),
		Ledger:  rrepo.NewPG(),
		Aggs:    rrepo.NewAggregates(deps.CH),
		Daily:   daily,
		Active:  active,
		Lease:   lease,
		Log:     deps.Log.With().Str("component", "rollup").Logger(),
		Metrics: deps.Metrics,
	}, rservice.Config{
		Depth:        opts.Depth,
		StageTimeout: opts.StageTimeout,
	})

	return &Module{deps: deps, opts: opts, ports: Ports{Engine: svc}}, nil
}

// Name returns the module name
func (m *Module) Name() string { return "rollup" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Options returns the resolved configuration
func (m *Module) Options() Options { return m.opts }

// Prefix returns the module config prefix
func (m *Module) Prefix() string { return "CORE_ROLLUP_" }

// MountRoutes is a no-op; trigger routes live in the api rollups module
func (m *Module) MountRoutes(_ httpkit.Router) {}
