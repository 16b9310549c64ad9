// Package module wires the rollup orchestrator as a module.Module
package module

import (
	"time"

	"pulseboard/internal/modkit"
	"pulseboard/internal/modkit/httpkit"
	"pulseboard/internal/platform/config"

	odom "pulseboard/internal/services/orchestrator/domain"
	oservice "pulseboard/internal/services/orchestrator/service"
)

// Options for the orchestrator
type Options struct {
	Workers      int
	StageTimeout time.Duration
	Schedule     string
}

// FromConfig fills options from environment
// CORE_ORCH_WORKERS (default 4) bounds concurrent organizations
// CORE_ORCH_STAGE_TIMEOUT (default 20m) bounds a stage finishing after cancellation
// CORE_ORCH_SCHEDULE (default "0 0 3 * * *") is the cron spec with a seconds field
func FromConfig(cfg config.Conf) Options {
	n := cfg.Prefix("CORE_ORCH_")
	return Options{
		Workers:      n.MayInt("WORKERS", 4),
		StageTimeout: n.MayDuration("STAGE_TIMEOUT", 20*time.Minute),
		Schedule:     n.MayString("SCHEDULE", oservice.DefaultSchedule),
	}
}

// Ports exported by the orchestrator module
type Ports struct {
	Orchestrator odom.Port
	Scheduler    *oservice.Svc
}

// Module implements module.Module for the orchestrator
type Module struct {
	deps  modkit.Deps
	opts  Options
	ports Ports
}

// New wires the orchestrator over the engine and the organization source
func New(deps modkit.Deps, engine odom.Engine, orgs odom.Organizations) *Module {
	opts := FromConfig(deps.Cfg)
	svc := oservice.New(engine, orgs, oservice.Config{
		Workers:      opts.Workers,
		StageTimeout: opts.StageTimeout,
	}, deps.Log.With().Str("component", "orchestrator").Logger())
	return &Module{deps: deps, opts: opts, ports: Ports{Orchestrator: svc, Scheduler: svc}}
}

// Name returns the module name
func (m *Module) Name() string { return "orchestrator" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Options returns the resolved configuration
func (m *Module) Options() Options { return m.opts }

// Prefix returns the module config prefix
func (m *Module) Prefix() string { return "CORE_ORCH_" }

// MountRoutes is a no-op; the run trigger lives in the api rollups module
func (m *Module) MountRoutes(_ httpkit.Router) {}
