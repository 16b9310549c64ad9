// Package pipeline assembles the service graph shared by the binaries
//
// entities -> dailystore -> normalizer feed the rollup engine; the orchestrator drives the
// engine over every organization the entity map knows about.
package pipeline

import (
	"context"

	"pulseboard/internal/modkit"
	"pulseboard/internal/modkit/module"
	"pulseboard/internal/platform/config"
	perr "pulseboard/internal/platform/errors"
	"pulseboard/internal/platform/logger"
	"pulseboard/internal/platform/store"

	dsdom "pulseboard/internal/services/dailystore/domain"
	dsmod "pulseboard/internal/services/dailystore/module"
	entdom "pulseboard/internal/services/entities/domain"
	entmod "pulseboard/internal/services/entities/module"
	entservice "pulseboard/internal/services/entities/service"
	nmdom "pulseboard/internal/services/normalizer/domain"
	nmmod "pulseboard/internal/services/normalizer/module"
	odom "pulseboard/internal/services/orchestrator/domain"
	orchmod "pulseboard/internal/services/orchestrator/module"
	oservice "pulseboard/internal/services/orchestrator/service"
	rdom "pulseboard/internal/services/rollup/domain"
	rollupmod "pulseboard/internal/services/rollup/module"
)

// Pipeline holds every port the binaries drive
type Pipeline struct {
	Entities     entdom.Port
	Seeder       *entservice.Svc
	Daily        dsdom.Port
	Normalizer   nmdom.Port
	Engine       rdom.Port
	Orchestrator odom.Port
	Scheduler    *oservice.Svc

	// Schedule is the resolved cron spec of the orchestrator
	Schedule string

	mods []module.Module
}

// Build wires the services over deps; deps.PG and deps.CH are required
func Build(deps modkit.Deps) (*Pipeline, error) {
	if deps.PG == nil || deps.CH == nil {
		return nil, perr.Unavailablef("pipeline needs both postgres and clickhouse")
	}

	ents := entmod.New(deps)
	entPorts := ents.Ports().(entmod.Ports)

	daily := dsmod.New(deps, entPorts.Entities)
	dailyPort := module.MustPortsOf[dsdom.Port](daily)

	norm := nmmod.New(deps, entPorts.Entities, dailyPort)

	roll, err := rollupmod.New(deps, dailyPort, entPorts.Entities)
	if err != nil {
		return nil, err
	}
	engine := module.MustPortsOf[rdom.Port](roll)

	orch := orchmod.New(deps, engine, entPorts.Entities)
	orchPorts := orch.Ports().(orchmod.Ports)

	return &Pipeline{
		Entities:     entPorts.Entities,
		Seeder:       entPorts.Seeder,
		Daily:        dailyPort,
		Normalizer:   module.MustPortsOf[nmdom.Port](norm),
		Engine:       engine,
		Orchestrator: orchPorts.Orchestrator,
		Scheduler:    orchPorts.Scheduler,
		Schedule:     orch.Options().Schedule,
		mods:         []module.Module{ents, daily, norm, roll, orch},
	}, nil
}

// Modules lists the service modules in dependency order
func (p *Pipeline) Modules() []module.Module { return p.mods }

// Register makes every service port resolvable through the module registry
func (p *Pipeline) Register() {
	for _, m := range p.mods {
		module.Register(m.Name(), m.Ports())
	}
}

// OpenStore opens postgres, clickhouse and, when SERVICE_REDIS_ADDR is set, redis
// tag is reported to clickhouse as the client tag
func OpenStore(ctx context.Context, root config.Conf, tag string) (*store.Store, error) {
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_")
	rdCfg := root.Prefix("SERVICE_REDIS_")

	rdAddr := rdCfg.MayString("ADDR", "")
	return store.Open(ctx, store.Config{
		AppName: "pulseboard",
		PG: store.PGConfig{
			Enabled:     true,
			URL:         pgCfg.MustString("DBURL"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 8)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", false),
		},
		CH: store.CHConfig{
			Enabled:      true,
			URL:          chCfg.MustString("DBURL"),
			MaxOpenConns: chCfg.MayInt("MAX_OPEN_CONNS", 8),
			LogSQL:       chCfg.MayBool("LOG_SQL", false),
			ClientName:   "pulseboard",
			ClientTag:    tag,
		},
		RDS: store.RedisConfig{
			Enabled:  rdAddr != "",
			Addr:     rdAddr,
			Password: rdCfg.MayString("PASSWORD", ""),
			DB:       rdCfg.MayInt("DB", 0),
		},
	}, store.WithLogger(*logger.Get()))
}
