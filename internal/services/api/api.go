// Package api provides the HTTP API for the application
package api

import (
	"time"

	"pulseboard/internal/platform/config"
	"pulseboard/internal/platform/logger"
	"pulseboard/internal/platform/metrics"
	phttp "pulseboard/internal/platform/net/http"
	"pulseboard/internal/platform/net/middleware"
	"pulseboard/internal/platform/store"

	"pulseboard/internal/modkit"
	"pulseboard/internal/modkit/httpkit"
	"pulseboard/internal/modkit/module"
	"pulseboard/internal/modkit/swaggerkit"

	aggmod "pulseboard/internal/services/api/aggregates/module"
	entapimod "pulseboard/internal/services/api/entities/module"
	ingestmod "pulseboard/internal/services/api/ingest/module"
	metamod "pulseboard/internal/services/api/meta/module"
	rollupsmod "pulseboard/internal/services/api/rollups/module"
	"pulseboard/internal/services/pipeline"
)

// DefaultRequestTimeout bounds a request; stage runs over a long history need minutes
const DefaultRequestTimeout = 25 * time.Minute

// Options are the API options
type Options struct {
	Config         config.Conf
	Store          *store.Store
	Logger         *logger.Logger
	Metrics        *metrics.Metrics
	EnableSwagger  bool
	EnableProfiler bool
}

// Mount mounts the API service onto the given router
// CORE_API_TOKENS turns on bearer auth for every route except meta
func Mount(r phttp.Router, opt Options) (*pipeline.Pipeline, error) {
	log := *logger.Named("api")
	if opt.Logger != nil {
		log = *opt.Logger
	}

	deps := modkit.FromStore(log, opt.Config, opt.Store, opt.Metrics)
	p, err := pipeline.Build(deps)
	if err != nil {
		return nil, err
	}
	p.Register()

	tokenFn, err := ParseTokens(opt.Config.MayCSV("TOKENS", nil))
	if err != nil {
		return nil, err
	}
	// a nil interface keeps the auth middleware a passthrough
	var auth middleware.AuthPort
	if tokenFn != nil {
		auth = httpkit.NewPortFunc(tokenFn)
	}

	meta := metamod.New(deps)
	secured := []modkit.Module{
		rollupsmod.New(deps, modkit.WithPorts(rollupsmod.Ports{Engine: p.Engine, Orchestrator: p.Orchestrator})),
		aggmod.New(deps, modkit.WithPorts(aggmod.Ports{Engine: p.Engine, Daily: p.Daily})),
		entapimod.New(deps, modkit.WithPorts(entapimod.Ports{Entities: p.Entities})),
		ingestmod.New(deps, modkit.WithPorts(ingestmod.Ports{Normalizer: p.Normalizer, Daily: p.Daily})),
	}

	r.Use(middleware.Heartbeat("/health"))
	if opt.Metrics != nil {
		r.Use(opt.Metrics.Middleware)
		r.Handle("/metrics", opt.Metrics.Handler())
	}

	swaggerkit.Mount(r, opt.EnableSwagger)
	phttp.MountProfiler(r, "/debug", opt.EnableProfiler)

	timeout := opt.Config.MayDuration("REQUEST_TIMEOUT", DefaultRequestTimeout)
	httpkit.MountAPIV1(r, httpkit.Stack(timeout, log), func(api httpkit.Router) {
		module.Register(meta.Name(), meta.Ports())
		meta.MountRoutes(api)

		httpkit.Protected(api, auth, func(sr httpkit.Router) {
			for _, m := range secured {
				module.Register(m.Name(), m.Ports())
				m.MountRoutes(sr)
			}
		})
	})

	ev := log.Info().Bool("auth", auth != nil).Dur("request_timeout", timeout)
	if auth != nil {
		ev = ev.Strs("secured", httpkit.SecuredRoutes())
	}
	ev.Msg("api mounted")
	return p, nil
}
