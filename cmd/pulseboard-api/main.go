// @title         Pulseboard API
// @version       0.1.0
// @description   Ingest, entity map, rollup triggers and aggregate reads

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"pulseboard/internal/platform/config"
	"pulseboard/internal/platform/logger"
	"pulseboard/internal/platform/metrics"
	phttp "pulseboard/internal/platform/net/http"

	"pulseboard/internal/services/api"
	"pulseboard/internal/services/pipeline"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// service-scoped config for HTTP etc (CORE_API_*)
	root := config.New()
	apiCfg := root.Prefix("CORE_API_")

	l := logger.InitFor("pulseboard-api")

	st, err := pipeline.OpenStore(ctx, root, "api")
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	// http server (reads CORE_API_PORT)
	srv := phttp.NewServer(apiCfg)

	p, err := api.Mount(
		srv.Router(),
		api.Options{
			Config:         apiCfg,
			Store:          st,
			Logger:         l,
			Metrics:        metrics.New(),
			EnableSwagger:  apiCfg.MayBool("SWAGGER", true),
			EnableProfiler: apiCfg.MayBool("PROFILER", false),
		},
	)
	if err != nil {
		l.Panic().Err(err).Msg("api.Mount failed")
	}

	// the nightly run can live in the api process
	if apiCfg.MayBool("SCHEDULE", false) {
		c, err := p.Scheduler.Schedule(ctx, p.Schedule)
		if err != nil {
			l.Panic().Err(err).Msg("schedule failed")
		}
		c.Start()
		defer c.Stop()
		l.Info().Str("spec", p.Schedule).Msg("orchestrator scheduled")
	}

	if err := srv.Run(ctx); err != nil {
		l.Panic().Err(err).Msg("http server stopped")
	}
}
