package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pulseboard/internal/core/period"
	"pulseboard/internal/modkit"
	"pulseboard/internal/platform/config"
	"pulseboard/internal/platform/logger"
	"pulseboard/internal/platform/metrics"

	odom "pulseboard/internal/services/orchestrator/domain"
	"pulseboard/internal/services/pipeline"
	rdom "pulseboard/internal/services/rollup/domain"
)

func parseAsOf(v string) time.Time {
	// "YYYY-MM-DD" or RFC3339; empty means now
	if v == "" {
		return time.Time{}
	}
	if t, err := time.Parse(period.DayLayout, v); err == nil {
		return t.UTC()
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		panic(fmt.Errorf("bad -as-of: %w", err))
	}
	return t.UTC()
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func main() {
	var (
		fMode     = flag.String("mode", "once", "once | schedule | stage")
		fOrgs     = flag.String("orgs", "", "comma-separated organization ids (empty = every known organization)")
		fStage    = flag.String("stage", "", "stage for -mode stage: daily | weekly | monthly | l12m | alltime")
		fPeriod   = flag.String("period", "", "period key for -mode stage (empty = latest)")
		fBackfill = flag.Bool("backfill", false, "recompute every period in the stage window")
		fAsOf     = flag.String("as-of", "", "reference time YYYY-MM-DD or RFC3339 (empty = now)")
		fSchedule = flag.String("schedule", "", "cron spec for -mode schedule (six fields, empty = configured default)")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := config.New()
	l := logger.InitFor("pulseboard-rollup")

	st, err := pipeline.OpenStore(ctx, root, "rollup")
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	p, err := pipeline.Build(modkit.FromStore(*l, root, st, metrics.New()))
	if err != nil {
		l.Panic().Err(err).Msg("pipeline.Build failed")
	}
	p.Register()

	asOf := parseAsOf(*fAsOf)
	orgs := splitCSV(*fOrgs)

	switch *fMode {
	case "once":
		rep, err := p.Orchestrator.Run(ctx, odom.RunRequest{OrganizationIDs: orgs, AsOf: asOf, Backfill: *fBackfill})
		if err != nil {
			l.Fatal().Err(err).Msg("run failed")
		}
		l.Info().
			Str("run_id", rep.RunID.String()).
			Int("outcomes", len(rep.Outcomes)).
			Int("failed", rep.Failed).
			Int("skipped", rep.Skipped).
			Bool("canceled", rep.Canceled).
			Msg("run complete")
		if rep.Failed > 0 {
			os.Exit(1)
		}

	case "stage":
		g, err := period.ParseGranularity(*fStage)
		if err != nil {
			l.Fatal().Err(err).Msg("bad -stage")
		}
		if len(orgs) == 0 {
			l.Fatal().Msg("-mode stage needs -orgs")
		}
		failed := false
		for _, org := range orgs {
			res, err := p.Engine.RunStage(ctx, rdom.Request{
				OrganizationID: org,
				Stage:          g,
				PeriodKey:      *fPeriod,
				AsOf:           asOf,
				Backfill:       *fBackfill,
			})
			if err != nil {
				failed = true
				l.Error().Err(err).Str("org", org).Msg("stage failed")
				continue
			}
			l.Info().
				Str("org", org).
				Str("stage", string(g)).
				Str("outcome", res.Outcome).
				Int("periods", len(res.Periods)).
				Int("rows", res.Rows).
				Dur("took", res.Took).
				Msg("stage complete")
		}
		if failed {
			os.Exit(1)
		}

	case "schedule":
		spec := *fSchedule
		if spec == "" {
			spec = p.Schedule
		}
		c, err := p.Scheduler.Schedule(ctx, spec)
		if err != nil {
			l.Fatal().Err(err).Msg("schedule failed")
		}
		c.Start()
		l.Info().Str("spec", spec).Msg("orchestrator scheduled")
		<-ctx.Done()
		// wait for a running pass to observe cancellation
		<-c.Stop().Done()

	default:
		l.Fatal().Str("mode", *fMode).Msg("unknown -mode")
	}
}
