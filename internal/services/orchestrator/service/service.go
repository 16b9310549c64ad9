// Package service runs every rollup stage for every organization in dependency order
package service

import (
	"context"
	"sort"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"

	"pulseboard/internal/core/period"
	"pulseboard/internal/modkit/scope"
	perr "pulseboard/internal/platform/errors"
	"pulseboard/internal/platform/logger"
	"pulseboard/internal/services/orchestrator/domain"
	rdom "pulseboard/internal/services/rollup/domain"
)

// Config controls fan out and the in-flight stage budget
type Config struct {
	// Workers bounds how many organizations run at once
	Workers int

	// StageTimeout bounds a stage that keeps running after cancellation
	StageTimeout time.Duration
}

// Svc implements domain.Port
type Svc struct {
	engine domain.Engine
	orgs   domain.Organizations
	cfg    Config
	log    logger.Logger

	Now func() time.Time
}

var _ domain.Port = (*Svc)(nil)

// New constructs the orchestrator
func New(engine domain.Engine, orgs domain.Organizations, cfg Config, log logger.Logger) *Svc {
	if engine == nil {
		panic("orchestrator requires a rollup engine")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = 20 * time.Minute
	}
	return &Svc{engine: engine, orgs: orgs, cfg: cfg, log: log, Now: time.Now}
}

// upstream lists the stages whose failure makes a stage pointless
// weekly and monthly read daily; the snapshots read monthly
var upstream = map[period.Granularity][]period.Granularity{
	period.Weekly:  {period.Daily},
	period.Monthly: {period.Daily},
	period.L12M:    {period.Daily, period.Monthly},
	period.AllTime: {period.Daily, period.Monthly},
}

// Run executes daily, weekly, monthly, l12m and alltime per organization
// organizations run concurrently and never affect each other; no stage is retried
func (s *Svc) Run(ctx context.Context, req domain.RunRequest) (domain.Report, error) {
	rep := domain.Report{RunID: uuid.New(), StartedAt: s.Now().UTC()}
	rep.AsOf = req.AsOf
	if rep.AsOf.IsZero() {
		rep.AsOf = rep.StartedAt
	}
	rep.AsOf = period.Date(rep.AsOf)

	orgs, err := s.targets(ctx, req.OrganizationIDs)
	if err != nil {
		return rep, err
	}

	ctx = scope.With(ctx, map[string]string{scope.RunID: rep.RunID.String()})
	l := s.log.With().Fields(scope.From(ctx).Fields()).Str("mod", "orchestrator").Logger()
	l.Info().Int("orgs", len(orgs)).Time("as_of", rep.AsOf).Bool("backfill", req.Backfill).Msg("orchestrator: run start")

	results := xsync.NewMap[string, []domain.Outcome]()
	pool := pond.NewPool(s.cfg.Workers, pond.WithQueueSize(max(len(orgs), 1)))
	defer pool.StopAndWait()

	group := pool.NewGroup()
	for _, org := range orgs {
		group.Submit(func() {
			results.Store(org, s.runOrg(ctx, org, rep.AsOf, req.Backfill))
		})
	}
	_ = group.Wait()

	for _, org := range orgs {
		outs, _ := results.Load(org)
		for _, o := range outs {
			switch o.Status {
			case rdom.OutcomeFailed:
				rep.Failed++
			case rdom.OutcomeSkipped:
				rep.Skipped++
			}
		}
		rep.Outcomes = append(rep.Outcomes, outs...)
	}
	rep.Canceled = ctx.Err() != nil
	rep.FinishedAt = s.Now().UTC()

	ev := l.Info()
	if rep.Failed > 0 {
		ev = l.Warn()
	}
	ev.Int("failed", rep.Failed).
		Int("skipped", rep.Skipped).
		Bool("canceled", rep.Canceled).
		Dur("took", rep.FinishedAt.Sub(rep.StartedAt)).
		Msg("orchestrator: run done")
	return rep, nil
}

func (s *Svc) targets(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		if s.orgs == nil {
			return nil, perr.InvalidArgf("organization_ids required: no organization source configured")
		}
		var err error
		ids, err = s.orgs.Organizations(ctx)
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeDB, "list organizations")
		}
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// runOrg walks the stages in order; cancellation stops new stages but lets the
// in-flight one finish on a detached context bounded by the stage timeout
func (s *Svc) runOrg(ctx context.Context, org string, asOf time.Time, backfill bool) []domain.Outcome {
	out := make([]domain.Outcome, 0, len(period.Order))
	failed := map[period.Granularity]bool{}

	for _, stage := range period.Order {
		o := domain.Outcome{OrganizationID: org, Stage: stage}

		if ctx.Err() != nil {
			o.Status, o.Reason = rdom.OutcomeSkipped, domain.ReasonCanceled
			out = append(out, o)
			continue
		}
		if up, blocked := blockedBy(stage, failed); blocked {
			o.Status, o.Reason = rdom.OutcomeSkipped, domain.ReasonUpstreamOf+string(up)
			out = append(out, o)
			continue
		}

		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.StageTimeout)
		res, err := s.engine.RunStage(sctx, rdom.Request{
			OrganizationID: org,
			Stage:          stage,
			AsOf:           asOf,
			Backfill:       backfill,
		})
		cancel()

		o.Status, o.Periods, o.Rows, o.Took = res.Outcome, len(res.Periods), res.Rows, res.Took
		switch {
		case err != nil:
			o.Status, o.Reason = rdom.OutcomeFailed, err.Error()
		case res.Outcome == rdom.OutcomeSkipped:
			o.Reason = domain.ReasonLeaseHeld
		case res.Outcome == "":
			o.Status = rdom.OutcomeOK
		}
		if o.Status == rdom.OutcomeFailed {
			failed[stage] = true
			s.log.Warn().Str("mod", "orchestrator").Str("org", org).Str("stage", string(stage)).
				Str("reason", o.Reason).Msg("orchestrator: stage failed")
		}
		out = append(out, o)
	}
	return out
}

func blockedBy(stage period.Granularity, failed map[period.Granularity]bool) (period.Granularity, bool) {
	for _, up := range upstream[stage] {
		if failed[up] {
			return up, true
		}
	}
	return "", false
}
