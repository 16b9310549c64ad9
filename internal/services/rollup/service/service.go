// Package service runs rollup stages through the ledger state machine
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pulseboard/internal/core/canonical"
	"pulseboard/internal/core/period"
	"pulseboard/internal/core/rollup"
	"pulseboard/internal/modkit/repokit"
	"pulseboard/internal/modkit/scope"
	perr "pulseboard/internal/platform/errors"
	"pulseboard/internal/platform/logger"
	"pulseboard/internal/platform/metrics"
	dsdom "pulseboard/internal/services/dailystore/domain"
	"pulseboard/internal/services/rollup/domain"
	"pulseboard/internal/services/rollup/guardrails"
)

// Config controls backfill depth and the per stage time budget
type Config struct {
	// Depth overrides period.DefaultBackfillDepth per stage
	Depth map[period.Granularity]int

	// StageTimeout bounds one RunStage call; zero means unbounded
	StageTimeout time.Duration
}

// Svc implements domain.Port
type Svc struct {
	db      repokit.TxRunner
	ledger  repokit.Binder[domain.LedgerRepo]
	aggs    domain.AggregateStore
	daily   domain.Daily
	active  dsdom.ActiveFilter
	lease   domain.Lease
	log     logger.Logger
	metrics *metrics.Metrics
	cfg     Config

	// Now stamps computed_at and fills a missing as-of date
	Now func() time.Time
}

var _ domain.Port = (*Svc)(nil)

// Deps groups the collaborators of New
type Deps struct {
	DB      repokit.TxRunner
	Ledger  repokit.Binder[domain.LedgerRepo]
	Aggs    domain.AggregateStore
	Daily   domain.Daily
	Active  dsdom.ActiveFilter
	Lease   domain.Lease
	Log     logger.Logger
	Metrics *metrics.Metrics
}

// New constructs the rollup engine; a nil Lease runs unguarded
func New(d Deps, cfg Config) *Svc {
	if d.DB == nil {
		panic("rollup.Service requires a non nil TxRunner")
	}
	if d.Ledger == nil || d.Aggs == nil || d.Daily == nil || d.Active == nil {
		panic("rollup.Service requires ledger, aggregates, daily and active seams")
	}
	if d.Lease == nil {
		d.Lease = guardrails.NoLease
	}
	return &Svc{
		db: d.DB, ledger: d.Ledger, aggs: d.Aggs, daily: d.Daily, active: d.Active,
		lease: d.Lease, log: d.Log, metrics: d.Metrics, cfg: cfg,
		Now: time.Now,
	}
}

// Plan resolves the periods a request covers, oldest first
func (s *Svc) Plan(req domain.Request) ([]period.Period, error) {
	if !req.Stage.Valid() {
		return nil, perr.InvalidArgf("unknown stage %q", req.Stage)
	}
	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = s.Now()
	}
	switch {
	case req.Stage == period.Daily:
		// the daily stage drains every pending batch; the key only labels the ledger row
		if req.PeriodKey != "" {
			p, err := period.Parse(period.Daily, req.PeriodKey)
			if err != nil {
				return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "bad period key")
			}
			return []period.Period{p}, nil
		}
		return []period.Period{period.Default(period.Daily, asOf)}, nil
	case req.Backfill:
		depth := req.Depth
		if depth == 0 {
			depth = s.depth(req.Stage)
		}
		return period.Backfill(req.Stage, asOf, depth), nil
	case req.PeriodKey != "":
		p, err := period.Parse(req.Stage, req.PeriodKey)
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "bad period key")
		}
		return []period.Period{p}, nil
	}
	return []period.Period{period.Default(req.Stage, asOf)}, nil
}

func (s *Svc) depth(g period.Granularity) int {
	if n, ok := s.cfg.Depth[g]; ok && n > 0 {
		return n
	}
	return period.DefaultBackfillDepth(g)
}

// RunStage drives every planned period to TRENDED or FAILED under the (org, stage) lease
// a held lease is a clean skip: Outcome is skipped and the error is nil
func (s *Svc) RunStage(ctx context.Context, req domain.Request) (domain.StageResult, error) {
	res := domain.StageResult{OrganizationID: req.OrganizationID, Stage: req.Stage}
	if req.OrganizationID == "" {
		return res, perr.InvalidArgf("organization_id is required")
	}
	if req.Depth < 0 {
		return res, perr.InvalidArgf("depth must not be negative")
	}
	periods, err := s.Plan(req)
	if err != nil {
		return res, err
	}
	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = s.Now()
	}
	asOf = period.Date(asOf)

	if s.cfg.StageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.StageTimeout)
		defer cancel()
	}

	l := s.stageLog(ctx, req.OrganizationID, req.Stage)

	start := time.Now()
	err = s.lease(ctx, req.OrganizationID, req.Stage, func(ctx context.Context) error {
		var runErr error
		res.Periods, res.Rows, runErr = s.runLocked(ctx, req.OrganizationID, req.Stage, periods, asOf)
		return runErr
	})
	res.Took = time.Since(start)

	switch {
	case errors.Is(err, guardrails.ErrLeaseHeld):
		res.Outcome = domain.OutcomeSkipped
		res.Error = err.Error()
		s.metrics.LeaseSkipped(string(req.Stage))
		l.Info().Msg("rollup: lease held elsewhere; clean skip")
		return res, nil
	case err != nil:
		res.Outcome = domain.OutcomeFailed
		res.Error = err.Error()
		s.metrics.ObserveStage(string(req.Stage), res.Outcome, res.Took, res.Rows)
		l.Error().Err(err).Dur("took", res.Took).Msg("rollup: stage failed")
		if perr.CodeOf(err) == perr.ErrorCodeUnknown {
			err = perr.Wrap(err, perr.ErrorCodeUnavailable, fmt.Sprintf("rollup %s", req.Stage))
		}
		return res, err
	}

	res.Outcome = domain.OutcomeOK
	s.metrics.ObserveStage(string(req.Stage), res.Outcome, res.Took, res.Rows)
	l.Info().Int("periods", len(res.Periods)).Int("rows", res.Rows).Dur("took", res.Took).Msg("rollup: stage done")
	return res, nil
}

// runLocked aggregates each period, then runs the trend pass once
// a failed period does not stop the others; the first failure is returned
func (s *Svc) runLocked(ctx context.Context, org string, stage period.Granularity, periods []period.Period, asOf time.Time) ([]domain.PeriodResult, int, error) {
	out := make([]domain.PeriodResult, 0, len(periods))
	total := 0
	var firstErr error

	for _, p := range periods {
		if err := ctx.Err(); err != nil {
			return out, total, err
		}
		pr := s.aggregatePeriod(ctx, org, stage, p, asOf)
		if pr.Status == domain.StatusFailed && firstErr == nil {
			firstErr = fmt.Errorf("%s: %s", p, pr.Error)
		}
		total += pr.Rows
		out = append(out, pr)
	}

	var done []int
	for i := range out {
		if out[i].Status == domain.StatusAggregated {
			done = append(done, i)
		}
	}
	if len(done) == 0 {
		return out, total, firstErr
	}

	trendErr := s.trendPass(ctx, org, stage)
	for _, i := range done {
		st, msg := domain.StatusTrended, ""
		if trendErr != nil {
			st, msg = domain.StatusFailed, "trend pass: "+trendErr.Error()
		}
		if err := s.transition(ctx, org, stage, out[i].PeriodKey, st, out[i].Rows, msg); err != nil && trendErr == nil {
			trendErr = err
			st, msg = domain.StatusFailed, err.Error()
		}
		out[i].Status, out[i].Error = st, msg
	}
	if trendErr != nil && firstErr == nil {
		firstErr = fmt.Errorf("trend pass: %w", trendErr)
	}
	return out, total, firstErr
}

// aggregatePeriod walks PENDING -> AGGREGATING -> AGGREGATED, or FAILED
func (s *Svc) aggregatePeriod(ctx context.Context, org string, stage period.Granularity, p period.Period, asOf time.Time) (pr domain.PeriodResult) {
	pr = domain.PeriodResult{PeriodKey: p.Key, Status: domain.StatusPending}
	l := s.stageLog(ctx, org, stage).With().Str("period", p.Key).Logger()

	defer func() {
		if pr.Error == "" {
			return
		}
		pr.Status = domain.StatusFailed
		if err := s.transition(context.WithoutCancel(ctx), org, stage, p.Key, domain.StatusFailed, pr.Rows, pr.Error); err != nil {
			l.Error().Err(err).Msg("rollup: could not record failure")
		}
		l.Warn().Str("reason", pr.Error).Msg("rollup: period failed")
	}()

	if err := s.withLedger(ctx, org, func(ctx context.Context, r domain.LedgerRepo) error {
		return r.Begin(ctx, org, stage, p.Key)
	}); err != nil {
		pr.Error = err.Error()
		return pr
	}

	if err := s.transition(ctx, org, stage, p.Key, domain.StatusAggregating, 0, ""); err != nil {
		pr.Error = err.Error()
		return pr
	}
	pr.Status = domain.StatusAggregating

	n, err := s.aggregate(ctx, org, stage, p, asOf)
	pr.Rows = n
	if err != nil {
		pr.Error = err.Error()
		return pr
	}

	if err := s.transition(ctx, org, stage, p.Key, domain.StatusAggregated, n, ""); err != nil {
		pr.Error = err.Error()
		return pr
	}
	pr.Status = domain.StatusAggregated
	l.Debug().Int("rows", n).Msg("rollup: period aggregated")
	return pr
}

// aggregate performs the AGGREGATING work and returns the rows written
func (s *Svc) aggregate(ctx context.Context, org string, stage period.Granularity, p period.Period, asOf time.Time) (int, error) {
	if stage == period.Daily {
		rep, err := s.daily.ApplyPending(ctx, org)
		if rep.Failed > 0 {
			l := s.stageLog(ctx, org, stage)
			l.Warn().Int("failed_batches", rep.Failed).Msg("rollup: invalid staging batches marked failed")
		}
		return rep.Rows, err
	}

	if err := s.aggs.DeletePeriod(ctx, stage, org, p.Key); err != nil {
		return 0, err
	}
	obs, err := s.upstream(ctx, org, stage, p)
	if err != nil {
		return 0, err
	}
	rows := rollup.Aggregate(org, p, asOf, obs)
	rollup.Stamp(rows, s.Now())
	if err := s.aggs.Insert(ctx, stage, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// upstream reads the immediate input of stage: daily for weekly and monthly, monthly for the snapshots
// inactive entities never reach an aggregate
func (s *Svc) upstream(ctx context.Context, org string, stage period.Granularity, p period.Period) ([]rollup.Observation, error) {
	if stage.Unit() == period.Day {
		recs, err := s.daily.Scan(ctx, org, nil, dsdom.NewDateRange(p.Start, p.End), true)
		if err != nil {
			return nil, err
		}
		obs := make([]rollup.Observation, len(recs))
		for i := range recs {
			r := &recs[i]
			obs[i] = rollup.Observation{
				EntityID: r.EntityID, EntityType: r.EntityType,
				Sub: r.Date, Dimension: r.Dimension, Values: r.Values,
			}
		}
		return obs, nil
	}

	months, err := s.aggs.Months(ctx, org, p.Start, p.End)
	if err != nil {
		return nil, err
	}
	inactive, err := s.active.InactiveIDs(ctx, org)
	if err != nil {
		return nil, err
	}
	obs := make([]rollup.Observation, 0, len(months))
	for i := range months {
		m := &months[i]
		if _, off := inactive[m.EntityID]; off {
			continue
		}
		obs = append(obs, rollup.Observation{
			EntityID: m.EntityID, EntityType: m.EntityType,
			Sub: m.PeriodStart, Values: m.Values,
		})
	}
	return obs, nil
}

// trendPass recomputes trend columns over every stored period of org
// only rows whose trend changed are rewritten, as a newer version of the same key
func (s *Svc) trendPass(ctx context.Context, org string, stage period.Granularity) error {
	if stage == period.Daily {
		return nil
	}
	rows, err := s.aggs.All(ctx, stage, org)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	before := make([]rollup.Trend, len(rows))
	for i := range rows {
		before[i] = rows[i].Trend
	}
	rollup.ApplyTrends(rows)

	now := s.Now().UTC()
	var changed []rollup.Row
	for i := range rows {
		if rows[i].Trend.Equal(&before[i]) {
			continue
		}
		if rows[i].ComputedAt.Before(now) {
			rows[i].ComputedAt = now
		}
		changed = append(changed, rows[i])
	}
	if len(changed) == 0 {
		return nil
	}
	return s.aggs.Upsert(ctx, stage, changed)
}

func (s *Svc) stageLog(ctx context.Context, org string, stage period.Granularity) logger.Logger {
	return s.log.With().Fields(scope.From(ctx).Fields()).Str("mod", "rollup").Str("org", org).Str("stage", string(stage)).Logger()
}

func (s *Svc) transition(ctx context.Context, org string, stage period.Granularity, key string, st domain.Status, rows int, msg string) error {
	return s.withLedger(ctx, org, func(ctx context.Context, r domain.LedgerRepo) error {
		return r.Transition(ctx, org, stage, key, st, rows, msg)
	})
}

func (s *Svc) withLedger(ctx context.Context, org string, fn func(context.Context, domain.LedgerRepo) error) error {
	return perr.FromPG(repokit.InOrg(ctx, s.db, s.ledger, org, fn), "rollup ledger")
}

// Runs lists ledger rows; limit is clamped to [1, 500]
func (s *Svc) Runs(ctx context.Context, org string, stage period.Granularity, limit int) ([]domain.Run, error) {
	if org == "" {
		return nil, perr.InvalidArgf("organization_id is required")
	}
	if stage != "" && !stage.Valid() {
		return nil, perr.InvalidArgf("unknown stage %q", stage)
	}
	limit = max(1, min(limit, 500))
	out, err := s.ledger.Bind(s.db).List(ctx, org, stage, limit)
	if err != nil {
		return nil, perr.FromPG(err, "list rollup runs")
	}
	return out, nil
}

// Aggregates reads one stored period; an empty key picks the latest one
func (s *Svc) Aggregates(ctx context.Context, g period.Granularity, org, key string, t canonical.EntityType) ([]rollup.Row, error) {
	if org == "" {
		return nil, perr.InvalidArgf("organization_id is required")
	}
	if !g.Valid() || g == period.Daily {
		return nil, perr.InvalidArgf("granularity must be one of weekly, monthly, l12m, alltime")
	}
	if t != "" && !t.Valid() {
		return nil, perr.InvalidArgf("unknown entity type %q", t)
	}
	if key == "" {
		latest, err := s.aggs.LatestKey(ctx, g, org)
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeDB, "latest period")
		}
		if latest == "" {
			return nil, nil
		}
		key = latest
	} else if _, err := period.Parse(g, key); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "bad period key")
	}
	rows, err := s.aggs.Period(ctx, g, org, key, t)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeDB, "read aggregates")
	}
	return rows, nil
}
