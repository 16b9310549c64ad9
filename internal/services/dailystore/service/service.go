// Package service implements the daily metrics store: replace-range writes, active-aware scans
// and the staging batch drain used by the daily rollup stage
package service

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"pulseboard/internal/core/canonical"
	"pulseboard/internal/modkit/repokit"
	perr "pulseboard/internal/platform/errors"
	"pulseboard/internal/platform/logger"
	"pulseboard/internal/platform/metrics"
	"pulseboard/internal/services/dailystore/domain"
)

// Svc implements domain.Port
type Svc struct {
	db      repokit.TxRunner
	batches repokit.Binder[domain.BatchRepo]
	facts   domain.FactStore
	active  domain.ActiveFilter
	log     logger.Logger
	metrics *metrics.Metrics

	// Now is the clock used for ingested_at stamps
	Now func() time.Time
}

var _ domain.Port = (*Svc)(nil)

// New constructs the store service; active may be nil when no entity map is wired
func New(
	db repokit.TxRunner,
	batches repokit.Binder[domain.BatchRepo],
	facts domain.FactStore,
	active domain.ActiveFilter,
	log logger.Logger,
	m *metrics.Metrics,
) *Svc {
	if db == nil || batches == nil || facts == nil {
		panic("dailystore.Service requires TxRunner, batch binder and fact store")
	}
	return &Svc{db: db, batches: batches, facts: facts, active: active, log: log, metrics: m, Now: time.Now}
}

// ReplaceRange atomically-by-replacement swaps the (org, types, rng) slice for rows
func (s *Svc) ReplaceRange(ctx context.Context, org string, types []canonical.EntityType, rng domain.DateRange, rows []domain.Record) (int, error) {
	rng = domain.NewDateRange(rng.From, rng.To)
	if err := checkFilter(org, types, rng); err != nil {
		return 0, err
	}
	if err := checkRows(org, types, rng, rows); err != nil {
		return 0, err
	}

	if err := s.facts.DeleteRange(ctx, org, types, rng); err != nil {
		return 0, perr.Wrap(err, perr.ErrorCodeDB, "replace range: delete")
	}
	if err := s.facts.Insert(ctx, rows); err != nil {
		return 0, perr.Wrap(err, perr.ErrorCodeDB, "replace range: insert")
	}

	logger.C(ctx).Debug().
		Str("org", org).
		Strs("types", canonical.Strings(types)).
		Str("range", rng.String()).
		Int("rows", len(rows)).
		Msg("dailystore: range replaced")
	return len(rows), nil
}

// Scan reads daily rows; activeOnly drops rows of disabled entities
func (s *Svc) Scan(ctx context.Context, org string, types []canonical.EntityType, rng domain.DateRange, activeOnly bool) ([]domain.Record, error) {
	rng = domain.NewDateRange(rng.From, rng.To)
	if org == "" {
		return nil, perr.InvalidArgf("organization_id is required")
	}
	if err := rng.Validate(); err != nil {
		return nil, perr.InvalidArgf("%v", err)
	}
	for _, t := range types {
		if !t.Valid() {
			return nil, perr.InvalidArgf("unknown entity type %q", t)
		}
	}

	recs, err := s.facts.Scan(ctx, org, types, rng)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeDB, "scan daily metrics")
	}
	if !activeOnly || s.active == nil {
		return recs, nil
	}

	inactive, err := s.active.InactiveIDs(ctx, org)
	if err != nil {
		return nil, err
	}
	if len(inactive) == 0 {
		return recs, nil
	}
	out := recs[:0]
	for _, r := range recs {
		if _, off := inactive[r.EntityID]; off {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Stage writes one normalizer run as a batch replacing only the entity types it carries
// empty types means the types present in rows; a zero rng is widened to the dates present in rows
func (s *Svc) Stage(ctx context.Context, org string, src canonical.Source, types []canonical.EntityType, rng domain.DateRange, rows []domain.Record) (domain.Batch, error) {
	if !src.Valid() {
		return domain.Batch{}, perr.InvalidArgf("unknown source %q", src)
	}
	if rng.From.IsZero() && rng.To.IsZero() {
		if len(rows) == 0 {
			return domain.Batch{}, perr.InvalidArgf("empty batch needs an explicit date range")
		}
		rng = spanOf(rows)
	}
	rng = domain.NewDateRange(rng.From, rng.To)
	if len(types) == 0 {
		types = typesOf(rows)
	}
	if len(types) == 0 {
		return domain.Batch{}, perr.InvalidArgf("empty batch needs explicit entity types")
	}
	for _, t := range types {
		if !src.Owns(t) {
			return domain.Batch{}, perr.InvalidArgf("entity type %q is not owned by %s", t, src)
		}
	}
	if err := checkFilter(org, types, rng); err != nil {
		return domain.Batch{}, err
	}

	now := s.Now().UTC()
	for i := range rows {
		if rows[i].OrganizationID == "" {
			rows[i].OrganizationID = org
		}
		if rows[i].Source == "" {
			rows[i].Source = src
		}
		if rows[i].IngestedAt.IsZero() {
			rows[i].IngestedAt = now
		}
	}
	if err := checkRows(org, types, rng, rows); err != nil {
		return domain.Batch{}, err
	}
	for i := range rows {
		if rows[i].Source != src {
			return domain.Batch{}, perr.InvalidArgf("row %d: source %s in a %s batch", i, rows[i].Source, src)
		}
	}

	b := domain.Batch{
		ID:             uuid.New(),
		OrganizationID: org,
		Source:         src,
		EntityTypes:    types,
		Range:          rng,
		Rows:           len(rows),
		Status:         domain.BatchStaged,
		StagedAt:       now,
	}
	if err := s.facts.Stage(ctx, b.ID, rows); err != nil {
		return domain.Batch{}, perr.Wrap(err, perr.ErrorCodeDB, "stage rows")
	}
	if err := s.batches.Bind(s.db).Create(ctx, b); err != nil {
		if derr := s.facts.DropStaged(context.WithoutCancel(ctx), b.ID); derr != nil {
			s.log.Warn().Err(derr).Str("batch", b.ID.String()).Msg("dailystore: orphan staging rows left behind")
		}
		return domain.Batch{}, perr.FromPG(err, "record batch")
	}

	s.log.Info().
		Str("org", org).
		Str("source", string(src)).
		Str("batch", b.ID.String()).
		Str("range", rng.String()).
		Int("rows", len(rows)).
		Msg("dailystore: batch staged")
	return b, nil
}

// ApplyPending drains staged batches of org in staged order through ReplaceRange
// an invalid batch is marked failed and skipped; a storage failure stops the drain so
// later batches never overtake an earlier one
func (s *Svc) ApplyPending(ctx context.Context, org string) (domain.ApplyReport, error) {
	var rep domain.ApplyReport
	repo := s.batches.Bind(s.db)
	pending, err := repo.Pending(ctx, org)
	if err != nil {
		return rep, perr.FromPG(err, "list pending batches")
	}

	for _, b := range pending {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		n, err := s.applyBatch(ctx, repo, b)
		if err != nil {
			if perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
				rep.Failed++
				if merr := repo.MarkFailed(ctx, b.ID, err.Error()); merr != nil {
					return rep, perr.FromPG(merr, "mark batch failed")
				}
				s.log.Warn().Err(err).Str("org", org).Str("batch", b.ID.String()).Msg("dailystore: batch rejected")
				continue
			}
			if nerr := repo.NoteError(context.WithoutCancel(ctx), b.ID, err.Error()); nerr != nil {
				s.log.Warn().Err(nerr).Str("batch", b.ID.String()).Msg("dailystore: note batch error")
			}
			return rep, err
		}
		rep.Batches++
		rep.Rows += n
	}
	return rep, nil
}

func (s *Svc) applyBatch(ctx context.Context, repo domain.BatchRepo, b domain.Batch) (int, error) {
	recs, err := s.facts.Staged(ctx, b.ID)
	if err != nil {
		return 0, perr.Wrap(err, perr.ErrorCodeDB, "read staged batch")
	}
	if len(recs) != b.Rows {
		return 0, perr.Unavailablef("batch %s: %d staged rows visible, %d recorded", b.ID, len(recs), b.Rows)
	}
	n, err := s.ReplaceRange(ctx, b.OrganizationID, b.EntityTypes, b.Range, recs)
	if err != nil {
		return 0, err
	}
	if err := repo.MarkApplied(ctx, b.ID); err != nil {
		return 0, perr.FromPG(err, "mark batch applied")
	}
	if err := s.facts.DropStaged(ctx, b.ID); err != nil {
		s.log.Warn().Err(err).Str("batch", b.ID.String()).Msg("dailystore: staging rows not dropped")
	}
	return n, nil
}

// Batches lists the most recent batches of org
func (s *Svc) Batches(ctx context.Context, org string, limit int) ([]domain.Batch, error) {
	if org == "" {
		return nil, perr.InvalidArgf("organization_id is required")
	}
	limit = max(1, min(limit, 500))
	out, err := s.batches.Bind(s.db).List(ctx, org, limit)
	if err != nil {
		return nil, perr.FromPG(err, "list batches")
	}
	return out, nil
}

// typesOf lists the distinct entity types of rows, sorted
func typesOf(rows []domain.Record) []canonical.EntityType {
	var out []canonical.EntityType
	for _, r := range rows {
		if !slices.Contains(out, r.EntityType) {
			out = append(out, r.EntityType)
		}
	}
	slices.Sort(out)
	return out
}

func spanOf(rows []domain.Record) domain.DateRange {
	rng := domain.DateRange{From: rows[0].Date, To: rows[0].Date}
	for _, r := range rows[1:] {
		if r.Date.Before(rng.From) {
			rng.From = r.Date
		}
		if r.Date.After(rng.To) {
			rng.To = r.Date
		}
	}
	return rng
}

func checkFilter(org string, types []canonical.EntityType, rng domain.DateRange) error {
	if org == "" {
		return perr.InvalidArgf("organization_id is required")
	}
	if len(types) == 0 {
		return perr.InvalidArgf("entity type filter is empty")
	}
	for _, t := range types {
		if !t.Valid() {
			return perr.InvalidArgf("unknown entity type %q", t)
		}
	}
	if err := rng.Validate(); err != nil {
		return perr.InvalidArgf("%v", err)
	}
	return nil
}
