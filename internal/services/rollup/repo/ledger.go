// Package repo provides the Postgres run ledger and the ClickHouse aggregate store
package repo

import (
	"context"
	"fmt"

	"pulseboard/internal/core/period"
	"pulseboard/internal/modkit/repokit"
	"pulseboard/internal/platform/store"
	"pulseboard/internal/services/rollup/domain"
)

type (
	// PG binds the rollup_runs ledger to a Queryer
	PG     struct{}
	ledger struct{ q repokit.Queryer }
)

var _ domain.LedgerRepo = (*ledger)(nil)

// NewPG returns a Postgres binder for the ledger
func NewPG() repokit.Binder[domain.LedgerRepo] { return PG{} }

// Bind implements repokit.Binder
func (PG) Bind(q repokit.Queryer) domain.LedgerRepo { return &ledger{q: q} }

func (r *ledger) Begin(ctx context.Context, org string, stage period.Granularity, key string) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO rollup_runs (organization_id, stage, period_key, status, rows_written, error, started_at, finished_at, duration_ms)
		VALUES ($1, $2, $3, $4, 0, NULL, now(), NULL, NULL)
		ON CONFLICT (organization_id, stage, period_key) DO UPDATE
		SET status = EXCLUDED.status, rows_written = 0, error = NULL,
		    started_at = now(), finished_at = NULL, duration_ms = NULL
	`, org, string(stage), key, string(domain.StatusPending))
	if err != nil {
		return fmt.Errorf("begin %s/%s/%s: %w", org, stage, key, err)
	}
	return nil
}

func (r *ledger) Transition(ctx context.Context, org string, stage period.Granularity, key string, st domain.Status, rows int, errText string) error {
	var errArg any
	if errText != "" {
		errArg = errText
	}
	_, err := r.q.Exec(ctx, `
		UPDATE rollup_runs
		SET status       = $4,
		    rows_written = $5,
		    error        = $6,
		    finished_at  = CASE WHEN $7 THEN now() END,
		    duration_ms  = CASE WHEN $7 THEN (EXTRACT(EPOCH FROM now() - started_at) * 1000)::bigint END
		WHERE organization_id = $1 AND stage = $2 AND period_key = $3
	`, org, string(stage), key, string(st), rows, errArg, st.Terminal())
	if err != nil {
		return fmt.Errorf("transition %s/%s/%s to %s: %w", org, stage, key, st, err)
	}
	return nil
}

func (r *ledger) List(ctx context.Context, org string, stage period.Granularity, limit int) ([]domain.Run, error) {
	return store.Many(ctx, r.q, scanRun, `
		SELECT organization_id, stage, period_key, status, rows_written, COALESCE(error, ''),
		       started_at, finished_at, COALESCE(duration_ms, 0)
		FROM rollup_runs
		WHERE organization_id = $1 AND ($2 = '' OR stage = $2)
		ORDER BY started_at DESC, stage, period_key DESC
		LIMIT $3
	`, org, string(stage), limit)
}

func scanRun(row store.Row) (domain.Run, error) {
	var (
		r         domain.Run
		stage, st string
	)
	err := row.Scan(&r.OrganizationID, &stage, &r.PeriodKey, &st, &r.RowsWritten, &r.Error,
		&r.StartedAt, &r.FinishedAt, &r.DurationMS)
	r.Stage = period.Granularity(stage)
	r.Status = domain.Status(st)
	return r, err
}
