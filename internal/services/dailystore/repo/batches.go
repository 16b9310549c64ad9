package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pulseboard/internal/core/canonical"
	"pulseboard/internal/modkit/repokit"
	"pulseboard/internal/platform/store"
	"pulseboard/internal/services/dailystore/domain"
)

type (
	// PG binds the batch ledger to a Queryer
	PG      struct{}
	batches struct{ q repokit.Queryer }
)

var _ domain.BatchRepo = (*batches)(nil)

// NewPG returns a Postgres binder for the batch ledger
func NewPG() repokit.Binder[domain.BatchRepo] { return PG{} }

// Bind implements repokit.Binder
func (PG) Bind(q repokit.Queryer) domain.BatchRepo { return &batches{q: q} }

func (r *batches) Create(ctx context.Context, b domain.Batch) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO sync_batches (batch_id, organization_id, source, entity_types, date_from, date_to, rows, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'staged')
	`, b.ID, b.OrganizationID, string(b.Source), canonical.Strings(b.EntityTypes), b.Range.From, b.Range.To, b.Rows)
	if err != nil {
		return fmt.Errorf("create batch %s: %w", b.ID, err)
	}
	return nil
}

const batchCols = `batch_id, organization_id, source, entity_types, date_from, date_to, rows, status, COALESCE(error, ''), staged_at, applied_at`

// Pending lists staged batches of org, oldest first
func (r *batches) Pending(ctx context.Context, org string) ([]domain.Batch, error) {
	return store.Many(ctx, r.q, scanBatch, `
		SELECT `+batchCols+`
		FROM sync_batches
		WHERE organization_id = $1 AND status = 'staged'
		ORDER BY staged_at, batch_id
	`, org)
}

func (r *batches) MarkApplied(ctx context.Context, id uuid.UUID) error {
	_, err := r.q.Exec(ctx, `
		UPDATE sync_batches SET status = 'applied', error = NULL, applied_at = now()
		WHERE batch_id = $1
	`, id)
	return err
}

func (r *batches) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.q.Exec(ctx, `UPDATE sync_batches SET status = 'failed', error = $2 WHERE batch_id = $1`, id, reason)
	return err
}

// NoteError records a transient failure; the batch stays staged
func (r *batches) NoteError(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.q.Exec(ctx, `UPDATE sync_batches SET error = $2 WHERE batch_id = $1`, id, reason)
	return err
}

func (r *batches) List(ctx context.Context, org string, limit int) ([]domain.Batch, error) {
	return store.Many(ctx, r.q, scanBatch, `
		SELECT `+batchCols+`
		FROM sync_batches
		WHERE organization_id = $1
		ORDER BY staged_at DESC, batch_id
		LIMIT $2
	`, org, limit)
}

func scanBatch(row store.Row) (domain.Batch, error) {
	var (
		b        domain.Batch
		src      string
		types    []string
		from, to time.Time
	)
	if err := row.Scan(&b.ID, &b.OrganizationID, &src, &types, &from, &to, &b.Rows, &b.Status, &b.Error, &b.StagedAt, &b.AppliedAt); err != nil {
		return domain.Batch{}, err
	}
	b.Source = canonical.Source(src)
	b.EntityTypes = make([]canonical.EntityType, len(types))
	for i, t := range types {
		b.EntityTypes[i] = canonical.EntityType(t)
	}
	b.Range = domain.NewDateRange(from, to)
	return b, nil
}
