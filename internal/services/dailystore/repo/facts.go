// Package repo provides the ClickHouse fact store and the Postgres batch ledger
package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"pulseboard/internal/core/canonical"
	"pulseboard/internal/core/rollup"
	"pulseboard/internal/platform/store"
	"pulseboard/internal/services/dailystore/domain"
	"pulseboard/internal/services/schema"
)

// Facts implements domain.FactStore on ClickHouse
type Facts struct {
	ch store.Clickhouse
}

var _ domain.FactStore = (*Facts)(nil)

// NewFacts binds the fact store to a ClickHouse seam
func NewFacts(ch store.Clickhouse) *Facts {
	if ch == nil {
		panic("dailystore: nil clickhouse")
	}
	return &Facts{ch: ch}
}

var (
	dailyCols   = schema.Names(schema.DailyDefs())
	stagingCols = schema.Names(schema.StagingDefs())
	selectList  = strings.Join(dailyCols, ", ")
)

// DeleteRange blocks until the mutation is applied so a following insert never races it
func (f *Facts) DeleteRange(ctx context.Context, org string, types []canonical.EntityType, rng domain.DateRange) error {
	if len(types) == 0 {
		return fmt.Errorf("delete range: empty entity type filter")
	}
	err := f.ch.Exec(ctx, `
		ALTER TABLE `+schema.DailyTable+`
		DELETE WHERE organization_id = ? AND has(?, entity_type) AND date >= ? AND date <= ?
		SETTINGS mutations_sync=1`,
		org, canonical.Strings(types), rng.From, rng.To,
	)
	if err != nil {
		return fmt.Errorf("delete %s %v %s: %w", org, types, rng, err)
	}
	return nil
}

func (f *Facts) Insert(ctx context.Context, recs []domain.Record) error {
	if len(recs) == 0 {
		return nil
	}
	rows := make([][]any, len(recs))
	for i := range recs {
		rows[i] = recordRow(&recs[i])
	}
	return f.ch.Insert(ctx, schema.DailyTable, dailyCols, rows)
}

func (f *Facts) Scan(ctx context.Context, org string, types []canonical.EntityType, rng domain.DateRange) ([]domain.Record, error) {
	var b strings.Builder
	b.WriteString("SELECT " + selectList + " FROM " + schema.DailyTable)
	b.WriteString(" WHERE organization_id = ? AND date >= ? AND date <= ?")
	args := []any{org, rng.From, rng.To}
	if len(types) > 0 {
		b.WriteString(" AND has(?, entity_type)")
		args = append(args, canonical.Strings(types))
	}
	b.WriteString(" ORDER BY entity_type, canonical_entity_id, date, dimension")

	rows, err := f.ch.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("scan daily: %w", err)
	}
	return store.ScanAll(rows, scanRecord)
}

func (f *Facts) Stage(ctx context.Context, id uuid.UUID, recs []domain.Record) error {
	if len(recs) == 0 {
		return nil
	}
	rows := make([][]any, len(recs))
	for i := range recs {
		rows[i] = append([]any{id}, recordRow(&recs[i])...)
	}
	return f.ch.Insert(ctx, schema.StagingTable, stagingCols, rows)
}

func (f *Facts) Staged(ctx context.Context, id uuid.UUID) ([]domain.Record, error) {
	rows, err := f.ch.Query(ctx, "SELECT "+selectList+" FROM "+schema.StagingTable+
		" WHERE batch_id = ? ORDER BY entity_type, canonical_entity_id, date, dimension", id)
	if err != nil {
		return nil, fmt.Errorf("read staged %s: %w", id, err)
	}
	return store.ScanAll(rows, scanRecord)
}

func (f *Facts) DropStaged(ctx context.Context, id uuid.UUID) error {
	return f.ch.Exec(ctx, "ALTER TABLE "+schema.StagingTable+
		" DELETE WHERE batch_id = ? SETTINGS mutations_sync=1", id)
}

// recordRow lays r out in dailyCols order
func recordRow(r *domain.Record) []any {
	out := make([]any, 0, len(dailyCols))
	out = append(out, r.OrganizationID, r.EntityID, string(r.EntityType), r.Date.UTC(), r.Dimension)
	for _, v := range r.Values {
		if v == nil {
			out = append(out, nil)
			continue
		}
		out = append(out, *v)
	}
	breakdown := r.SourceBreakdown
	if breakdown == "" {
		breakdown = "{}"
	}
	ingested := r.IngestedAt
	if ingested.IsZero() {
		ingested = time.Now()
	}
	return append(out, string(r.Source), breakdown, ingested.UTC())
}

func scanRecord(row store.Row) (domain.Record, error) {
	var (
		r      domain.Record
		et, sr string
	)
	dst := make([]any, 0, len(dailyCols))
	dst = append(dst, &r.OrganizationID, &r.EntityID, &et, &r.Date, &r.Dimension)
	for m := range rollup.NumMeasures {
		dst = append(dst, &r.Values[m])
	}
	dst = append(dst, &sr, &r.SourceBreakdown, &r.IngestedAt)
	if err := row.Scan(dst...); err != nil {
		return domain.Record{}, err
	}
	r.EntityType = canonical.EntityType(et)
	r.Source = canonical.Source(sr)
	r.Date = r.Date.UTC()
	return r, nil
}
