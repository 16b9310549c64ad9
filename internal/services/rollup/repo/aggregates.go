package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pulseboard/internal/core/canonical"
	"pulseboard/internal/core/period"
	"pulseboard/internal/core/rollup"
	"pulseboard/internal/platform/store"
	"pulseboard/internal/services/rollup/domain"
	"pulseboard/internal/services/schema"
)

// Aggregates implements domain.AggregateStore on ClickHouse
type Aggregates struct {
	ch store.Clickhouse
}

var _ domain.AggregateStore = (*Aggregates)(nil)

// NewAggregates binds the aggregate store to a ClickHouse seam
func NewAggregates(ch store.Clickhouse) *Aggregates {
	if ch == nil {
		panic("rollup: nil clickhouse")
	}
	return &Aggregates{ch: ch}
}

var (
	aggCols    = schema.Names(schema.AggregateDefs())
	aggSelect  = strings.Join(aggCols, ", ")
	rowOrder   = " ORDER BY entity_type, canonical_entity_id, period_end, period_key"
	errNoTable = fmt.Errorf("rollup: granularity has no aggregate table")
)

func table(g period.Granularity) (string, error) {
	if g == period.Daily || !g.Valid() {
		return "", fmt.Errorf("%w: %q", errNoTable, g)
	}
	return schema.AggregateTable(g), nil
}

func (a *Aggregates) DeletePeriod(ctx context.Context, g period.Granularity, org, key string) error {
	t, err := table(g)
	if err != nil {
		return err
	}
	if err := a.ch.Exec(ctx, "ALTER TABLE "+t+
		" DELETE WHERE organization_id = ? AND period_key = ? SETTINGS mutations_sync=1", org, key); err != nil {
		return fmt.Errorf("delete %s %s/%s: %w", t, org, key, err)
	}
	return nil
}

func (a *Aggregates) Insert(ctx context.Context, g period.Granularity, rows []rollup.Row) error {
	t, err := table(g)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	out := make([][]any, len(rows))
	for i := range rows {
		out[i] = aggregateRow(&rows[i])
	}
	return a.ch.Insert(ctx, t, aggCols, out)
}

func (a *Aggregates) All(ctx context.Context, g period.Granularity, org string) ([]rollup.Row, error) {
	t, err := table(g)
	if err != nil {
		return nil, err
	}
	return a.query(ctx, "SELECT "+aggSelect+" FROM "+t+" FINAL WHERE organization_id = ?"+rowOrder, org)
}

// Upsert writes rows as the newest version of their (org, entity, period_key) key
// nothing is deleted; the table keeps the row with the latest computed_at
func (a *Aggregates) Upsert(ctx context.Context, g period.Granularity, rows []rollup.Row) error {
	if err := a.Insert(ctx, g, rows); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

func (a *Aggregates) Period(ctx context.Context, g period.Granularity, org, key string, et canonical.EntityType) ([]rollup.Row, error) {
	t, err := table(g)
	if err != nil {
		return nil, err
	}
	q := "SELECT " + aggSelect + " FROM " + t + " FINAL WHERE organization_id = ? AND period_key = ?"
	args := []any{org, key}
	if et != "" {
		q += " AND entity_type = ?"
		args = append(args, string(et))
	}
	return a.query(ctx, q+" ORDER BY entity_type, rank_in_type, canonical_entity_id", args...)
}

func (a *Aggregates) LatestKey(ctx context.Context, g period.Granularity, org string) (string, error) {
	t, err := table(g)
	if err != nil {
		return "", err
	}
	rows, err := a.ch.Query(ctx, "SELECT period_key FROM "+t+
		" WHERE organization_id = ? ORDER BY period_key DESC LIMIT 1", org)
	if err != nil {
		return "", fmt.Errorf("latest %s key: %w", t, err)
	}
	defer rows.Close()
	var key string
	if rows.Next() {
		if err := rows.Scan(&key); err != nil {
			return "", err
		}
	}
	return key, rows.Err()
}

func (a *Aggregates) Months(ctx context.Context, org string, from, to time.Time) ([]rollup.Row, error) {
	q := "SELECT " + aggSelect + " FROM " + schema.AggregateTable(period.Monthly) +
		" FINAL WHERE organization_id = ? AND period_start <= ?"
	args := []any{org, period.Date(to)}
	if !from.IsZero() {
		q += " AND period_start >= ?"
		args = append(args, period.Date(from))
	}
	return a.query(ctx, q+rowOrder, args...)
}

func (a *Aggregates) query(ctx context.Context, q string, args ...any) ([]rollup.Row, error) {
	rows, err := a.ch.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("read aggregates: %w", err)
	}
	return store.ScanAll(rows, scanAggregate)
}

func ptr(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// aggregateRow lays r out in aggCols order
func aggregateRow(r *rollup.Row) []any {
	out := make([]any, 0, len(aggCols))
	out = append(out, r.OrganizationID, r.EntityID, string(r.EntityType), r.PeriodKey,
		r.PeriodStart.UTC(), r.PeriodEnd.UTC())
	for _, v := range r.Values {
		out = append(out, ptr(v))
	}
	for _, c := range r.Trend.Changes {
		out = append(out, ptr(c.Pct), ptr(c.Abs))
	}
	computed := r.ComputedAt
	if computed.IsZero() {
		computed = time.Now()
	}
	return append(out,
		ptr(r.Primary),
		r.Trend.IsBest,
		r.Trend.IsWorst,
		uint32(r.Rank),
		uint32(r.UnitsWithData),
		uint32(r.ExpectedUnits),
		r.Completeness,
		r.CompletePeriod,
		ptr(r.LongTrendPct),
		r.LongTrendDirection,
		computed.UTC(),
	)
}

func scanAggregate(row store.Row) (rollup.Row, error) {
	var (
		r                     rollup.Row
		et                    string
		rank, units, expected uint32
	)
	dst := make([]any, 0, len(aggCols))
	dst = append(dst, &r.OrganizationID, &r.EntityID, &et, &r.PeriodKey, &r.PeriodStart, &r.PeriodEnd)
	for m := range rollup.NumMeasures {
		dst = append(dst, &r.Values[m])
	}
	for i := range r.Trend.Changes {
		dst = append(dst, &r.Trend.Changes[i].Pct, &r.Trend.Changes[i].Abs)
	}
	dst = append(dst, &r.Primary, &r.Trend.IsBest, &r.Trend.IsWorst, &rank, &units, &expected,
		&r.Completeness, &r.CompletePeriod, &r.LongTrendPct, &r.LongTrendDirection, &r.ComputedAt)
	if err := row.Scan(dst...); err != nil {
		return rollup.Row{}, err
	}
	r.EntityType = canonical.EntityType(et)
	r.Rank, r.UnitsWithData, r.ExpectedUnits = int(rank), int(units), int(expected)
	r.PeriodStart, r.PeriodEnd = r.PeriodStart.UTC(), r.PeriodEnd.UTC()
	return r, nil
}
