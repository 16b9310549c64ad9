package repo

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"pulseboard/internal/core/canonical"
	"pulseboard/internal/core/period"
	"pulseboard/internal/core/rollup"
	"pulseboard/internal/platform/store"
	"pulseboard/internal/platform/store/ch"
)

type passthrough struct{}

func (passthrough) ConvertValue(v any) (driver.Value, error) { return v, nil }

func newAggregates(t *testing.T) (*Aggregates, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.ValueConverterOption(passthrough{}))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewAggregates(store.WrapCH(ch.New(db))), mock
}

var jan = period.ForMonth(time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))

func sampleRow() rollup.Row {
	r := rollup.Row{
		OrganizationID: "acme",
		EntityID:       "page_pricing",
		EntityType:     canonical.Page,
		PeriodKey:      jan.Key,
		PeriodStart:    jan.Start,
		PeriodEnd:      jan.End,
		UnitsWithData:  31,
		ExpectedUnits:  31,
		Completeness:   1,
		CompletePeriod: true,
		Rank:           2,
		ComputedAt:     time.Date(2025, 2, 1, 3, 0, 0, 0, time.UTC),
	}
	r.Values.Set(rollup.Sessions, 900)
	r.Primary = r.Values[rollup.Sessions]
	r.Trend.Changes[0] = rollup.Change{Pct: rollup.F(50), Abs: rollup.F(300)}
	r.Trend.IsBest = true
	return r
}

func values(r []any) []driver.Value {
	out := make([]driver.Value, len(r))
	for i, v := range r {
		out[i] = v
	}
	return out
}

func TestAggregateRow_Layout(t *testing.T) {
	t.Parallel()

	r := sampleRow()
	got := aggregateRow(&r)
	if len(got) != len(aggCols) {
		t.Fatalf("row has %d values for %d columns", len(got), len(aggCols))
	}
	at := func(col string) any {
		for i, c := range aggCols {
			if c == col {
				return got[i]
			}
		}
		t.Fatalf("no column %s", col)
		return nil
	}
	if at("sessions") != 900.0 || at("users") != nil {
		t.Fatalf("measures sessions=%v users=%v", at("sessions"), at("users"))
	}
	if at("sessions_change_pct") != 50.0 || at("revenue_change_pct") != nil {
		t.Fatalf("trend columns %v %v", at("sessions_change_pct"), at("revenue_change_pct"))
	}
	if at("rank_in_type") != uint32(2) || at("is_best_period") != true || at("long_trend_direction") != "" {
		t.Fatalf("flags rank=%v best=%v dir=%v", at("rank_in_type"), at("is_best_period"), at("long_trend_direction"))
	}
}

func TestDeletePeriod_RejectsDaily(t *testing.T) {
	t.Parallel()

	a, mock := newAggregates(t)
	mock.ExpectExec(regexp.QuoteMeta("ALTER TABLE monthly_metrics DELETE WHERE organization_id = ? AND period_key = ? SETTINGS mutations_sync=1")).
		WithArgs("acme", "2025-01").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	if err := a.DeletePeriod(ctx, period.Monthly, "acme", "2025-01"); err != nil {
		t.Fatalf("DeletePeriod: %v", err)
	}
	if err := a.DeletePeriod(ctx, period.Daily, "acme", "2025-01-01"); !errors.Is(err, errNoTable) {
		t.Fatalf("daily has no aggregate table, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPeriod_ScansRows(t *testing.T) {
	t.Parallel()

	a, mock := newAggregates(t)
	want := sampleRow()
	mock.ExpectQuery(regexp.QuoteMeta("FROM monthly_metrics FINAL WHERE organization_id = ? AND period_key = ? AND entity_type = ?")).
		WithArgs("acme", "2025-01", "page").
		WillReturnRows(sqlmock.NewRows(aggCols).AddRow(values(aggregateRow(&want))...))

	got, err := a.Period(context.Background(), period.Monthly, "acme", "2025-01", canonical.Page)
	if err != nil {
		t.Fatalf("Period: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("rows %d", len(got))
	}
	g := got[0]
	if g.EntityID != want.EntityID || g.EntityType != canonical.Page || g.Rank != 2 || g.UnitsWithData != 31 {
		t.Fatalf("row %+v", g)
	}
	if v, _ := g.Values.Get(rollup.Sessions); v != 900 || g.Values[rollup.Users] != nil {
		t.Fatalf("measures %v", g.Values)
	}
	if c := g.Trend.Changes[0]; c.Pct == nil || *c.Pct != 50 || !g.Trend.IsBest {
		t.Fatalf("trend %+v", g.Trend)
	}
	if !g.PeriodEnd.Equal(jan.End) || !g.CompletePeriod {
		t.Fatalf("period %v complete=%v", g.PeriodEnd, g.CompletePeriod)
	}
}

func TestUpsert_InsertsWithoutDeleting(t *testing.T) {
	t.Parallel()

	a, mock := newAggregates(t)
	r := sampleRow()
	mock.ExpectBegin()
	mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO weekly_metrics (organization_id")).
		ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := a.Upsert(context.Background(), period.Weekly, []rollup.Row{r}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpsert_FailedWriteDeletesNothing(t *testing.T) {
	t.Parallel()

	a, mock := newAggregates(t)
	r := sampleRow()
	mock.ExpectBegin()
	mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO weekly_metrics")).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	if err := a.Upsert(context.Background(), period.Weekly, []rollup.Row{r}); err == nil {
		t.Fatal("want write error")
	}
	// any ALTER TABLE ... DELETE would be an unexpected call
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestMonths_OptionalLowerBound(t *testing.T) {
	t.Parallel()

	a, mock := newAggregates(t)
	to := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM monthly_metrics FINAL WHERE organization_id = ? AND period_start <= ? ORDER BY")).
		WithArgs("acme", to).
		WillReturnRows(sqlmock.NewRows(aggCols))
	mock.ExpectQuery(regexp.QuoteMeta("AND period_start <= ? AND period_start >= ? ORDER BY")).
		WithArgs("acme", to, from).
		WillReturnRows(sqlmock.NewRows(aggCols))

	ctx := context.Background()
	if _, err := a.Months(ctx, "acme", time.Time{}, to); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Months(ctx, "acme", from, to); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestLatestKey(t *testing.T) {
	t.Parallel()

	a, mock := newAggregates(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT period_key FROM l12m_metrics")).
		WithArgs("acme").
		WillReturnRows(sqlmock.NewRows([]string{"period_key"}).AddRow("2025-03-01"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT period_key FROM l12m_metrics")).
		WithArgs("empty").
		WillReturnRows(sqlmock.NewRows([]string{"period_key"}))

	ctx := context.Background()
	if k, err := a.LatestKey(ctx, period.L12M, "acme"); err != nil || k != "2025-03-01" {
		t.Fatalf("key=%q err=%v", k, err)
	}
	if k, err := a.LatestKey(ctx, period.L12M, "empty"); err != nil || k != "" {
		t.Fatalf("empty org key=%q err=%v", k, err)
	}
}
