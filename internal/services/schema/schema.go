// Package schema owns the table layouts shared by the repositories and the migrate binary
//
// Postgres DDL is embedded as plain SQL. ClickHouse DDL is generated from the measure table
// in core/rollup so the columns can never drift from the aggregation algebra.
package schema

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"pulseboard/internal/core/period"
	"pulseboard/internal/core/rollup"
	perr "pulseboard/internal/platform/errors"
	"pulseboard/internal/platform/store"
)

//go:embed pg.sql
var pgDDL string

// Table names
const (
	DailyTable   = "daily_metrics"
	StagingTable = "daily_metrics_staging"
)

// AggregateTable returns the ClickHouse table holding rows of granularity g
// daily rows live in DailyTable itself
func AggregateTable(g period.Granularity) string {
	switch g {
	case period.Daily:
		return DailyTable
	case period.Weekly:
		return "weekly_metrics"
	case period.Monthly:
		return "monthly_metrics"
	case period.L12M:
		return "l12m_metrics"
	case period.AllTime:
		return "alltime_metrics"
	}
	return ""
}

// Column is one ClickHouse column definition
type Column struct {
	Name string
	Type string
}

func measureDefs() []Column {
	out := make([]Column, 0, rollup.NumMeasures)
	for _, c := range rollup.Columns() {
		out = append(out, Column{c, "Nullable(Float64)"})
	}
	return out
}

// DailyDefs is the daily_metrics layout
func DailyDefs() []Column {
	cols := []Column{
		{"organization_id", "String"},
		{"canonical_entity_id", "String"},
		{"entity_type", "LowCardinality(String)"},
		{"date", "Date"},
		{"dimension", "String"},
	}
	cols = append(cols, measureDefs()...)
	return append(cols,
		Column{"source", "LowCardinality(String)"},
		Column{"source_breakdown", "String"},
		Column{"ingested_at", "DateTime64(3, 'UTC')"},
	)
}

// StagingDefs is DailyDefs prefixed with the batch id
func StagingDefs() []Column {
	return append([]Column{{"batch_id", "UUID"}}, DailyDefs()...)
}

// ChangeColumns returns the change_pct and change_abs column names of trend measure m
func ChangeColumns(m rollup.Measure) (pct, abs string) {
	return m.Name() + "_change_pct", m.Name() + "_change_abs"
}

// AggregateDefs is the layout shared by the weekly, monthly, l12m and all-time tables
func AggregateDefs() []Column {
	cols := []Column{
		{"organization_id", "String"},
		{"canonical_entity_id", "String"},
		{"entity_type", "LowCardinality(String)"},
		{"period_key", "String"},
		{"period_start", "Date"},
		{"period_end", "Date"},
	}
	cols = append(cols, measureDefs()...)
	for _, m := range rollup.TrendMeasures {
		pct, abs := ChangeColumns(m)
		cols = append(cols, Column{pct, "Nullable(Float64)"}, Column{abs, "Nullable(Float64)"})
	}
	return append(cols,
		Column{"primary_value", "Nullable(Float64)"},
		Column{"is_best_period", "Bool"},
		Column{"is_worst_period", "Bool"},
		Column{"rank_in_type", "UInt32"},
		Column{"units_with_data", "UInt32"},
		Column{"expected_units", "UInt32"},
		Column{"data_completeness", "Float64"},
		Column{"is_complete_period", "Bool"},
		Column{"long_trend_change_pct", "Nullable(Float64)"},
		Column{"long_trend_direction", "LowCardinality(String)"},
		Column{"computed_at", "DateTime64(3, 'UTC')"},
	)
}

// Names projects column names in order
func Names(cols []Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

func createTable(name string, cols []Column, tail string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", name)
	for i, c := range cols {
		sep := ","
		if i == len(cols)-1 {
			sep = ""
		}
		fmt.Fprintf(&b, "    %s %s%s\n", c.Name, c.Type, sep)
	}
	b.WriteString(") ")
	b.WriteString(tail)
	return b.String()
}

// ClickhouseDDL returns every CREATE TABLE statement in apply order
func ClickhouseDDL() []string {
	out := []string{
		createTable(DailyTable, DailyDefs(),
			"ENGINE = MergeTree PARTITION BY toYYYYMM(date) "+
				"ORDER BY (organization_id, entity_type, canonical_entity_id, date, dimension)"),
		createTable(StagingTable, StagingDefs(),
			"ENGINE = MergeTree ORDER BY (batch_id, organization_id, entity_type, canonical_entity_id, date, dimension)"),
	}
	for _, g := range period.Order[1:] {
		out = append(out, createTable(AggregateTable(g), AggregateDefs(),
			"ENGINE = ReplacingMergeTree(computed_at) ORDER BY (organization_id, entity_type, canonical_entity_id, period_key)"))
	}
	return out
}

// PostgresDDL returns the embedded postgres schema
func PostgresDDL() string { return pgDDL }

// Apply creates every table that does not exist yet; nil seams are skipped
func Apply(ctx context.Context, pg store.RowQuerier, ch store.Clickhouse) error {
	if pg != nil {
		if _, err := pg.Exec(ctx, pgDDL); err != nil {
			return perr.FromPG(err, "apply postgres schema")
		}
	}
	if ch != nil {
		for _, ddl := range ClickhouseDDL() {
			if err := ch.Exec(ctx, ddl); err != nil {
				return perr.Wrap(err, perr.ErrorCodeDB, "apply clickhouse schema")
			}
		}
	}
	return nil
}
