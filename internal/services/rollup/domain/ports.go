package domain

import (
	"context"
	"time"

	"pulseboard/internal/core/canonical"
	"pulseboard/internal/core/period"
	"pulseboard/internal/core/rollup"
	dsdom "pulseboard/internal/services/dailystore/domain"
)

// Port is the engine surface used by the orchestrator and the API
type Port interface {
	// RunStage drives one stage for one organization through the ledger state machine
	RunStage(ctx context.Context, req Request) (StageResult, error)

	// Runs lists ledger rows, newest first; stage empty means every stage
	Runs(ctx context.Context, org string, stage period.Granularity, limit int) ([]Run, error)

	// Aggregates reads stored rows of one period; key empty means the latest period
	Aggregates(ctx context.Context, g period.Granularity, org, key string, t canonical.EntityType) ([]rollup.Row, error)
}

// LedgerRepo persists the state machine in Postgres
type LedgerRepo interface {
	// Begin resets (org, stage, key) to PENDING
	Begin(ctx context.Context, org string, stage period.Granularity, key string) error

	// Transition moves to status, recording rows and error; terminal states stamp finished_at
	Transition(ctx context.Context, org string, stage period.Granularity, key string, st Status, rows int, errText string) error

	List(ctx context.Context, org string, stage period.Granularity, limit int) ([]Run, error)
}

// AggregateStore is the ClickHouse surface over the aggregate tables
type AggregateStore interface {
	// DeletePeriod removes every row of (org, key) at granularity g, synchronously
	DeletePeriod(ctx context.Context, g period.Granularity, org, key string) error

	Insert(ctx context.Context, g period.Granularity, rows []rollup.Row) error

	// All reads every row of org at granularity g for the trend pass
	All(ctx context.Context, g period.Granularity, org string) ([]rollup.Row, error)

	// Upsert supersedes stored rows with the same (org, entity, period_key); nothing else is touched
	Upsert(ctx context.Context, g period.Granularity, rows []rollup.Row) error

	// Period reads one period, optionally restricted to one entity type
	Period(ctx context.Context, g period.Granularity, org, key string, t canonical.EntityType) ([]rollup.Row, error)

	// LatestKey returns the most recent period key of org at g, empty when none
	LatestKey(ctx context.Context, g period.Granularity, org string) (string, error)

	// Months reads monthly rows of org whose period starts in [from, to]; zero from means unbounded
	Months(ctx context.Context, org string, from, to time.Time) ([]rollup.Row, error)
}

// Daily is the slice of the daily store the engine reads and drains
type Daily interface {
	Scan(ctx context.Context, org string, types []canonical.EntityType, rng dsdom.DateRange, activeOnly bool) ([]dsdom.Record, error)
	ApplyPending(ctx context.Context, org string) (dsdom.ApplyReport, error)
}

// Lease runs do while holding the single writer claim on (org, stage)
// implementations return ErrLeaseHeld when another worker owns it
type Lease func(ctx context.Context, org string, stage period.Granularity, do func(context.Context) error) error
