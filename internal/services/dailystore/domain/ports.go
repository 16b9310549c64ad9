package domain

import (
	"context"

	"github.com/google/uuid"

	"pulseboard/internal/core/canonical"
)

// FactStore is the ClickHouse surface over daily_metrics and its staging twin
type FactStore interface {
	// DeleteRange removes rows of org whose type is in types and date is in rng, synchronously
	DeleteRange(ctx context.Context, org string, types []canonical.EntityType, rng DateRange) error

	// Insert bulk writes records into daily_metrics
	Insert(ctx context.Context, recs []Record) error

	// Scan reads rows of org in rng, optionally restricted to types
	Scan(ctx context.Context, org string, types []canonical.EntityType, rng DateRange) ([]Record, error)

	// Stage writes records into the staging table under batch id
	Stage(ctx context.Context, id uuid.UUID, recs []Record) error

	// Staged reads back every record of one batch
	Staged(ctx context.Context, id uuid.UUID) ([]Record, error)

	// DropStaged removes the staging rows of one batch
	DropStaged(ctx context.Context, id uuid.UUID) error
}

// BatchRepo is the Postgres ledger of staging batches
type BatchRepo interface {
	Create(ctx context.Context, b Batch) error
	Pending(ctx context.Context, org string) ([]Batch, error)
	MarkApplied(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	NoteError(ctx context.Context, id uuid.UUID, reason string) error
	List(ctx context.Context, org string, limit int) ([]Batch, error)
}

// ActiveFilter reports disabled entities of an organization
type ActiveFilter interface {
	InactiveIDs(ctx context.Context, org string) (map[string]struct{}, error)
}

// Port is what the rollup engine and the API consume
type Port interface {
	ReplaceRange(ctx context.Context, org string, types []canonical.EntityType, rng DateRange, rows []Record) (int, error)
	Scan(ctx context.Context, org string, types []canonical.EntityType, rng DateRange, activeOnly bool) ([]Record, error)
	// Stage records a batch whose apply replaces (org, types, rng); empty types means the types in rows
	Stage(ctx context.Context, org string, src canonical.Source, types []canonical.EntityType, rng DateRange, rows []Record) (Batch, error)
	ApplyPending(ctx context.Context, org string) (ApplyReport, error)
	Batches(ctx context.Context, org string, limit int) ([]Batch, error)
}
