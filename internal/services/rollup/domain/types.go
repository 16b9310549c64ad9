// Package domain defines the rollup engine ports and types
package domain

import (
	"time"

	"pulseboard/internal/core/period"
)

// Status is a ledger state of one (organization, stage, period)
type Status string

// Ledger states: PENDING -> AGGREGATING -> AGGREGATED -> TRENDED, or FAILED
const (
	StatusPending     Status = "PENDING"
	StatusAggregating Status = "AGGREGATING"
	StatusAggregated  Status = "AGGREGATED"
	StatusTrended     Status = "TRENDED"
	StatusFailed      Status = "FAILED"
)

// Terminal reports whether no further transition follows
func (s Status) Terminal() bool { return s == StatusTrended || s == StatusFailed }

// Outcome of one stage run as seen by the orchestrator
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Run is one rollup_runs ledger row
type Run struct {
	OrganizationID string             `json:"organization_id"`
	Stage          period.Granularity `json:"stage"`
	PeriodKey      string             `json:"period_key"`
	Status         Status             `json:"status"`
	RowsWritten    int                `json:"rows_written"`
	Error          string             `json:"error,omitempty"`
	StartedAt      time.Time          `json:"started_at"`
	FinishedAt     *time.Time         `json:"finished_at,omitempty"`
	DurationMS     int64              `json:"duration_ms"`
}

// Request asks for one stage run for one organization
// PeriodKey empty means the default period for AsOf; Backfill widens it to the last Depth periods
type Request struct {
	OrganizationID string             `json:"organization_id" validate:"required"`
	Stage          period.Granularity `json:"stage" validate:"required"`
	PeriodKey      string             `json:"period_key,omitempty"`
	AsOf           time.Time          `json:"as_of"`
	Backfill       bool               `json:"backfill"`
	Depth          int                `json:"depth,omitempty" validate:"gte=0,lte=120"`
}

// PeriodResult is the outcome of one period inside a stage run
type PeriodResult struct {
	PeriodKey string `json:"period_key"`
	Status    Status `json:"status"`
	Rows      int    `json:"rows"`
	Error     string `json:"error,omitempty"`
}

// StageResult summarizes one stage run
type StageResult struct {
	OrganizationID string             `json:"organization_id"`
	Stage          period.Granularity `json:"stage"`
	Outcome        string             `json:"outcome"`
	Periods        []PeriodResult     `json:"periods"`
	Rows           int                `json:"rows"`
	Error          string             `json:"error,omitempty"`
	Took           time.Duration      `json:"took_ns"`
}
