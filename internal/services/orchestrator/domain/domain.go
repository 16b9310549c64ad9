// Package domain defines the rollup orchestrator ports and report types
package domain

import (
	"context"
	"time"

	"github.com/google/uuid"

	"pulseboard/internal/core/period"
	rdom "pulseboard/internal/services/rollup/domain"
)

// Engine is the slice of the rollup engine the orchestrator drives
type Engine interface {
	RunStage(ctx context.Context, req rdom.Request) (rdom.StageResult, error)
}

// Organizations lists every organization a scheduled run covers
type Organizations interface {
	Organizations(ctx context.Context) ([]string, error)
}

// RunRequest asks for one pass over organizations; empty ids means every known organization
type RunRequest struct {
	OrganizationIDs []string  `json:"organization_ids,omitempty" validate:"omitempty,dive,required,max=128"`
	AsOf            time.Time `json:"as_of"`
	Backfill        bool      `json:"backfill"`
}

// Skip reasons
const (
	ReasonCanceled   = "canceled"
	ReasonLeaseHeld  = "lease held"
	ReasonUpstreamOf = "upstream failed: "
)

// Outcome is the result of one (organization, stage)
type Outcome struct {
	OrganizationID string             `json:"organization_id"`
	Stage          period.Granularity `json:"stage"`
	Status         string             `json:"status"`
	Reason         string             `json:"reason,omitempty"`
	Periods        int                `json:"periods"`
	Rows           int                `json:"rows"`
	Took           time.Duration      `json:"took_ns"`
}

// Report enumerates every (organization, stage) outcome of one run
type Report struct {
	RunID      uuid.UUID `json:"run_id"`
	AsOf       time.Time `json:"as_of"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Canceled   bool      `json:"canceled"`
	Outcomes   []Outcome `json:"outcomes"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
}

// Port is the orchestrator surface
type Port interface {
	Run(ctx context.Context, req RunRequest) (Report, error)
}
