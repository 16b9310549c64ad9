// Package domain holds the request shapes of the rollups API
package domain

import (
	"time"

	"pulseboard/internal/core/period"
	odom "pulseboard/internal/services/orchestrator/domain"
	rdom "pulseboard/internal/services/rollup/domain"
)

// StageInput triggers one stage for one organization
// swagger:model
type StageInput struct {
	OrganizationID string     `json:"organization_id" validate:"required,max=128" example:"acme"`
	PeriodKey      string     `json:"period_key,omitempty" validate:"max=16" example:"2025-03"`
	AsOf           *time.Time `json:"as_of,omitempty" example:"2025-04-05T00:00:00Z"`
	Backfill       bool       `json:"backfill,omitempty"`
	Depth          int        `json:"depth,omitempty" validate:"gte=0,lte=120" example:"6"`
}

// RunInput triggers the full pipeline; no organization ids means every known organization
// swagger:model
type RunInput struct {
	OrganizationIDs []string   `json:"organization_ids,omitempty" validate:"omitempty,max=500,dive,required,max=128"`
	AsOf            *time.Time `json:"as_of,omitempty"`
	Backfill        bool       `json:"backfill,omitempty"`
}

// Ports are the services the rollups API drives
type Ports struct {
	Engine       rdom.Port
	Orchestrator odom.Port
}

// ToRequest maps the input onto an engine request for stage
func (in StageInput) ToRequest(stage period.Granularity) rdom.Request {
	return rdom.Request{
		OrganizationID: in.OrganizationID,
		Stage:          stage,
		PeriodKey:      in.PeriodKey,
		Backfill:       in.Backfill,
		Depth:          in.Depth,
		AsOf:           utc(in.AsOf),
	}
}

// ToRequest maps the input onto an orchestrator request
func (in RunInput) ToRequest() odom.RunRequest {
	return odom.RunRequest{OrganizationIDs: in.OrganizationIDs, AsOf: utc(in.AsOf), Backfill: in.Backfill}
}

// utc dereferences p in UTC; nil yields the zero time so the services fall back to now
func utc(p *time.Time) time.Time {
	if p == nil {
		return time.Time{}
	}
	return p.UTC()
}
