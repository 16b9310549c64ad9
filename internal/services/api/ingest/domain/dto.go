// Package domain holds the request shapes of the ingest API
package domain

import (
	"encoding/json"

	dsdom "pulseboard/internal/services/dailystore/domain"
	nmdom "pulseboard/internal/services/normalizer/domain"
)

// IngestInput carries already-fetched source rows for one organization
// from and to bound the replace; both empty means the dates present in rows
// entity_types narrows the replace; empty means the types present in rows
// swagger:model
type IngestInput struct {
	OrganizationID string          `json:"organization_id" validate:"required,max=128" example:"acme"`
	From           string          `json:"from,omitempty" validate:"required_with=To,omitempty,datetime=2006-01-02" example:"2025-03-01"`
	To             string          `json:"to,omitempty" validate:"required_with=From,omitempty,datetime=2006-01-02" example:"2025-03-31"`
	EntityTypes    []string        `json:"entity_types,omitempty" validate:"omitempty,dive,required" example:"page"`
	Rows           json.RawMessage `json:"rows" validate:"required" swaggertype:"array,object"`
}

// ApplyInput drains the staging area of one organization
// swagger:model
type ApplyInput struct {
	OrganizationID string `json:"organization_id" validate:"required,max=128" example:"acme"`
}

// SourcesOutput lists the accepted sources
type SourcesOutput struct {
	Sources []string `json:"sources"`
}

// Ports are the services the ingest API drives
type Ports struct {
	Normalizer nmdom.Port
	Daily      dsdom.Port
}
