// Package domain defines the daily metrics store types and ports
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"pulseboard/internal/core/canonical"
	"pulseboard/internal/core/period"
	"pulseboard/internal/core/rollup"
)

// Record is one daily_metrics row
type Record struct {
	OrganizationID  string               `json:"organization_id" validate:"required,max=128"`
	EntityID        string               `json:"canonical_entity_id" validate:"required,max=200"`
	EntityType      canonical.EntityType `json:"entity_type" validate:"required"`
	Date            time.Time            `json:"date" validate:"required"`
	Dimension       string               `json:"dimension" validate:"max=64"`
	Values          rollup.Values        `json:"measures"`
	Source          canonical.Source     `json:"source" validate:"required"`
	SourceBreakdown string               `json:"source_breakdown,omitempty"`
	IngestedAt      time.Time            `json:"ingested_at"`
}

// NaturalKey identifies a record inside one organization
type NaturalKey struct {
	EntityID   string
	EntityType canonical.EntityType
	Date       time.Time
	Dimension  string
}

// Key returns the natural key of r
func (r *Record) Key() NaturalKey {
	return NaturalKey{EntityID: r.EntityID, EntityType: r.EntityType, Date: period.Date(r.Date), Dimension: r.Dimension}
}

// DateRange is an inclusive range of UTC dates
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// NewDateRange normalizes both ends to UTC midnights
func NewDateRange(from, to time.Time) DateRange {
	return DateRange{From: period.Date(from), To: period.Date(to)}
}

// Contains reports whether d falls inside the range
func (r DateRange) Contains(d time.Time) bool {
	d = period.Date(d)
	return !d.Before(r.From) && !d.After(r.To)
}

// Validate rejects zero or inverted ranges
func (r DateRange) Validate() error {
	if r.From.IsZero() || r.To.IsZero() {
		return fmt.Errorf("date range needs both ends")
	}
	if r.To.Before(r.From) {
		return fmt.Errorf("date range %s..%s is inverted", r.From.Format(period.DayLayout), r.To.Format(period.DayLayout))
	}
	return nil
}

// String renders the range as from..to
func (r DateRange) String() string {
	return r.From.Format(period.DayLayout) + ".." + r.To.Format(period.DayLayout)
}

// Batch status values
const (
	BatchStaged  = "staged"
	BatchApplied = "applied"
	BatchFailed  = "failed"
)

// Batch is one normalizer run waiting in staging
type Batch struct {
	ID             uuid.UUID              `json:"batch_id"`
	OrganizationID string                 `json:"organization_id"`
	Source         canonical.Source       `json:"source"`
	EntityTypes    []canonical.EntityType `json:"entity_types"`
	Range          DateRange              `json:"range"`
	Rows           int                    `json:"rows"`
	Status         string                 `json:"status"`
	Error          string                 `json:"error,omitempty"`
	StagedAt       time.Time              `json:"staged_at"`
	AppliedAt      *time.Time             `json:"applied_at,omitempty"`
}

// ApplyReport summarizes one drain of the staging area
type ApplyReport struct {
	Batches int `json:"batches"`
	Rows    int `json:"rows"`
	Failed  int `json:"failed"`
}
