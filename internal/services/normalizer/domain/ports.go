// Package domain defines the metrics normalizer contract
package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"pulseboard/internal/core/canonical"
	dsdom "pulseboard/internal/services/dailystore/domain"
	entdom "pulseboard/internal/services/entities/domain"
)

// Drop reasons reported per batch
const (
	DropEmptyName = "empty_name"
	DropMerged    = "merged_duplicate"
)

// Result is what one adapter produces from one payload
type Result struct {
	// Types lists the entity types the payload carried, dropped rows included, sorted
	Types    []canonical.EntityType
	Records  []dsdom.Record
	Mappings []entdom.Mapping
	Dropped  map[string]int
}

// Adapter shapes one source's already-fetched payload rows into daily records
type Adapter interface {
	Source() canonical.Source
	// EntityTypes lists every type the adapter may emit
	EntityTypes() []canonical.EntityType
	// Normalize shapes payload; resolve derives canonical ids, nil means canonical.Resolve
	Normalize(org string, payload json.RawMessage, now time.Time, resolve ResolveFunc) (Result, error)
}

// ResolveFunc derives the canonical id of a raw name
type ResolveFunc func(t canonical.EntityType, raw string) (string, bool)

// Resolver derives canonical ids and persists provenance for resolved entities
type Resolver interface {
	Resolve(t canonical.EntityType, raw string) (string, bool)
	UpsertMappings(ctx context.Context, org string, ms []entdom.Mapping) ([]entdom.Collision, error)
}

// Stager writes one normalizer run into staging
type Stager interface {
	Stage(ctx context.Context, org string, src canonical.Source, types []canonical.EntityType, rng dsdom.DateRange, rows []dsdom.Record) (dsdom.Batch, error)
}

// Report is returned by Ingest
type Report struct {
	BatchID    uuid.UUID        `json:"batch_id"`
	Source     canonical.Source `json:"source"`
	Rows       int              `json:"rows"`
	Mapped     int              `json:"entities_mapped"`
	Collisions int              `json:"collisions"`
	Dropped    map[string]int   `json:"dropped,omitempty"`
	Range      dsdom.DateRange  `json:"range"`
	// EntityTypes is the replace filter of the staged batch
	EntityTypes []canonical.EntityType `json:"entity_types"`
}

// Port is consumed by the ingest API
type Port interface {
	Ingest(ctx context.Context, org string, src canonical.Source, types []canonical.EntityType, rng dsdom.DateRange, payload json.RawMessage) (Report, error)
	Sources() []canonical.Source
}
