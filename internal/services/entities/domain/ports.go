// Package domain defines the entity map types and ports
package domain

import (
	"context"
	"time"

	"pulseboard/internal/core/canonical"
)

// Mapping ties one source-native entity to its canonical id
type Mapping struct {
	CanonicalID    string
	EntityType     canonical.EntityType
	DisplayName    string
	Source         canonical.Source
	SourceEntityID string
	Metadata       map[string]any
}

// Collision is a canonical id already mapped from a different source id of the same source
type Collision struct {
	CanonicalID      string
	Source           canonical.Source
	PreviousSourceID string
	SourceEntityID   string
}

// Entity is one row of the entity map
type Entity struct {
	OrganizationID string               `json:"organization_id"`
	CanonicalID    string               `json:"canonical_entity_id"`
	EntityType     canonical.EntityType `json:"entity_type"`
	DisplayName    string               `json:"display_name"`
	IsActive       bool                 `json:"is_active"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// Repo is the storage surface of the entity map, bound per transaction
type Repo interface {
	// PreviousSourceIDs returns the stored source id per (canonical id, source) for the keys given
	PreviousSourceIDs(ctx context.Context, org string, ids []string, sources []string) (map[Key]string, error)

	// UpsertMappings inserts entities and provenance rows; existing provenance takes the new source id
	UpsertMappings(ctx context.Context, org string, ms []Mapping) error

	// SetActive flips is_active; found is false when the entity does not exist
	SetActive(ctx context.Context, org, canonicalID string, active bool) (found bool, err error)

	// InactiveIDs lists canonical ids with is_active = false
	InactiveIDs(ctx context.Context, org string) ([]string, error)

	// Organizations lists every organization that has entities or staged batches
	Organizations(ctx context.Context) ([]string, error)

	// List pages through entities of one organization, optionally one type
	List(ctx context.Context, org string, t canonical.EntityType, limit, offset int) ([]Entity, error)
}

// Key identifies a provenance row inside one organization
type Key struct {
	CanonicalID string
	Source      canonical.Source
}

// Port is what other services consume from the entity map
type Port interface {
	Resolve(t canonical.EntityType, raw string) (string, bool)
	UpsertMappings(ctx context.Context, org string, ms []Mapping) ([]Collision, error)
	SetActive(ctx context.Context, org, canonicalID string, active bool) error
	InactiveIDs(ctx context.Context, org string) (map[string]struct{}, error)
	Organizations(ctx context.Context) ([]string, error)
	List(ctx context.Context, org string, t canonical.EntityType, limit, offset int) ([]Entity, error)
}
