// Package repo provides Postgres bindings for the entity map
package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"pulseboard/internal/core/canonical"
	"pulseboard/internal/modkit/repokit"
	"pulseboard/internal/platform/store"
	"pulseboard/internal/services/entities/domain"
)

type (
	// PG is a Postgres binder for domain.Repo
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

var _ domain.Repo = (*queries)(nil)

// NewPG returns a Postgres binder for Repo
func NewPG() repokit.Binder[domain.Repo] { return PG{} }

// Bind implements repokit.Binder
func (PG) Bind(q repokit.Queryer) domain.Repo { return &queries{q: q} }

func (r *queries) PreviousSourceIDs(ctx context.Context, org string, ids, sources []string) (map[domain.Key]string, error) {
	out := map[domain.Key]string{}
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.q.Query(ctx, `
		SELECT s.canonical_entity_id, s.source, s.source_entity_id
		FROM entity_sources s
		JOIN unnest($2::text[], $3::text[]) AS k(canonical_entity_id, source)
		  ON k.canonical_entity_id = s.canonical_entity_id AND k.source = s.source
		WHERE s.organization_id = $1
	`, org, ids, sources)
	if err != nil {
		return nil, fmt.Errorf("previous source ids: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, src, prev string
		if err := rows.Scan(&id, &src, &prev); err != nil {
			return nil, err
		}
		out[domain.Key{CanonicalID: id, Source: canonical.Source(src)}] = prev
	}
	return out, rows.Err()
}

// UpsertMappings writes entities then provenance in two set-based statements
// callers pass at most one mapping per (canonical id, source)
func (r *queries) UpsertMappings(ctx context.Context, org string, ms []domain.Mapping) error {
	if len(ms) == 0 {
		return nil
	}
	n := len(ms)
	ids := make([]string, n)
	types := make([]string, n)
	names := make([]string, n)
	sources := make([]string, n)
	srcIDs := make([]string, n)
	metas := make([]string, n)
	for i, m := range ms {
		ids[i] = m.CanonicalID
		types[i] = string(m.EntityType)
		names[i] = m.DisplayName
		sources[i] = string(m.Source)
		srcIDs[i] = m.SourceEntityID
		meta := m.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		b, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("metadata for %s: %w", m.CanonicalID, err)
		}
		metas[i] = string(b)
	}

	if _, err := r.q.Exec(ctx, `
		INSERT INTO canonical_entities (organization_id, canonical_entity_id, entity_type, display_name)
		SELECT DISTINCT ON (t.id) $1, t.id, t.entity_type, t.name
		FROM unnest($2::text[], $3::text[], $4::text[]) AS t(id, entity_type, name)
		ORDER BY t.id
		ON CONFLICT (organization_id, canonical_entity_id) DO UPDATE SET updated_at = now()
	`, org, ids, types, names); err != nil {
		return fmt.Errorf("upsert canonical_entities: %w", err)
	}

	if _, err := r.q.Exec(ctx, `
		INSERT INTO entity_sources (organization_id, canonical_entity_id, source, source_entity_id, metadata)
		SELECT $1, t.id, t.source, t.source_entity_id, t.metadata::jsonb
		FROM unnest($2::text[], $3::text[], $4::text[], $5::text[]) AS t(id, source, source_entity_id, metadata)
		ON CONFLICT (organization_id, canonical_entity_id, source) DO UPDATE
		SET source_entity_id = EXCLUDED.source_entity_id,
		    metadata         = entity_sources.metadata || EXCLUDED.metadata,
		    last_seen_at     = now()
	`, org, ids, sources, srcIDs, metas); err != nil {
		return fmt.Errorf("upsert entity_sources: %w", err)
	}
	return nil
}

func (r *queries) SetActive(ctx context.Context, org, canonicalID string, active bool) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE canonical_entities
		SET is_active = $3, updated_at = now()
		WHERE organization_id = $1 AND canonical_entity_id = $2
	`, org, canonicalID, active)
	if err != nil {
		return false, fmt.Errorf("set active: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *queries) InactiveIDs(ctx context.Context, org string) ([]string, error) {
	return store.Many(ctx, r.q, scanString, `
		SELECT canonical_entity_id FROM canonical_entities
		WHERE organization_id = $1 AND NOT is_active
		ORDER BY canonical_entity_id
	`, org)
}

func (r *queries) Organizations(ctx context.Context) ([]string, error) {
	return store.Many(ctx, r.q, scanString, `
		SELECT organization_id FROM canonical_entities
		UNION
		SELECT organization_id FROM sync_batches
		ORDER BY 1
	`)
}

func (r *queries) List(ctx context.Context, org string, t canonical.EntityType, limit, offset int) ([]domain.Entity, error) {
	return store.Many(ctx, r.q, scanEntity, `
		SELECT organization_id, canonical_entity_id, entity_type, display_name, is_active, created_at, updated_at
		FROM canonical_entities
		WHERE organization_id = $1 AND ($2 = '' OR entity_type = $2)
		ORDER BY entity_type, canonical_entity_id
		LIMIT $3 OFFSET $4
	`, org, string(t), limit, offset)
}

func scanString(r store.Row) (string, error) {
	var s string
	err := r.Scan(&s)
	return s, err
}

func scanEntity(r store.Row) (domain.Entity, error) {
	var e domain.Entity
	var et string
	err := r.Scan(&e.OrganizationID, &e.CanonicalID, &et, &e.DisplayName, &e.IsActive, &e.CreatedAt, &e.UpdatedAt)
	e.EntityType = canonical.EntityType(et)
	return e, err
}
