// Package service implements the entity map: canonical id resolution plus provenance upserts
package service

import (
	"context"
	"sort"

	"pulseboard/internal/core/canonical"
	"pulseboard/internal/modkit/repokit"
	perr "pulseboard/internal/platform/errors"
	"pulseboard/internal/platform/logger"
	"pulseboard/internal/platform/metrics"
	"pulseboard/internal/services/entities/domain"
)

// Svc implements domain.Port
type Svc struct {
	db      repokit.TxRunner
	binder  repokit.Binder[domain.Repo]
	log     logger.Logger
	metrics *metrics.Metrics

	// IDs derives canonical ids; the zero value is the plain rule
	IDs canonical.Resolver
}

var _ domain.Port = (*Svc)(nil)

// New constructs the entity service
func New(db repokit.TxRunner, binder repokit.Binder[domain.Repo], log logger.Logger, m *metrics.Metrics) *Svc {
	if db == nil {
		panic("entities.Service requires a non-nil TxRunner")
	}
	if binder == nil {
		panic("entities.Service requires a non-nil Repo binder")
	}
	return &Svc{db: db, binder: binder, log: log, metrics: m}
}

// Resolve derives the canonical id; ok is false when raw normalizes to nothing
func (s *Svc) Resolve(t canonical.EntityType, raw string) (string, bool) {
	return s.IDs.Resolve(t, raw)
}

// UpsertMappings records provenance for a batch of mappings in one transaction
// Collisions (same canonical id and source, different source id) are logged and merged:
// the stored source id moves to the latest one
func (s *Svc) UpsertMappings(ctx context.Context, org string, ms []domain.Mapping) ([]domain.Collision, error) {
	if org == "" {
		return nil, perr.InvalidArgf("organization_id is required")
	}
	for _, m := range ms {
		if !m.EntityType.Valid() {
			return nil, perr.InvalidArgf("unknown entity type %q", m.EntityType)
		}
		if m.CanonicalID == "" || m.Source == "" {
			return nil, perr.InvalidArgf("mapping needs canonical id and source")
		}
	}

	batch, collisions := dedupe(ms)
	if len(batch) == 0 {
		return nil, nil
	}

	err := repokit.InOrg(ctx, s.db, s.binder, org, func(ctx context.Context, r domain.Repo) error {
		ids := make([]string, len(batch))
		srcs := make([]string, len(batch))
		for i, m := range batch {
			ids[i], srcs[i] = m.CanonicalID, string(m.Source)
		}
		prev, err := r.PreviousSourceIDs(ctx, org, ids, srcs)
		if err != nil {
			return err
		}
		for _, m := range batch {
			old, ok := prev[domain.Key{CanonicalID: m.CanonicalID, Source: m.Source}]
			if ok && old != m.SourceEntityID {
				collisions = append(collisions, domain.Collision{
					CanonicalID:      m.CanonicalID,
					Source:           m.Source,
					PreviousSourceID: old,
					SourceEntityID:   m.SourceEntityID,
				})
			}
		}
		return r.UpsertMappings(ctx, org, batch)
	})
	if err != nil {
		return nil, perr.FromPG(err, "upsert entity mappings")
	}

	for _, c := range collisions {
		s.log.Warn().
			Str("org", org).
			Str("canonical_id", c.CanonicalID).
			Str("source", string(c.Source)).
			Str("previous_source_id", c.PreviousSourceID).
			Str("source_id", c.SourceEntityID).
			Msg("entities: canonical id collision, provenance moved to latest source id")
	}
	counts := map[canonical.EntityType]int{}
	for _, m := range batch {
		counts[m.EntityType]++
	}
	for t, n := range counts {
		s.metrics.Resolved(string(t), n)
	}
	s.metrics.Collided(len(collisions))

	return collisions, nil
}

// dedupe keeps the last mapping per (canonical id, source) and reports in-batch collisions
// output order follows the first appearance of each key
func dedupe(ms []domain.Mapping) ([]domain.Mapping, []domain.Collision) {
	idx := make(map[domain.Key]int, len(ms))
	out := make([]domain.Mapping, 0, len(ms))
	var collisions []domain.Collision
	for _, m := range ms {
		k := domain.Key{CanonicalID: m.CanonicalID, Source: m.Source}
		i, seen := idx[k]
		if !seen {
			idx[k] = len(out)
			out = append(out, m)
			continue
		}
		if out[i].SourceEntityID != m.SourceEntityID {
			collisions = append(collisions, domain.Collision{
				CanonicalID:      m.CanonicalID,
				Source:           m.Source,
				PreviousSourceID: out[i].SourceEntityID,
				SourceEntityID:   m.SourceEntityID,
			})
		}
		name := out[i].DisplayName
		out[i] = m
		if name != "" {
			out[i].DisplayName = name
		}
	}
	return out, collisions
}

// SetActive soft-enables or disables an entity
func (s *Svc) SetActive(ctx context.Context, org, canonicalID string, active bool) error {
	if org == "" || canonicalID == "" {
		return perr.InvalidArgf("organization_id and canonical_entity_id are required")
	}
	var found bool
	err := repokit.InOrg(ctx, s.db, s.binder, org, func(ctx context.Context, r domain.Repo) error {
		var err error
		found, err = r.SetActive(ctx, org, canonicalID, active)
		return err
	})
	if err != nil {
		return perr.FromPG(err, "set entity active")
	}
	if !found {
		return perr.NotFoundf("entity %s not found in %s", canonicalID, org)
	}
	logger.C(ctx).Info().Str("org", org).Str("canonical_id", canonicalID).Bool("active", active).Msg("entities: is_active changed")
	return nil
}

// InactiveIDs returns the set of disabled canonical ids for org
func (s *Svc) InactiveIDs(ctx context.Context, org string) (map[string]struct{}, error) {
	ids, err := s.binder.Bind(s.db).InactiveIDs(ctx, org)
	if err != nil {
		return nil, perr.FromPG(err, "list inactive entities")
	}
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

// Organizations lists known organizations in lexical order
func (s *Svc) Organizations(ctx context.Context) ([]string, error) {
	orgs, err := s.binder.Bind(s.db).Organizations(ctx)
	if err != nil {
		return nil, perr.FromPG(err, "list organizations")
	}
	sort.Strings(orgs)
	return orgs, nil
}

// List pages through entities; limit is clamped to [1, 1000]
func (s *Svc) List(ctx context.Context, org string, t canonical.EntityType, limit, offset int) ([]domain.Entity, error) {
	if org == "" {
		return nil, perr.InvalidArgf("organization_id is required")
	}
	if t != "" && !t.Valid() {
		return nil, perr.InvalidArgf("unknown entity type %q", t)
	}
	limit = max(1, min(limit, 1000))
	offset = max(0, offset)
	out, err := s.binder.Bind(s.db).List(ctx, org, t, limit, offset)
	if err != nil {
		return nil, perr.FromPG(err, "list entities")
	}
	return out, nil
}
