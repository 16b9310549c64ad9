// Package service runs a normalizer pass: shape a payload, record entity provenance and stage the batch
package service

import (
	"context"
	"encoding/json"
	"time"

	"pulseboard/internal/core/canonical"
	perr "pulseboard/internal/platform/errors"
	"pulseboard/internal/platform/logger"
	"pulseboard/internal/platform/metrics"
	dsdom "pulseboard/internal/services/dailystore/domain"
	"pulseboard/internal/services/normalizer/domain"
	"pulseboard/internal/services/normalizer/sources"
)

// Svc implements domain.Port
type Svc struct {
	reg      *sources.Registry
	resolver domain.Resolver
	stager   domain.Stager
	log      logger.Logger
	metrics  *metrics.Metrics

	Now func() time.Time
}

var _ domain.Port = (*Svc)(nil)

// New constructs the normalizer service
func New(reg *sources.Registry, resolver domain.Resolver, stager domain.Stager, log logger.Logger, m *metrics.Metrics) *Svc {
	if reg == nil || resolver == nil || stager == nil {
		panic("normalizer.Service requires a registry, a resolver and a stager")
	}
	return &Svc{reg: reg, resolver: resolver, stager: stager, log: log, metrics: m, Now: time.Now}
}

// Sources lists the sources this service can ingest
func (s *Svc) Sources() []canonical.Source { return s.reg.Sources() }

// Ingest shapes payload with the adapter of src, upserts entity mappings and stages the records
// types and rng bound the replace; empty types means the types the payload carries and a zero
// rng covers the dates present in the payload
func (s *Svc) Ingest(ctx context.Context, org string, src canonical.Source, types []canonical.EntityType, rng dsdom.DateRange, payload json.RawMessage) (domain.Report, error) {
	if org == "" {
		return domain.Report{}, perr.InvalidArgf("organization_id is required")
	}
	a, ok := s.reg.Get(src)
	if !ok {
		return domain.Report{}, perr.InvalidArgf("unknown source %q", src)
	}

	for _, t := range types {
		if !src.Owns(t) {
			return domain.Report{}, perr.InvalidArgf("entity type %q is not owned by %s", t, src)
		}
	}

	res, err := a.Normalize(org, payload, s.Now().UTC(), s.resolver.Resolve)
	if err != nil {
		return domain.Report{}, err
	}
	if len(types) == 0 {
		types = res.Types
	}

	rep := domain.Report{Source: src, Dropped: res.Dropped, Mapped: len(res.Mappings)}
	if len(res.Mappings) > 0 {
		collisions, err := s.resolver.UpsertMappings(ctx, org, res.Mappings)
		if err != nil {
			return rep, err
		}
		rep.Collisions = len(collisions)
	}

	b, err := s.stager.Stage(ctx, org, src, types, rng, res.Records)
	if err != nil {
		return rep, err
	}
	rep.BatchID = b.ID
	rep.Rows = b.Rows
	rep.Range = b.Range
	rep.EntityTypes = b.EntityTypes

	s.metrics.Ingested(string(src), b.Rows, res.Dropped)
	logger.C(ctx).Info().
		Str("org", org).
		Str("source", string(src)).
		Str("batch", b.ID.String()).
		Int("rows", b.Rows).
		Strs("types", canonical.Strings(b.EntityTypes)).
		Int("mapped", rep.Mapped).
		Interface("dropped", res.Dropped).
		Msg("normalizer: batch staged")
	return rep, nil
}
