package service

import (
	"context"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"pulseboard/internal/core/canonical"
	perr "pulseboard/internal/platform/errors"
	"pulseboard/internal/services/entities/domain"
)

// SeedFile is the YAML layout accepted by Seed
//
//	organization_id: acme
//	sources:
//	  ga4:
//	    page:
//	      - name: Pricing & Plans
//	        source_id: /pricing
//	inactive: [page_old_landing]
type SeedFile struct {
	OrganizationID string                             `yaml:"organization_id"`
	Sources        map[string]map[string][]SeedEntity `yaml:"sources"`
	Inactive       []string                           `yaml:"inactive"`
}

// SeedEntity is one source-native entity
type SeedEntity struct {
	Name     string         `yaml:"name"`
	SourceID string         `yaml:"source_id"`
	Metadata map[string]any `yaml:"metadata"`
}

// SeedReport summarizes a Seed call
type SeedReport struct {
	OrganizationID string
	Mapped         int
	Skipped        int
	Collisions     int
	Deactivated    int
}

// ParseSeed decodes a seed file, rejecting unknown keys
func ParseSeed(r io.Reader) (SeedFile, error) {
	var f SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return SeedFile{}, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "parse seed file")
	}
	return f, nil
}

// Mappings resolves every seed entity into a mapping
// entities whose name normalizes to nothing are skipped and counted
func (f SeedFile) Mappings(ids canonical.Resolver) ([]domain.Mapping, int, error) {
	var out []domain.Mapping
	skipped := 0

	srcs := make([]string, 0, len(f.Sources))
	for s := range f.Sources {
		srcs = append(srcs, s)
	}
	sort.Strings(srcs)

	for _, sname := range srcs {
		src := canonical.Source(sname)
		if !src.Valid() {
			return nil, 0, perr.InvalidArgf("seed: unknown source %q", sname)
		}
		byType := f.Sources[sname]
		types := make([]string, 0, len(byType))
		for t := range byType {
			types = append(types, t)
		}
		sort.Strings(types)

		for _, tname := range types {
			et, ok := canonical.ParseEntityType(tname)
			if !ok {
				return nil, 0, perr.InvalidArgf("seed: unknown entity type %q", tname)
			}
			if !src.Owns(et) {
				return nil, 0, perr.InvalidArgf("seed: source %s does not own %s", src, et)
			}
			for _, e := range byType[tname] {
				id, ok := ids.Resolve(et, e.Name)
				if !ok {
					skipped++
					continue
				}
				sid := e.SourceID
				if sid == "" {
					sid = e.Name
				}
				out = append(out, domain.Mapping{
					CanonicalID:    id,
					EntityType:     et,
					DisplayName:    e.Name,
					Source:         src,
					SourceEntityID: sid,
					Metadata:       e.Metadata,
				})
			}
		}
	}
	return out, skipped, nil
}

// Seed loads a seed file into the entity map of org
// org overrides the file's organization_id when set
func (s *Svc) Seed(ctx context.Context, org string, r io.Reader) (SeedReport, error) {
	f, err := ParseSeed(r)
	if err != nil {
		return SeedReport{}, err
	}
	if org == "" {
		org = f.OrganizationID
	}
	if org == "" {
		return SeedReport{}, perr.InvalidArgf("seed: organization_id missing in file and flags")
	}

	ms, skipped, err := f.Mappings(s.IDs)
	if err != nil {
		return SeedReport{}, err
	}
	rep := SeedReport{OrganizationID: org, Skipped: skipped}

	collisions, err := s.UpsertMappings(ctx, org, ms)
	if err != nil {
		return rep, err
	}
	rep.Mapped = len(ms)
	rep.Collisions = len(collisions)

	for _, id := range f.Inactive {
		if err := s.SetActive(ctx, org, id, false); err != nil {
			return rep, fmt.Errorf("deactivate %s: %w", id, err)
		}
		rep.Deactivated++
	}

	s.log.Info().
		Str("org", org).
		Int("mapped", rep.Mapped).
		Int("skipped", rep.Skipped).
		Int("collisions", rep.Collisions).
		Int("deactivated", rep.Deactivated).
		Msg("entities: seed applied")
	return rep, nil
}
