// Package sources holds one payload shape and shaper per upstream system
package sources

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"time"

	"pulseboard/internal/core/canonical"
	"pulseboard/internal/core/period"
	"pulseboard/internal/core/rollup"
	perr "pulseboard/internal/platform/errors"
	"pulseboard/internal/platform/validate"
	dsdom "pulseboard/internal/services/dailystore/domain"
	entdom "pulseboard/internal/services/entities/domain"
	"pulseboard/internal/services/normalizer/domain"
)

// Shaped is one payload row after source-specific shaping, before id resolution
type Shaped struct {
	Type      canonical.EntityType
	Name      string
	Display   string
	SourceID  string
	Date      string
	Dimension string
	Values    rollup.Values
	Breakdown map[string]any
	Metadata  map[string]any
}

// adapter is the generic Normalize loop over typed rows T
type adapter[T any] struct {
	source canonical.Source
	types  []canonical.EntityType
	shape  func(*T) Shaped
}

func newAdapter[T any](src canonical.Source, shape func(*T) Shaped, types ...canonical.EntityType) domain.Adapter {
	return &adapter[T]{source: src, types: types, shape: shape}
}

func (a *adapter[T]) Source() canonical.Source            { return a.source }
func (a *adapter[T]) EntityTypes() []canonical.EntityType { return a.types }

// Normalize decodes payload as a JSON array of T, validates each row and shapes it
// rows whose name resolves to nothing are dropped and counted; rows sharing a natural key
// are folded into one record with the aggregation table
func (a *adapter[T]) Normalize(org string, payload json.RawMessage, now time.Time, resolve domain.ResolveFunc) (domain.Result, error) {
	res := domain.Result{Dropped: map[string]int{}}
	if resolve == nil {
		resolve = canonical.Resolve
	}

	var rows []T
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rows); err != nil {
		return res, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "%s payload", a.source)
	}

	idx := map[dsdom.NaturalKey]int{}
	groups := [][]rollup.Values{}
	seen := map[string]struct{}{}

	for i := range rows {
		if err := validate.Struct(&rows[i]); err != nil {
			return res, perr.InvalidArgf("%s row %d: %s", a.source, i, validate.Message(err))
		}
		sh := a.shape(&rows[i])
		if !a.source.Owns(sh.Type) {
			return res, perr.InvalidArgf("%s row %d: %s is not owned by this source", a.source, i, sh.Type)
		}
		if !slices.Contains(res.Types, sh.Type) {
			res.Types = append(res.Types, sh.Type)
		}
		date, err := ParseDate(sh.Date)
		if err != nil {
			return res, perr.InvalidArgf("%s row %d: %v", a.source, i, err)
		}
		id, ok := resolve(sh.Type, sh.Name)
		if !ok {
			res.Dropped[domain.DropEmptyName]++
			continue
		}

		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			sid := sh.SourceID
			if sid == "" {
				sid = sh.Name
			}
			res.Mappings = append(res.Mappings, entdom.Mapping{
				CanonicalID:    id,
				EntityType:     sh.Type,
				DisplayName:    firstNonEmpty(sh.Display, sh.Name),
				Source:         a.source,
				SourceEntityID: sid,
				Metadata:       sh.Metadata,
			})
		}

		rec := dsdom.Record{
			OrganizationID:  org,
			EntityID:        id,
			EntityType:      sh.Type,
			Date:            date,
			Dimension:       sh.Dimension,
			Source:          a.source,
			SourceBreakdown: breakdown(sh.Breakdown),
			IngestedAt:      now,
		}
		k := rec.Key()
		if j, dup := idx[k]; dup {
			groups[j] = append(groups[j], sh.Values)
			res.Dropped[domain.DropMerged]++
			continue
		}
		idx[k] = len(res.Records)
		res.Records = append(res.Records, rec)
		groups = append(groups, []rollup.Values{sh.Values})
	}

	// derived ratios and profit follow the same algebra as every rollup
	for j := range res.Records {
		res.Records[j].Values = rollup.Fold(groups[j])
	}
	sort.SliceStable(res.Records, func(i, j int) bool {
		a, b := res.Records[i], res.Records[j]
		if a.EntityID != b.EntityID {
			return a.EntityID < b.EntityID
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.Dimension < b.Dimension
	})
	slices.Sort(res.Types)
	for k, n := range res.Dropped {
		if n == 0 {
			delete(res.Dropped, k)
		}
	}
	return res, nil
}

// ParseDate accepts YYYY-MM-DD and the compact YYYYMMDD some exports use
func ParseDate(s string) (time.Time, error) {
	for _, layout := range []string{period.DayLayout, "20060102"} {
		if t, err := time.Parse(layout, s); err == nil {
			return period.Date(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("bad date %q", s)
}

func breakdown(m map[string]any) string {
	if len(m) == 0 {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// set copies p into v[m]; nil leaves the measure null
func set(v *rollup.Values, m rollup.Measure, p *float64) {
	if p != nil {
		v.Set(m, *p)
	}
}

// micros converts an ad platform micro amount
func micros(p *int64) *float64 {
	if p == nil {
		return nil
	}
	return rollup.F(float64(*p) / 1e6)
}

// cents converts a minor currency unit amount
func cents(p *int64) *float64 {
	if p == nil {
		return nil
	}
	return rollup.F(float64(*p) / 100)
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}
