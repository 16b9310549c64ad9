package rollup

import (
	"sort"
	"time"

	"pulseboard/internal/core/canonical"
	"pulseboard/internal/core/period"
)

// Observation is one upstream row feeding an aggregation
// Sub is the sub-period start: the date for daily input, the month start for monthly input
type Observation struct {
	EntityID   string
	EntityType canonical.EntityType
	Sub        time.Time
	Dimension  string
	Values     Values
}

// Row is one aggregate row for (organization, entity, period)
type Row struct {
	OrganizationID string               `json:"organization_id"`
	EntityID       string               `json:"canonical_entity_id"`
	EntityType     canonical.EntityType `json:"entity_type"`
	PeriodKey      string               `json:"period_key"`
	PeriodStart    time.Time            `json:"period_start"`
	PeriodEnd      time.Time            `json:"period_end"`
	Values         Values               `json:"measures"`

	UnitsWithData  int     `json:"units_with_data"`
	ExpectedUnits  int     `json:"expected_units"`
	Completeness   float64 `json:"data_completeness"`
	CompletePeriod bool    `json:"is_complete_period"`

	Primary *float64 `json:"primary_value"`
	Rank    int      `json:"rank_in_type"`
	Trend   Trend    `json:"trend"`

	LongTrendPct       *float64 `json:"long_trend_change_pct,omitempty"`
	LongTrendDirection string   `json:"long_trend_direction,omitempty"`

	ComputedAt time.Time `json:"computed_at"`
}

// Key identifies the entity a row belongs to
type Key struct {
	EntityType canonical.EntityType
	EntityID   string
}

// Key returns the entity key of r
func (r *Row) Key() Key { return Key{EntityType: r.EntityType, EntityID: r.EntityID} }

type entityObs struct {
	key  Key
	subs map[time.Time][]Values
}

// Aggregate folds observations into one row per entity for period p
// observations outside the period window are ignored; asOf only drives CompletePeriod
func Aggregate(org string, p period.Period, asOf time.Time, obs []Observation) []Row {
	obs = sortedObservations(obs)

	byEntity := map[Key]*entityObs{}
	order := make([]Key, 0)
	for i := range obs {
		o := &obs[i]
		sub := o.Sub.UTC()
		if sub.After(p.End) || (!p.Start.IsZero() && sub.Before(p.Start)) {
			continue
		}
		k := Key{EntityType: o.EntityType, EntityID: o.EntityID}
		eo, ok := byEntity[k]
		if !ok {
			eo = &entityObs{key: k, subs: map[time.Time][]Values{}}
			byEntity[k] = eo
			order = append(order, k)
		}
		eo.subs[sub] = append(eo.subs[sub], o.Values)
	}

	out := make([]Row, 0, len(order))
	for _, k := range order {
		eo := byEntity[k]
		subs := sortedSubs(eo.subs)
		groups := make([][]Values, len(subs))
		for i, s := range subs {
			groups[i] = eo.subs[s]
		}
		first := subs[0]

		r := Row{
			OrganizationID: org,
			EntityID:       k.EntityID,
			EntityType:     k.EntityType,
			PeriodKey:      p.Key,
			PeriodStart:    p.Start,
			PeriodEnd:      p.End,
			Values:         FoldGroups(groups),
			UnitsWithData:  len(subs),
			ExpectedUnits:  period.ExpectedUnits(p, first),
			CompletePeriod: p.Complete(asOf),
		}
		if p.Granularity == period.AllTime {
			r.PeriodStart = period.MonthStart(first)
		}
		if r.ExpectedUnits > 0 {
			r.Completeness = float64(r.UnitsWithData) / float64(r.ExpectedUnits)
		}
		pm := PrimaryMeasure(k.EntityType)
		r.Primary = r.Values[pm]
		if p.Granularity.Snapshot() {
			r.LongTrendPct = longTrend(r.PeriodStart, r.PeriodEnd, p.Granularity, eo.subs, pm)
			r.LongTrendDirection = Direction(r.LongTrendPct)
		}
		out = append(out, r)
	}

	Rank(out)
	sort.Slice(out, func(i, j int) bool {
		if out[i].EntityType != out[j].EntityType {
			return out[i].EntityType < out[j].EntityType
		}
		return out[i].EntityID < out[j].EntityID
	})
	return out
}

// Rank assigns 1-based rank_in_type per (entity type, period key) on the primary value
// higher is better, missing values rank last, ties break on entity id
func Rank(rows []Row) {
	type bucket struct {
		t   canonical.EntityType
		key string
	}
	idx := map[bucket][]int{}
	for i := range rows {
		b := bucket{rows[i].EntityType, rows[i].PeriodKey}
		idx[b] = append(idx[b], i)
	}
	for _, ids := range idx {
		sort.Slice(ids, func(a, b int) bool {
			ra, rb := &rows[ids[a]], &rows[ids[b]]
			pa, pb := ra.Primary, rb.Primary
			switch {
			case pa != nil && pb == nil:
				return true
			case pa == nil && pb != nil:
				return false
			case pa != nil && pb != nil && *pa != *pb:
				return *pa > *pb
			}
			return ra.EntityID < rb.EntityID
		})
		for n, i := range ids {
			rows[i].Rank = n + 1
		}
	}
}

// longTrend compares an early window of months with a late window on the primary measure
// L12M: months 1-6 vs 7-12. AllTime: first 12 vs last 12 with >= 24 months, else halves with >= 2
func longTrend(start, end time.Time, g period.Granularity, subs map[time.Time][]Values, pm Measure) *float64 {
	span := period.MonthsBetween(start, end)
	var k int
	switch {
	case g == period.L12M:
		k = span / 2
	case span >= 24:
		k = 12
	case span >= 2:
		k = span / 2
	default:
		return nil
	}
	if k == 0 {
		return nil
	}

	first := period.MonthStart(start)
	lateFrom := period.MonthStart(end).AddDate(0, -(k - 1), 0)
	earlyTo := first.AddDate(0, k, 0)

	var early, late [][]Values
	for _, s := range sortedSubs(subs) {
		m := period.MonthStart(s)
		if m.Before(earlyTo) && !m.Before(first) {
			early = append(early, subs[s])
		}
		if !m.Before(lateFrom) && !m.After(end) {
			late = append(late, subs[s])
		}
	}
	if len(early) == 0 || len(late) == 0 {
		return nil
	}
	e, l := FoldGroups(early), FoldGroups(late)
	return ChangePct(e[pm], l[pm])
}

func sortedSubs(m map[time.Time][]Values) []time.Time {
	out := make([]time.Time, 0, len(m))
	for t := range m {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// sortedObservations returns a copy ordered by entity, sub-period and dimension
// so floating point folds are reproducible regardless of read order
func sortedObservations(obs []Observation) []Observation {
	out := make([]Observation, len(obs))
	copy(out, obs)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := &out[i], &out[j]
		if a.EntityType != b.EntityType {
			return a.EntityType < b.EntityType
		}
		if a.EntityID != b.EntityID {
			return a.EntityID < b.EntityID
		}
		if !a.Sub.Equal(b.Sub) {
			return a.Sub.Before(b.Sub)
		}
		return a.Dimension < b.Dimension
	})
	return out
}
