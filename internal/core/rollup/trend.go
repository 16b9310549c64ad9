package rollup

import (
	"sort"
	"time"
)

// TrendMeasures get period over period change columns
var TrendMeasures = [...]Measure{Sessions, Revenue, Conversions, Clicks}

// Change is one period over period delta; ChangePct is a percentage
type Change struct {
	Pct *float64 `json:"change_pct"`
	Abs *float64 `json:"change_abs"`
}

// Trend is the result of the trend pass for one row
type Trend struct {
	Changes [len(TrendMeasures)]Change `json:"changes"`
	IsBest  bool                       `json:"is_best_period"`
	IsWorst bool                       `json:"is_worst_period"`
}

// Change returns the delta for m, false when m is not a trend measure
func (t *Trend) Change(m Measure) (Change, bool) {
	for i, tm := range TrendMeasures {
		if tm == m {
			return t.Changes[i], true
		}
	}
	return Change{}, false
}

// Equal reports whether t and o carry the same flags and deltas
func (t *Trend) Equal(o *Trend) bool {
	if t.IsBest != o.IsBest || t.IsWorst != o.IsWorst {
		return false
	}
	for i := range t.Changes {
		if !samePtr(t.Changes[i].Pct, o.Changes[i].Pct) || !samePtr(t.Changes[i].Abs, o.Changes[i].Abs) {
			return false
		}
	}
	return true
}

func samePtr(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Direction labels on either side of the stable band
const (
	DirUp     = "up"
	DirDown   = "down"
	DirStable = "stable"

	// StableBand is the +/- percentage inside which a trend counts as stable
	StableBand = 10.0
)

// ChangePct is (cur-prev)/prev*100; nil when either side is missing or prev is zero
func ChangePct(prev, cur *float64) *float64 {
	if prev == nil || cur == nil || *prev == 0 {
		return nil
	}
	return F((*cur - *prev) / *prev * 100)
}

// ChangeAbs is cur-prev; nil when either side is missing
func ChangeAbs(prev, cur *float64) *float64 {
	if prev == nil || cur == nil {
		return nil
	}
	return F(*cur - *prev)
}

// Direction maps a change percentage to up/down/stable; empty when undefined
func Direction(pct *float64) string {
	switch {
	case pct == nil:
		return ""
	case *pct > StableBand:
		return DirUp
	case *pct < -StableBand:
		return DirDown
	default:
		return DirStable
	}
}

// ApplyTrends runs the trend pass over rows of one granularity
// rows are grouped per entity and ordered by period end, then key
// the previous row in that order is the prior period even if periods are missing between them
func ApplyTrends(rows []Row) {
	groups := map[Key][]int{}
	for i := range rows {
		k := rows[i].Key()
		groups[k] = append(groups[k], i)
	}
	for _, ids := range groups {
		sort.Slice(ids, func(a, b int) bool {
			ra, rb := &rows[ids[a]], &rows[ids[b]]
			if !ra.PeriodEnd.Equal(rb.PeriodEnd) {
				return ra.PeriodEnd.Before(rb.PeriodEnd)
			}
			return ra.PeriodKey < rb.PeriodKey
		})
		applyEntity(rows, ids)
	}
}

func applyEntity(rows []Row, ids []int) {
	bestAt, worstAt := -1, -1
	var best, worst float64

	for n, i := range ids {
		r := &rows[i]
		r.Trend = Trend{}
		if n > 0 {
			prev := &rows[ids[n-1]]
			for j, m := range TrendMeasures {
				r.Trend.Changes[j] = Change{
					Pct: ChangePct(prev.Values[m], r.Values[m]),
					Abs: ChangeAbs(prev.Values[m], r.Values[m]),
				}
			}
		}

		v := r.Values[PrimaryMeasure(r.EntityType)]
		if v == nil || *v <= 0 {
			continue
		}
		if bestAt < 0 || *v > best {
			bestAt, best = i, *v
		}
		if worstAt < 0 || *v < worst {
			worstAt, worst = i, *v
		}
	}
	if bestAt >= 0 {
		rows[bestAt].Trend.IsBest = true
	}
	if worstAt >= 0 {
		rows[worstAt].Trend.IsWorst = true
	}
}

// Stamp sets ComputedAt on every row
func Stamp(rows []Row, at time.Time) {
	at = at.UTC()
	for i := range rows {
		rows[i].ComputedAt = at
	}
}
