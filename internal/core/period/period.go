// Package period implements the calendar arithmetic behind rollup buckets
// All dates are UTC midnights and ranges are inclusive on both ends
package period

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Granularity names an aggregation level
type Granularity string

// Granularities in dependency order
const (
	Daily   Granularity = "daily"
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
	L12M    Granularity = "l12m"
	AllTime Granularity = "alltime"
)

// Order is the fixed dependency order of granularities
var Order = []Granularity{Daily, Weekly, Monthly, L12M, AllTime}

// Valid reports whether g is known
func (g Granularity) Valid() bool {
	switch g {
	case Daily, Weekly, Monthly, L12M, AllTime:
		return true
	}
	return false
}

// ParseGranularity parses a case-insensitive granularity name
func ParseGranularity(s string) (Granularity, error) {
	g := Granularity(strings.ToLower(strings.TrimSpace(s)))
	if !g.Valid() {
		return "", fmt.Errorf("period: unknown granularity %q", s)
	}
	return g, nil
}

// Unit is the sub-period a granularity is built from
type Unit string

// Sub-period units
const (
	Day   Unit = "day"
	Month Unit = "month"
)

// Unit returns the sub-period unit the granularity folds over
func (g Granularity) Unit() Unit {
	switch g {
	case L12M, AllTime:
		return Month
	default:
		return Day
	}
}

// Snapshot reports whether period keys are as-of dates rather than calendar buckets
func (g Granularity) Snapshot() bool { return g == L12M || g == AllTime }

// Key layouts
const (
	DayLayout   = "2006-01-02"
	MonthLayout = "2006-01"
)

// Period is one aggregation bucket
type Period struct {
	Granularity Granularity `json:"granularity"`
	Key         string      `json:"period_key"`
	Start       time.Time   `json:"period_start"`
	End         time.Time   `json:"period_end"`
}

// Contains reports whether the date d falls in [Start, End]
func (p Period) Contains(d time.Time) bool {
	d = Date(d)
	return !d.Before(p.Start) && !d.After(p.End)
}

// Days returns the number of calendar days covered
func (p Period) Days() int { return DaysBetween(p.Start, p.End) }

// Months returns the number of calendar months covered
func (p Period) Months() int { return MonthsBetween(p.Start, p.End) }

// String implements fmt.Stringer
func (p Period) String() string { return string(p.Granularity) + ":" + p.Key }

// Date truncates t to its UTC calendar date
func Date(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MonthStart returns the first day of t's month
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthEnd returns the last day of t's month
func MonthEnd(t time.Time) time.Time { return MonthStart(t).AddDate(0, 1, -1) }

// DaysInMonth returns the number of days in t's month
func DaysInMonth(t time.Time) int { return MonthEnd(t).Day() }

// DaysBetween counts calendar days in [from, to]; zero when to is before from
func DaysBetween(from, to time.Time) int {
	from, to = Date(from), Date(to)
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from).Hours()/24) + 1
}

// MonthsBetween counts calendar months touched by [from, to]; zero when to is before from
func MonthsBetween(from, to time.Time) int {
	from, to = MonthStart(from), MonthStart(to)
	if to.Before(from) {
		return 0
	}
	return (to.Year()-from.Year())*12 + int(to.Month()-from.Month()) + 1
}

// ForDay returns the daily bucket of d
func ForDay(d time.Time) Period {
	d = Date(d)
	return Period{Granularity: Daily, Key: d.Format(DayLayout), Start: d, End: d}
}

// ForWeek returns the ISO week (Monday to Sunday) containing d
func ForWeek(d time.Time) Period {
	d = Date(d)
	offset := (int(d.Weekday()) + 6) % 7 // Monday = 0
	start := d.AddDate(0, 0, -offset)
	y, w := d.ISOWeek()
	return Period{
		Granularity: Weekly,
		Key:         fmt.Sprintf("%04d-W%02d", y, w),
		Start:       start,
		End:         start.AddDate(0, 0, 6),
	}
}

// ForMonth returns the calendar month containing d
func ForMonth(d time.Time) Period {
	s := MonthStart(d)
	return Period{Granularity: Monthly, Key: s.Format(MonthLayout), Start: s, End: MonthEnd(s)}
}

// ForL12M returns the 12 complete months ending the month before asOf
func ForL12M(asOf time.Time) Period {
	asOf = Date(asOf)
	cur := MonthStart(asOf)
	return Period{
		Granularity: L12M,
		Key:         asOf.Format(DayLayout),
		Start:       cur.AddDate(-1, 0, 0),
		End:         cur.AddDate(0, 0, -1),
	}
}

// ForAllTime returns the all-time snapshot as of asOf
// Start is the zero time: each entity's own span begins at its first observed month
func ForAllTime(asOf time.Time) Period {
	asOf = Date(asOf)
	return Period{
		Granularity: AllTime,
		Key:         asOf.Format(DayLayout),
		End:         MonthStart(asOf).AddDate(0, 0, -1),
	}
}

// For returns the bucket of granularity g anchored at d
// for snapshot granularities d is the as-of date
func For(g Granularity, d time.Time) Period {
	switch g {
	case Daily:
		return ForDay(d)
	case Weekly:
		return ForWeek(d)
	case Monthly:
		return ForMonth(d)
	case L12M:
		return ForL12M(d)
	default:
		return ForAllTime(d)
	}
}

// Parse converts a period key back into its Period
func Parse(g Granularity, key string) (Period, error) {
	key = strings.TrimSpace(key)
	switch g {
	case Daily, L12M, AllTime:
		d, err := time.Parse(DayLayout, key)
		if err != nil {
			return Period{}, fmt.Errorf("period: bad %s key %q: want YYYY-MM-DD", g, key)
		}
		return For(g, d), nil
	case Weekly:
		return parseWeek(key)
	case Monthly:
		d, err := time.Parse(MonthLayout, key)
		if err != nil {
			return Period{}, fmt.Errorf("period: bad monthly key %q: want YYYY-MM", key)
		}
		return ForMonth(d), nil
	}
	return Period{}, fmt.Errorf("period: unknown granularity %q", g)
}

func parseWeek(key string) (Period, error) {
	bad := fmt.Errorf("period: bad weekly key %q: want YYYY-Www", key)
	y, w, ok := strings.Cut(key, "-W")
	if !ok {
		return Period{}, bad
	}
	year, err := strconv.Atoi(y)
	if err != nil || len(y) != 4 {
		return Period{}, bad
	}
	week, err := strconv.Atoi(w)
	if err != nil || week < 1 || week > 53 {
		return Period{}, bad
	}
	// Jan 4th is always in ISO week 1
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	p := ForWeek(jan4.AddDate(0, 0, (week-1)*7))
	if p.Key != key {
		return Period{}, fmt.Errorf("period: week %q does not exist", key)
	}
	return p, nil
}

// Default returns the bucket a run targets when no period key is given
// calendar granularities use the latest complete day (asOf - 1)
// snapshot granularities use asOf itself
func Default(g Granularity, asOf time.Time) Period {
	if g.Snapshot() {
		return For(g, asOf)
	}
	return For(g, Date(asOf).AddDate(0, 0, -1))
}

// Backfill lists the n periods before the default period plus the default period itself,
// oldest first. Snapshot granularities take the 1st of each of the n previous months, so every
// snapshot covers a different window than the as-of snapshot
func Backfill(g Granularity, asOf time.Time, n int) []Period {
	if n < 0 {
		n = 0
	}
	cur := Default(g, asOf)
	out := make([]Period, 0, n+1)
	for i := n; i >= 1; i-- {
		switch g {
		case Daily:
			out = append(out, ForDay(cur.Start.AddDate(0, 0, -i)))
		case Weekly:
			out = append(out, ForWeek(cur.Start.AddDate(0, 0, -7*i)))
		case Monthly:
			out = append(out, ForMonth(cur.Start.AddDate(0, -i, 0)))
		default:
			out = append(out, For(g, MonthStart(asOf).AddDate(0, -i, 0)))
		}
	}
	out = append(out, cur)
	return dedupe(out)
}

// DefaultBackfillDepth is how many prior periods a backfill request covers
func DefaultBackfillDepth(g Granularity) int {
	switch g {
	case Daily:
		return 7
	case Weekly:
		return 8
	default:
		return 4
	}
}

// ExpectedUnits is the number of sub-periods a complete bucket holds
// for AllTime the span starts at the entity's first observed month
func ExpectedUnits(p Period, first time.Time) int {
	switch p.Granularity {
	case Daily:
		return 1
	case Weekly:
		return 7
	case Monthly:
		return p.Days()
	case L12M:
		return 12
	default:
		if first.IsZero() {
			return 0
		}
		return MonthsBetween(first, p.End)
	}
}

// Complete reports whether the bucket ended before asOf
func (p Period) Complete(asOf time.Time) bool { return p.End.Before(Date(asOf)) }

func dedupe(ps []Period) []Period {
	seen := make(map[string]struct{}, len(ps))
	out := ps[:0]
	for _, p := range ps {
		if _, ok := seen[p.Key]; ok {
			continue
		}
		seen[p.Key] = struct{}{}
		out = append(out, p)
	}
	return out
}
