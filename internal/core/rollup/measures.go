// Package rollup holds the aggregation algebra, ranking and trend pass used by every rollup stage
// Everything here is pure: no I/O, no clocks
package rollup

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Measure indexes one metric column
type Measure int

// Measures in column order. Append only: the order is the storage column order
const (
	Sessions Measure = iota
	Users
	NewUsers
	Pageviews
	EngagedSessions
	AvgSessionDuration
	BounceRate
	EngagementRate
	Conversions
	ConversionRate
	Revenue
	Cost
	Profit
	Impressions
	Clicks
	CTR
	CPC
	CPA
	ROAS
	ROI
	Sends
	Opens
	EmailClicks
	Unsubscribes
	OpenRate
	ClickThroughRate
	Orders
	Refunds
	Position
	SearchVolume
	BacklinkCount
	ReferringDomains

	NumMeasures
)

// Rule is how a measure folds across rows and sub-periods
type Rule uint8

// Aggregation rules
const (
	// RuleSum adds values; all-null stays null
	RuleSum Rule = iota
	// RuleRatio recomputes Num/Den from already folded components
	RuleRatio
	// RuleWeighted is a Weight-weighted mean, falling back to a simple mean without weights
	RuleWeighted
	// RuleMean is the simple mean of non-null values
	RuleMean
	// RuleDifference is Num minus Den from already folded components
	RuleDifference
)

// Spec is one row of the aggregation table
type Spec struct {
	Measure Measure
	Name    string
	Rule    Rule
	Num     Measure
	Den     Measure
	Weight  Measure
}

// Specs is the aggregation table, indexed by Measure
var Specs = [NumMeasures]Spec{
	Sessions:           {Name: "sessions", Rule: RuleSum},
	Users:              {Name: "users", Rule: RuleSum},
	NewUsers:           {Name: "new_users", Rule: RuleSum},
	Pageviews:          {Name: "pageviews", Rule: RuleSum},
	EngagedSessions:    {Name: "engaged_sessions", Rule: RuleSum},
	AvgSessionDuration: {Name: "avg_session_duration", Rule: RuleWeighted, Weight: Sessions},
	BounceRate:         {Name: "bounce_rate", Rule: RuleWeighted, Weight: Sessions},
	EngagementRate:     {Name: "engagement_rate", Rule: RuleRatio, Num: EngagedSessions, Den: Sessions},
	Conversions:        {Name: "conversions", Rule: RuleSum},
	ConversionRate:     {Name: "conversion_rate", Rule: RuleRatio, Num: Conversions, Den: Sessions},
	Revenue:            {Name: "revenue", Rule: RuleSum},
	Cost:               {Name: "cost", Rule: RuleSum},
	Profit:             {Name: "profit", Rule: RuleDifference, Num: Revenue, Den: Cost},
	Impressions:        {Name: "impressions", Rule: RuleSum},
	Clicks:             {Name: "clicks", Rule: RuleSum},
	CTR:                {Name: "ctr", Rule: RuleMean},
	CPC:                {Name: "cpc", Rule: RuleMean},
	CPA:                {Name: "cpa", Rule: RuleMean},
	ROAS:               {Name: "roas", Rule: RuleMean},
	ROI:                {Name: "roi", Rule: RuleMean},
	Sends:              {Name: "sends", Rule: RuleSum},
	Opens:              {Name: "opens", Rule: RuleSum},
	EmailClicks:        {Name: "email_clicks", Rule: RuleSum},
	Unsubscribes:       {Name: "unsubscribes", Rule: RuleSum},
	OpenRate:           {Name: "open_rate", Rule: RuleRatio, Num: Opens, Den: Sends},
	ClickThroughRate:   {Name: "click_through_rate", Rule: RuleRatio, Num: EmailClicks, Den: Sends},
	Orders:             {Name: "orders", Rule: RuleSum},
	Refunds:            {Name: "refunds", Rule: RuleSum},
	Position:           {Name: "position", Rule: RuleMean},
	SearchVolume:       {Name: "search_volume", Rule: RuleMean},
	BacklinkCount:      {Name: "backlinks", Rule: RuleMean},
	ReferringDomains:   {Name: "referring_domains", Rule: RuleMean},
}

var byName = func() map[string]Measure {
	m := make(map[string]Measure, NumMeasures)
	for i := range Specs {
		Specs[i].Measure = Measure(i)
		m[Specs[i].Name] = Measure(i)
	}
	return m
}()

// Name returns the column name of m
func (m Measure) Name() string {
	if m < 0 || m >= NumMeasures {
		return fmt.Sprintf("measure(%d)", int(m))
	}
	return Specs[m].Name
}

// String implements fmt.Stringer
func (m Measure) String() string { return m.Name() }

// MeasureByName looks up a measure by column name
func MeasureByName(name string) (Measure, bool) {
	m, ok := byName[name]
	return m, ok
}

// Columns returns every measure column name in storage order
func Columns() []string {
	out := make([]string, NumMeasures)
	for i := range Specs {
		out[i] = Specs[i].Name
	}
	return out
}

// Values holds one nullable value per measure
// a nil entry means not measured and never takes part in averages
type Values [NumMeasures]*float64

// F returns a pointer to v (handy for literals and tests)
func F(v float64) *float64 { return &v }

// Get returns the value of m and whether it is set
func (v *Values) Get(m Measure) (float64, bool) {
	if p := v[m]; p != nil {
		return *p, true
	}
	return 0, false
}

// Set stores a copy of x for m
func (v *Values) Set(m Measure, x float64) { v[m] = F(x) }

// SetPtr stores a copy of p (nil clears)
func (v *Values) SetPtr(m Measure, p *float64) {
	if p == nil {
		v[m] = nil
		return
	}
	v[m] = F(*p)
}

// Empty reports whether no measure is set
func (v *Values) Empty() bool {
	for _, p := range v {
		if p != nil {
			return false
		}
	}
	return true
}

// Finite reports the first measure holding NaN or Inf
func (v *Values) Finite() (Measure, bool) {
	for i, p := range v {
		if p != nil && (math.IsNaN(*p) || math.IsInf(*p, 0)) {
			return Measure(i), false
		}
	}
	return 0, true
}

// Clone deep-copies the value pointers
func (v Values) Clone() Values {
	var out Values
	for i, p := range v {
		if p != nil {
			out[i] = F(*p)
		}
	}
	return out
}

// Equal compares two value sets, treating nil as distinct from zero
func (v *Values) Equal(o *Values) bool {
	for i := range v {
		a, b := v[i], o[i]
		if (a == nil) != (b == nil) {
			return false
		}
		if a != nil && *a != *b {
			return false
		}
	}
	return true
}

// MarshalJSON encodes set measures as an object keyed by column name
func (v Values) MarshalJSON() ([]byte, error) {
	m := make(map[string]float64, NumMeasures)
	for i, p := range v {
		if p != nil {
			m[Specs[i].Name] = *p
		}
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes an object keyed by column name; unknown keys are an error
func (v *Values) UnmarshalJSON(b []byte) error {
	var m map[string]*float64
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*v = Values{}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ms, ok := byName[k]
		if !ok {
			return fmt.Errorf("rollup: unknown measure %q", k)
		}
		v.SetPtr(ms, m[k])
	}
	return nil
}
