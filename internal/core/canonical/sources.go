package canonical

import "sort"

// Source names an upstream system
type Source string

// Known sources
const (
	GA4            Source = "ga4"
	Stripe         Source = "stripe"
	ActiveCampaign Source = "activecampaign"
	GoogleAds      Source = "googleads"
	DataForSEO     Source = "dataforseo"
	QuickBooks     Source = "quickbooks"
	Marketplace    Source = "marketplace"
)

// owners maps each source to the entity types it writes
// every entity type has exactly one owner so one source's replace-range never touches another's rows
var owners = map[Source][]EntityType{
	GA4:            {Page, TrafficSource},
	Stripe:         {Product, Subscription},
	ActiveCampaign: {Email},
	GoogleAds:      {Campaign},
	DataForSEO:     {Keyword, Domain, Backlinks},
	QuickBooks:     {Customer},
	Marketplace:    {Listing},
}

var ownerOf = func() map[EntityType]Source {
	m := make(map[EntityType]Source, len(known))
	for s, ts := range owners {
		for _, t := range ts {
			if prev, dup := m[t]; dup {
				panic("canonical: entity type " + string(t) + " owned by " + string(prev) + " and " + string(s))
			}
			m[t] = s
		}
	}
	return m
}()

// Valid reports whether s is a known source
func (s Source) Valid() bool {
	_, ok := owners[s]
	return ok
}

// String implements fmt.Stringer
func (s Source) String() string { return string(s) }

// Owns reports whether s writes entity type t
func (s Source) Owns(t EntityType) bool { return ownerOf[t] == s && s != "" }

// EntityTypes returns the entity types s owns
func (s Source) EntityTypes() []EntityType {
	return append([]EntityType(nil), owners[s]...)
}

// OwnerOf returns the source owning entity type t
func OwnerOf(t EntityType) (Source, bool) {
	s, ok := ownerOf[t]
	return s, ok
}

// AllSources returns every known source in lexical order
func AllSources() []Source {
	out := make([]Source, 0, len(owners))
	for s := range owners {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
