package canonical

import (
	"sort"
	"strings"
)

// EntityType classifies a canonical entity
type EntityType string

// Known entity types
const (
	Page          EntityType = "page"
	Campaign      EntityType = "campaign"
	Keyword       EntityType = "keyword"
	Product       EntityType = "product"
	Email         EntityType = "email"
	TrafficSource EntityType = "traffic_source"
	Domain        EntityType = "domain"
	Backlinks     EntityType = "backlinks"
	Subscription  EntityType = "subscription"
	Customer      EntityType = "customer"
	Listing       EntityType = "listing"
)

var known = map[EntityType]struct{}{
	Page: {}, Campaign: {}, Keyword: {}, Product: {}, Email: {}, TrafficSource: {},
	Domain: {}, Backlinks: {}, Subscription: {}, Customer: {}, Listing: {},
}

// Valid reports whether t is a known entity type
func (t EntityType) Valid() bool {
	_, ok := known[t]
	return ok
}

// String implements fmt.Stringer
func (t EntityType) String() string { return string(t) }

// ParseEntityType parses a case-insensitive entity type name
func ParseEntityType(s string) (EntityType, bool) {
	t := EntityType(strings.ToLower(strings.TrimSpace(s)))
	return t, t.Valid()
}

// AllEntityTypes returns every known type in lexical order
func AllEntityTypes() []EntityType {
	out := make([]EntityType, 0, len(known))
	for t := range known {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings converts a list of types to plain strings (handy for SQL array args)
func Strings(ts []EntityType) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = string(t)
	}
	return out
}
