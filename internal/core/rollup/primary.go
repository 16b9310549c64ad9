package rollup

import "pulseboard/internal/core/canonical"

// primary is the measure each entity type is ranked and trended on
var primary = map[canonical.EntityType]Measure{
	canonical.Page:          Sessions,
	canonical.TrafficSource: Sessions,
	canonical.Product:       Revenue,
	canonical.Subscription:  Revenue,
	canonical.Customer:      Revenue,
	canonical.Listing:       Revenue,
	canonical.Campaign:      Conversions,
	canonical.Email:         Opens,
	canonical.Keyword:       Clicks,
	canonical.Domain:        Clicks,
	canonical.Backlinks:     BacklinkCount,
}

// PrimaryMeasure returns the measure used for rank, best/worst and long trend
// unknown types fall back to sessions
func PrimaryMeasure(t canonical.EntityType) Measure {
	if m, ok := primary[t]; ok {
		return m
	}
	return Sessions
}
