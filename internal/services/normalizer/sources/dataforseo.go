package sources

import (
	"pulseboard/internal/core/canonical"
	"pulseboard/internal/core/rollup"
	"pulseboard/internal/services/normalizer/domain"
)

// DataForSEORow is one tracked item from a SERP, domain or backlinks summary task
type DataForSEORow struct {
	Kind             string   `json:"kind" validate:"required,oneof=keyword domain backlinks"`
	Date             string   `json:"date" validate:"required"`
	Target           string   `json:"target" validate:"required"`
	Keyword          string   `json:"keyword,omitempty" validate:"required_if=Kind keyword"`
	SearchEngine     string   `json:"se,omitempty"`
	Position         *float64 `json:"rank_absolute,omitempty" validate:"omitempty,gte=1"`
	SearchVolume     *float64 `json:"search_volume,omitempty" validate:"omitempty,gte=0"`
	Impressions      *float64 `json:"impressions_etv,omitempty" validate:"omitempty,gte=0"`
	Clicks           *float64 `json:"clicks_etv,omitempty" validate:"omitempty,gte=0"`
	Backlinks        *float64 `json:"backlinks,omitempty" validate:"omitempty,gte=0"`
	ReferringDomains *float64 `json:"referring_domains,omitempty" validate:"omitempty,gte=0"`
}

func shapeDataForSEO(r *DataForSEORow) Shaped {
	sh := Shaped{Date: r.Date, Dimension: r.SearchEngine}
	switch r.Kind {
	case "keyword":
		sh.Type = canonical.Keyword
		sh.Name = r.Keyword
		sh.SourceID = r.Target + "|" + r.Keyword
		sh.Metadata = map[string]any{"target": r.Target}
	case "backlinks":
		sh.Type = canonical.Backlinks
		sh.Name = r.Target
		sh.SourceID = r.Target
	default:
		sh.Type = canonical.Domain
		sh.Name = r.Target
		sh.SourceID = r.Target
	}

	v := &sh.Values
	set(v, rollup.Position, r.Position)
	set(v, rollup.SearchVolume, r.SearchVolume)
	set(v, rollup.Impressions, r.Impressions)
	set(v, rollup.Clicks, r.Clicks)
	set(v, rollup.BacklinkCount, r.Backlinks)
	set(v, rollup.ReferringDomains, r.ReferringDomains)
	return sh
}

// NewDataForSEO returns the DataForSEO adapter
func NewDataForSEO() domain.Adapter {
	return newAdapter(canonical.DataForSEO, shapeDataForSEO, canonical.Keyword, canonical.Domain, canonical.Backlinks)
}
