package sources

import (
	"pulseboard/internal/core/canonical"
	"pulseboard/internal/core/rollup"
	"pulseboard/internal/services/normalizer/domain"
)

// MarketplaceRow is one listing's daily sales from the marketplace replica export
type MarketplaceRow struct {
	Date      string   `json:"date" validate:"required"`
	ListingID string   `json:"listing_id" validate:"required"`
	Title     string   `json:"title"`
	Channel   string   `json:"channel,omitempty"`
	Views     *float64 `json:"views,omitempty" validate:"omitempty,gte=0"`
	Orders    *float64 `json:"orders,omitempty" validate:"omitempty,gte=0"`
	GrossCts  *int64   `json:"gross_cents,omitempty"`
	FeesCts   *int64   `json:"fees_cents,omitempty"`
	Refunds   *float64 `json:"refunds,omitempty" validate:"omitempty,gte=0"`
}

func shapeMarketplace(r *MarketplaceRow) Shaped {
	sh := Shaped{
		Type:      canonical.Listing,
		Name:      r.Title,
		SourceID:  r.ListingID,
		Date:      r.Date,
		Dimension: r.Channel,
		Metadata:  map[string]any{"listing_id": r.ListingID},
	}
	v := &sh.Values
	set(v, rollup.Pageviews, r.Views)
	set(v, rollup.Orders, r.Orders)
	set(v, rollup.Revenue, cents(r.GrossCts))
	set(v, rollup.Cost, cents(r.FeesCts))
	set(v, rollup.Refunds, r.Refunds)
	return sh
}

// NewMarketplace returns the marketplace adapter
func NewMarketplace() domain.Adapter {
	return newAdapter(canonical.Marketplace, shapeMarketplace, canonical.Listing)
}
