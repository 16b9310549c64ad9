package sources

import (
	"strings"

	"pulseboard/internal/core/canonical"
	"pulseboard/internal/core/rollup"
	"pulseboard/internal/services/normalizer/domain"
)

// GoogleAdsRow is one GAQL campaign row segmented by date and device
type GoogleAdsRow struct {
	Date             string   `json:"segments_date" validate:"required"`
	Device           string   `json:"segments_device,omitempty"`
	CampaignID       string   `json:"campaign_id" validate:"required"`
	CampaignName     string   `json:"campaign_name"`
	Impressions      *float64 `json:"metrics_impressions,omitempty" validate:"omitempty,gte=0"`
	Clicks           *float64 `json:"metrics_clicks,omitempty" validate:"omitempty,gte=0"`
	CostMicros       *int64   `json:"metrics_cost_micros,omitempty" validate:"omitempty,gte=0"`
	Conversions      *float64 `json:"metrics_conversions,omitempty" validate:"omitempty,gte=0"`
	ConversionsValue *float64 `json:"metrics_conversions_value,omitempty"`
}

func shapeGoogleAds(r *GoogleAdsRow) Shaped {
	sh := Shaped{
		Type:      canonical.Campaign,
		Name:      r.CampaignName,
		SourceID:  r.CampaignID,
		Date:      r.Date,
		Dimension: strings.ToLower(r.Device),
		Metadata:  map[string]any{"campaign_id": r.CampaignID},
	}
	v := &sh.Values
	set(v, rollup.Impressions, r.Impressions)
	set(v, rollup.Clicks, r.Clicks)
	set(v, rollup.Cost, micros(r.CostMicros))
	set(v, rollup.Conversions, r.Conversions)
	set(v, rollup.Revenue, r.ConversionsValue)

	// per-day unit economics; the rollup averages these as plain means
	cost, hasCost := v.Get(rollup.Cost)
	if clicks, ok := v.Get(rollup.Clicks); ok && clicks > 0 {
		if imp, ok := v.Get(rollup.Impressions); ok && imp > 0 {
			v.Set(rollup.CTR, clicks/imp)
		}
		if hasCost {
			v.Set(rollup.CPC, cost/clicks)
		}
	}
	if conv, ok := v.Get(rollup.Conversions); ok && conv > 0 && hasCost {
		v.Set(rollup.CPA, cost/conv)
	}
	if rev, ok := v.Get(rollup.Revenue); ok && hasCost && cost > 0 {
		v.Set(rollup.ROAS, rev/cost)
		v.Set(rollup.ROI, (rev-cost)/cost)
	}
	return sh
}

// NewGoogleAds returns the Google Ads adapter
func NewGoogleAds() domain.Adapter {
	return newAdapter(canonical.GoogleAds, shapeGoogleAds, canonical.Campaign)
}
