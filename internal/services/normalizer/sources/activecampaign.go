package sources

import (
	"pulseboard/internal/core/canonical"
	"pulseboard/internal/core/rollup"
	"pulseboard/internal/services/normalizer/domain"
)

// ActiveCampaignRow is one campaign's daily report
type ActiveCampaignRow struct {
	Date         string   `json:"date" validate:"required"`
	CampaignID   string   `json:"campaign_id" validate:"required"`
	CampaignName string   `json:"campaign_name"`
	Sends        *float64 `json:"send_amt,omitempty" validate:"omitempty,gte=0"`
	Opens        *float64 `json:"uniqueopens,omitempty" validate:"omitempty,gte=0"`
	Clicks       *float64 `json:"uniquelinkclicks,omitempty" validate:"omitempty,gte=0"`
	Unsubscribes *float64 `json:"unsubscribes,omitempty" validate:"omitempty,gte=0"`
	Bounces      *float64 `json:"hardbounces,omitempty" validate:"omitempty,gte=0"`
}

func shapeActiveCampaign(r *ActiveCampaignRow) Shaped {
	sh := Shaped{
		Type:     canonical.Email,
		Name:     r.CampaignName,
		SourceID: r.CampaignID,
		Date:     r.Date,
		Metadata: map[string]any{"campaign_id": r.CampaignID},
	}
	v := &sh.Values
	set(v, rollup.Sends, r.Sends)
	set(v, rollup.Opens, r.Opens)
	set(v, rollup.EmailClicks, r.Clicks)
	set(v, rollup.Unsubscribes, r.Unsubscribes)
	if r.Bounces != nil {
		sh.Breakdown = map[string]any{"hard_bounces": *r.Bounces}
	}
	return sh
}

// NewActiveCampaign returns the ActiveCampaign adapter
func NewActiveCampaign() domain.Adapter {
	return newAdapter(canonical.ActiveCampaign, shapeActiveCampaign, canonical.Email)
}
