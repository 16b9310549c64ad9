package sources

import (
	"strings"

	"pulseboard/internal/core/canonical"
	"pulseboard/internal/core/rollup"
	"pulseboard/internal/services/normalizer/domain"
)

// GA4 report names
const (
	GA4Pages          = "pages"
	GA4TrafficSources = "traffic_sources"
)

// GA4Row is one row of a GA4 Data API runReport, flattened
type GA4Row struct {
	Report         string `json:"report" validate:"required,oneof=pages traffic_sources"`
	Date           string `json:"date" validate:"required"`
	PagePath       string `json:"pagePath,omitempty" validate:"required_if=Report pages"`
	PageTitle      string `json:"pageTitle,omitempty"`
	SessionSource  string `json:"sessionSource,omitempty" validate:"required_if=Report traffic_sources"`
	SessionMedium  string `json:"sessionMedium,omitempty"`
	DeviceCategory string `json:"deviceCategory,omitempty" validate:"omitempty,oneof=desktop mobile tablet smart_tv"`

	Sessions               *float64 `json:"sessions,omitempty" validate:"omitempty,gte=0"`
	TotalUsers             *float64 `json:"totalUsers,omitempty" validate:"omitempty,gte=0"`
	NewUsers               *float64 `json:"newUsers,omitempty" validate:"omitempty,gte=0"`
	ScreenPageViews        *float64 `json:"screenPageViews,omitempty" validate:"omitempty,gte=0"`
	EngagedSessions        *float64 `json:"engagedSessions,omitempty" validate:"omitempty,gte=0"`
	AverageSessionDuration *float64 `json:"averageSessionDuration,omitempty" validate:"omitempty,gte=0"`
	BounceRate             *float64 `json:"bounceRate,omitempty" validate:"omitempty,gte=0,lte=1"`
	Conversions            *float64 `json:"conversions,omitempty" validate:"omitempty,gte=0"`
	TotalRevenue           *float64 `json:"totalRevenue,omitempty"`
}

func shapeGA4(r *GA4Row) Shaped {
	sh := Shaped{Date: r.Date, Dimension: r.DeviceCategory}
	switch r.Report {
	case GA4TrafficSources:
		sh.Type = canonical.TrafficSource
		sh.Name = r.SessionSource
		if r.SessionMedium != "" {
			sh.Name += " / " + r.SessionMedium
		}
		sh.SourceID = r.SessionSource + "/" + r.SessionMedium
		sh.Metadata = map[string]any{"source": r.SessionSource, "medium": r.SessionMedium}
	default:
		sh.Type = canonical.Page
		sh.Name = pageName(r.PagePath)
		sh.Display = firstNonEmpty(r.PageTitle, r.PagePath)
		sh.SourceID = r.PagePath
		sh.Metadata = map[string]any{"path": r.PagePath}
		if r.PageTitle != "" {
			sh.Metadata["title"] = r.PageTitle
		}
	}

	v := &sh.Values
	set(v, rollup.Sessions, r.Sessions)
	set(v, rollup.Users, r.TotalUsers)
	set(v, rollup.NewUsers, r.NewUsers)
	set(v, rollup.Pageviews, r.ScreenPageViews)
	set(v, rollup.EngagedSessions, r.EngagedSessions)
	set(v, rollup.AvgSessionDuration, r.AverageSessionDuration)
	set(v, rollup.BounceRate, r.BounceRate)
	set(v, rollup.Conversions, r.Conversions)
	set(v, rollup.Revenue, r.TotalRevenue)
	return sh
}

// pageName is the resolver input of a page path; the site root has no letters so it is "home"
func pageName(path string) string {
	if strings.Trim(path, "/ ") == "" {
		return "home"
	}
	return path
}

// NewGA4 returns the GA4 adapter
func NewGA4() domain.Adapter {
	return newAdapter(canonical.GA4, shapeGA4, canonical.Page, canonical.TrafficSource)
}
