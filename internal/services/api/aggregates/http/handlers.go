// Package http provides read endpoints over daily facts and rolled up periods
package http

import (
	stdhttp "net/http"
	"strconv"
	"time"

	"pulseboard/internal/core/canonical"
	"pulseboard/internal/core/period"
	"pulseboard/internal/modkit/httpkit"
	perr "pulseboard/internal/platform/errors"
	"pulseboard/internal/services/api/aggregates/domain"
	dsdom "pulseboard/internal/services/dailystore/domain"
)

// Register mounts aggregates endpoints on the given router
func Register(r httpkit.Router, p domain.Ports) {
	h := &handlers{p: p}

	// daily facts
	httpkit.Get(r, "/daily", h.daily)

	// weekly, monthly, l12m, alltime
	httpkit.Get(r, "/{granularity}", h.period)
}

type handlers struct{ p domain.Ports }

// scoped returns the organization_id query parameter once the caller may read it
func scoped(r *stdhttp.Request) (string, error) {
	org := r.URL.Query().Get("organization_id")
	return org, httpkit.ScopeOrg(r, org)
}

func entityType(r *stdhttp.Request) (canonical.EntityType, error) {
	s := r.URL.Query().Get("entity_type")
	if s == "" {
		return "", nil
	}
	t, ok := canonical.ParseEntityType(s)
	if !ok {
		return "", perr.InvalidArgf("unknown entity type %q", s)
	}
	return t, nil
}

// swagger:route GET /aggregates/{granularity} Aggregates aggregatesPeriod
// @Summary Rolled up rows of one period, ranked within entity type
// @Tags Aggregates
// @Produce json
// @Param granularity path string true "weekly, monthly, l12m or alltime"
// @Param organization_id query string true "organization"
// @Param period_key query string false "period key, latest when empty"
// @Param entity_type query string false "entity type filter"
// @Success 200 {array} rollup.Row "ok"
// @Failure 422 {object} httpkit.Envelope "bad request"
// @Router /aggregates/{granularity} [get]
func (h *handlers) period(r *stdhttp.Request) (any, error) {
	g, err := period.ParseGranularity(httpkit.Param(r, "granularity"))
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "granularity")
	}
	org, err := scoped(r)
	if err != nil {
		return nil, err
	}
	t, err := entityType(r)
	if err != nil {
		return nil, err
	}
	return h.p.Engine.Aggregates(r.Context(), g, org, r.URL.Query().Get("period_key"), t)
}

// swagger:route GET /aggregates/daily Aggregates aggregatesDaily
// @Summary Daily facts of one organization in a date range
// @Tags Aggregates
// @Produce json
// @Param organization_id query string true "organization"
// @Param from query string true "first day, YYYY-MM-DD"
// @Param to query string true "last day, YYYY-MM-DD"
// @Param entity_type query string false "entity type filter"
// @Param active_only query bool false "hide disabled entities"
// @Success 200 {array} dsdom.Record "ok"
// @Router /aggregates/daily [get]
func (h *handlers) daily(r *stdhttp.Request) (any, error) {
	if h.p.Daily == nil {
		return nil, perr.Unavailablef("daily store not configured")
	}
	org, err := scoped(r)
	if err != nil {
		return nil, err
	}
	q := r.URL.Query()
	from, err := time.Parse(period.DayLayout, q.Get("from"))
	if err != nil {
		return nil, perr.InvalidArgf("from must be YYYY-MM-DD")
	}
	to, err := time.Parse(period.DayLayout, q.Get("to"))
	if err != nil {
		return nil, perr.InvalidArgf("to must be YYYY-MM-DD")
	}
	rng := dsdom.NewDateRange(from, to)
	if err := rng.Validate(); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "range")
	}
	if period.DaysBetween(rng.From, rng.To) > domain.MaxDailySpanDays {
		return nil, perr.InvalidArgf("range spans more than %d days", domain.MaxDailySpanDays)
	}

	t, err := entityType(r)
	if err != nil {
		return nil, err
	}
	var types []canonical.EntityType
	if t != "" {
		types = []canonical.EntityType{t}
	}
	activeOnly := false
	if s := q.Get("active_only"); s != "" {
		if activeOnly, err = strconv.ParseBool(s); err != nil {
			return nil, perr.InvalidArgf("active_only must be a boolean")
		}
	}
	return h.p.Daily.Scan(r.Context(), org, types, rng, activeOnly)
}
