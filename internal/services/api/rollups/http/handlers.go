// Package http provides http transport for rollup triggers and the run ledger
package http

import (
	"context"
	stdhttp "net/http"
	"strconv"

	"pulseboard/internal/core/period"
	"pulseboard/internal/modkit/httpkit"
	"pulseboard/internal/modkit/scope"
	perr "pulseboard/internal/platform/errors"
	"pulseboard/internal/services/api/rollups/domain"
)

// Register mounts rollups endpoints on the given router
func Register(r httpkit.Router, p domain.Ports) {
	h := &handlers{p: p}

	// one stage for one organization
	httpkit.PostJSON[domain.StageInput](r, "/stages/{stage}", h.stage)

	// every stage for every (or the given) organization
	httpkit.PostJSON[domain.RunInput](r, "/run", h.run)

	// ledger rows
	httpkit.Get(r, "/runs", h.runs)
}

type handlers struct{ p domain.Ports }

// callerCtx stamps the authenticated caller, when any, onto the request context
func callerCtx(r *stdhttp.Request) context.Context {
	uid, _ := httpkit.User(r)
	return scope.With(r.Context(), map[string]string{scope.Caller: uid})
}

// swagger:route POST /rollups/stages/{stage} Rollups rollupsStage
// @Summary Run one rollup stage for one organization
// @Tags Rollups
// @Accept json
// @Produce json
// @Param stage path string true "daily, weekly, monthly, l12m or alltime"
// @Param payload body domain.StageInput true "Stage request"
// @Success 200 {object} rdom.StageResult "ok"
// @Failure 400 {object} httpkit.Envelope "bad request"
// @Router /rollups/stages/{stage} [post]
func (h *handlers) stage(r *stdhttp.Request, in domain.StageInput) (any, error) {
	g, err := period.ParseGranularity(httpkit.Param(r, "stage"))
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "stage")
	}
	if err := httpkit.ScopeOrg(r, in.OrganizationID); err != nil {
		return nil, err
	}
	return h.p.Engine.RunStage(callerCtx(r), in.ToRequest(g))
}

// swagger:route POST /rollups/run Rollups rollupsRun
// @Summary Run the full pipeline
// @Tags Rollups
// @Accept json
// @Produce json
// @Param payload body domain.RunInput true "Run request"
// @Success 200 {object} odom.Report "ok"
// @Router /rollups/run [post]
func (h *handlers) run(r *stdhttp.Request, in domain.RunInput) (any, error) {
	if h.p.Orchestrator == nil {
		return nil, perr.Unavailablef("orchestrator not configured")
	}
	orgs, err := httpkit.ScopeOrgs(r, in.OrganizationIDs)
	if err != nil {
		return nil, err
	}
	in.OrganizationIDs = orgs
	return h.p.Orchestrator.Run(callerCtx(r), in.ToRequest())
}

// swagger:route GET /rollups/runs Rollups rollupsRuns
// @Summary Ledger rows of one organization, newest first
// @Tags Rollups
// @Produce json
// @Param organization_id query string true "organization"
// @Param stage query string false "stage filter"
// @Param limit query int false "max rows (1-500)"
// @Success 200 {array} rdom.Run "ok"
// @Router /rollups/runs [get]
func (h *handlers) runs(r *stdhttp.Request) (any, error) {
	q := r.URL.Query()
	if err := httpkit.ScopeOrg(r, q.Get("organization_id")); err != nil {
		return nil, err
	}
	var stage period.Granularity
	if s := q.Get("stage"); s != "" {
		g, err := period.ParseGranularity(s)
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "stage")
		}
		stage = g
	}
	limit := 100
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, perr.InvalidArgf("limit must be an integer")
		}
		limit = n
	}
	return h.p.Engine.Runs(r.Context(), q.Get("organization_id"), stage, limit)
}
