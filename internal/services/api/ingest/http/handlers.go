// Package http provides http transport for the normalizer and the staging area
package http

import (
	stdhttp "net/http"
	"strconv"
	"time"

	"pulseboard/internal/core/canonical"
	"pulseboard/internal/core/period"
	"pulseboard/internal/modkit/httpkit"
	perr "pulseboard/internal/platform/errors"
	"pulseboard/internal/services/api/ingest/domain"
	dsdom "pulseboard/internal/services/dailystore/domain"
)

// Register mounts ingest endpoints on the given router
func Register(r httpkit.Router, p domain.Ports) {
	h := &handlers{p: p}

	httpkit.Get(r, "/sources", h.sources)
	httpkit.Get(r, "/batches", h.batches)
	httpkit.PostJSON[domain.ApplyInput](r, "/apply", h.apply)
	httpkit.PostJSON[domain.IngestInput](r, "/{source}", h.ingest)
}

type handlers struct{ p domain.Ports }

// swagger:route POST /ingest/{source} Ingest ingestSource
// @Summary Normalize and stage source rows
// @Tags Ingest
// @Accept json
// @Produce json
// @Param source path string true "ga4, stripe, activecampaign, googleads, dataforseo, quickbooks or marketplace"
// @Param payload body domain.IngestInput true "Rows"
// @Success 200 {object} nmdom.Report "ok"
// @Failure 422 {object} httpkit.Envelope "invalid rows"
// @Router /ingest/{source} [post]
func (h *handlers) ingest(r *stdhttp.Request, in domain.IngestInput) (any, error) {
	src := canonical.Source(httpkit.Param(r, "source"))
	if !src.Valid() {
		return nil, perr.InvalidArgf("unknown source %q", src)
	}
	if err := httpkit.ScopeOrg(r, in.OrganizationID); err != nil {
		return nil, err
	}
	types := make([]canonical.EntityType, 0, len(in.EntityTypes))
	for _, s := range in.EntityTypes {
		t, ok := canonical.ParseEntityType(s)
		if !ok {
			return nil, perr.InvalidArgf("unknown entity type %q", s)
		}
		if !src.Owns(t) {
			return nil, perr.InvalidArgf("entity type %q is not owned by %s", t, src)
		}
		types = append(types, t)
	}
	var rng dsdom.DateRange
	if in.From != "" {
		from, _ := time.Parse(period.DayLayout, in.From)
		to, _ := time.Parse(period.DayLayout, in.To)
		rng = dsdom.NewDateRange(from, to)
		if err := rng.Validate(); err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "range")
		}
	}
	return h.p.Normalizer.Ingest(r.Context(), in.OrganizationID, src, types, rng, in.Rows)
}

// swagger:route POST /ingest/apply Ingest ingestApply
// @Summary Apply every staged batch of one organization to the daily store
// @Tags Ingest
// @Accept json
// @Produce json
// @Param payload body domain.ApplyInput true "Organization"
// @Success 200 {object} dsdom.ApplyReport "ok"
// @Router /ingest/apply [post]
func (h *handlers) apply(r *stdhttp.Request, in domain.ApplyInput) (any, error) {
	if err := httpkit.ScopeOrg(r, in.OrganizationID); err != nil {
		return nil, err
	}
	return h.p.Daily.ApplyPending(r.Context(), in.OrganizationID)
}

// swagger:route GET /ingest/batches Ingest ingestBatches
// @Summary Staging batches of one organization, newest first
// @Tags Ingest
// @Produce json
// @Param organization_id query string true "organization"
// @Param limit query int false "max rows"
// @Success 200 {array} dsdom.Batch "ok"
// @Router /ingest/batches [get]
func (h *handlers) batches(r *stdhttp.Request) (any, error) {
	q := r.URL.Query()
	if err := httpkit.ScopeOrg(r, q.Get("organization_id")); err != nil {
		return nil, err
	}
	limit := 50
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, perr.InvalidArgf("limit must be an integer")
		}
		limit = n
	}
	return h.p.Daily.Batches(r.Context(), q.Get("organization_id"), limit)
}

// swagger:route GET /ingest/sources Ingest ingestSources
// @Summary Sources with a registered adapter
// @Tags Ingest
// @Produce json
// @Success 200 {object} domain.SourcesOutput "ok"
// @Router /ingest/sources [get]
func (h *handlers) sources(_ *stdhttp.Request) (any, error) {
	src := h.p.Normalizer.Sources()
	out := domain.SourcesOutput{Sources: make([]string, len(src))}
	for i, s := range src {
		out.Sources[i] = s.String()
	}
	return out, nil
}
