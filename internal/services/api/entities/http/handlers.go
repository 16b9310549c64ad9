// Package http provides http transport for the entity map
package http

import (
	stdhttp "net/http"
	"strconv"

	"pulseboard/internal/core/canonical"
	"pulseboard/internal/modkit/httpkit"
	perr "pulseboard/internal/platform/errors"
	"pulseboard/internal/services/api/entities/domain"
)

// Register mounts entities endpoints on the given router
func Register(r httpkit.Router, p domain.Ports) {
	h := &handlers{p: p}

	httpkit.Get(r, "/", h.list)
	httpkit.PostJSON[domain.ResolveInput](r, "/resolve", h.resolve)
	httpkit.PutJSON[domain.ActiveInput](r, "/active", h.active)
}

type handlers struct{ p domain.Ports }

// swagger:route POST /entities/resolve Entities entitiesResolve
// @Summary Canonical id of a raw name
// @Tags Entities
// @Accept json
// @Produce json
// @Param payload body domain.ResolveInput true "Name"
// @Success 200 {object} domain.ResolveOutput "ok"
// @Failure 422 {object} httpkit.Envelope "unknown type or empty name"
// @Router /entities/resolve [post]
func (h *handlers) resolve(_ *stdhttp.Request, in domain.ResolveInput) (any, error) {
	t, ok := canonical.ParseEntityType(in.EntityType)
	if !ok {
		return nil, perr.InvalidArgf("unknown entity type %q", in.EntityType)
	}
	id, ok := h.p.Entities.Resolve(t, in.Name)
	if !ok {
		return nil, perr.InvalidArgf("name %q normalizes to nothing", in.Name)
	}
	return domain.ResolveOutput{CanonicalID: id, EntityType: string(t)}, nil
}

// swagger:route PUT /entities/active Entities entitiesActive
// @Summary Enable or disable an entity
// @Tags Entities
// @Accept json
// @Produce json
// @Param payload body domain.ActiveInput true "State"
// @Success 200 {object} domain.ActiveOutput "ok"
// @Failure 404 {object} httpkit.Envelope "entity not found"
// @Router /entities/active [put]
func (h *handlers) active(r *stdhttp.Request, in domain.ActiveInput) (any, error) {
	if err := httpkit.ScopeOrg(r, in.OrganizationID); err != nil {
		return nil, err
	}
	if err := h.p.Entities.SetActive(r.Context(), in.OrganizationID, in.CanonicalID, *in.IsActive); err != nil {
		return nil, err
	}
	return domain.ActiveOutput{OrganizationID: in.OrganizationID, CanonicalID: in.CanonicalID, IsActive: *in.IsActive}, nil
}

// swagger:route GET /entities Entities entitiesList
// @Summary Page through the entity map of one organization
// @Tags Entities
// @Produce json
// @Param organization_id query string true "organization"
// @Param entity_type query string false "type filter"
// @Param limit query int false "page size (1-1000)"
// @Param offset query int false "offset"
// @Success 200 {array} entdom.Entity "ok"
// @Router /entities [get]
func (h *handlers) list(r *stdhttp.Request) (any, error) {
	q := r.URL.Query()
	if err := httpkit.ScopeOrg(r, q.Get("organization_id")); err != nil {
		return nil, err
	}
	limit, offset := 100, 0
	var err error
	if s := q.Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil {
			return nil, perr.InvalidArgf("limit must be an integer")
		}
	}
	if s := q.Get("offset"); s != "" {
		if offset, err = strconv.Atoi(s); err != nil {
			return nil, perr.InvalidArgf("offset must be an integer")
		}
	}
	return h.p.Entities.List(r.Context(), q.Get("organization_id"), canonical.EntityType(q.Get("entity_type")), limit, offset)
}
