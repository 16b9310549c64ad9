// Package http serves liveness, readiness and build information
package http

import (
	"context"
	"net/http"
	"time"

	"pulseboard/internal/core/period"
	"pulseboard/internal/core/version"
	"pulseboard/internal/modkit/httpkit"
	"pulseboard/internal/modkit/module"
)

// ReadyTimeout bounds all dependency pings of one readiness probe
const ReadyTimeout = 2 * time.Second

// Pinger is satisfied by every backend seam the probe checks
type Pinger interface {
	Ping(context.Context) error
}

// Deps are the handler dependencies; nil backends are reported as skipped
type Deps struct {
	ServiceName string
	StartedAt   time.Time
	PG          any
	CH          any
	Redis       any
}

type handlers struct{ d Deps }

// Register mounts the meta routes
func Register(r httpkit.Router, d Deps) {
	h := &handlers{d: d}
	httpkit.Get(r, "/health", h.health)
	httpkit.Get(r, "/ready", h.ready)
	httpkit.Get(r, "/version", h.version)
	httpkit.Get(r, "/service", h.service)
	httpkit.Get(r, "/pipeline", h.pipeline)
}

// Health is the liveness payload
// swagger:model
type Health struct {
	OK      bool      `json:"ok" example:"true"`
	Service string    `json:"service" example:"pulseboard-api"`
	Started time.Time `json:"started" example:"2026-03-01T03:00:00Z"`
	Now     time.Time `json:"now" example:"2026-03-01T03:05:00Z"`
}

// Check is one dependency result: ok, fail, skipped or unknown
type Check struct {
	Name   string `json:"name" example:"pg"`
	Status string `json:"status" example:"ok"`
	Error  string `json:"error,omitempty"`
}

// Readiness is ok when every check passed, fail when any failed and degraded otherwise
// swagger:model
type Readiness struct {
	Status string    `json:"status" example:"ok"`
	Checks []Check   `json:"checks"`
	Now    time.Time `json:"now"`
}

// Service describes the running process
// swagger:model
type Service struct {
	Name    string    `json:"name" example:"pulseboard-api"`
	Started time.Time `json:"started"`
	Uptime  int64     `json:"uptime" example:"300"`
	Modules []string  `json:"modules"`
}

// Stage describes one rollup stage
type Stage struct {
	Stage           string `json:"stage" example:"monthly"`
	Unit            string `json:"unit" example:"day"`
	Snapshot        bool   `json:"snapshot" example:"false"`
	BackfillDefault int    `json:"backfill_default" example:"4"`
}

// Pipeline lists the stages in execution order with build info
// swagger:model
type Pipeline struct {
	Stages []Stage           `json:"stages"`
	Build  version.BuildInfo `json:"build"`
}

// swagger:route GET /meta/health Meta metaHealth
// @Summary Liveness
// @Tags Meta
// @Produce json
// @Success 200 {object} Health "ok"
// @Router /meta/health [get]
func (h *handlers) health(_ *http.Request) (any, error) {
	return Health{OK: true, Service: h.d.ServiceName, Started: h.d.StartedAt.UTC(), Now: time.Now().UTC()}, nil
}

// swagger:route GET /meta/ready Meta metaReady
// @Summary Readiness with dependency pings
// @Tags Meta
// @Produce json
// @Success 200 {object} Readiness "ok"
// @Router /meta/ready [get]
func (h *handlers) ready(r *http.Request) (any, error) {
	ctx, cancel := context.WithTimeout(r.Context(), ReadyTimeout)
	defer cancel()

	out := Readiness{Status: "ok", Now: time.Now().UTC()}
	out.Checks = append(out.Checks, ping(ctx, "pg", h.d.PG), ping(ctx, "ch", h.d.CH))
	// redis only backs the optional lease, so it is listed only when configured
	if h.d.Redis != nil {
		out.Checks = append(out.Checks, ping(ctx, "redis", h.d.Redis))
	}
	for _, c := range out.Checks {
		if c.Status == "fail" {
			out.Status = "fail"
			break
		}
		if c.Status != "ok" {
			out.Status = "degraded"
		}
	}
	return out, nil
}

func ping(ctx context.Context, name string, dep any) Check {
	if dep == nil {
		return Check{Name: name, Status: "skipped"}
	}
	p, ok := dep.(Pinger)
	if !ok {
		return Check{Name: name, Status: "unknown"}
	}
	if err := p.Ping(ctx); err != nil {
		return Check{Name: name, Status: "fail", Error: err.Error()}
	}
	return Check{Name: name, Status: "ok"}
}

// swagger:route GET /meta/version Meta metaVersion
// @Summary Build information
// @Tags Meta
// @Produce json
// @Success 200 {object} version.BuildInfo "ok"
// @Router /meta/version [get]
func (h *handlers) version(_ *http.Request) (any, error) {
	return version.Info(), nil
}

// swagger:route GET /meta/service Meta metaService
// @Summary Process uptime and registered modules
// @Tags Meta
// @Produce json
// @Success 200 {object} Service "ok"
// @Router /meta/service [get]
func (h *handlers) service(_ *http.Request) (any, error) {
	return Service{
		Name:    h.d.ServiceName,
		Started: h.d.StartedAt.UTC(),
		Uptime:  int64(time.Since(h.d.StartedAt) / time.Second),
		Modules: module.Names(),
	}, nil
}

// swagger:route GET /meta/pipeline Meta metaPipeline
// @Summary Rollup stages in execution order
// @Tags Meta
// @Produce json
// @Success 200 {object} Pipeline "ok"
// @Router /meta/pipeline [get]
func (h *handlers) pipeline(_ *http.Request) (any, error) {
	out := Pipeline{Build: version.Info()}
	for _, g := range period.Order {
		out.Stages = append(out.Stages, Stage{
			Stage:           string(g),
			Unit:            string(g.Unit()),
			Snapshot:        g.Snapshot(),
			BackfillDefault: period.DefaultBackfillDepth(g),
		})
	}
	return out, nil
}
