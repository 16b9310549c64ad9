// Package module wires meta endpoints into the API
package module

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"pulseboard/internal/modkit"
	"pulseboard/internal/modkit/httpkit"

	metahttp "pulseboard/internal/services/api/meta/http"
)

// ServiceName is reported by health and service
const ServiceName = "pulseboard-api"

type redisPinger struct{ c *redis.Client }

func (p redisPinger) Ping(ctx context.Context) error { return p.c.Ping(ctx).Err() }

// New constructs the meta module; it exposes no ports
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build("meta", "/meta", opts...)
	md := metahttp.Deps{
		ServiceName: ServiceName,
		StartedAt:   time.Now(),
	}
	// typed nil seams must stay untyped nil so ready reports them as skipped
	if deps.PG != nil {
		md.PG = deps.PG
	}
	if deps.CH != nil {
		md.CH = deps.CH
	}
	if deps.Redis != nil {
		md.Redis = redisPinger{deps.Redis}
	}
	return b.Routes(nil, func(r httpkit.Router) { metahttp.Register(r, md) })
}
