package modkit

import (
	"github.com/redis/go-redis/v9"

	"pulseboard/internal/modkit/repokit"
	"pulseboard/internal/platform/config"
	"pulseboard/internal/platform/logger"
	"pulseboard/internal/platform/metrics"
	"pulseboard/internal/platform/store"
)

// Deps holds core dependencies passed to modules
type Deps struct {
	Log logger.Logger
	Cfg config.Conf
	PG  repokit.TxRunner
	CH  store.Clickhouse

	// Redis is optional; only the redis lock backend needs it
	Redis *redis.Client

	// Metrics may be nil; every recorder method is nil safe
	Metrics *metrics.Metrics
}

// FromStore copies the opened seams of s into deps
func FromStore(log logger.Logger, cfg config.Conf, s *store.Store, m *metrics.Metrics) Deps {
	d := Deps{Log: log, Cfg: cfg, Metrics: m}
	if s == nil {
		return d
	}
	if s.PG != nil {
		d.PG = s.PG
	}
	if s.CH != nil {
		d.CH = s.CH
	}
	d.Redis = s.Redis
	return d
}
