package module

import (
	"strings"
	"time"

	"pulseboard/internal/core/period"
	"pulseboard/internal/platform/config"
)

// Options for the rollup module
type Options struct {
	LockBackend  string
	LeaseTTL     time.Duration
	StageTimeout time.Duration
	Depth        map[period.Granularity]int
}

// FromConfig fills options from environment
// CORE_ROLLUP_LOCK (default "pg") is the lease backend: "pg", "redis" or "none"
// CORE_ROLLUP_LEASE_TTL (default 30m) bounds how long a crashed worker blocks a stage
// CORE_ROLLUP_STAGE_TIMEOUT (default 20m) bounds one stage run
// CORE_ROLLUP_BACKFILL_<STAGE> overrides the backfill depth of one stage
func FromConfig(cfg config.Conf) Options {
	n := cfg.Prefix("CORE_ROLLUP_")
	o := Options{
		LockBackend:  n.MayString("LOCK", "pg"),
		LeaseTTL:     n.MayDuration("LEASE_TTL", 30*time.Minute),
		StageTimeout: n.MayDuration("STAGE_TIMEOUT", 20*time.Minute),
		Depth:        map[period.Granularity]int{},
	}
	for _, g := range period.Order[1:] {
		o.Depth[g] = n.MayInt("BACKFILL_"+strings.ToUpper(string(g)), period.DefaultBackfillDepth(g))
	}
	return o
}
