// Package config reads settings from the environment under nested prefixes
//
//	cfg := config.New().Prefix("CORE_").Prefix("ROLLUP_")
//	depth := cfg.MayInt("DEPTH", 3) // CORE_ROLLUP_DEPTH
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"pulseboard/internal/platform/logger"
)

// Conf is a prefixed view over a key value source
type Conf struct {
	prefix string
	lookup func(string) (string, bool)
}

// New reads the process environment
func New() Conf { return Conf{lookup: os.LookupEnv} }

// FromMap reads m instead of the environment
func FromMap(m map[string]string) Conf {
	return Conf{lookup: func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}}
}

// Prefix returns a view whose keys are prefixed by p
func (c Conf) Prefix(p string) Conf { return Conf{prefix: c.prefix + p, lookup: c.lookup} }

// Key returns the full name of k
func (c Conf) Key(k string) string { return c.prefix + k }

func (c Conf) get(k string) string {
	lookup := c.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	v, _ := lookup(c.Key(k))
	return strings.TrimSpace(v)
}

// MustString panics when k is unset or blank
func (c Conf) MustString(k string) string {
	v := c.get(k)
	if v == "" {
		logger.Get().Panic().Str("key", c.Key(k)).Msg("missing required setting")
	}
	return v
}

// MayString returns def when k is unset or blank
func (c Conf) MayString(k, def string) string {
	if v := c.get(k); v != "" {
		return v
	}
	return def
}

// MayInt returns def when k is unset or not an integer
func (c Conf) MayInt(k string, def int) int { return may(c, k, def, strconv.Atoi) }

// MayBool returns def when k is unset or not a bool
func (c Conf) MayBool(k string, def bool) bool { return may(c, k, def, strconv.ParseBool) }

// MayDuration returns def when k is unset or not a duration
func (c Conf) MayDuration(k string, def time.Duration) time.Duration {
	return may(c, k, def, time.ParseDuration)
}

// MayCSV splits k on commas, dropping blanks; def when nothing is left
func (c Conf) MayCSV(k string, def []string) []string {
	var out []string
	for _, p := range strings.Split(c.get(k), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// may parses k, warning and falling back to def on a malformed value
func may[T any](c Conf, k string, def T, parse func(string) (T, error)) T {
	s := c.get(k)
	if s == "" {
		return def
	}
	v, err := parse(s)
	if err != nil {
		logger.Get().Warn().Str("key", c.Key(k)).Str("value", s).Interface("default", def).Msg("malformed setting, using default")
		return def
	}
	return v
}
