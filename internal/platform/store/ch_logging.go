package store

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pulseboard/internal/platform/logger"
)

// withCHLogging decorates a Clickhouse seam so every statement is logged with its duration
func withCHLogging(inner Clickhouse, root logger.Logger) Clickhouse {
	return &chLogged{
		Clickhouse: inner,
		log:        root.Level(zerolog.DebugLevel).With().Str("component", "ch").Logger(),
	}
}

type chLogged struct {
	Clickhouse
	log logger.Logger
}

func (c *chLogged) Exec(ctx context.Context, sql string, args ...any) error {
	start := time.Now()
	err := c.Clickhouse.Exec(ctx, sql, args...)
	c.emit("ch exec", sql, start, err)
	return err
}

func (c *chLogged) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	start := time.Now()
	r, err := c.Clickhouse.Query(ctx, sql, args...)
	c.emit("ch query", sql, start, err)
	return r, err
}

func (c *chLogged) Insert(ctx context.Context, table string, columns []string, rows [][]any) error {
	start := time.Now()
	err := c.Clickhouse.Insert(ctx, table, columns, rows)
	c.log.Info().
		Str("table", table).
		Int("rows", len(rows)).
		Float64("elapsed_ms", float64(time.Since(start).Microseconds())/1000.0).
		Err(err).
		Msg("ch insert")
	return err
}

// Ping forwards to the wrapped seam when it supports it
func (c *chLogged) Ping(ctx context.Context) error {
	if p, ok := c.Clickhouse.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (c *chLogged) emit(msg, sql string, start time.Time, err error) {
	c.log.Info().
		Float64("elapsed_ms", float64(time.Since(start).Microseconds())/1000.0).
		Str("sql", strings.Join(strings.Fields(sql), " ")).
		Err(err).
		Msg(msg)
}
