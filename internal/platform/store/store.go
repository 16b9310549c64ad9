// Package store opens the optional storage backends and exposes them as small seams
//
// repositories depend on RowQuerier, TxRunner and Clickhouse, never on a driver
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"pulseboard/internal/platform/logger"
)

// Store holds whichever backends were enabled; the rest stay nil
type Store struct {
	Log   logger.Logger
	PG    TxRunner
	CH    Clickhouse
	Redis *redis.Client
}

// Row scans one result row
type Row interface {
	Scan(dest ...any) error
}

// Rows iterates a result set
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
	Columns() []string
}

// CommandTag reports what a write did
type CommandTag interface {
	String() string
	RowsAffected() int64
}

// RowQuerier is the sql surface repositories use
type RowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// TxRunner is a RowQuerier that can also run fn in a transaction
type TxRunner interface {
	RowQuerier
	Tx(ctx context.Context, fn func(q RowQuerier) error) error
}

// Clickhouse is the columnar seam: statements, queries and batch inserts
type Clickhouse interface {
	Exec(ctx context.Context, sql string, args ...any) error
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	Insert(ctx context.Context, table string, columns []string, rows [][]any) error
	Close() error
}

// Pinger reports readiness
type Pinger interface{ Ping(context.Context) error }

// Open brings up every backend enabled in cfg
// a failing backend closes the ones already open
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	s := &Store{}
	for _, o := range opts {
		if err := o(s); err != nil {
			return nil, err
		}
	}

	if cfg.PG.Enabled {
		pg, err := openPG(ctx, cfg.PG, s)
		if err != nil {
			return nil, err
		}
		s.PG = pg
	}
	if cfg.CH.Enabled {
		c, err := openCH(ctx, cfg, s)
		if err != nil {
			_ = s.Close(ctx)
			return nil, err
		}
		s.CH = c
	}
	if cfg.RDS.Enabled {
		rdb, err := openRedis(ctx, cfg.RDS)
		if err != nil {
			_ = s.Close(ctx)
			return nil, err
		}
		s.Redis = rdb
	}
	return s, nil
}

// Guard pings every open backend and joins the failures
func (s *Store) Guard(ctx context.Context) error {
	if s == nil {
		return errors.New("store: nil")
	}
	var errs []error
	ping := func(name string, v any) {
		if p, ok := v.(Pinger); ok {
			if err := p.Ping(ctx); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
		}
	}
	if s.PG != nil {
		ping("pg", s.PG)
	}
	if s.CH != nil {
		ping("ch", s.CH)
	}
	if s.Redis != nil {
		if err := s.Redis.Ping(ctx).Err(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every open backend
func (s *Store) Close(context.Context) error {
	var errs []error
	if s.Redis != nil {
		errs = append(errs, s.Redis.Close())
	}
	if s.CH != nil {
		errs = append(errs, s.CH.Close())
	}
	if c, ok := s.PG.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
