package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	chx "pulseboard/internal/platform/store/ch"
)

const (
	defaultConnectRetries = 20
	defaultPingTimeout    = 3 * time.Second
	maxConnectBackoff     = 2 * time.Second
)

// openPG builds the pool and waits until postgres answers a ping
func openPG(ctx context.Context, cfg PGConfig, s *Store) (*pgClient, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("pg: parse url: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.LogSQL {
		pcfg.ConnConfig.Tracer = newSQLTracer(s.Log, time.Duration(cfg.SlowQueryMs)*time.Millisecond)
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("pg: pool: %w", err)
	}

	attempts := cfg.ConnectRetries
	if attempts <= 0 {
		attempts = defaultConnectRetries
	}
	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}

	wait := 150 * time.Millisecond
	var last error
	for i := 0; i < attempts; i++ {
		pctx, cancel := context.WithTimeout(ctx, timeout)
		last = pool.Ping(pctx)
		cancel()
		if last == nil {
			return &pgClient{pool: pool}, nil
		}
		s.Log.Debug().Int("attempt", i+1).Err(last).Msg("pg not ready")

		select {
		case <-ctx.Done():
			pool.Close()
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		wait = min(wait*2, maxConnectBackoff)
	}
	pool.Close()
	return nil, fmt.Errorf("pg: no answer after %d attempts: %w", attempts, last)
}

// openCH opens the lazy clickhouse pool; Guard checks reachability
func openCH(ctx context.Context, cfg Config, s *Store) (Clickhouse, error) {
	name := cfg.CH.ClientName
	if name == "" {
		name = cfg.AppName
	}
	c, err := chx.Open(ctx, chx.Config{
		URL:          cfg.CH.URL,
		MaxOpenConns: cfg.CH.MaxOpenConns,
		DialTimeout:  cfg.CH.DialTimeout,
		ClientName:   name,
		ClientTag:    cfg.CH.ClientTag,
	})
	if err != nil {
		return nil, err
	}
	var out Clickhouse = newCHAdapter(c)
	if cfg.CH.LogSQL {
		out = withCHLogging(out, s.Log)
	}
	return out, nil
}

func openRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	pctx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}
