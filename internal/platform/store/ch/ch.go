// Package ch provides a clickhouse client on top of clickhouse-go's database/sql driver
package ch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// Config configures clickhouse client
type Config struct {
	// URL is a clickhouse:// DSN
	URL string

	MaxOpenConns int
	DialTimeout  time.Duration

	// ClientName and ClientTag end up in system.query_log client info
	ClientName string
	ClientTag  string
}

// Rows is the minimal result set iteration for ch
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
	Columns() ([]string, error)
}

// CH wraps a *sql.DB speaking the clickhouse native protocol
type CH struct {
	db *sql.DB
}

// Open parses the DSN and opens a pooled connection
// the pool is lazy; use Ping to verify reachability
func Open(_ context.Context, cfg Config) (*CH, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("ch: empty url")
	}
	opts, err := clickhouse.ParseDSN(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("ch: parse dsn: %w", err)
	}
	if opts.Compression == nil {
		opts.Compression = &clickhouse.Compression{Method: clickhouse.CompressionLZ4}
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.MaxOpenConns > 0 {
		opts.MaxOpenConns = cfg.MaxOpenConns
		opts.MaxIdleConns = cfg.MaxOpenConns
	}
	if cfg.ClientName != "" {
		opts.ClientInfo = BuildClientInfo(cfg.ClientName, cfg.ClientTag)
	}
	return New(clickhouse.OpenDB(opts)), nil
}

// New wraps an existing *sql.DB (tests hand in sqlmock here)
func New(db *sql.DB) *CH { return &CH{db: db} }

// Exec runs a statement without results (DDL, ALTER ... DELETE)
func (c *CH) Exec(ctx context.Context, query string, args ...any) error {
	_, err := c.db.ExecContext(ctx, query, args...)
	return err
}

// Query runs a query and returns ch.Rows
func (c *CH) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Insert writes rows into table as one batch
// columns must match the arity of every row
func (c *CH) Insert(ctx context.Context, table string, columns []string, rows [][]any) (err error) {
	if len(rows) == 0 {
		return nil
	}
	if len(columns) == 0 {
		return errors.New("ch: insert without columns")
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ch: begin batch: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s)", table, strings.Join(columns, ", ")))
	if err != nil {
		return fmt.Errorf("ch: prepare batch %s: %w", table, err)
	}
	defer func() { _ = stmt.Close() }()

	for i, r := range rows {
		if len(r) != len(columns) {
			return fmt.Errorf("ch: row %d has %d values, want %d", i, len(r), len(columns))
		}
		if _, err = stmt.ExecContext(ctx, r...); err != nil {
			return fmt.Errorf("ch: append row %d: %w", i, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("ch: send batch %s: %w", table, err)
	}
	return nil
}

// Ping checks the server answers
func (c *CH) Ping(ctx context.Context) error { return c.db.PingContext(ctx) }

// Close closes resources
func (c *CH) Close() error { return c.db.Close() }
