package store

import (
	"context"
	"errors"

	"pulseboard/internal/platform/store/ch"
)

// WrapCH exposes an opened client through the Clickhouse seam
// used by tests that drive *ch.CH over sqlmock
func WrapCH(c *ch.CH) Clickhouse { return newCHAdapter(c) }

// newCHAdapter wraps an opened *ch.CH as the store.Clickhouse seam
func newCHAdapter(c chClient) Clickhouse {
	return &clickhouseAdapter{inner: c}
}

// chClient is what the adapter needs from *ch.CH
type chClient interface {
	Exec(ctx context.Context, sql string, args ...any) error
	Query(ctx context.Context, sql string, args ...any) (ch.Rows, error)
	Insert(ctx context.Context, table string, columns []string, rows [][]any) error
	Ping(ctx context.Context) error
	Close() error
}

var _ chClient = (*ch.CH)(nil)

// clickhouseAdapter adapts *ch.CH to the store.Clickhouse interface
type clickhouseAdapter struct {
	inner chClient
}

var _ Clickhouse = (*clickhouseAdapter)(nil)

func (a *clickhouseAdapter) Exec(ctx context.Context, sql string, args ...any) error {
	return a.inner.Exec(ctx, sql, args...)
}

func (a *clickhouseAdapter) Insert(ctx context.Context, table string, columns []string, rows [][]any) error {
	return a.inner.Insert(ctx, table, columns, rows)
}

func (a *clickhouseAdapter) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	r, err := a.inner.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return &chRows{r: r}, nil
}

func (a *clickhouseAdapter) Close() error { return a.inner.Close() }

// Ping verifies connectivity with ClickHouse
func (a *clickhouseAdapter) Ping(ctx context.Context) error {
	if a == nil || a.inner == nil {
		return errors.New("store: nil clickhouse adapter")
	}
	return a.inner.Ping(ctx)
}

// chRows wraps ch.Rows as store.Rows
type chRows struct {
	r ch.Rows
}

func (r *chRows) Next() bool             { return r.r.Next() }
func (r *chRows) Scan(dest ...any) error { return r.r.Scan(dest...) }
func (r *chRows) Err() error             { return r.r.Err() }
func (r *chRows) Close()                 { _ = r.r.Close() }
func (r *chRows) Columns() []string {
	cols, err := r.r.Columns()
	if err != nil {
		return nil
	}
	return cols
}
