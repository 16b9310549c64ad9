package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"pulseboard/internal/platform/logger"
)

// pgClient is the TxRunner over a pgx pool
type pgClient struct{ pool *pgxpool.Pool }

var _ TxRunner = (*pgClient)(nil)

func (c *pgClient) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	return c.pool.Exec(ctx, sql, args...)
}

func (c *pgClient) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	rs, err := c.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgRows{rs}, nil
}

func (c *pgClient) QueryRow(ctx context.Context, sql string, args ...any) Row {
	return c.pool.QueryRow(ctx, sql, args...)
}

// Tx commits when fn returns nil and rolls back otherwise
func (c *pgClient) Tx(ctx context.Context, fn func(q RowQuerier) error) error {
	return pgx.BeginFunc(ctx, c.pool, func(tx pgx.Tx) error {
		return fn(pgTx{tx})
	})
}

func (c *pgClient) Ping(ctx context.Context) error {
	if c == nil || c.pool == nil {
		return errors.New("pg: not open")
	}
	return c.pool.Ping(ctx)
}

func (c *pgClient) Close() error { c.pool.Close(); return nil }

type pgTx struct{ tx pgx.Tx }

func (t pgTx) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	return t.tx.Exec(ctx, sql, args...)
}

func (t pgTx) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	rs, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgRows{rs}, nil
}

func (t pgTx) QueryRow(ctx context.Context, sql string, args ...any) Row {
	return t.tx.QueryRow(ctx, sql, args...)
}

type pgRows struct{ pgx.Rows }

func (r pgRows) Columns() []string {
	fd := r.FieldDescriptions()
	out := make([]string, len(fd))
	for i := range fd {
		out[i] = fd[i].Name
	}
	return out
}

// sqlTracer logs every statement pgx runs, slow ones at warn
type sqlTracer struct {
	log  logger.Logger
	slow time.Duration
}

type traceStartKey struct{}

type traceStart struct {
	at  time.Time
	sql string
}

func newSQLTracer(root logger.Logger, slow time.Duration) *sqlTracer {
	return &sqlTracer{
		log:  root.Level(zerolog.DebugLevel).With().Str("component", "pg").Logger(),
		slow: slow,
	}
}

func (t *sqlTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, traceStartKey{}, traceStart{at: time.Now(), sql: data.SQL})
}

func (t *sqlTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	st, ok := ctx.Value(traceStartKey{}).(traceStart)
	if !ok {
		return
	}
	elapsed := time.Since(st.at)
	slow := t.slow > 0 && elapsed >= t.slow
	ev := t.log.Debug()
	if slow {
		ev = t.log.Warn()
	}
	ev.Dur("elapsed", elapsed).
		Bool("slow", slow).
		Str("sql", strings.Join(strings.Fields(st.sql), " ")).
		Int64("rows", data.CommandTag.RowsAffected()).
		Err(data.Err).
		Msg("pg query")
}

var _ pgx.QueryTracer = (*sqlTracer)(nil)

// compile time check that pgx command tags satisfy the seam
var _ CommandTag = pgconn.CommandTag{}
