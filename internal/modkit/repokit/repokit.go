// Package repokit binds repositories to whichever querier a service holds
//
// a repository is bound to the pool for reads and to the transaction for writes
package repokit

import (
	"context"

	"pulseboard/internal/platform/store"
)

type (
	// Queryer is what a bound repository runs statements on
	Queryer = store.RowQuerier

	// TxRunner is the pool a service opens transactions from
	TxRunner = store.TxRunner
)

// Binder builds a repository over a querier
type Binder[T any] interface {
	Bind(Queryer) T
}

// BindFunc adapts a constructor to Binder
type BindFunc[T any] func(Queryer) T

// Bind calls f
func (f BindFunc[T]) Bind(q Queryer) T { return f(q) }

// InOrg binds b to an organization scoped transaction and runs fn with it
func InOrg[T any](ctx context.Context, tx TxRunner, b Binder[T], org string, fn func(context.Context, T) error) error {
	return store.RunInOrg(ctx, tx, org, func(ctx context.Context, q store.RowQuerier) error {
		return fn(ctx, b.Bind(q))
	})
}
