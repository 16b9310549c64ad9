package store

import (
	"context"
	"time"

	perr "pulseboard/internal/platform/errors"
)

// RunInOrgAttempts bounds how often RunInOrg retries on contention
const RunInOrgAttempts = 3

type orgKey struct{}

// WithOrg attaches an organization id to ctx
func WithOrg(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, orgKey{}, orgID)
}

// OrgID returns the organization id on ctx
func OrgID(ctx context.Context) (string, bool) {
	s, _ := ctx.Value(orgKey{}).(string)
	return s, s != ""
}

// RunInOrg runs fn in one transaction with app.org_id set for row level policies
// serialization failures and deadlocks rerun the whole transaction
func RunInOrg(ctx context.Context, tx TxRunner, orgID string, fn func(ctx context.Context, q RowQuerier) error) error {
	ctx = WithOrg(ctx, orgID)
	var err error
	for attempt := 1; attempt <= RunInOrgAttempts; attempt++ {
		err = tx.Tx(ctx, func(q RowQuerier) error {
			if _, err := q.Exec(ctx, "SELECT set_config('app.org_id', $1, true)", orgID); err != nil {
				return err
			}
			return fn(ctx, q)
		})
		if !perr.Retryable(err) || attempt == RunInOrgAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 20 * time.Millisecond):
		}
	}
	return err
}
