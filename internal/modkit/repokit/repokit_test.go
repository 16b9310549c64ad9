package repokit

import (
	"context"
	"errors"
	"testing"

	"pulseboard/internal/platform/store"
)

type recTx struct{ stmts []string }

func (r *recTx) Exec(_ context.Context, sql string, _ ...any) (store.CommandTag, error) {
	r.stmts = append(r.stmts, sql)
	return nil, nil
}
func (r *recTx) Query(context.Context, string, ...any) (store.Rows, error) { return nil, nil }
func (r *recTx) QueryRow(context.Context, string, ...any) store.Row        { return nil }
func (r *recTx) Tx(_ context.Context, fn func(store.RowQuerier) error) error {
	return fn(r)
}

type orgRepo struct{ q Queryer }

func TestInOrg_BindsTransactionQuerier(t *testing.T) {
	t.Parallel()

	tx := &recTx{}
	b := BindFunc[orgRepo](func(q Queryer) orgRepo { return orgRepo{q: q} })

	var got orgRepo
	err := InOrg(context.Background(), tx, b, "org_a", func(ctx context.Context, r orgRepo) error {
		got = r
		if org, _ := store.OrgID(ctx); org != "org_a" {
			t.Fatalf("org on ctx = %q", org)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("InOrg: %v", err)
	}
	if got.q != tx || len(tx.stmts) != 1 {
		t.Fatalf("repo bound to %v, stmts %v", got.q, tx.stmts)
	}
}

func TestInOrg_PropagatesError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	b := BindFunc[orgRepo](func(q Queryer) orgRepo { return orgRepo{q: q} })
	err := InOrg(context.Background(), &recTx{}, b, "o", func(context.Context, orgRepo) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
}
