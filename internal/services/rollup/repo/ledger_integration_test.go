//go:build integration_pg
// +build integration_pg

package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"pulseboard/internal/core/period"
	"pulseboard/internal/platform/store"
	"pulseboard/internal/services/rollup/domain"
	"pulseboard/internal/services/schema"
)

func startPostgres(t *testing.T) string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	t.Cleanup(cancel)

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "postgres",
				"POSTGRES_DB":       "postgres",
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("5432/tcp"),
				wait.ForLog("database system is ready to accept connections"),
			).WithDeadline(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	return fmt.Sprintf("postgres://postgres:postgres@%s:%s/postgres?sslmode=disable", host, port.Port())
}

func TestLedger_Lifecycle_Integration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	st, err := store.Open(ctx, store.Config{
		AppName: "pulseboard-ledger-integration",
		PG:      store.PGConfig{Enabled: true, URL: startPostgres(t), MaxConns: 2},
	})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer func() { _ = st.Close(context.Background()) }()

	if err := schema.Apply(ctx, st.PG, nil); err != nil {
		t.Fatalf("schema.Apply: %v", err)
	}

	l := NewPG().Bind(st.PG)
	for _, key := range []string{"2025-03", "2025-04"} {
		if err := l.Begin(ctx, "acme", period.Monthly, key); err != nil {
			t.Fatalf("Begin %s: %v", key, err)
		}
	}
	if err := l.Transition(ctx, "acme", period.Monthly, "2025-03", domain.StatusAggregating, 0, ""); err != nil {
		t.Fatalf("Transition aggregating: %v", err)
	}
	if err := l.Transition(ctx, "acme", period.Monthly, "2025-03", domain.StatusTrended, 42, ""); err != nil {
		t.Fatalf("Transition trended: %v", err)
	}
	if err := l.Transition(ctx, "acme", period.Monthly, "2025-04", domain.StatusFailed, 0, "boom"); err != nil {
		t.Fatalf("Transition failed: %v", err)
	}

	runs, err := l.List(ctx, "acme", period.Monthly, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("List returned %d runs", len(runs))
	}
	byKey := map[string]domain.Run{}
	for _, r := range runs {
		byKey[r.PeriodKey] = r
	}
	if r := byKey["2025-03"]; r.Status != domain.StatusTrended || r.RowsWritten != 42 || r.FinishedAt == nil {
		t.Fatalf("2025-03 = %+v", r)
	}
	if r := byKey["2025-04"]; r.Status != domain.StatusFailed || r.Error != "boom" || r.FinishedAt == nil {
		t.Fatalf("2025-04 = %+v", r)
	}

	// re-begin resets the row
	if err := l.Begin(ctx, "acme", period.Monthly, "2025-04"); err != nil {
		t.Fatalf("re-Begin: %v", err)
	}
	runs, err = l.List(ctx, "acme", "", 10)
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	for _, r := range runs {
		if r.PeriodKey == "2025-04" && (r.Status != domain.StatusPending || r.Error != "" || r.FinishedAt != nil) {
			t.Fatalf("re-begun run = %+v", r)
		}
	}

	if other, err := l.List(ctx, "globex", "", 10); err != nil || len(other) != 0 {
		t.Fatalf("other org = %v, %v", other, err)
	}
}
