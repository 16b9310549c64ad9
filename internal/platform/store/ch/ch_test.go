package ch

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMock(t *testing.T) (*CH, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db), mock
}

func TestOpen_RejectsEmptyURL(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), Config{}); err == nil {
		t.Fatal("expected error for empty url")
	}
	if _, err := Open(context.Background(), Config{URL: "://nope"}); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestOpen_LazyPool(t *testing.T) {
	t.Parallel()

	c, err := Open(context.Background(), Config{
		URL:        "clickhouse://default:@127.0.0.1:1/pulseboard",
		ClientName: "test",
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestInsert_Batches(t *testing.T) {
	t.Parallel()

	c, mock := newMock(t)
	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO daily_metrics (org, sessions)"))
	prep.ExpectExec().WithArgs("o1", 1.0).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs("o1", 2.0).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := c.Insert(context.Background(), "daily_metrics", []string{"org", "sessions"}, [][]any{
		{"o1", 1.0},
		{"o1", 2.0},
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestInsert_RollsBackOnArityMismatch(t *testing.T) {
	t.Parallel()

	c, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO t")
	mock.ExpectRollback()

	if err := c.Insert(context.Background(), "t", []string{"a", "b"}, [][]any{{1}}); err == nil {
		t.Fatal("expected arity error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestInsert_EmptyIsNoop(t *testing.T) {
	t.Parallel()

	c, mock := newMock(t)
	if err := c.Insert(context.Background(), "t", []string{"a"}, nil); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestExecAndQuery(t *testing.T) {
	t.Parallel()

	c, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("ALTER TABLE weekly_metrics DELETE")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT count").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(7))
	boom := errors.New("boom")
	mock.ExpectQuery("SELECT broken").WillReturnError(boom)

	ctx := context.Background()
	if err := c.Exec(ctx, "ALTER TABLE weekly_metrics DELETE WHERE 1"); err != nil {
		t.Fatalf("Exec: %v", err)
	}

	rows, err := c.Query(ctx, "SELECT count() AS n")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	var n int
	if !rows.Next() {
		t.Fatal("no rows")
	}
	if err := rows.Scan(&n); err != nil || n != 7 {
		t.Fatalf("scan n=%d err=%v", n, err)
	}
	_ = rows.Close()

	r2, err := c.Query(ctx, "SELECT broken")
	if !errors.Is(err, boom) || r2 != nil {
		t.Fatalf("want boom and nil rows, got %v %v", r2, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
