package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestFromPG(t *testing.T) {
	t.Parallel()

	if FromPG(nil, "x") != nil {
		t.Fatal("nil should stay nil")
	}

	cases := []struct {
		name  string
		err   error
		code  ErrorCode
		field string
	}{
		{"unique", &pgconn.PgError{Code: "23505", ColumnName: "canonical_entity_id"}, ErrorCodeDuplicateKey, "canonical_entity_id"},
		{"not null", fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23502"}), ErrorCodeValidation, ""},
		{"read only", &pgconn.PgError{Code: "25006"}, ErrorCodeUnavailable, ""},
		{"other sqlstate", &pgconn.PgError{Code: "42P01"}, ErrorCodeDB, ""},
		{"plain", errors.New("conn reset"), ErrorCodeDB, ""},
		{"canceled", context.Canceled, ErrorCodeUnavailable, ""},
		{"coded passes", InvalidArgf("bad org"), ErrorCodeInvalidArgument, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := FromPG(tc.err, "upsert entity mappings")
			if !IsCode(err, tc.code) {
				t.Fatalf("code = %v want %v", CodeOf(err), tc.code)
			}
			if e, _ := As(err); e.Field() != tc.field {
				t.Fatalf("field = %q", e.Field())
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{&pgconn.PgError{Code: "40001"}, true},
		{Wrap(&pgconn.PgError{Code: "40P01"}, ErrorCodeDB, "tx"), true},
		{&pgconn.PgError{Code: "23505"}, false},
		{errors.New("commit unexpectedly resulted in rollback"), true},
		{context.DeadlineExceeded, false},
		{errors.New("boom"), false},
	}
	for _, tc := range cases {
		if got := Retryable(tc.err); got != tc.want {
			t.Fatalf("Retryable(%v) = %v", tc.err, got)
		}
	}
}
