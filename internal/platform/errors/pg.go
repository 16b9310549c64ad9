package errors

import (
	"context"
	stderrs "errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE classes the repositories run into
var sqlStates = map[string]ErrorCode{
	"23505": ErrorCodeDuplicateKey,    // unique_violation
	"23503": ErrorCodeInvalidArgument, // foreign_key_violation
	"23502": ErrorCodeValidation,      // not_null_violation
	"23514": ErrorCodeValidation,      // check_violation
	"22001": ErrorCodeInvalidArgument, // string_data_right_truncation
	"22P02": ErrorCodeInvalidArgument, // invalid_text_representation
	"40001": ErrorCodeDB,              // serialization_failure
	"40P01": ErrorCodeDB,              // deadlock_detected
	"55P03": ErrorCodeDB,              // lock_not_available
	"25006": ErrorCodeUnavailable,     // read_only_sql_transaction
	"57P03": ErrorCodeUnavailable,     // cannot_connect_now
}

// contention states; a retried transaction may succeed
var retryStates = map[string]bool{"40001": true, "40P01": true, "55P03": true}

// PgError returns the postgres error in the chain of err
func PgError(err error) (*pgconn.PgError, bool) {
	var pe *pgconn.PgError
	ok := stderrs.As(err, &pe)
	return pe, ok
}

// FromPG wraps a postgres failure with a code derived from its SQLSTATE
// nil stays nil; non postgres errors become ErrorCodeDB; coded errors pass through
func FromPG(err error, msg string) error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok && e.code != ErrorCodeDB && e.code != ErrorCodeUnknown {
		return err
	}
	if stderrs.Is(err, context.Canceled) || stderrs.Is(err, context.DeadlineExceeded) {
		return Wrap(err, ErrorCodeUnavailable, msg)
	}
	pe, ok := PgError(err)
	if !ok {
		return Wrap(err, ErrorCodeDB, msg)
	}
	code, known := sqlStates[pe.Code]
	if !known {
		code = ErrorCodeDB
	}
	out := Wrap(err, code, msg)
	if col := strings.TrimSpace(pe.ColumnName); col != "" {
		out = WithField(out, col)
	}
	return out
}

// Retryable reports whether err is transient postgres contention
// local cancellation is never retryable
func Retryable(err error) bool {
	if err == nil || stderrs.Is(err, context.Canceled) || stderrs.Is(err, context.DeadlineExceeded) {
		return false
	}
	if pe, ok := PgError(err); ok {
		return retryStates[pe.Code]
	}
	// pgx reports a serialization abort at commit without a PgError
	return strings.Contains(strings.ToLower(Root(err).Error()), "commit unexpectedly resulted in rollback")
}
