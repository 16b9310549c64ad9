package errors

import (
	"fmt"
	"io"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		code ErrorCode
		want int
		name string
	}{
		{ErrorCodeInvalidArgument, http.StatusUnprocessableEntity, "invalid_argument"},
		{ErrorCodeValidation, http.StatusBadRequest, "validation"},
		{ErrorCodeJSON, http.StatusBadRequest, "json"},
		{ErrorCodeNotFound, http.StatusNotFound, "not_found"},
		{ErrorCodeUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{ErrorCodeForbidden, http.StatusForbidden, "forbidden"},
		{ErrorCodeUnavailable, http.StatusServiceUnavailable, "unavailable"},
		{ErrorCodeDuplicateKey, http.StatusConflict, "duplicate_key"},
		{ErrorCodeDB, http.StatusInternalServerError, "db"},
		{ErrorCode(999), http.StatusInternalServerError, "unknown"},
	}
	for _, tc := range cases {
		if got := HTTPStatusCode(tc.code); got != tc.want {
			t.Fatalf("HTTPStatusCode(%d) = %d want %d", tc.code, got, tc.want)
		}
		if got := tc.code.String(); got != tc.name {
			t.Fatalf("String(%d) = %q want %q", tc.code, got, tc.name)
		}
	}
}

func TestWrap_ChainAndMessage(t *testing.T) {
	t.Parallel()

	err := Wrap(io.EOF, ErrorCodeDB, "read staged batch")
	if err.Error() != "read staged batch: EOF" {
		t.Fatalf("Error() = %q", err.Error())
	}
	outer := fmt.Errorf("apply: %w", err)
	if !IsCode(outer, ErrorCodeDB) || HTTPStatus(outer) != http.StatusInternalServerError {
		t.Fatalf("code lost through fmt wrapping: %v", CodeOf(outer))
	}
	if Root(outer) != io.EOF {
		t.Fatalf("Root = %v", Root(outer))
	}
}

func TestWireFrom(t *testing.T) {
	t.Parallel()

	if w := WireFrom(nil); w != (Wire{}) {
		t.Fatalf("nil = %+v", w)
	}
	w := WireFrom(WithField(InvalidArgf("bad %s", "stage"), "stage"))
	if w.Code != ErrorCodeInvalidArgument || w.Message != "bad stage" || w.Field != "stage" {
		t.Fatalf("wire = %+v", w)
	}
	if w := WireFrom(io.EOF); w.Code != ErrorCodeUnknown || w.Message != "EOF" {
		t.Fatalf("foreign = %+v", w)
	}
	if WithField(io.EOF, "x") != io.EOF {
		t.Fatal("WithField should leave foreign errors alone")
	}
}

func TestSugar(t *testing.T) {
	t.Parallel()

	cases := map[ErrorCode]error{
		ErrorCodeInvalidArgument: InvalidArgf("x"),
		ErrorCodeNotFound:        NotFoundf("x"),
		ErrorCodeUnauthorized:    Unauthorizedf("x"),
		ErrorCodeForbidden:       Forbiddenf("x"),
		ErrorCodeUnavailable:     Unavailablef("x"),
		ErrorCodeJSON:            JSONErrf("x"),
		ErrorCodePanic:           PanicErrf("x"),
	}
	for want, err := range cases {
		if !IsCode(err, want) {
			t.Fatalf("%v: code %v", err, CodeOf(err))
		}
	}
	if !IsCode(ErrNotFound, ErrorCodeNotFound) {
		t.Fatal("ErrNotFound code")
	}
}
