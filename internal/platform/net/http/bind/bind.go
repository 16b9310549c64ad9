// Package bind decodes and validates JSON request bodies
package bind

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	perr "pulseboard/internal/platform/errors"
	"pulseboard/internal/platform/validate"
)

// MaxBody caps a request body
const MaxBody = 8 << 20

// ParseJSON decodes the body into T, rejecting unknown fields and trailing data, then validates it
func ParseJSON[T any](r *http.Request) (T, error) {
	var dst T
	if r.Body == nil || r.Body == http.NoBody {
		return dst, perr.JSONErrf("empty body")
	}
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, MaxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&dst); err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return dst, perr.JSONErrf("empty body")
		case errors.As(err, &tooBig):
			return dst, perr.JSONErrf("body exceeds %d bytes", tooBig.Limit)
		default:
			return dst, perr.JSONErrf("invalid JSON: %v", err)
		}
	}
	if dec.More() {
		return dst, perr.JSONErrf("unexpected trailing data")
	}
	if err := validate.Struct(&dst); err != nil {
		return dst, err
	}
	return dst, nil
}
