package http

import (
	"encoding/json"
	"net/http"

	perr "pulseboard/internal/platform/errors"
	"pulseboard/internal/platform/logger"
	pnet "pulseboard/internal/platform/net"
	"pulseboard/internal/platform/net/http/bind"
)

// Envelope wraps every response body
type Envelope struct {
	StatusCode int    `json:"status_code" example:"200"`
	Status     string `json:"status" example:"OK"`
	Code       string `json:"code,omitempty" example:"invalid_argument"`
	Error      string `json:"error,omitempty"`
	Field      string `json:"field,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	Data       any    `json:"data,omitempty"`
}

// JSON writes v with status
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Write wraps data in a success envelope
func Write(w http.ResponseWriter, r *http.Request, status int, data any) {
	JSON(w, status, Envelope{
		StatusCode: status,
		Status:     http.StatusText(status),
		RequestID:  pnet.RequestID(r.Context()),
		Data:       data,
	})
}

// WriteError renders err as an error envelope; server side failures are logged with their cause
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := perr.HTTPStatus(err)
	wire := perr.WireFrom(err)
	if status >= http.StatusInternalServerError {
		logger.C(r.Context()).Error().Err(err).Str("code", wire.Code.String()).Msg("request failed")
	}
	JSON(w, status, Envelope{
		StatusCode: status,
		Status:     http.StatusText(status),
		Code:       wire.Code.String(),
		Error:      wire.Message,
		Field:      wire.Field,
		RequestID:  pnet.RequestID(r.Context()),
	})
}

// Handle adapts a handler that returns its data or an error
func Handle(fn func(*http.Request) (any, error)) Handler {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := fn(r)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		Write(w, r, http.StatusOK, out)
	}
}

// HandleJSON is Handle for handlers that take a validated JSON body
func HandleJSON[T any](fn func(*http.Request, T) (any, error)) Handler {
	return Handle(func(r *http.Request) (any, error) {
		in, err := bind.ParseJSON[T](r)
		if err != nil {
			return nil, err
		}
		return fn(r, in)
	})
}
