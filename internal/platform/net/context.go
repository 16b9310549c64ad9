// Package net carries request scoped identity between middleware and handlers
package net

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// Caller is the authenticated principal of a request
// an empty Org means the caller may act on every organization
type Caller struct {
	User string
	Org  string
}

type callerKey struct{}

// WithCaller stores c on ctx
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom returns the caller stored by WithCaller
func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok && c.User != ""
}

// WithRequestID stores id where chi's RequestID middleware keeps it
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, chimw.RequestIDKey, id)
}

// RequestID returns the request id, empty outside a request
func RequestID(ctx context.Context) string { return chimw.GetReqID(ctx) }
