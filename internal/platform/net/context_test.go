package net

import (
	"context"
	"testing"
)

func TestCaller(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if _, ok := CallerFrom(ctx); ok {
		t.Fatal("empty context has no caller")
	}
	if _, ok := CallerFrom(WithCaller(ctx, Caller{Org: "acme"})); ok {
		t.Fatal("a caller without user is not authenticated")
	}
	c, ok := CallerFrom(WithCaller(ctx, Caller{User: "ops", Org: "acme"}))
	if !ok || c.User != "ops" || c.Org != "acme" {
		t.Fatalf("caller = %+v %v", c, ok)
	}
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	if RequestID(context.Background()) != "" {
		t.Fatal("want empty")
	}
	if got := RequestID(WithRequestID(context.Background(), "req-1")); got != "req-1" {
		t.Fatalf("RequestID = %q", got)
	}
}
