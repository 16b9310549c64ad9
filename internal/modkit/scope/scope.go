// Package scope carries run attributes across service boundaries
//
// the orchestrator stamps a run id, the API stamps the caller; downstream
// services fold whatever is present into their log context.
package scope

import "context"

// well known keys
const (
	RunID  = "run_id"
	Caller = "caller"
)

// Scope holds cross boundary attributes
type Scope struct {
	Values map[string]string
}

type key struct{}

// With returns ctx carrying the merged values; the parent scope is not mutated
// empty values are ignored
func With(ctx context.Context, kv map[string]string) context.Context {
	parent := From(ctx)
	s := Scope{Values: make(map[string]string, len(parent.Values)+len(kv))}
	for k, v := range parent.Values {
		s.Values[k] = v
	}
	for k, v := range kv {
		if v != "" {
			s.Values[k] = v
		}
	}
	return context.WithValue(ctx, key{}, s)
}

// Get returns a value and a boolean
func Get(ctx context.Context, k string) (string, bool) {
	v, ok := From(ctx).Values[k]
	return v, ok
}

// From returns scope on ctx or an empty one
func From(ctx context.Context) Scope {
	s, _ := ctx.Value(key{}).(Scope)
	if s.Values == nil {
		s.Values = make(map[string]string)
	}
	return s
}

// Fields returns the values in the shape zerolog's Context.Fields accepts
func (s Scope) Fields() map[string]any {
	out := make(map[string]any, len(s.Values))
	for k, v := range s.Values {
		out[k] = v
	}
	return out
}
