package sources

import (
	"fmt"
	"sort"

	"pulseboard/internal/core/canonical"
	"pulseboard/internal/services/normalizer/domain"
)

// All returns one adapter per known source
func All() []domain.Adapter {
	return []domain.Adapter{
		NewGA4(),
		NewStripe(),
		NewActiveCampaign(),
		NewGoogleAds(),
		NewDataForSEO(),
		NewQuickBooks(),
		NewMarketplace(),
	}
}

// Registry maps sources to adapters
type Registry struct {
	byName map[canonical.Source]domain.Adapter
}

// NewRegistry checks that every adapter is the sole writer of the types it declares
func NewRegistry(adapters ...domain.Adapter) (*Registry, error) {
	r := &Registry{byName: make(map[canonical.Source]domain.Adapter, len(adapters))}
	writer := map[canonical.EntityType]canonical.Source{}
	for _, a := range adapters {
		src := a.Source()
		if !src.Valid() {
			return nil, fmt.Errorf("normalizer: unknown source %q", src)
		}
		if _, dup := r.byName[src]; dup {
			return nil, fmt.Errorf("normalizer: source %s registered twice", src)
		}
		for _, t := range a.EntityTypes() {
			if !src.Owns(t) {
				return nil, fmt.Errorf("normalizer: %s declares %s which it does not own", src, t)
			}
			if prev, dup := writer[t]; dup {
				return nil, fmt.Errorf("normalizer: %s written by %s and %s", t, prev, src)
			}
			writer[t] = src
		}
		r.byName[src] = a
	}
	return r, nil
}

// Get returns the adapter for src
func (r *Registry) Get(src canonical.Source) (domain.Adapter, bool) {
	a, ok := r.byName[src]
	return a, ok
}

// Sources lists registered sources in lexical order
func (r *Registry) Sources() []canonical.Source {
	out := make([]canonical.Source, 0, len(r.byName))
	for s := range r.byName {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
