package providers

import (
	"context"
)

// RegionalRegistry is an explicit priority-ordered list of regional
// providers. Lookup walks the list in registration order and picks the first
// provider whose SupportsRegion predicate matches; when two regions overlap,
// registration order is the tie-break.
type RegionalRegistry struct {
	providers []RegionalProvider
}

// NewRegionalRegistry creates a registry with the given providers in
// priority order.
func NewRegionalRegistry(providers ...RegionalProvider) *RegionalRegistry {
	return &RegionalRegistry{providers: providers}
}

// Register appends a provider at the lowest priority.
func (r *RegionalRegistry) Register(p RegionalProvider) {
	r.providers = append(r.providers, p)
}

// ProviderFor returns the highest-priority provider covering the coordinate,
// or ErrNoRegionalProvider.
func (r *RegionalRegistry) ProviderFor(lat, lng float64) (RegionalProvider, error) {
	for _, p := range r.providers {
		if p.SupportsRegion(lat, lng) {
			return p, nil
		}
	}
	return nil, ErrNoRegionalProvider
}

// Zoning resolves the regional provider for the coordinate and fetches
// zoning data from it.
func (r *RegionalRegistry) Zoning(ctx context.Context, lat, lng float64) (*ZoningData, error) {
	p, err := r.ProviderFor(lat, lng)
	if err != nil {
		return nil, err
	}
	return p.Zoning(ctx, lat, lng)
}

// Infrastructure resolves the regional provider for the coordinate and
// fetches infrastructure data from it.
func (r *RegionalRegistry) Infrastructure(ctx context.Context, lat, lng float64) (*InfrastructureData, error) {
	p, err := r.ProviderFor(lat, lng)
	if err != nil {
		return nil, err
	}
	return p.Infrastructure(ctx, lat, lng)
}
