package providers

import (
	"context"
	"time"

	"github.com/paulmach/orb"
)

// Region is the lat/lng bounding box a regional provider claims.
type Region struct {
	Bound orb.Bound
}

// Contains reports whether the coordinate falls inside the region.
func (r Region) Contains(lat, lng float64) bool {
	return r.Bound.Contains(orb.Point{lng, lat})
}

// HTTPRegionalProvider is the JSON-over-HTTP adapter for one governing
// authority's planning service. Coverage is declared up front as a bounding
// box rather than probed per call.
type HTTPRegionalProvider struct {
	httpClient
	region Region
}

// NewHTTPRegionalProvider creates an adapter for the named authority
// covering the given region.
func NewHTTPRegionalProvider(name, baseURL string, region Region, creds CredentialStore, timeout time.Duration) *HTTPRegionalProvider {
	return &HTTPRegionalProvider{
		httpClient: newHTTPClient(name, baseURL, creds, timeout),
		region:     region,
	}
}

func (p *HTTPRegionalProvider) Name() string {
	return p.name
}

func (p *HTTPRegionalProvider) SupportsRegion(lat, lng float64) bool {
	return p.region.Contains(lat, lng)
}

func (p *HTTPRegionalProvider) Zoning(ctx context.Context, lat, lng float64) (*ZoningData, error) {
	var out ZoningData
	if err := p.getJSON(ctx, "/v1/zoning", coordParams(lat, lng), &out); err != nil {
		return nil, err
	}
	if out.Authority == "" {
		out.Authority = p.name
	}
	return &out, nil
}

func (p *HTTPRegionalProvider) Hazards(ctx context.Context, lat, lng float64) (*HazardData, error) {
	var out HazardData
	if err := p.getJSON(ctx, "/v1/hazards", coordParams(lat, lng), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *HTTPRegionalProvider) Infrastructure(ctx context.Context, lat, lng float64) (*InfrastructureData, error) {
	var out InfrastructureData
	if err := p.getJSON(ctx, "/v1/infrastructure", coordParams(lat, lng), &out); err != nil {
		return nil, err
	}
	return &out, nil
}
