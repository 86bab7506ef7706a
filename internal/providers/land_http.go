package providers

import (
	"context"
	"time"
)

// HTTPLandProvider is the JSON-over-HTTP adapter for the parcel/land
// registry.
type HTTPLandProvider struct {
	httpClient
}

// NewHTTPLandProvider creates an adapter against the given base URL.
func NewHTTPLandProvider(baseURL string, creds CredentialStore, timeout time.Duration) *HTTPLandProvider {
	return &HTTPLandProvider{httpClient: newHTTPClient("land", baseURL, creds, timeout)}
}

func (p *HTTPLandProvider) ParcelFor(ctx context.Context, lat, lng float64) (*LandData, error) {
	var out LandData
	if err := p.getJSON(ctx, "/v1/parcel", coordParams(lat, lng), &out); err != nil {
		return nil, err
	}
	return &out, nil
}
