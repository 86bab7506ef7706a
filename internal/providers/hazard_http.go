package providers

import (
	"context"
	"fmt"
	"time"
)

// HTTPHazardProvider is the JSON-over-HTTP adapter for the seismic hazard
// service.
type HTTPHazardProvider struct {
	httpClient
}

// NewHTTPHazardProvider creates an adapter against the given base URL.
func NewHTTPHazardProvider(baseURL string, creds CredentialStore, timeout time.Duration) *HTTPHazardProvider {
	return &HTTPHazardProvider{httpClient: newHTTPClient("hazard", baseURL, creds, timeout)}
}

func (p *HTTPHazardProvider) HazardFor(ctx context.Context, lat, lng float64) (*HazardData, error) {
	var out HazardData
	if err := p.getJSON(ctx, "/v1/hazard", coordParams(lat, lng), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *HTTPHazardProvider) HistoricalEvents(ctx context.Context, lat, lng, radiusKM float64, since time.Time) ([]SeismicEvent, error) {
	params := coordParams(lat, lng)
	params.Set("radius_km", fmt.Sprintf("%f", radiusKM))
	params.Set("since", since.Format(time.RFC3339))

	var out struct {
		Events []SeismicEvent `json:"events"`
	}
	if err := p.getJSON(ctx, "/v1/events", params, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}
