package providers

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// HTTPClimateProvider is the JSON-over-HTTP adapter for the climate data
// service. Rainfall and wind zone live on separate endpoints; FetchAll runs
// both concurrently since the climate section needs both to be complete.
type HTTPClimateProvider struct {
	httpClient
}

// NewHTTPClimateProvider creates an adapter against the given base URL.
func NewHTTPClimateProvider(baseURL string, creds CredentialStore, timeout time.Duration) *HTTPClimateProvider {
	return &HTTPClimateProvider{httpClient: newHTTPClient("climate", baseURL, creds, timeout)}
}

func (p *HTTPClimateProvider) Rainfall(ctx context.Context, lat, lng float64) (float64, error) {
	var out struct {
		AnnualRainfallMM float64 `json:"annualRainfallMm"`
	}
	if err := p.getJSON(ctx, "/v1/rainfall", coordParams(lat, lng), &out); err != nil {
		return 0, err
	}
	return out.AnnualRainfallMM, nil
}

func (p *HTTPClimateProvider) WindZone(ctx context.Context, lat, lng float64) (string, float64, error) {
	var out struct {
		Zone        string  `json:"zone"`
		WindSpeedMS float64 `json:"windSpeedMs"`
	}
	if err := p.getJSON(ctx, "/v1/wind", coordParams(lat, lng), &out); err != nil {
		return "", 0, err
	}
	return out.Zone, out.WindSpeedMS, nil
}

// FetchAll fetches rainfall and wind zone concurrently and combines them
// into one climate payload. Either call failing fails the section.
func FetchAll(ctx context.Context, p ClimateProvider, lat, lng float64) (*ClimateData, error) {
	var data ClimateData

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rainfall, err := p.Rainfall(ctx, lat, lng)
		if err != nil {
			return err
		}
		data.AnnualRainfallMM = rainfall
		return nil
	})
	g.Go(func() error {
		zone, speed, err := p.WindZone(ctx, lat, lng)
		if err != nil {
			return err
		}
		data.WindZone = zone
		data.WindSpeedMS = speed
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &data, nil
}
