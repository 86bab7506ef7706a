package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/parcelworks/siteline/internal/models"
)

// Fetch tuning for the assembled section fetchers.
const (
	geotechSearchRadiusM = 500
	seismicHistoryRadius = 50 // km
	seismicHistoryYears  = 10
)

// SectionFetcher fetches one section's payload for a coordinate.
type SectionFetcher func(ctx context.Context, lat, lng float64) (json.RawMessage, error)

// FetcherSet maps each tracked section to its fetcher. Sections without an
// external provider (title) have no entry and are reported NotAvailable by
// the cache.
type FetcherSet map[models.Section]SectionFetcher

// NewFetcherSet wires the providers into per-section fetchers. Zoning and
// infrastructure route through the regional registry; hazards come from the
// dedicated seismic service with historical events folded in.
func NewFetcherSet(
	regional *RegionalRegistry,
	hazard HazardProvider,
	geotech GeotechProvider,
	climate ClimateProvider,
	land LandProvider,
) FetcherSet {
	set := FetcherSet{}

	if regional != nil {
		set[models.SectionZoning] = func(ctx context.Context, lat, lng float64) (json.RawMessage, error) {
			data, err := regional.Zoning(ctx, lat, lng)
			if err != nil {
				return nil, err
			}
			return marshalPayload(data)
		}
		set[models.SectionInfrastructure] = func(ctx context.Context, lat, lng float64) (json.RawMessage, error) {
			data, err := regional.Infrastructure(ctx, lat, lng)
			if err != nil {
				return nil, err
			}
			return marshalPayload(data)
		}
	}

	if hazard != nil {
		set[models.SectionHazards] = func(ctx context.Context, lat, lng float64) (json.RawMessage, error) {
			data, err := hazard.HazardFor(ctx, lat, lng)
			if err != nil {
				return nil, err
			}
			// Event history is an enrichment: its failure does not fail
			// the hazards section.
			since := time.Now().AddDate(-seismicHistoryYears, 0, 0)
			if events, err := hazard.HistoricalEvents(ctx, lat, lng, seismicHistoryRadius, since); err == nil {
				data.HistoricalEvents = events
			}
			return marshalPayload(data)
		}
	}

	if geotech != nil {
		set[models.SectionGeotechnical] = func(ctx context.Context, lat, lng float64) (json.RawMessage, error) {
			data, err := geotech.NearbyInvestigations(ctx, lat, lng, geotechSearchRadiusM)
			if err != nil {
				return nil, err
			}
			return marshalPayload(data)
		}
	}

	if climate != nil {
		set[models.SectionClimate] = func(ctx context.Context, lat, lng float64) (json.RawMessage, error) {
			data, err := FetchAll(ctx, climate, lat, lng)
			if err != nil {
				return nil, err
			}
			return marshalPayload(data)
		}
	}

	if land != nil {
		set[models.SectionLand] = func(ctx context.Context, lat, lng float64) (json.RawMessage, error) {
			data, err := land.ParcelFor(ctx, lat, lng)
			if err != nil {
				return nil, err
			}
			return marshalPayload(data)
		}
	}

	return set
}

func marshalPayload(v interface{}) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal section payload: %w", err)
	}
	return data, nil
}
