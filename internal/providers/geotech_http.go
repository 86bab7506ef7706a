package providers

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// HTTPGeotechProvider is the JSON-over-HTTP adapter for the ground
// investigation database.
type HTTPGeotechProvider struct {
	httpClient
}

// NewHTTPGeotechProvider creates an adapter against the given base URL.
func NewHTTPGeotechProvider(baseURL string, creds CredentialStore, timeout time.Duration) *HTTPGeotechProvider {
	return &HTTPGeotechProvider{httpClient: newHTTPClient("geotech", baseURL, creds, timeout)}
}

func (p *HTTPGeotechProvider) NearbyInvestigations(ctx context.Context, lat, lng, radiusM float64) (*GeotechData, error) {
	params := coordParams(lat, lng)
	params.Set("radius_m", fmt.Sprintf("%f", radiusM))

	var out struct {
		Investigations []Investigation `json:"investigations"`
	}
	if err := p.getJSON(ctx, "/v1/investigations", params, &out); err != nil {
		return nil, err
	}

	// The upstream service filters on a bounding box, not a true radius.
	// Recompute geodesic distances here and drop anything outside.
	site := orb.Point{lng, lat}
	kept := out.Investigations[:0]
	for _, inv := range out.Investigations {
		d := geo.Distance(site, orb.Point{inv.Longitude, inv.Latitude})
		if d > radiusM {
			continue
		}
		inv.DistanceM = d
		kept = append(kept, inv)
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].DistanceM < kept[j].DistanceM })

	return &GeotechData{Investigations: kept, SearchRadiusM: radiusM}, nil
}
