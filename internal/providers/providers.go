package providers

import (
	"context"
	"errors"
	"time"

	"github.com/paulmach/orb"
)

// External data provider contracts. Each provider is an operationally
// independent system: adapters carry their own HTTP client and timeout, and
// a failure in one never implies anything about the others.

// ErrNoCandidates is returned by an AddressResolver when the input cannot be
// geocoded to any property.
var ErrNoCandidates = errors.New("no candidate locations")

// ErrNoRegionalProvider is returned by the regional registry when no
// registered provider covers the given coordinates.
var ErrNoRegionalProvider = errors.New("no regional provider for coordinates")

// CredentialStore supplies per-provider secrets at call time. Keys are
// scoped to an explicitly constructed store, never process-global state.
type CredentialStore interface {
	Secret(provider string) (string, error)
}

// StaticCredentialStore serves secrets from an in-memory map built at
// construction, typically from configuration.
type StaticCredentialStore struct {
	secrets map[string]string
}

// NewStaticCredentialStore copies the given secrets into a new store.
func NewStaticCredentialStore(secrets map[string]string) *StaticCredentialStore {
	copied := make(map[string]string, len(secrets))
	for k, v := range secrets {
		copied[k] = v
	}
	return &StaticCredentialStore{secrets: copied}
}

func (s *StaticCredentialStore) Secret(provider string) (string, error) {
	secret, ok := s.secrets[provider]
	if !ok {
		return "", errors.New("no credential for provider " + provider)
	}
	return secret, nil
}

// Candidate is one geocoding result with its match confidence in [0, 1].
type Candidate struct {
	Address          string   `json:"address"`
	TitleReference   string   `json:"titleReference,omitempty"`
	LegalDescription string   `json:"legalDescription,omitempty"`
	Latitude         float64  `json:"latitude"`
	Longitude        float64  `json:"longitude"`
	Boundary         orb.Ring `json:"boundary,omitempty"`
	Confidence       float64  `json:"confidence"`
}

// AddressResolver geocodes free text, title references, or coordinates to
// candidate properties.
type AddressResolver interface {
	Resolve(ctx context.Context, query string) ([]Candidate, error)
	ResolveCoordinates(ctx context.Context, lat, lng float64) ([]Candidate, error)
	Autocomplete(ctx context.Context, partial string) ([]string, error)
}

// Fault is one mapped fault near a property.
type Fault struct {
	Name       string  `json:"name"`
	DistanceKM float64 `json:"distanceKm"`
}

// SeismicEvent is one historical event returned by the hazard provider.
type SeismicEvent struct {
	Magnitude  float64   `json:"magnitude"`
	DepthKM    float64   `json:"depthKm"`
	DistanceKM float64   `json:"distanceKm"`
	OccurredAt time.Time `json:"occurredAt"`
}

// HazardData is the seismic design parameter set for a site. TC1/TC2/TC3
// liquefaction categories arrive in LiquefactionCategory.
type HazardData struct {
	ZoneFactor           float64        `json:"zoneFactor"`
	SiteClass            string         `json:"siteClass"`
	NearFaultFactor      float64        `json:"nearFaultFactor"`
	PGA                  float64        `json:"pga,omitempty"`
	LiquefactionCategory string         `json:"liquefactionCategory,omitempty"`
	NearbyFaults         []Fault        `json:"nearbyFaults,omitempty"`
	HistoricalEvents     []SeismicEvent `json:"historicalEvents,omitempty"`
}

// HazardProvider serves seismic hazard data.
type HazardProvider interface {
	HazardFor(ctx context.Context, lat, lng float64) (*HazardData, error)
	HistoricalEvents(ctx context.Context, lat, lng, radiusKM float64, since time.Time) ([]SeismicEvent, error)
}

// Investigation is one borehole or CPT record near a site.
type Investigation struct {
	Reference  string  `json:"reference"`
	Type       string  `json:"type"`
	DepthM     float64 `json:"depthM"`
	DistanceM  float64 `json:"distanceM"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	LoggedYear int     `json:"loggedYear,omitempty"`
}

// GeotechData is the geotechnical payload cached on a location.
type GeotechData struct {
	Investigations []Investigation `json:"investigations"`
	SearchRadiusM  float64         `json:"searchRadiusM"`
}

// GeotechProvider serves nearby ground investigation records.
type GeotechProvider interface {
	NearbyInvestigations(ctx context.Context, lat, lng, radiusM float64) (*GeotechData, error)
}

// ClimateData is the climate payload cached on a location.
type ClimateData struct {
	AnnualRainfallMM float64 `json:"annualRainfallMm"`
	WindZone         string  `json:"windZone"`
	WindSpeedMS      float64 `json:"windSpeedMs,omitempty"`
}

// ClimateProvider serves rainfall and wind zone data.
type ClimateProvider interface {
	Rainfall(ctx context.Context, lat, lng float64) (float64, error)
	WindZone(ctx context.Context, lat, lng float64) (string, float64, error)
}

// LandData is the land/parcel payload cached on a location.
type LandData struct {
	ParcelID    string   `json:"parcelId,omitempty"`
	AreaM2      float64  `json:"areaM2,omitempty"`
	LandUse     string   `json:"landUse,omitempty"`
	Contour     string   `json:"contour,omitempty"`
	Boundary    orb.Ring `json:"boundary,omitempty"`
	CouncilName string   `json:"councilName,omitempty"`
}

// LandProvider serves parcel records for a coordinate.
type LandProvider interface {
	ParcelFor(ctx context.Context, lat, lng float64) (*LandData, error)
}

// ZoningData is the zoning payload cached on a location.
type ZoningData struct {
	Zone        string   `json:"zone"`
	Description string   `json:"description,omitempty"`
	Overlays    []string `json:"overlays,omitempty"`
	Authority   string   `json:"authority,omitempty"`
}

// InfrastructureData is the infrastructure payload cached on a location.
type InfrastructureData struct {
	WaterSupply    string `json:"waterSupply,omitempty"`
	Wastewater     string `json:"wastewater,omitempty"`
	Stormwater     string `json:"stormwater,omitempty"`
	RoadFrontage   string `json:"roadFrontage,omitempty"`
	PowerAvailable bool   `json:"powerAvailable"`
}

// RegionalProvider serves authority-specific planning data. One
// implementation exists per governing authority; SupportsRegion gates which
// provider handles a coordinate.
type RegionalProvider interface {
	Name() string
	SupportsRegion(lat, lng float64) bool
	Zoning(ctx context.Context, lat, lng float64) (*ZoningData, error)
	Hazards(ctx context.Context, lat, lng float64) (*HazardData, error)
	Infrastructure(ctx context.Context, lat, lng float64) (*InfrastructureData, error)
}
