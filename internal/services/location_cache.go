package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/parcelworks/siteline/internal/logger"
	"github.com/parcelworks/siteline/internal/models"
	"github.com/parcelworks/siteline/internal/providers"
	"github.com/parcelworks/siteline/internal/repository"
)

// Service-level errors for location resolution and refresh.
var (
	ErrNotResolvable    = errors.New("location not resolvable")
	ErrLocationNotFound = errors.New("location not found")
	ErrUnknownSection   = errors.New("unknown section")
)

// Per-provider fetch timeout during a refresh fan-out. Each section gets its
// own deadline so one hung provider cannot starve the rest of the batch.
const sectionFetchTimeout = 20 * time.Second

// Coordinates is a lat/lng pair used as a locator.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Locator identifies a property by exactly one of its addressable keys.
type Locator struct {
	LocationID     uuid.UUID
	Address        string
	TitleReference string
	Coordinates    *Coordinates
}

// Count returns how many locator keys are populated.
func (l Locator) Count() int {
	n := 0
	if l.LocationID != uuid.Nil {
		n++
	}
	if strings.TrimSpace(l.Address) != "" {
		n++
	}
	if strings.TrimSpace(l.TitleReference) != "" {
		n++
	}
	if l.Coordinates != nil {
		n++
	}
	return n
}

// LocationCache owns canonical property records and their per-section cached
// data. It resolves or creates records by any locator, decides staleness,
// and runs concurrent refreshes across the external providers with per-
// section failure isolation.
type LocationCache struct {
	repo     repository.LocationRepository
	resolver providers.AddressResolver
	fetchers providers.FetcherSet
	log      *logger.Logger

	// Serializes get-or-create per locator key so two concurrent requests
	// for the same property produce one record.
	creating sync.Mutex
}

// NewLocationCache creates a LocationCache.
func NewLocationCache(repo repository.LocationRepository, resolver providers.AddressResolver, fetchers providers.FetcherSet, log *logger.Logger) *LocationCache {
	return &LocationCache{
		repo:     repo,
		resolver: resolver,
		fetchers: fetchers,
		log:      log,
	}
}

// Resolve returns the existing location matching the locator, or creates one
// through the address resolution provider. Returns ErrNotResolvable when the
// provider cannot geocode the input and ErrLocationNotFound for an unknown
// location id.
func (c *LocationCache) Resolve(ctx context.Context, locator Locator) (*models.Location, error) {
	if locator.LocationID != uuid.Nil {
		loc, err := c.repo.GetByID(ctx, locator.LocationID)
		if err != nil {
			return nil, fmt.Errorf("failed to load location: %w", err)
		}
		if loc == nil {
			return nil, ErrLocationNotFound
		}
		return loc, nil
	}

	// Creation is serialized so that two concurrent requests for the same
	// brand-new property cannot both miss the lookup and insert duplicates.
	c.creating.Lock()
	defer c.creating.Unlock()

	loc, err := c.lookup(ctx, locator)
	if err != nil {
		return nil, err
	}
	if loc != nil {
		return loc, nil
	}
	return c.create(ctx, locator)
}

// lookup finds an existing record for the locator, nil if none exists.
func (c *LocationCache) lookup(ctx context.Context, locator Locator) (*models.Location, error) {
	switch {
	case locator.Address != "":
		loc, err := c.repo.FindByAddress(ctx, locator.Address)
		if err != nil {
			return nil, fmt.Errorf("failed to look up address: %w", err)
		}
		return loc, nil
	case locator.TitleReference != "":
		loc, err := c.repo.FindByTitleRef(ctx, locator.TitleReference)
		if err != nil {
			return nil, fmt.Errorf("failed to look up title reference: %w", err)
		}
		return loc, nil
	case locator.Coordinates != nil:
		loc, err := c.repo.FindByCoordinates(ctx, locator.Coordinates.Latitude, locator.Coordinates.Longitude)
		if err != nil {
			return nil, fmt.Errorf("failed to look up coordinates: %w", err)
		}
		return loc, nil
	}
	return nil, ErrNotResolvable
}

// create geocodes the locator and persists a new location from the best
// candidate.
func (c *LocationCache) create(ctx context.Context, locator Locator) (*models.Location, error) {
	var candidates []providers.Candidate
	var err error

	switch {
	case locator.Address != "":
		candidates, err = c.resolver.Resolve(ctx, locator.Address)
	case locator.TitleReference != "":
		candidates, err = c.resolver.Resolve(ctx, locator.TitleReference)
	case locator.Coordinates != nil:
		candidates, err = c.resolver.ResolveCoordinates(ctx, locator.Coordinates.Latitude, locator.Coordinates.Longitude)
	default:
		return nil, ErrNotResolvable
	}
	if err != nil {
		if errors.Is(err, providers.ErrNoCandidates) {
			return nil, ErrNotResolvable
		}
		return nil, fmt.Errorf("%w: %v", ErrNotResolvable, err)
	}
	// Resolvers should return ErrNoCandidates instead of an empty slice, but
	// the contract doesn't force them to.
	if len(candidates) == 0 {
		return nil, ErrNotResolvable
	}

	best := candidates[0]
	for _, cand := range candidates[1:] {
		if cand.Confidence > best.Confidence {
			best = cand
		}
	}

	now := time.Now().UTC()
	loc := &models.Location{
		ID:        uuid.New(),
		Address:   best.Address,
		Latitude:  best.Latitude,
		Longitude: best.Longitude,
		Boundary:  best.Boundary,
		Sections:  make(map[models.Section]models.SectionData),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if best.TitleReference != "" {
		loc.TitleReference = &best.TitleReference
	} else if locator.TitleReference != "" {
		loc.TitleReference = &locator.TitleReference
	}
	if best.LegalDescription != "" {
		loc.LegalDescription = &best.LegalDescription
	}

	if err := c.repo.Create(ctx, loc); err != nil {
		return nil, fmt.Errorf("failed to persist location: %w", err)
	}

	c.log.Info("Location created", map[string]interface{}{
		"location_id": loc.ID,
		"address":     loc.Address,
		"confidence":  best.Confidence,
	})
	return loc, nil
}

// IsStale reports whether a section's cached data is absent or older than
// maxAge. A zero maxAge uses the section's configured window.
func IsStale(loc *models.Location, section models.Section, maxAge time.Duration) bool {
	if maxAge <= 0 {
		maxAge = models.MaxAgeFor(section)
	}
	data := loc.Section(section)
	if data.RetrievedAt == nil {
		return true
	}
	return time.Since(*data.RetrievedAt) > maxAge
}

// Refresh fetches the requested sections (default: all) from their external
// providers, one concurrent call per section. Provider failures are isolated:
// a failed section records an error status and keeps its previous payload,
// and never aborts the rest of the batch. With skipFresh set, sections whose
// cache is within its staleness window are not re-fetched.
//
// Refresh is safe to call concurrently for the same location: each section
// write is atomic and last-write-wins on the retrieval timestamp.
func (c *LocationCache) Refresh(ctx context.Context, locationID uuid.UUID, sections []models.Section, skipFresh bool) (*models.Location, error) {
	loc, err := c.repo.GetByID(ctx, locationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load location: %w", err)
	}
	if loc == nil {
		return nil, ErrLocationNotFound
	}

	if len(sections) == 0 {
		sections = models.Sections
	}
	for _, section := range sections {
		if !models.ValidSection(section) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSection, section)
		}
	}

	var wg sync.WaitGroup
	for _, section := range sections {
		fetch, ok := c.fetchers[section]
		if !ok {
			// No provider serves this section (title); resolution data is
			// all it will ever have.
			continue
		}
		if skipFresh && !IsStale(loc, section, 0) {
			continue
		}

		wg.Add(1)
		go func(section models.Section, fetch providers.SectionFetcher) {
			defer wg.Done()
			c.fetchSection(ctx, loc, section, fetch)
		}(section, fetch)
	}
	wg.Wait()

	updated, err := c.repo.GetByID(ctx, locationID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload location: %w", err)
	}
	return updated, nil
}

// fetchSection runs one provider call under its own timeout and writes the
// outcome back as an atomic per-section update.
func (c *LocationCache) fetchSection(ctx context.Context, loc *models.Location, section models.Section, fetch providers.SectionFetcher) {
	callCtx, cancel := context.WithTimeout(ctx, sectionFetchTimeout)
	defer cancel()

	payload, err := fetch(callCtx, loc.Latitude, loc.Longitude)
	if err != nil {
		c.log.Warn("Section fetch failed", map[string]interface{}{
			"location_id": loc.ID,
			"section":     section,
			"error":       err.Error(),
		})
		// Record the failure; the previously cached payload stays intact.
		failure := models.SectionData{LastError: err.Error()}
		if err := c.repo.UpdateSection(ctx, loc.ID, section, failure); err != nil {
			c.log.Error("Failed to record section error", err, map[string]interface{}{
				"location_id": loc.ID,
				"section":     section,
			})
		}
		return
	}

	now := time.Now().UTC()
	data := models.SectionData{Payload: payload, RetrievedAt: &now}
	if err := c.repo.UpdateSection(ctx, loc.ID, section, data); err != nil {
		c.log.Error("Failed to store section data", err, map[string]interface{}{
			"location_id": loc.ID,
			"section":     section,
		})
		return
	}

	c.log.Debug("Section refreshed", map[string]interface{}{
		"location_id": loc.ID,
		"section":     section,
		"bytes":       len(payload),
	})
}
