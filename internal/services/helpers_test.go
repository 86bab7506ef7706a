package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/parcelworks/siteline/internal/logger"
	"github.com/parcelworks/siteline/internal/models"
	"github.com/parcelworks/siteline/internal/providers"
	"github.com/parcelworks/siteline/internal/repository"
)

// testLogger is shared by the service tests; production mode keeps the
// output quiet.
var testLogger = logger.New("test")

// stubResolver is a hand-rolled AddressResolver returning canned candidates.
type stubResolver struct {
	mu         sync.Mutex
	calls      int
	candidates []providers.Candidate
	err        error
}

func (s *stubResolver) Resolve(ctx context.Context, query string) ([]providers.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.candidates, nil
}

func (s *stubResolver) ResolveCoordinates(ctx context.Context, lat, lng float64) ([]providers.Candidate, error) {
	return s.Resolve(ctx, "")
}

func (s *stubResolver) Autocomplete(ctx context.Context, partial string) ([]string, error) {
	return nil, nil
}

func (s *stubResolver) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// countingFetcher counts invocations and returns either a fixed payload or
// an error.
type countingFetcher struct {
	calls   atomic.Int64
	payload json.RawMessage
	err     error
}

func (f *countingFetcher) fetch(ctx context.Context, lat, lng float64) (json.RawMessage, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

// testFetchers builds one counting fetcher per provider-backed section
// (everything except title) and the FetcherSet wired to them.
func testFetchers() (map[models.Section]*countingFetcher, providers.FetcherSet) {
	counters := make(map[models.Section]*countingFetcher)
	set := providers.FetcherSet{}
	for _, section := range models.Sections {
		if section == models.SectionTitle {
			continue
		}
		counter := &countingFetcher{
			payload: json.RawMessage(fmt.Sprintf(`{"section":%q}`, section)),
		}
		counters[section] = counter
		set[section] = counter.fetch
	}
	return counters, set
}

// testCandidate is the default geocoding result used across the tests.
func testCandidate() providers.Candidate {
	return providers.Candidate{
		Address:    "12 Harbour View Road, Northcote",
		Latitude:   -36.8019,
		Longitude:  174.7507,
		Confidence: 0.95,
	}
}

// newTestStack wires a LocationCache and JobOrchestrator over in-memory
// repositories and counting fetchers.
func newTestStack() (*JobOrchestrator, *LocationCache, *repository.MemoryJobRepository, map[models.Section]*countingFetcher, *stubResolver) {
	resolver := &stubResolver{candidates: []providers.Candidate{testCandidate()}}
	counters, fetchers := testFetchers()

	locations := repository.NewMemoryLocationRepository()
	jobs := repository.NewMemoryJobRepository().WithLocations(locations)

	cache := NewLocationCache(locations, resolver, fetchers, testLogger)
	orchestrator := NewJobOrchestrator(jobs, cache, testLogger)
	return orchestrator, cache, jobs, counters, resolver
}
