package repository

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/parcelworks/siteline/internal/models"
)

// In-memory repository implementations. They back unit tests and local
// development without a database and mirror the semantics of the Postgres
// implementations, including per-section last-write-wins and optimistic
// versioning.

// MemoryLocationRepository stores locations in a mutex-guarded map.
type MemoryLocationRepository struct {
	mu        sync.RWMutex
	locations map[uuid.UUID]*models.Location
}

// NewMemoryLocationRepository creates an empty in-memory location repository.
func NewMemoryLocationRepository() *MemoryLocationRepository {
	return &MemoryLocationRepository{locations: make(map[uuid.UUID]*models.Location)}
}

func (r *MemoryLocationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.locations[id].Clone(), nil
}

func (r *MemoryLocationRepository) FindByAddress(ctx context.Context, address string) (*models.Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	needle := normalizeAddress(address)
	for _, loc := range r.locations {
		if normalizeAddress(loc.Address) == needle {
			return loc.Clone(), nil
		}
	}
	return nil, nil
}

func (r *MemoryLocationRepository) FindByTitleRef(ctx context.Context, titleRef string) (*models.Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, loc := range r.locations {
		if loc.TitleReference != nil && strings.EqualFold(*loc.TitleReference, titleRef) {
			return loc.Clone(), nil
		}
	}
	return nil, nil
}

func (r *MemoryLocationRepository) FindByCoordinates(ctx context.Context, lat, lng float64) (*models.Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, loc := range r.locations {
		if math.Abs(loc.Latitude-lat) <= CoordinateEpsilon && math.Abs(loc.Longitude-lng) <= CoordinateEpsilon {
			return loc.Clone(), nil
		}
	}
	return nil, nil
}

func (r *MemoryLocationRepository) Create(ctx context.Context, loc *models.Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locations[loc.ID] = loc.Clone()
	return nil
}

func (r *MemoryLocationRepository) UpdateSection(ctx context.Context, id uuid.UUID, section models.Section, data models.SectionData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	loc, ok := r.locations[id]
	if !ok {
		return nil
	}
	current := loc.Sections[section]
	// Last-write-wins on the retrieval timestamp. Error-only updates carry
	// no timestamp and never clobber a newer successful fetch's payload.
	if current.RetrievedAt != nil && data.RetrievedAt != nil && data.RetrievedAt.Before(*current.RetrievedAt) {
		return nil
	}
	if data.RetrievedAt == nil && data.LastError != "" {
		// Failed attempt: keep the previously cached payload and timestamp.
		current.LastError = data.LastError
		loc.Sections[section] = current
	} else {
		loc.Sections[section] = data
	}
	loc.Version++
	loc.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryLocationRepository) Update(ctx context.Context, loc *models.Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.locations[loc.ID]
	if !ok {
		return nil
	}
	if current.Version != loc.Version {
		return ErrVersionConflict
	}
	updated := loc.Clone()
	updated.Version++
	updated.UpdatedAt = time.Now().UTC()
	r.locations[loc.ID] = updated
	return nil
}

func normalizeAddress(address string) string {
	return strings.Join(strings.Fields(strings.ToLower(address)), " ")
}

// idsMatchingAddress returns the ids of locations whose address contains the
// query, case-insensitively.
func (r *MemoryLocationRepository) idsMatchingAddress(query string) map[uuid.UUID]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	needle := strings.ToLower(query)
	out := make(map[uuid.UUID]bool)
	for id, loc := range r.locations {
		if strings.Contains(strings.ToLower(loc.Address), needle) {
			out[id] = true
		}
	}
	return out
}

// MemoryJobRepository stores jobs and year sequences in mutex-guarded maps.
type MemoryJobRepository struct {
	mu        sync.RWMutex
	jobs      map[uuid.UUID]*models.Job
	sequences map[int]int
	locations *MemoryLocationRepository
}

// NewMemoryJobRepository creates an empty in-memory job repository.
func NewMemoryJobRepository() *MemoryJobRepository {
	return &MemoryJobRepository{
		jobs:      make(map[uuid.UUID]*models.Job),
		sequences: make(map[int]int),
	}
}

// WithLocations attaches the location repository so free-text queries can
// match against property addresses, mirroring the address subquery of the
// Postgres implementation.
func (r *MemoryJobRepository) WithLocations(locations *MemoryLocationRepository) *MemoryJobRepository {
	r.locations = locations
	return r
}

func (r *MemoryJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.jobs[id].Clone(), nil
}

func (r *MemoryJobRepository) GetByReference(ctx context.Context, reference string) (*models.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, job := range r.jobs {
		if strings.EqualFold(job.Reference, reference) {
			return job.Clone(), nil
		}
	}
	return nil, nil
}

func (r *MemoryJobRepository) Create(ctx context.Context, job *models.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job.Clone()
	return nil
}

func (r *MemoryJobRepository) Update(ctx context.Context, job *models.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.jobs[job.ID]
	if !ok {
		return nil
	}
	if current.Version != job.Version {
		return ErrVersionConflict
	}
	updated := job.Clone()
	updated.Version++
	updated.UpdatedAt = time.Now().UTC()
	r.jobs[job.ID] = updated
	// Reflect the bumped version back to the caller, matching RETURNING
	// semantics of the Postgres implementation.
	job.Version = updated.Version
	job.UpdatedAt = updated.UpdatedAt
	return nil
}

func (r *MemoryJobRepository) NextReference(ctx context.Context, year int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sequences[year]++
	return r.sequences[year], nil
}

func (r *MemoryJobRepository) List(ctx context.Context, filter JobFilter, page JobPage) ([]*models.Job, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var addressHits map[uuid.UUID]bool
	if filter.Query != "" && r.locations != nil {
		addressHits = r.locations.idsMatchingAddress(filter.Query)
	}

	var matched []*models.Job
	for _, job := range r.jobs {
		if jobMatches(job, filter, addressHits) {
			matched = append(matched, job.Clone())
		}
	}
	total := len(matched)
	sortJobs(matched, page)

	if page.Offset > 0 {
		if page.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[page.Offset:]
		}
	}
	if page.Limit > 0 && len(matched) > page.Limit {
		matched = matched[:page.Limit]
	}
	if matched == nil {
		matched = []*models.Job{}
	}
	return matched, total, nil
}

func jobMatches(job *models.Job, filter JobFilter, addressHits map[uuid.UUID]bool) bool {
	if filter.Owner != "" && !strings.EqualFold(job.Owner, filter.Owner) {
		return false
	}
	if filter.LocationID != uuid.Nil && job.LocationID != filter.LocationID {
		return false
	}
	if filter.Status != "" && job.Status != filter.Status {
		return false
	}
	if filter.IntendedUse != "" && !strings.EqualFold(job.IntendedUse, filter.IntendedUse) {
		return false
	}
	if filter.CreatedFrom != nil && job.CreatedAt.Before(*filter.CreatedFrom) {
		return false
	}
	if filter.CreatedTo != nil && job.CreatedAt.After(*filter.CreatedTo) {
		return false
	}
	if filter.Query != "" {
		q := strings.ToLower(filter.Query)
		haystack := strings.ToLower(strings.Join([]string{
			job.Reference, job.Customer.Name, job.Customer.Company, job.Owner,
		}, " "))
		if !strings.Contains(haystack, q) && !addressHits[job.LocationID] {
			return false
		}
	}
	return true
}

func sortJobs(jobs []*models.Job, page JobPage) {
	less := func(a, b *models.Job) bool {
		switch page.SortBy {
		case "reference":
			return a.Reference < b.Reference
		case "status":
			if a.Status != b.Status {
				return a.Status < b.Status
			}
		case "completeness":
			if a.Completeness != b.Completeness {
				return a.Completeness < b.Completeness
			}
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		// Reference is unique, so the overall order is stable.
		return a.Reference < b.Reference
	}
	sort.SliceStable(jobs, func(i, j int) bool {
		if page.Descending {
			return less(jobs[j], jobs[i])
		}
		return less(jobs[i], jobs[j])
	})
}

// MemoryReportRepository stores report records in a mutex-guarded map.
type MemoryReportRepository struct {
	mu      sync.RWMutex
	reports map[uuid.UUID]*models.Report
}

// NewMemoryReportRepository creates an empty in-memory report repository.
func NewMemoryReportRepository() *MemoryReportRepository {
	return &MemoryReportRepository{reports: make(map[uuid.UUID]*models.Report)}
}

func (r *MemoryReportRepository) Create(ctx context.Context, report *models.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *report
	r.reports[report.ID] = &copied
	return nil
}

func (r *MemoryReportRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	report, ok := r.reports[id]
	if !ok {
		return nil, nil
	}
	copied := *report
	return &copied, nil
}

func (r *MemoryReportRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*models.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*models.Report{}
	for _, report := range r.reports {
		if report.JobID == jobID {
			copied := *report
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GeneratedAt.Before(out[j].GeneratedAt) })
	return out, nil
}

func (r *MemoryReportRepository) RecordDownload(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	report, ok := r.reports[id]
	if !ok {
		return nil, nil
	}
	now := time.Now().UTC()
	report.DownloadCount++
	report.LastDownloadedAt = &now
	copied := *report
	return &copied, nil
}
