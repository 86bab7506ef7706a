package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/parcelworks/siteline/internal/models"
)

// ErrVersionConflict is returned by optimistic updates when the record was
// modified concurrently. Callers re-read and retry.
var ErrVersionConflict = errors.New("version conflict")

// CoordinateEpsilon is the lat/lng tolerance used when matching a location
// by coordinates. Roughly 10 meters at the equator.
const CoordinateEpsilon = 0.0001

// JobFilter narrows a job listing. Zero-valued fields are ignored.
type JobFilter struct {
	Owner       string
	LocationID  uuid.UUID
	Status      models.JobStatus
	IntendedUse string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	// Query is matched case-insensitively against the job reference,
	// customer name and company, and the owner.
	Query string
}

// JobPage controls pagination and ordering of a job listing.
// SortBy is one of "created_at", "reference", "status", "completeness";
// unknown values fall back to created_at.
type JobPage struct {
	Limit      int
	Offset     int
	SortBy     string
	Descending bool
}

// LocationRepository is the persistence contract for canonical locations.
// Get/Find methods return nil, nil when no record matches; errors are
// reserved for storage failures.
type LocationRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Location, error)
	FindByAddress(ctx context.Context, address string) (*models.Location, error)
	FindByTitleRef(ctx context.Context, titleRef string) (*models.Location, error)
	FindByCoordinates(ctx context.Context, lat, lng float64) (*models.Location, error)
	Create(ctx context.Context, loc *models.Location) error

	// UpdateSection atomically replaces one section's cached data. The
	// write is applied only if retrievedAt is not older than the currently
	// stored timestamp (last-write-wins); other sections are untouched.
	UpdateSection(ctx context.Context, id uuid.UUID, section models.Section, data models.SectionData) error

	// Update replaces the whole record guarded by its version counter.
	// Returns ErrVersionConflict if the stored version differs.
	Update(ctx context.Context, loc *models.Location) error
}

// JobRepository is the persistence contract for jobs.
type JobRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	GetByReference(ctx context.Context, reference string) (*models.Job, error)
	Create(ctx context.Context, job *models.Job) error

	// Update replaces the record guarded by its version counter.
	Update(ctx context.Context, job *models.Job) error

	// NextReference allocates the next sequence number for the given year.
	// Allocation is atomic: concurrent callers never observe the same value.
	NextReference(ctx context.Context, year int) (int, error)

	// List returns the matching jobs and the total match count before
	// pagination.
	List(ctx context.Context, filter JobFilter, page JobPage) ([]*models.Job, int, error)
}

// ReportRepository is the persistence contract for report records.
type ReportRepository interface {
	Create(ctx context.Context, report *models.Report) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Report, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]*models.Report, error)

	// RecordDownload atomically increments the download counter and stamps
	// the download time, returning the updated record.
	RecordDownload(ctx context.Context, id uuid.UUID) (*models.Report, error)
}

// ArtifactStore persists rendered report binaries.
type ArtifactStore interface {
	Put(ctx context.Context, key string, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// marshalJSON is a small helper for writing struct columns as JSONB.
func marshalJSON(v interface{}) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}
