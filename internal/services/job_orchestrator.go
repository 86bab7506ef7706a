package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/parcelworks/siteline/internal/logger"
	"github.com/parcelworks/siteline/internal/models"
	"github.com/parcelworks/siteline/internal/repository"
)

// Service-level errors for job orchestration.
var (
	ErrJobNotFound       = errors.New("job not found")
	ErrInvalidLocator    = errors.New("exactly one locator must be supplied")
	ErrInvalidStatus     = errors.New("invalid job status")
	ErrIllegalTransition = errors.New("illegal status transition")
)

// Retries for optimistic updates that race a concurrent writer.
const updateRetries = 3

// CreateJobRequest is the input for creating a job.
type CreateJobRequest struct {
	Locator                 Locator
	Customer                models.CustomerInfo
	IntendedUse             string
	Owner                   string
	AutoStartDataCollection bool
}

// JobUpdate is a partial job metadata update. Nil fields are left unchanged.
// Location and data status are never touched by an update.
type JobUpdate struct {
	Customer    *models.CustomerInfo
	IntendedUse *string
	Owner       *string
}

// JobOrchestrator creates and retrieves jobs, drives their lifecycle, and
// keeps their per-section status snapshots in sync with the location cache.
// Writes to a given job are serialized through a per-id mutex on top of the
// repository's optimistic versioning.
type JobOrchestrator struct {
	jobs  repository.JobRepository
	cache *LocationCache
	log   *logger.Logger
	locks *keyedMutex
	now   func() time.Time
}

// NewJobOrchestrator creates a JobOrchestrator.
func NewJobOrchestrator(jobs repository.JobRepository, cache *LocationCache, log *logger.Logger) *JobOrchestrator {
	return &JobOrchestrator{
		jobs:  jobs,
		cache: cache,
		log:   log,
		locks: newKeyedMutex(),
		now:   time.Now,
	}
}

// CreateJob validates the request, resolves or creates the location,
// allocates the next sequential reference for the current year, and persists
// a new job in state Created. With AutoStartDataCollection set, data
// collection runs before returning.
func (o *JobOrchestrator) CreateJob(ctx context.Context, req CreateJobRequest) (*models.Job, error) {
	if req.Locator.Count() != 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLocator, req.Locator.Count())
	}

	loc, err := o.cache.Resolve(ctx, req.Locator)
	if err != nil {
		return nil, err
	}

	now := o.now().UTC()
	seq, err := o.jobs.NextReference(ctx, now.Year())
	if err != nil {
		return nil, fmt.Errorf("failed to allocate job reference: %w", err)
	}

	job := &models.Job{
		ID:          uuid.New(),
		Reference:   models.JobReference(now.Year(), seq),
		LocationID:  loc.ID,
		Customer:    req.Customer,
		IntendedUse: req.IntendedUse,
		Owner:       req.Owner,
		Status:      models.JobCreated,
		DataStatus:  models.NewDataStatus(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	job.Completeness = Score(job.DataStatus)

	if err := o.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}

	o.log.Info("Job created", map[string]interface{}{
		"job_id":      job.ID,
		"reference":   job.Reference,
		"location_id": loc.ID,
	})

	if req.AutoStartDataCollection {
		return o.RunDataCollection(ctx, job.ID)
	}
	return job, nil
}

// GetJob returns a job by id, or ErrJobNotFound.
func (o *JobOrchestrator) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	job, err := o.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// GetJobByReference returns a job by its human-readable reference.
func (o *JobOrchestrator) GetJobByReference(ctx context.Context, reference string) (*models.Job, error) {
	job, err := o.jobs.GetByReference(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// GetLocation returns the location a job points at.
func (o *JobOrchestrator) GetLocation(ctx context.Context, job *models.Job) (*models.Location, error) {
	loc, err := o.cache.repo.GetByID(ctx, job.LocationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load location: %w", err)
	}
	if loc == nil {
		return nil, ErrLocationNotFound
	}
	return loc, nil
}

// RunDataCollection refreshes all stale sections of the job's location, maps
// the resulting cache state onto the job's status snapshot, recomputes
// completeness, and moves the job to Complete. It is idempotent: a second
// run with nothing stale performs no provider calls and yields the same
// snapshot.
func (o *JobOrchestrator) RunDataCollection(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	return o.collect(ctx, jobID, nil, true)
}

// RefreshSections forces a re-fetch of the named sections regardless of
// staleness, then recomputes the job's snapshot.
func (o *JobOrchestrator) RefreshSections(ctx context.Context, jobID uuid.UUID, sections []models.Section) (*models.Job, error) {
	for _, section := range sections {
		if !models.ValidSection(section) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSection, section)
		}
	}
	return o.collect(ctx, jobID, sections, false)
}

func (o *JobOrchestrator) collect(ctx context.Context, jobID uuid.UUID, sections []models.Section, skipFresh bool) (*models.Job, error) {
	unlock := o.locks.Lock(jobID)
	defer unlock()

	job, err := o.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return nil, fmt.Errorf("%w: job is %s", ErrIllegalTransition, job.Status)
	}

	// Enter DataCollection before fanning out so concurrent readers see the
	// job in flight.
	job.Status = models.JobDataCollection
	if err := o.persist(ctx, job); err != nil {
		return nil, err
	}

	loc, err := o.cache.Refresh(ctx, job.LocationID, sections, skipFresh)
	if err != nil {
		return nil, err
	}

	syncedAt := o.now().UTC()
	job.DataStatus, job.DataGaps = snapshotStatus(loc)
	job.Completeness = Score(job.DataStatus)
	job.Status = models.JobComplete
	if job.CompletedAt == nil {
		job.CompletedAt = &syncedAt
	}

	if err := o.persist(ctx, job); err != nil {
		return nil, err
	}

	o.log.Info("Data collection finished", map[string]interface{}{
		"job_id":       job.ID,
		"reference":    job.Reference,
		"completeness": job.Completeness,
		"gaps":         len(job.DataGaps),
	})
	return job, nil
}

// snapshotStatus derives the per-section status snapshot and data gaps from
// the location's cache at this moment. The snapshot is a copy: later cache
// refreshes do not change it until the job re-syncs.
func snapshotStatus(loc *models.Location) (map[models.Section]models.SectionRecord, []models.DataGap) {
	status := make(map[models.Section]models.SectionRecord, models.SectionCount)
	var gaps []models.DataGap

	for _, section := range models.Sections {
		data := loc.Section(section)
		record := models.SectionRecord{LastUpdated: data.RetrievedAt}

		switch {
		case data.LastError != "":
			record.Status = models.StatusError
			gaps = append(gaps, models.DataGap{
				Section:  section,
				Severity: models.GapWarning,
				Detail:   data.LastError,
			})
		case data.RetrievedAt == nil:
			record.Status = models.StatusNotAvailable
			gaps = append(gaps, models.DataGap{
				Section:  section,
				Severity: models.GapInfo,
				Detail:   "no data source available",
			})
		case IsStale(loc, section, 0):
			record.Status = models.StatusPartial
		default:
			record.Status = models.StatusComplete
		}
		status[section] = record
	}
	return status, gaps
}

// UpdateJob merges the provided fields into the job's metadata. Absent
// fields keep their current values.
func (o *JobOrchestrator) UpdateJob(ctx context.Context, jobID uuid.UUID, update JobUpdate) (*models.Job, error) {
	unlock := o.locks.Lock(jobID)
	defer unlock()

	job, err := o.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if update.Customer != nil {
		job.Customer = *update.Customer
	}
	if update.IntendedUse != nil {
		job.IntendedUse = *update.IntendedUse
	}
	if update.Owner != nil {
		job.Owner = *update.Owner
	}

	if err := o.persist(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// UpdateStatus applies a direct lifecycle transition. Setting Complete for
// the first time stamps the completion time. Reopening a Complete job to
// InProgress is allowed; Cancelled is terminal.
func (o *JobOrchestrator) UpdateStatus(ctx context.Context, jobID uuid.UUID, status models.JobStatus) (*models.Job, error) {
	if !models.ValidJobStatus(status) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	unlock := o.locks.Lock(jobID)
	defer unlock()

	job, err := o.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, job.Status, status)
	}

	job.Status = status
	if status == models.JobComplete && job.CompletedAt == nil {
		now := o.now().UTC()
		job.CompletedAt = &now
	}

	if err := o.persist(ctx, job); err != nil {
		return nil, err
	}

	o.log.Info("Job status updated", map[string]interface{}{
		"job_id":    job.ID,
		"reference": job.Reference,
		"status":    job.Status,
	})
	return job, nil
}

// CancelJob moves the job to its terminal Cancelled state.
func (o *JobOrchestrator) CancelJob(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	return o.UpdateStatus(ctx, jobID, models.JobCancelled)
}

// ListJobs returns jobs matching the filter plus the total match count.
func (o *JobOrchestrator) ListJobs(ctx context.Context, filter repository.JobFilter, page repository.JobPage) ([]*models.Job, int, error) {
	jobs, total, err := o.jobs.List(ctx, filter, page)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, total, nil
}

// persist writes the job back, retrying version conflicts by re-reading and
// reapplying on top of the latest record. The per-id lock keeps our own
// writers ordered; retries only fire when an external writer races us.
func (o *JobOrchestrator) persist(ctx context.Context, job *models.Job) error {
	var err error
	for attempt := 0; attempt <= updateRetries; attempt++ {
		err = o.jobs.Update(ctx, job)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return fmt.Errorf("failed to persist job %s: %w", job.ID, err)
		}
		current, getErr := o.jobs.GetByID(ctx, job.ID)
		if getErr != nil || current == nil {
			break
		}
		job.Version = current.Version
	}
	return fmt.Errorf("failed to persist job %s: %w", job.ID, err)
}
