package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/parcelworks/siteline/internal/models"
	"github.com/parcelworks/siteline/internal/repository"
)

func createTestJob(t *testing.T, o *JobOrchestrator) *models.Job {
	t.Helper()
	job, err := o.CreateJob(context.Background(), CreateJobRequest{
		Locator:     Locator{Address: "12 Harbour View Road, Northcote"},
		Customer:    models.CustomerInfo{Name: "Meridian Developments", Company: "Meridian"},
		IntendedUse: "residential",
		Owner:       "sarah",
	})
	require.NoError(t, err)
	return job
}

func TestCreateJob(t *testing.T) {
	orchestrator, _, _, _, _ := newTestStack()
	job := createTestJob(t, orchestrator)

	year := time.Now().UTC().Year()
	assert.Equal(t, fmt.Sprintf("JOB-%d-00001", year), job.Reference)
	assert.Equal(t, models.JobCreated, job.Status)
	assert.Equal(t, 0, job.Completeness)
	assert.NotEqual(t, uuid.Nil, job.LocationID)
	require.Len(t, job.DataStatus, models.SectionCount)
	for section, record := range job.DataStatus {
		assert.Equal(t, models.StatusNotStarted, record.Status, "section %s starts not_started", section)
	}
}

func TestCreateJobSequentialReferences(t *testing.T) {
	orchestrator, _, _, _, _ := newTestStack()

	first := createTestJob(t, orchestrator)
	second := createTestJob(t, orchestrator)

	year := time.Now().UTC().Year()
	assert.Equal(t, fmt.Sprintf("JOB-%d-00001", year), first.Reference)
	assert.Equal(t, fmt.Sprintf("JOB-%d-00002", year), second.Reference)
	assert.Equal(t, first.LocationID, second.LocationID, "same address shares one location")
}

func TestCreateJobLocatorValidation(t *testing.T) {
	orchestrator, _, _, _, _ := newTestStack()
	ctx := context.Background()

	_, err := orchestrator.CreateJob(ctx, CreateJobRequest{})
	assert.ErrorIs(t, err, ErrInvalidLocator, "no locator")

	_, err = orchestrator.CreateJob(ctx, CreateJobRequest{
		Locator: Locator{
			Address:        "12 Harbour View Road",
			TitleReference: "NA123/456",
		},
	})
	assert.ErrorIs(t, err, ErrInvalidLocator, "two locators")
}

func TestCreateJobAutoStart(t *testing.T) {
	orchestrator, _, _, counters, _ := newTestStack()

	job, err := orchestrator.CreateJob(context.Background(), CreateJobRequest{
		Locator:                 Locator{Address: "12 Harbour View Road, Northcote"},
		Customer:                models.CustomerInfo{Name: "Meridian Developments"},
		AutoStartDataCollection: true,
	})
	require.NoError(t, err)

	assert.Equal(t, models.JobComplete, job.Status)
	require.NotNil(t, job.CompletedAt)
	for section, counter := range counters {
		assert.Equal(t, int64(1), counter.calls.Load(), "section %s fetched during auto-start", section)
	}
}

func TestRunDataCollection(t *testing.T) {
	orchestrator, _, _, _, _ := newTestStack()
	job := createTestJob(t, orchestrator)

	job, err := orchestrator.RunDataCollection(context.Background(), job.ID)
	require.NoError(t, err)

	assert.Equal(t, models.JobComplete, job.Status)
	require.NotNil(t, job.CompletedAt)
	// Six provider-backed sections complete, title not available: 6/7.
	assert.Equal(t, 86, job.Completeness)
	assert.Equal(t, models.StatusNotAvailable, job.DataStatus[models.SectionTitle].Status)

	require.Len(t, job.DataGaps, 1)
	assert.Equal(t, models.SectionTitle, job.DataGaps[0].Section)
	assert.Equal(t, models.GapInfo, job.DataGaps[0].Severity)
}

func TestRunDataCollectionProviderFailure(t *testing.T) {
	orchestrator, _, _, counters, _ := newTestStack()
	counters[models.SectionHazards].err = errors.New("seismic service unavailable")
	job := createTestJob(t, orchestrator)

	job, err := orchestrator.RunDataCollection(context.Background(), job.ID)
	require.NoError(t, err, "a failed section must not fail the collection run")

	assert.Equal(t, models.JobComplete, job.Status)
	assert.Equal(t, models.StatusError, job.DataStatus[models.SectionHazards].Status)
	assert.Equal(t, models.StatusNotAvailable, job.DataStatus[models.SectionTitle].Status)
	for _, section := range []models.Section{
		models.SectionZoning, models.SectionGeotechnical, models.SectionInfrastructure,
		models.SectionClimate, models.SectionLand,
	} {
		assert.Equal(t, models.StatusComplete, job.DataStatus[section].Status, "section %s", section)
	}
	// 5 of 7 sections complete.
	assert.Equal(t, 71, job.Completeness)

	severities := map[models.Section]models.GapSeverity{}
	for _, gap := range job.DataGaps {
		severities[gap.Section] = gap.Severity
	}
	assert.Equal(t, models.GapWarning, severities[models.SectionHazards])
	assert.Equal(t, models.GapInfo, severities[models.SectionTitle])
}

func TestRunDataCollectionIdempotent(t *testing.T) {
	orchestrator, _, _, counters, _ := newTestStack()
	job := createTestJob(t, orchestrator)
	ctx := context.Background()

	first, err := orchestrator.RunDataCollection(ctx, job.ID)
	require.NoError(t, err)
	second, err := orchestrator.RunDataCollection(ctx, job.ID)
	require.NoError(t, err)

	for section, counter := range counters {
		assert.Equal(t, int64(1), counter.calls.Load(), "fresh section %s must not be re-fetched", section)
	}
	assert.Equal(t, first.Completeness, second.Completeness)
	assert.True(t, first.CompletedAt.Equal(*second.CompletedAt), "completion time is stamped once")
	for section, record := range first.DataStatus {
		assert.Equal(t, record.Status, second.DataStatus[section].Status, "section %s", section)
	}
}

func TestRefreshSectionsForcesRefetch(t *testing.T) {
	orchestrator, _, _, counters, _ := newTestStack()
	job := createTestJob(t, orchestrator)
	ctx := context.Background()

	_, err := orchestrator.RunDataCollection(ctx, job.ID)
	require.NoError(t, err)

	_, err = orchestrator.RefreshSections(ctx, job.ID, []models.Section{models.SectionHazards})
	require.NoError(t, err)

	assert.Equal(t, int64(2), counters[models.SectionHazards].calls.Load())
	for section, counter := range counters {
		if section == models.SectionHazards {
			continue
		}
		assert.Equal(t, int64(1), counter.calls.Load(), "unnamed section %s must not be re-fetched", section)
	}
}

func TestRefreshSectionsUnknownSection(t *testing.T) {
	orchestrator, _, _, _, _ := newTestStack()
	job := createTestJob(t, orchestrator)

	_, err := orchestrator.RefreshSections(context.Background(), job.ID, []models.Section{"parking"})
	assert.ErrorIs(t, err, ErrUnknownSection)
}

func TestRunDataCollectionOnCancelledJob(t *testing.T) {
	orchestrator, _, _, _, _ := newTestStack()
	job := createTestJob(t, orchestrator)
	ctx := context.Background()

	_, err := orchestrator.CancelJob(ctx, job.ID)
	require.NoError(t, err)

	_, err = orchestrator.RunDataCollection(ctx, job.ID)
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestGetJobByReference(t *testing.T) {
	orchestrator, _, _, _, _ := newTestStack()
	job := createTestJob(t, orchestrator)

	found, err := orchestrator.GetJobByReference(context.Background(), job.Reference)
	require.NoError(t, err)
	assert.Equal(t, job.ID, found.ID)

	_, err = orchestrator.GetJobByReference(context.Background(), "JOB-1999-00001")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestUpdateJobPartialMerge(t *testing.T) {
	orchestrator, _, _, _, _ := newTestStack()
	job := createTestJob(t, orchestrator)

	newOwner := "tom"
	updated, err := orchestrator.UpdateJob(context.Background(), job.ID, JobUpdate{Owner: &newOwner})
	require.NoError(t, err)

	assert.Equal(t, "tom", updated.Owner)
	assert.Equal(t, job.Customer, updated.Customer, "absent fields keep their values")
	assert.Equal(t, job.IntendedUse, updated.IntendedUse)
	assert.Equal(t, job.Reference, updated.Reference)
}

func TestUpdateStatusTransitions(t *testing.T) {
	orchestrator, _, _, _, _ := newTestStack()
	ctx := context.Background()

	t.Run("valid transition", func(t *testing.T) {
		job := createTestJob(t, orchestrator)
		updated, err := orchestrator.UpdateStatus(ctx, job.ID, models.JobInProgress)
		require.NoError(t, err)
		assert.Equal(t, models.JobInProgress, updated.Status)
	})

	t.Run("unknown status", func(t *testing.T) {
		job := createTestJob(t, orchestrator)
		_, err := orchestrator.UpdateStatus(ctx, job.ID, "archived")
		assert.ErrorIs(t, err, ErrInvalidStatus)
	})

	t.Run("complete can reopen to in_progress", func(t *testing.T) {
		job := createTestJob(t, orchestrator)
		_, err := orchestrator.RunDataCollection(ctx, job.ID)
		require.NoError(t, err)

		updated, err := orchestrator.UpdateStatus(ctx, job.ID, models.JobInProgress)
		require.NoError(t, err)
		assert.Equal(t, models.JobInProgress, updated.Status)
		assert.NotNil(t, updated.CompletedAt, "reopening keeps the original completion time")
	})

	t.Run("complete cannot go back to review", func(t *testing.T) {
		job := createTestJob(t, orchestrator)
		_, err := orchestrator.RunDataCollection(ctx, job.ID)
		require.NoError(t, err)

		_, err = orchestrator.UpdateStatus(ctx, job.ID, models.JobReview)
		assert.ErrorIs(t, err, ErrIllegalTransition)
	})

	t.Run("cancelled is terminal", func(t *testing.T) {
		job := createTestJob(t, orchestrator)
		_, err := orchestrator.CancelJob(ctx, job.ID)
		require.NoError(t, err)

		_, err = orchestrator.UpdateStatus(ctx, job.ID, models.JobInProgress)
		assert.ErrorIs(t, err, ErrIllegalTransition)
	})
}

func TestListJobs(t *testing.T) {
	orchestrator, _, _, _, _ := newTestStack()
	ctx := context.Background()

	first := createTestJob(t, orchestrator)
	_, err := orchestrator.CreateJob(ctx, CreateJobRequest{
		Locator:  Locator{Address: "12 Harbour View Road, Northcote"},
		Customer: models.CustomerInfo{Name: "Crestline Holdings"},
		Owner:    "tom",
	})
	require.NoError(t, err)

	jobs, total, err := orchestrator.ListJobs(ctx, repository.JobFilter{Owner: "sarah"}, repository.JobPage{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, jobs, 1)
	assert.Equal(t, first.ID, jobs[0].ID)

	jobs, total, err = orchestrator.ListJobs(ctx, repository.JobFilter{Query: "crestline"}, repository.JobPage{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, jobs, 1)
	assert.Equal(t, "Crestline Holdings", jobs[0].Customer.Name)
}

func TestListJobsByAddressFragment(t *testing.T) {
	orchestrator, _, _, _, _ := newTestStack()
	ctx := context.Background()

	job := createTestJob(t, orchestrator)

	jobs, total, err := orchestrator.ListJobs(ctx, repository.JobFilter{Query: "harbour"}, repository.JobPage{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, jobs, 1)
	assert.Equal(t, job.ID, jobs[0].ID)

	_, total, err = orchestrator.ListJobs(ctx, repository.JobFilter{Query: "nowhere"}, repository.JobPage{Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestConcurrentReferencesUnique(t *testing.T) {
	orchestrator, _, _, _, _ := newTestStack()
	ctx := context.Background()

	const workers = 20
	references := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			job, err := orchestrator.CreateJob(ctx, CreateJobRequest{
				Locator:  Locator{Address: "12 Harbour View Road, Northcote"},
				Customer: models.CustomerInfo{Name: "Meridian Developments"},
			})
			require.NoError(t, err)
			references[i] = job.Reference
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, workers)
	for _, ref := range references {
		assert.False(t, seen[ref], "reference %s allocated twice", ref)
		seen[ref] = true
	}
}
