package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/parcelworks/siteline/internal/logger"
	"github.com/parcelworks/siteline/internal/models"
	"github.com/parcelworks/siteline/internal/repository"
)

// Service-level errors for report generation and retrieval.
var (
	ErrReportNotFound    = errors.New("report not found")
	ErrInvalidReportType = errors.New("invalid report type")
	ErrRenderFailed      = errors.New("report rendering failed")
)

// Renderer turns an evaluation snapshot into a binary artifact. The section
// subset and ordering per report type are the renderer's concern.
type Renderer interface {
	Render(snapshot *EvaluationSnapshot, reportType models.ReportType, options models.ReportOptions) (data []byte, contentType string, err error)
}

// ReportContent is a fetched artifact plus its bookkeeping record.
type ReportContent struct {
	Report      *models.Report
	Data        []byte
	ContentType string
}

// ReportCoordinator builds evaluation snapshots, delegates rendering, and
// tracks stored artifacts and their delivery metadata.
type ReportCoordinator struct {
	orchestrator *JobOrchestrator
	reports      repository.ReportRepository
	artifacts    repository.ArtifactStore
	renderer     Renderer
	log          *logger.Logger
}

// NewReportCoordinator creates a ReportCoordinator.
func NewReportCoordinator(
	orchestrator *JobOrchestrator,
	reports repository.ReportRepository,
	artifacts repository.ArtifactStore,
	renderer Renderer,
	log *logger.Logger,
) *ReportCoordinator {
	return &ReportCoordinator{
		orchestrator: orchestrator,
		reports:      reports,
		artifacts:    artifacts,
		renderer:     renderer,
		log:          log,
	}
}

// Generate renders a report for the job and stores it. The job is only
// mutated after the artifact is safely persisted; a render failure leaves no
// partial report record behind.
func (c *ReportCoordinator) Generate(ctx context.Context, jobID uuid.UUID, reportType models.ReportType, options models.ReportOptions) (*models.Report, error) {
	if !models.ValidReportType(reportType) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidReportType, reportType)
	}

	job, err := c.orchestrator.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	loc, err := c.orchestrator.GetLocation(ctx, job)
	if err != nil {
		return nil, err
	}

	now := c.orchestrator.now().UTC()
	snapshot := BuildSnapshot(job, loc, now)

	data, contentType, err := c.renderer.Render(snapshot, reportType, options)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}

	reportID := uuid.New()
	report := &models.Report{
		ID:          reportID,
		JobID:       job.ID,
		Type:        reportType,
		Options:     options,
		StorageKey:  fmt.Sprintf("reports/%s/%s", job.ID, reportID),
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
		GeneratedAt: now,
	}

	if err := c.artifacts.Put(ctx, report.StorageKey, contentType, data); err != nil {
		return nil, fmt.Errorf("failed to store report artifact: %w", err)
	}
	if err := c.reports.Create(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to persist report record: %w", err)
	}
	if err := c.appendToJob(ctx, job.ID, report.ID); err != nil {
		return nil, err
	}

	c.log.Info("Report generated", map[string]interface{}{
		"job_id":    job.ID,
		"report_id": report.ID,
		"type":      reportType,
		"bytes":     report.SizeBytes,
	})
	return report, nil
}

// appendToJob adds the report id to the job's ordered report list under the
// job's write lock.
func (c *ReportCoordinator) appendToJob(ctx context.Context, jobID, reportID uuid.UUID) error {
	unlock := c.orchestrator.locks.Lock(jobID)
	defer unlock()

	job, err := c.orchestrator.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	job.ReportIDs = append(job.ReportIDs, reportID)
	return c.orchestrator.persist(ctx, job)
}

// FetchContent returns the stored artifact for a report. A successful fetch
// increments the download counter and stamps the download time; an unknown
// job or report id returns ErrReportNotFound with no bookkeeping.
func (c *ReportCoordinator) FetchContent(ctx context.Context, jobID, reportID uuid.UUID) (*ReportContent, error) {
	job, err := c.orchestrator.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	report, err := c.reports.GetByID(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to load report: %w", err)
	}
	if report == nil || report.JobID != job.ID {
		return nil, ErrReportNotFound
	}

	data, err := c.artifacts.Get(ctx, report.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch report artifact: %w", err)
	}

	updated, err := c.reports.RecordDownload(ctx, report.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to record download: %w", err)
	}
	if updated != nil {
		report = updated
	}

	return &ReportContent{
		Report:      report,
		Data:        data,
		ContentType: report.ContentType,
	}, nil
}

// ListReports returns the job's reports in generation order.
func (c *ReportCoordinator) ListReports(ctx context.Context, jobID uuid.UUID) ([]*models.Report, error) {
	if _, err := c.orchestrator.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	reports, err := c.reports.ListByJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	return reports, nil
}
