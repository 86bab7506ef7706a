package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/parcelworks/siteline/internal/database"
	"github.com/parcelworks/siteline/internal/models"
)

// postgresReportRepository is the pgx-backed ReportRepository.
type postgresReportRepository struct {
	db *database.Database
}

// NewPostgresReportRepository creates a ReportRepository backed by the given
// connection pool.
func NewPostgresReportRepository(db *database.Database) ReportRepository {
	return &postgresReportRepository{db: db}
}

const reportColumns = `
	id,
	job_id,
	type,
	options,
	storage_key,
	content_type,
	size_bytes,
	download_count,
	last_downloaded_at,
	generated_at
`

func (r *postgresReportRepository) Create(ctx context.Context, report *models.Report) error {
	optionsJSON, err := marshalJSON(report.Options)
	if err != nil {
		return fmt.Errorf("failed to marshal report options: %w", err)
	}

	query := `
		INSERT INTO reports (
			id, job_id, type, options, storage_key, content_type,
			size_bytes, download_count, last_downloaded_at, generated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.db.Pool.Exec(ctx, query,
		report.ID,
		report.JobID,
		string(report.Type),
		optionsJSON,
		report.StorageKey,
		report.ContentType,
		report.SizeBytes,
		report.DownloadCount,
		report.LastDownloadedAt,
		report.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert report %s: %w", report.ID, err)
	}
	return nil
}

func (r *postgresReportRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`
	report, err := scanReport(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return report, nil
}

func (r *postgresReportRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE job_id = $1 ORDER BY generated_at`
	rows, err := r.db.Pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports for job %s: %w", jobID, err)
	}
	defer rows.Close()

	reports := []*models.Report{}
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating report rows: %w", err)
	}
	return reports, nil
}

func (r *postgresReportRepository) RecordDownload(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	query := `
		UPDATE reports
		SET download_count = download_count + 1,
			last_downloaded_at = now()
		WHERE id = $1
		RETURNING ` + reportColumns
	report, err := scanReport(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return report, nil
}

func scanReport(row pgx.Row) (*models.Report, error) {
	var report models.Report
	var reportType string
	var optionsJSON []byte

	err := row.Scan(
		&report.ID,
		&report.JobID,
		&reportType,
		&optionsJSON,
		&report.StorageKey,
		&report.ContentType,
		&report.SizeBytes,
		&report.DownloadCount,
		&report.LastDownloadedAt,
		&report.GeneratedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan report row: %w", err)
	}

	report.Type = models.ReportType(reportType)
	if len(optionsJSON) > 0 && string(optionsJSON) != "null" {
		if err := json.Unmarshal(optionsJSON, &report.Options); err != nil {
			return nil, fmt.Errorf("failed to parse options for report %s: %w", report.ID, err)
		}
	}
	return &report, nil
}
