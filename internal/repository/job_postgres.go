package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/parcelworks/siteline/internal/database"
	"github.com/parcelworks/siteline/internal/models"
)

// postgresJobRepository is the pgx-backed JobRepository. Reference sequences
// live in a job_sequences table keyed by year; allocation is a single upsert
// so concurrent creations can never collide.
type postgresJobRepository struct {
	db *database.Database
}

// NewPostgresJobRepository creates a JobRepository backed by the given
// connection pool.
func NewPostgresJobRepository(db *database.Database) JobRepository {
	return &postgresJobRepository{db: db}
}

const jobColumns = `
	id,
	reference,
	location_id,
	customer,
	intended_use,
	owner,
	status,
	data_status,
	completeness,
	data_gaps,
	report_ids,
	version,
	created_at,
	updated_at,
	completed_at
`

func (r *postgresJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	return r.queryOne(ctx, query, id)
}

func (r *postgresJobRepository) GetByReference(ctx context.Context, reference string) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE upper(reference) = upper($1)`
	return r.queryOne(ctx, query, reference)
}

func (r *postgresJobRepository) Create(ctx context.Context, job *models.Job) error {
	customerJSON, err := marshalJSON(job.Customer)
	if err != nil {
		return fmt.Errorf("failed to marshal customer: %w", err)
	}
	statusJSON, err := marshalJSON(job.DataStatus)
	if err != nil {
		return fmt.Errorf("failed to marshal data status: %w", err)
	}
	gapsJSON, err := marshalJSON(job.DataGaps)
	if err != nil {
		return fmt.Errorf("failed to marshal data gaps: %w", err)
	}
	reportsJSON, err := marshalJSON(job.ReportIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal report ids: %w", err)
	}

	query := `
		INSERT INTO jobs (
			id, reference, location_id, customer, intended_use, owner,
			status, data_status, completeness, data_gaps, report_ids,
			version, created_at, updated_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err = r.db.Pool.Exec(ctx, query,
		job.ID,
		job.Reference,
		job.LocationID,
		customerJSON,
		job.IntendedUse,
		job.Owner,
		string(job.Status),
		statusJSON,
		job.Completeness,
		gapsJSON,
		reportsJSON,
		job.Version,
		job.CreatedAt,
		job.UpdatedAt,
		job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job %s: %w", job.Reference, err)
	}
	return nil
}

func (r *postgresJobRepository) Update(ctx context.Context, job *models.Job) error {
	customerJSON, err := marshalJSON(job.Customer)
	if err != nil {
		return fmt.Errorf("failed to marshal customer: %w", err)
	}
	statusJSON, err := marshalJSON(job.DataStatus)
	if err != nil {
		return fmt.Errorf("failed to marshal data status: %w", err)
	}
	gapsJSON, err := marshalJSON(job.DataGaps)
	if err != nil {
		return fmt.Errorf("failed to marshal data gaps: %w", err)
	}
	reportsJSON, err := marshalJSON(job.ReportIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal report ids: %w", err)
	}

	query := `
		UPDATE jobs
		SET customer = $2,
			intended_use = $3,
			owner = $4,
			status = $5,
			data_status = $6,
			completeness = $7,
			data_gaps = $8,
			report_ids = $9,
			completed_at = $10,
			version = version + 1,
			updated_at = now()
		WHERE id = $1 AND version = $11
		RETURNING version, updated_at
	`
	err = r.db.Pool.QueryRow(ctx, query,
		job.ID,
		customerJSON,
		job.IntendedUse,
		job.Owner,
		string(job.Status),
		statusJSON,
		job.Completeness,
		gapsJSON,
		reportsJSON,
		job.CompletedAt,
		job.Version,
	).Scan(&job.Version, &job.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrVersionConflict
		}
		return fmt.Errorf("failed to update job %s: %w", job.ID, err)
	}
	return nil
}

func (r *postgresJobRepository) NextReference(ctx context.Context, year int) (int, error) {
	query := `
		INSERT INTO job_sequences (year, last_seq)
		VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET last_seq = job_sequences.last_seq + 1
		RETURNING last_seq
	`
	var seq int
	if err := r.db.Pool.QueryRow(ctx, query, year).Scan(&seq); err != nil {
		return 0, fmt.Errorf("failed to allocate job sequence for %d: %w", year, err)
	}
	return seq, nil
}

// sortColumns maps JobPage.SortBy values to order-by expressions. Reference
// is appended as a tie-break so pagination is stable.
var sortColumns = map[string]string{
	"created_at":   "created_at",
	"reference":    "reference",
	"status":       "status",
	"completeness": "completeness",
}

func (r *postgresJobRepository) List(ctx context.Context, filter JobFilter, page JobPage) ([]*models.Job, int, error) {
	where, args := buildJobFilter(filter)

	countQuery := `SELECT count(*) FROM jobs` + where
	var total int
	if err := r.db.Pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count jobs: %w", err)
	}

	orderBy, ok := sortColumns[page.SortBy]
	if !ok {
		orderBy = "created_at"
	}
	direction := "ASC"
	if page.Descending {
		direction = "DESC"
	}
	limit := page.Limit
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(
		`SELECT %s FROM jobs%s ORDER BY %s %s, reference %s LIMIT $%d OFFSET $%d`,
		jobColumns, where, orderBy, direction, direction, len(args)+1, len(args)+2,
	)
	args = append(args, limit, page.Offset)

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*models.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating job rows: %w", err)
	}
	return jobs, total, nil
}

// buildJobFilter assembles the WHERE clause for a listing. Arguments are
// positional, so the clause and args slice are built together.
func buildJobFilter(filter JobFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	add := func(clause string, value interface{}) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if filter.Owner != "" {
		add("lower(owner) = lower($%d)", filter.Owner)
	}
	if filter.LocationID != uuid.Nil {
		add("location_id = $%d", filter.LocationID)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.IntendedUse != "" {
		add("lower(intended_use) = lower($%d)", filter.IntendedUse)
	}
	if filter.CreatedFrom != nil {
		add("created_at >= $%d", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		add("created_at <= $%d", *filter.CreatedTo)
	}
	if filter.Query != "" {
		add(`(reference ILIKE '%%' || $%d || '%%'
			OR customer ->> 'name' ILIKE '%%' || $%[1]d || '%%'
			OR customer ->> 'company' ILIKE '%%' || $%[1]d || '%%'
			OR owner ILIKE '%%' || $%[1]d || '%%'
			OR location_id IN (
				SELECT id FROM locations WHERE address ILIKE '%%' || $%[1]d || '%%'
			))`, filter.Query)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (r *postgresJobRepository) queryOne(ctx context.Context, query string, args ...interface{}) (*models.Job, error) {
	row := r.db.Pool.QueryRow(ctx, query, args...)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return job, nil
}

func scanJob(row pgx.Row) (*models.Job, error) {
	var job models.Job
	var customerJSON, statusJSON, gapsJSON, reportsJSON []byte
	var status string

	err := row.Scan(
		&job.ID,
		&job.Reference,
		&job.LocationID,
		&customerJSON,
		&job.IntendedUse,
		&job.Owner,
		&status,
		&statusJSON,
		&job.Completeness,
		&gapsJSON,
		&reportsJSON,
		&job.Version,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan job row: %w", err)
	}

	job.Status = models.JobStatus(status)
	if err := json.Unmarshal(customerJSON, &job.Customer); err != nil {
		return nil, fmt.Errorf("failed to parse customer for job %s: %w", job.ID, err)
	}
	job.DataStatus = make(map[models.Section]models.SectionRecord)
	if len(statusJSON) > 0 && string(statusJSON) != "null" {
		if err := json.Unmarshal(statusJSON, &job.DataStatus); err != nil {
			return nil, fmt.Errorf("failed to parse data status for job %s: %w", job.ID, err)
		}
	}
	if len(gapsJSON) > 0 && string(gapsJSON) != "null" {
		if err := json.Unmarshal(gapsJSON, &job.DataGaps); err != nil {
			return nil, fmt.Errorf("failed to parse data gaps for job %s: %w", job.ID, err)
		}
	}
	if len(reportsJSON) > 0 && string(reportsJSON) != "null" {
		if err := json.Unmarshal(reportsJSON, &job.ReportIDs); err != nil {
			return nil, fmt.Errorf("failed to parse report ids for job %s: %w", job.ID, err)
		}
	}
	return &job, nil
}
