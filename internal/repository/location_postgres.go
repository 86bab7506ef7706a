package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/parcelworks/siteline/internal/database"
	"github.com/parcelworks/siteline/internal/models"
)

// postgresLocationRepository is the pgx-backed LocationRepository.
// Section data and the boundary ring are stored as JSONB; per-section writes
// use jsonb_set so two sections can be updated concurrently without
// clobbering each other.
type postgresLocationRepository struct {
	db *database.Database
}

// NewPostgresLocationRepository creates a LocationRepository backed by the
// given connection pool.
func NewPostgresLocationRepository(db *database.Database) LocationRepository {
	return &postgresLocationRepository{db: db}
}

const locationColumns = `
	id,
	address,
	title_reference,
	legal_description,
	latitude,
	longitude,
	boundary,
	sections,
	version,
	created_at,
	updated_at
`

func (r *postgresLocationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations WHERE id = $1`
	return r.queryOne(ctx, query, id)
}

func (r *postgresLocationRepository) FindByAddress(ctx context.Context, address string) (*models.Location, error) {
	// Addresses are compared on a whitespace-normalized, case-folded form so
	// the same property typed slightly differently still resolves to one record.
	query := `SELECT ` + locationColumns + ` FROM locations
		WHERE lower(regexp_replace(address, '\s+', ' ', 'g')) = lower(regexp_replace($1, '\s+', ' ', 'g'))
		LIMIT 1`
	return r.queryOne(ctx, query, address)
}

func (r *postgresLocationRepository) FindByTitleRef(ctx context.Context, titleRef string) (*models.Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations
		WHERE lower(title_reference) = lower($1)
		LIMIT 1`
	return r.queryOne(ctx, query, titleRef)
}

func (r *postgresLocationRepository) FindByCoordinates(ctx context.Context, lat, lng float64) (*models.Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations
		WHERE abs(latitude - $1) <= $3 AND abs(longitude - $2) <= $3
		ORDER BY abs(latitude - $1) + abs(longitude - $2)
		LIMIT 1`
	return r.queryOne(ctx, query, lat, lng, CoordinateEpsilon)
}

func (r *postgresLocationRepository) Create(ctx context.Context, loc *models.Location) error {
	boundaryJSON, err := marshalJSON(loc.Boundary)
	if err != nil {
		return fmt.Errorf("failed to marshal boundary: %w", err)
	}
	sectionsJSON, err := marshalJSON(loc.Sections)
	if err != nil {
		return fmt.Errorf("failed to marshal sections: %w", err)
	}

	query := `
		INSERT INTO locations (
			id, address, title_reference, legal_description,
			latitude, longitude, boundary, sections,
			version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = r.db.Pool.Exec(ctx, query,
		loc.ID,
		loc.Address,
		loc.TitleReference,
		loc.LegalDescription,
		loc.Latitude,
		loc.Longitude,
		boundaryJSON,
		sectionsJSON,
		loc.Version,
		loc.CreatedAt,
		loc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert location %s: %w", loc.ID, err)
	}
	return nil
}

// UpdateSection replaces a single key of the sections JSONB document. The
// WHERE clause enforces last-write-wins on retrieved_at, and an error-only
// update merges the error into the existing entry instead of replacing it.
func (r *postgresLocationRepository) UpdateSection(ctx context.Context, id uuid.UUID, section models.Section, data models.SectionData) error {
	dataJSON, err := marshalJSON(data)
	if err != nil {
		return fmt.Errorf("failed to marshal section data: %w", err)
	}

	if data.RetrievedAt == nil && data.LastError != "" {
		// Record the failure without touching the cached payload.
		query := `
			UPDATE locations
			SET sections = jsonb_set(
					sections,
					ARRAY[$2],
					COALESCE(sections -> $2, '{}'::jsonb) || jsonb_build_object('lastError', $3::text)
				),
				version = version + 1,
				updated_at = now()
			WHERE id = $1
		`
		if _, err := r.db.Pool.Exec(ctx, query, id, string(section), data.LastError); err != nil {
			return fmt.Errorf("failed to record section error for location %s: %w", id, err)
		}
		return nil
	}

	query := `
		UPDATE locations
		SET sections = jsonb_set(sections, ARRAY[$2], $3::jsonb),
			version = version + 1,
			updated_at = now()
		WHERE id = $1
		AND COALESCE((sections -> $2 ->> 'retrievedAt')::timestamptz, 'epoch'::timestamptz) <= $4
	`
	retrievedAt := time.Time{}
	if data.RetrievedAt != nil {
		retrievedAt = *data.RetrievedAt
	}
	if _, err := r.db.Pool.Exec(ctx, query, id, string(section), dataJSON, retrievedAt); err != nil {
		return fmt.Errorf("failed to update section %s for location %s: %w", section, id, err)
	}
	return nil
}

func (r *postgresLocationRepository) Update(ctx context.Context, loc *models.Location) error {
	boundaryJSON, err := marshalJSON(loc.Boundary)
	if err != nil {
		return fmt.Errorf("failed to marshal boundary: %w", err)
	}
	sectionsJSON, err := marshalJSON(loc.Sections)
	if err != nil {
		return fmt.Errorf("failed to marshal sections: %w", err)
	}

	query := `
		UPDATE locations
		SET address = $2,
			title_reference = $3,
			legal_description = $4,
			latitude = $5,
			longitude = $6,
			boundary = $7,
			sections = $8,
			version = version + 1,
			updated_at = now()
		WHERE id = $1 AND version = $9
	`
	tag, err := r.db.Pool.Exec(ctx, query,
		loc.ID,
		loc.Address,
		loc.TitleReference,
		loc.LegalDescription,
		loc.Latitude,
		loc.Longitude,
		boundaryJSON,
		sectionsJSON,
		loc.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update location %s: %w", loc.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}

// queryOne runs a query selecting locationColumns and scans a single row.
// Returns nil, nil when no row matches.
func (r *postgresLocationRepository) queryOne(ctx context.Context, query string, args ...interface{}) (*models.Location, error) {
	var loc models.Location
	var boundaryJSON, sectionsJSON []byte

	err := r.db.Pool.QueryRow(ctx, query, args...).Scan(
		&loc.ID,
		&loc.Address,
		&loc.TitleReference,
		&loc.LegalDescription,
		&loc.Latitude,
		&loc.Longitude,
		&boundaryJSON,
		&sectionsJSON,
		&loc.Version,
		&loc.CreatedAt,
		&loc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query location: %w", err)
	}

	if len(boundaryJSON) > 0 && string(boundaryJSON) != "null" {
		if err := json.Unmarshal(boundaryJSON, &loc.Boundary); err != nil {
			return nil, fmt.Errorf("failed to parse boundary for location %s: %w", loc.ID, err)
		}
	}
	loc.Sections = make(map[models.Section]models.SectionData)
	if len(sectionsJSON) > 0 && string(sectionsJSON) != "null" {
		if err := json.Unmarshal(sectionsJSON, &loc.Sections); err != nil {
			return nil, fmt.Errorf("failed to parse sections for location %s: %w", loc.ID, err)
		}
	}
	return &loc, nil
}
