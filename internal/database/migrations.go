package database

import (
	"context"
	"fmt"
)

// migrations are applied in order on startup. Statements are idempotent so a
// restart against an already-migrated database is a no-op.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS locations (
		id UUID PRIMARY KEY,
		address TEXT NOT NULL,
		title_reference TEXT,
		legal_description TEXT,
		latitude DOUBLE PRECISION NOT NULL,
		longitude DOUBLE PRECISION NOT NULL,
		boundary JSONB,
		sections JSONB NOT NULL DEFAULT '{}'::jsonb,
		version BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_locations_address
		ON locations (lower(address))`,
	`CREATE INDEX IF NOT EXISTS idx_locations_title_reference
		ON locations (lower(title_reference))`,
	`CREATE INDEX IF NOT EXISTS idx_locations_coordinates
		ON locations (latitude, longitude)`,

	`CREATE TABLE IF NOT EXISTS jobs (
		id UUID PRIMARY KEY,
		reference TEXT NOT NULL UNIQUE,
		location_id UUID NOT NULL REFERENCES locations (id),
		customer JSONB NOT NULL DEFAULT '{}'::jsonb,
		intended_use TEXT NOT NULL DEFAULT '',
		owner TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		data_status JSONB NOT NULL DEFAULT '{}'::jsonb,
		completeness INT NOT NULL DEFAULT 0,
		data_gaps JSONB,
		report_ids JSONB,
		version BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		completed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_location ON jobs (location_id)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs (status)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_owner ON jobs (lower(owner))`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs (created_at)`,

	`CREATE TABLE IF NOT EXISTS job_sequences (
		year INT PRIMARY KEY,
		last_seq INT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS reports (
		id UUID PRIMARY KEY,
		job_id UUID NOT NULL REFERENCES jobs (id),
		type TEXT NOT NULL,
		options JSONB,
		storage_key TEXT NOT NULL,
		content_type TEXT NOT NULL,
		size_bytes BIGINT NOT NULL DEFAULT 0,
		download_count INT NOT NULL DEFAULT 0,
		last_downloaded_at TIMESTAMPTZ,
		generated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reports_job ON reports (job_id)`,
}

// RunMigrations creates the schema if it does not exist yet.
func (db *Database) RunMigrations(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
