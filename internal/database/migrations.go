package database

import (
	"context"
	"fmt"
)

// schema is applied idempotently at startup. Identifier columns default to
// the empty string rather than NULL: absence of an identifier is a domain
// state, not a database state.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS workspaces (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		tier TEXT NOT NULL DEFAULT 'free',
		credits BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS api_keys (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		workspace_id UUID NOT NULL REFERENCES workspaces(id),
		token_hash TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_used_at TIMESTAMPTZ,
		revoked_at TIMESTAMPTZ
	)`,

	`CREATE TABLE IF NOT EXISTS scans (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		workspace_id UUID NOT NULL REFERENCES workspaces(id),
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		username TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		completed_at TIMESTAMPTZ
	)`,

	`CREATE INDEX IF NOT EXISTS idx_scans_user ON scans(user_id)`,

	`CREATE TABLE IF NOT EXISTS data_sources (
		id UUID PRIMARY KEY,
		scan_id UUID NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		risk_level TEXT NOT NULL DEFAULT 'low',
		data_found TEXT[] NOT NULL DEFAULT '{}',
		confidence_score DOUBLE PRECISION,
		first_seen TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_checked TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_data_sources_scan ON data_sources(scan_id)`,

	`CREATE TABLE IF NOT EXISTS social_profiles (
		id UUID PRIMARY KEY,
		scan_id UUID NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
		platform TEXT NOT NULL,
		username TEXT NOT NULL,
		profile_url TEXT NOT NULL DEFAULT '',
		confidence_score DOUBLE PRECISION,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_social_profiles_scan ON social_profiles(scan_id)`,

	`CREATE TABLE IF NOT EXISTS findings (
		id UUID PRIMARY KEY,
		scan_id UUID NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		provider TEXT NOT NULL DEFAULT '',
		severity TEXT NOT NULL DEFAULT 'info',
		confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
		evidence JSONB,
		observed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_findings_scan ON findings(scan_id)`,
}

// Migrate applies the schema. Safe to run on every startup.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	s.log.Infow("Database schema up to date", "statements", len(schema))
	return nil
}
