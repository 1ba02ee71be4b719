package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'user',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS attendees (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		profile_id TEXT UNIQUE NOT NULL,
		profile_url TEXT NOT NULL,
		name TEXT,
		badge TEXT,
		title TEXT,
		company TEXT,
		bio TEXT,
		location TEXT,
		industry TEXT,
		communities JSONB NOT NULL DEFAULT '[]'::jsonb,
		status TEXT NOT NULL DEFAULT 'discovered',
		attempt_count INT NOT NULL DEFAULT 0,
		last_error TEXT,
		permanent_failure BOOLEAN NOT NULL DEFAULT FALSE,
		discovered_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		sent_at TIMESTAMPTZ,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attendees_status ON attendees(status)`,
	`CREATE INDEX IF NOT EXISTS idx_attendees_discovered_at ON attendees(discovered_at)`,
}

// Migrate creates the schema if it does not exist yet. The pipeline relies on
// the profile_id uniqueness constraint for idempotent discovery.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}
	return nil
}
