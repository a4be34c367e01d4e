package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is idempotent. parent_id has no ON DELETE CASCADE: the tree store deletes
// subtrees itself, children first, and the foreign key rejects any orphan.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS files (
		id         UUID PRIMARY KEY,
		name       TEXT NOT NULL CHECK (name <> ''),
		kind       TEXT NOT NULL CHECK (kind IN ('file', 'folder')),
		parent_id  UUID REFERENCES files(id),
		path       TEXT NOT NULL,
		size       BIGINT,
		mime_type  TEXT,
		blob_key   TEXT,
		blob_url   TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (kind = 'file' OR (size IS NULL AND mime_type IS NULL AND blob_key IS NULL))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_files_parent_id ON files (parent_id)`,
	`CREATE INDEX IF NOT EXISTS idx_files_kind ON files (kind)`,
	`CREATE INDEX IF NOT EXISTS idx_files_name ON files (name)`,
	// Root-level siblings share a NULL parent, so fold it to the nil uuid.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_files_sibling_name
		ON files ((COALESCE(parent_id, '00000000-0000-0000-0000-000000000000'::uuid)), name)`,

	`CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		username      TEXT NOT NULL UNIQUE,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL DEFAULT 'editor' CHECK (role IN ('owner', 'editor', 'viewer')),
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate creates the tables and indexes when they are missing.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback(ctx)

	for i, stmt := range schema {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i, err)
		}
	}
	return tx.Commit(ctx)
}
