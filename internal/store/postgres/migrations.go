package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RunMigrations creates the schema if it does not exist yet.
//
// canvas_objects.parent_id is intentionally not a foreign key: deleting
// a container must not cascade to its children. Dangling references are
// repaired at workspace load by SweepOrphans.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS workspaces (
			id         UUID PRIMARY KEY,
			name       TEXT NOT NULL,
			created_by UUID NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS canvas_objects (
			id           UUID PRIMARY KEY,
			workspace_id UUID NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
			kind         TEXT NOT NULL,
			x            DOUBLE PRECISION NOT NULL DEFAULT 0,
			y            DOUBLE PRECISION NOT NULL DEFAULT 0,
			width        DOUBLE PRECISION NOT NULL,
			height       DOUBLE PRECISION NOT NULL,
			rotation     DOUBLE PRECISION NOT NULL DEFAULT 0,
			opacity      DOUBLE PRECISION NOT NULL DEFAULT 1,
			visible      BOOLEAN NOT NULL DEFAULT TRUE,
			locked       BOOLEAN NOT NULL DEFAULT FALSE,
			z_index      INTEGER NOT NULL DEFAULT 0,
			parent_id    UUID,
			data         JSONB,
			created_by   UUID NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_canvas_objects_workspace
			ON canvas_objects (workspace_id, z_index, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_canvas_objects_parent
			ON canvas_objects (workspace_id, parent_id)
			WHERE parent_id IS NOT NULL`,
	}

	for i, ddl := range stmts {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("postgres.RunMigrations: statement %d: %w", i, err)
		}
	}

	return nil
}
