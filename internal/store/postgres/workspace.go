package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/callboard/callboard/internal/domain"
)

type WorkspaceRepo struct {
	pool *pgxpool.Pool
}

func NewWorkspaceRepo(pool *pgxpool.Pool) *WorkspaceRepo {
	return &WorkspaceRepo{pool: pool}
}

func (r *WorkspaceRepo) Create(ctx context.Context, w *domain.Workspace) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO workspaces (id, name, created_by)
		 VALUES ($1, $2, $3)
		 RETURNING created_at, updated_at`,
		w.ID, w.Name, w.CreatedBy,
	).Scan(&w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return infraErr("workspaceRepo.Create", err)
	}

	return nil
}

func (r *WorkspaceRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Workspace, error) {
	var w domain.Workspace

	err := r.pool.QueryRow(ctx,
		`SELECT id, name, created_by, created_at, updated_at
		 FROM workspaces WHERE id = $1`,
		id,
	).Scan(&w.ID, &w.Name, &w.CreatedBy, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("workspaceRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, infraErr("workspaceRepo.GetByID", err)
	}

	return &w, nil
}

var workspaceOrderColumns = map[string]string{
	"name":       "name",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

func (r *WorkspaceRepo) List(ctx context.Context, orderBy domain.Order) ([]*domain.Workspace, error) {
	order, err := orderClause(orderBy, workspaceOrderColumns, "created_at")
	if err != nil {
		return nil, fmt.Errorf("workspaceRepo.List: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, name, created_by, created_at, updated_at
		 FROM workspaces
		 ORDER BY `+order+`
		 LIMIT 1000`,
	)
	if err != nil {
		return nil, infraErr("workspaceRepo.List", err)
	}
	defer rows.Close()

	var workspaces []*domain.Workspace
	for rows.Next() {
		var w domain.Workspace
		if err := rows.Scan(&w.ID, &w.Name, &w.CreatedBy, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, infraErr("workspaceRepo.List: scan", err)
		}
		workspaces = append(workspaces, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, infraErr("workspaceRepo.List: rows", err)
	}

	return workspaces, nil
}

func (r *WorkspaceRepo) Rename(ctx context.Context, id uuid.UUID, name string) (*domain.Workspace, error) {
	var w domain.Workspace

	err := r.pool.QueryRow(ctx,
		`UPDATE workspaces SET name = $1, updated_at = now()
		 WHERE id = $2
		 RETURNING id, name, created_by, created_at, updated_at`,
		name, id,
	).Scan(&w.ID, &w.Name, &w.CreatedBy, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("workspaceRepo.Rename: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, infraErr("workspaceRepo.Rename", err)
	}

	return &w, nil
}

func (r *WorkspaceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM workspaces WHERE id = $1`,
		id,
	)
	if err != nil {
		return infraErr("workspaceRepo.Delete", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("workspaceRepo.Delete: %w", domain.ErrNotFound)
	}

	return nil
}
