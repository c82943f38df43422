package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/callboard/callboard/internal/domain"
)

const objectColumns = `id, workspace_id, kind, x, y, width, height, rotation, opacity,
	visible, locked, z_index, parent_id, data, created_by, created_at, updated_at`

type ObjectRepo struct {
	pool *pgxpool.Pool
}

func NewObjectRepo(pool *pgxpool.Pool) *ObjectRepo {
	return &ObjectRepo{pool: pool}
}

// Create inserts o and fills in the server-assigned timestamps.
func (r *ObjectRepo) Create(ctx context.Context, o *domain.CanvasObject) error {
	data, err := domain.EncodePayload(o.Payload)
	if err != nil {
		return fmt.Errorf("objectRepo.Create: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`INSERT INTO canvas_objects (id, workspace_id, kind, x, y, width, height, rotation,
		        opacity, visible, locked, z_index, parent_id, data, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 RETURNING created_at, updated_at`,
		o.ID, o.WorkspaceID, o.Kind, o.X, o.Y, o.Width, o.Height, o.Rotation,
		o.Opacity, o.Visible, o.Locked, o.ZIndex, o.ParentID, data, o.CreatedBy,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return infraErr("objectRepo.Create", err)
	}

	return nil
}

func (r *ObjectRepo) GetByID(ctx context.Context, workspaceID, id uuid.UUID) (*domain.CanvasObject, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+objectColumns+`
		 FROM canvas_objects WHERE workspace_id = $1 AND id = $2`,
		workspaceID, id,
	)

	o, err := scanObject(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("objectRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, infraErr("objectRepo.GetByID", err)
	}

	return o, nil
}

// ListByWorkspace returns the full canvas in paint order: ascending
// z-index, creation time breaking ties so later arrivals paint on top.
func (r *ObjectRepo) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]*domain.CanvasObject, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+objectColumns+`
		 FROM canvas_objects WHERE workspace_id = $1
		 ORDER BY z_index, created_at, id`,
		workspaceID,
	)
	if err != nil {
		return nil, infraErr("objectRepo.ListByWorkspace", err)
	}
	defer rows.Close()

	return scanObjects(rows, "objectRepo.ListByWorkspace")
}

var objectOrderColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"z_index":    "z_index",
	"kind":       "kind",
	"x":          "x",
	"y":          "y",
}

func (r *ObjectRepo) Filter(ctx context.Context, workspaceID uuid.UUID, f domain.ObjectFilter) ([]*domain.CanvasObject, error) {
	order, err := orderClause(f.OrderBy, objectOrderColumns, "z_index, created_at, id")
	if err != nil {
		return nil, fmt.Errorf("objectRepo.Filter: %w", err)
	}

	where := []string{"workspace_id = $1"}
	args := []any{workspaceID}
	if f.Kind != nil {
		args = append(args, *f.Kind)
		where = append(where, fmt.Sprintf("kind = $%d", len(args)))
	}
	if f.ParentID != nil {
		args = append(args, *f.ParentID)
		where = append(where, fmt.Sprintf("parent_id = $%d", len(args)))
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+objectColumns+`
		 FROM canvas_objects WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY `+order,
		args...,
	)
	if err != nil {
		return nil, infraErr("objectRepo.Filter", err)
	}
	defer rows.Close()

	return scanObjects(rows, "objectRepo.Filter")
}

// Update applies the set fields of patch and returns the stored row.
func (r *ObjectRepo) Update(ctx context.Context, workspaceID, id uuid.UUID, patch domain.ObjectPatch) (*domain.CanvasObject, error) {
	set := []string{"updated_at = now()"}
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if patch.X != nil {
		add("x", *patch.X)
	}
	if patch.Y != nil {
		add("y", *patch.Y)
	}
	if patch.Width != nil {
		add("width", *patch.Width)
	}
	if patch.Height != nil {
		add("height", *patch.Height)
	}
	if patch.Rotation != nil {
		add("rotation", *patch.Rotation)
	}
	if patch.Opacity != nil {
		add("opacity", *patch.Opacity)
	}
	if patch.Visible != nil {
		add("visible", *patch.Visible)
	}
	if patch.Locked != nil {
		add("locked", *patch.Locked)
	}
	if patch.ZIndex != nil {
		add("z_index", *patch.ZIndex)
	}
	if patch.ClearParent {
		set = append(set, "parent_id = NULL")
	} else if patch.ParentID != nil {
		add("parent_id", *patch.ParentID)
	}
	if patch.Payload != nil {
		data, err := domain.EncodePayload(patch.Payload)
		if err != nil {
			return nil, fmt.Errorf("objectRepo.Update: %w", err)
		}
		add("data", data)
	}

	args = append(args, workspaceID, id)
	row := r.pool.QueryRow(ctx,
		fmt.Sprintf(`UPDATE canvas_objects SET %s
		 WHERE workspace_id = $%d AND id = $%d
		 RETURNING %s`,
			strings.Join(set, ", "), len(args)-1, len(args), objectColumns),
		args...,
	)

	o, err := scanObject(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("objectRepo.Update: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, infraErr("objectRepo.Update", err)
	}

	return o, nil
}

// Delete is idempotent: removing an id that is already gone succeeds,
// so concurrent deletes of the same object both come back clean.
func (r *ObjectRepo) Delete(ctx context.Context, workspaceID, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM canvas_objects WHERE workspace_id = $1 AND id = $2`,
		workspaceID, id,
	)
	if err != nil {
		return infraErr("objectRepo.Delete", err)
	}

	return nil
}

// SweepOrphans detaches objects whose parent no longer exists. Children
// keep their absolute position, they just stop being grouped.
func (r *ObjectRepo) SweepOrphans(ctx context.Context, workspaceID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE canvas_objects o SET parent_id = NULL, updated_at = now()
		 WHERE o.workspace_id = $1 AND o.parent_id IS NOT NULL
		   AND NOT EXISTS (
		       SELECT 1 FROM canvas_objects p
		       WHERE p.workspace_id = o.workspace_id AND p.id = o.parent_id
		   )`,
		workspaceID,
	)
	if err != nil {
		return 0, infraErr("objectRepo.SweepOrphans", err)
	}

	return tag.RowsAffected(), nil
}

func scanObject(row pgx.Row) (*domain.CanvasObject, error) {
	var (
		o    domain.CanvasObject
		data []byte
	)
	err := row.Scan(
		&o.ID, &o.WorkspaceID, &o.Kind, &o.X, &o.Y, &o.Width, &o.Height, &o.Rotation,
		&o.Opacity, &o.Visible, &o.Locked, &o.ZIndex, &o.ParentID, &data,
		&o.CreatedBy, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Payload, err = domain.DecodePayload(o.Kind, data)
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	return &o, nil
}

func scanObjects(rows pgx.Rows, caller string) ([]*domain.CanvasObject, error) {
	var objects []*domain.CanvasObject
	for rows.Next() {
		o, err := scanObject(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		objects = append(objects, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return objects, nil
}
