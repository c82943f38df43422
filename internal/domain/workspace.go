package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Workspace is the project-scoped canvas: the unit of realtime
// subscription and object ownership. Objects never move between
// workspaces.
type Workspace struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type WorkspaceRepository interface {
	Create(ctx context.Context, w *Workspace) error
	GetByID(ctx context.Context, id uuid.UUID) (*Workspace, error)
	// List returns workspaces sorted by orderBy, creation time when the
	// zero Order is given.
	List(ctx context.Context, orderBy Order) ([]*Workspace, error)
	Rename(ctx context.Context, id uuid.UUID, name string) (*Workspace, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
