package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/callboard/callboard/internal/domain"
	"github.com/callboard/callboard/internal/server/middleware"
)

type CreateWorkspaceInput struct {
	Body struct {
		Name string `json:"name" minLength:"1" maxLength:"200" doc:"Workspace name"`
	}
}

type CreateWorkspaceOutput struct {
	Body *domain.Workspace
}

type ListWorkspacesInput struct {
	Order string `query:"order" doc:"Sort field (name, created_at, updated_at); prefix with - for descending"`
}

type ListWorkspacesOutput struct {
	Body []*domain.Workspace
}

type GetWorkspaceInput struct {
	WorkspaceID uuid.UUID `path:"workspace_id" doc:"Workspace ID"`
}

type GetWorkspaceOutput struct {
	Body *domain.Workspace
}

type RenameWorkspaceInput struct {
	WorkspaceID uuid.UUID `path:"workspace_id" doc:"Workspace ID"`
	Body        struct {
		Name string `json:"name" minLength:"1" maxLength:"200" doc:"New workspace name"`
	}
}

type RenameWorkspaceOutput struct {
	Body *domain.Workspace
}

type DeleteWorkspaceInput struct {
	WorkspaceID uuid.UUID `path:"workspace_id" doc:"Workspace ID"`
}

type LoadWorkspaceInput struct {
	WorkspaceID uuid.UUID `path:"workspace_id" doc:"Workspace ID"`
	Kind        string    `query:"kind" doc:"Only return objects of this kind"`
	ParentID    string    `query:"parent_id" doc:"Only return children of this object"`
	Order       string    `query:"order" doc:"Sort field; prefix with - for descending. Default is paint order"`
}

type LoadWorkspaceOutput struct {
	Body struct {
		Workspace *domain.Workspace      `json:"workspace"`
		Objects   []*domain.CanvasObject `json:"objects"`
	}
}

func RegisterWorkspaceRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "create-workspace",
		Method:      http.MethodPost,
		Path:        "/workspaces",
		Summary:     "Create a new workspace",
		Tags:        []string{"Workspaces"},
	}, func(ctx context.Context, input *CreateWorkspaceInput) (*CreateWorkspaceOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, storeError("missing user context", err)
		}

		w := &domain.Workspace{
			ID:        uuid.New(),
			Name:      input.Body.Name,
			CreatedBy: userID,
		}

		if err := store.Workspaces().Create(ctx, w); err != nil {
			return nil, storeError("failed to create workspace", err)
		}

		return &CreateWorkspaceOutput{Body: w}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-workspaces",
		Method:      http.MethodGet,
		Path:        "/workspaces",
		Summary:     "List workspaces",
		Tags:        []string{"Workspaces"},
	}, func(ctx context.Context, input *ListWorkspacesInput) (*ListWorkspacesOutput, error) {
		workspaces, err := store.Workspaces().List(ctx, domain.ParseOrder(input.Order))
		if err != nil {
			return nil, storeError("failed to list workspaces", err)
		}

		return &ListWorkspacesOutput{Body: workspaces}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-workspace",
		Method:      http.MethodGet,
		Path:        "/workspaces/{workspace_id}",
		Summary:     "Get a workspace by ID",
		Tags:        []string{"Workspaces"},
	}, func(ctx context.Context, input *GetWorkspaceInput) (*GetWorkspaceOutput, error) {
		w, err := store.Workspaces().GetByID(ctx, input.WorkspaceID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("workspace not found")
			}
			return nil, storeError("failed to get workspace", err)
		}

		return &GetWorkspaceOutput{Body: w}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "rename-workspace",
		Method:      http.MethodPatch,
		Path:        "/workspaces/{workspace_id}",
		Summary:     "Rename a workspace",
		Tags:        []string{"Workspaces"},
	}, func(ctx context.Context, input *RenameWorkspaceInput) (*RenameWorkspaceOutput, error) {
		w, err := store.Workspaces().Rename(ctx, input.WorkspaceID, input.Body.Name)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("workspace not found")
			}
			return nil, storeError("failed to rename workspace", err)
		}

		return &RenameWorkspaceOutput{Body: w}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-workspace",
		Method:      http.MethodDelete,
		Path:        "/workspaces/{workspace_id}",
		Summary:     "Delete a workspace and everything on its canvas",
		Tags:        []string{"Workspaces"},
	}, func(ctx context.Context, input *DeleteWorkspaceInput) (*struct{}, error) {
		if err := store.Workspaces().Delete(ctx, input.WorkspaceID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("workspace not found")
			}
			return nil, storeError("failed to delete workspace", err)
		}

		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "load-workspace",
		Method:      http.MethodGet,
		Path:        "/workspaces/{workspace_id}/objects",
		Summary:     "Load the full canvas in paint order",
		Description: "Returns every object in the workspace ordered by ascending z-index. Objects whose parent no longer exists are detached before the snapshot is taken.",
		Tags:        []string{"Workspaces"},
	}, func(ctx context.Context, input *LoadWorkspaceInput) (*LoadWorkspaceOutput, error) {
		w, err := store.Workspaces().GetByID(ctx, input.WorkspaceID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("workspace not found")
			}
			return nil, storeError("failed to get workspace", err)
		}

		var objects []*domain.CanvasObject
		if input.Kind != "" || input.ParentID != "" || input.Order != "" {
			// Filtered or reordered reads are a narrowed view; only the
			// plain full load repairs orphans.
			var f domain.ObjectFilter
			if input.Kind != "" {
				kind := domain.ObjectKind(input.Kind)
				if !kind.Valid() {
					return nil, huma.Error422UnprocessableEntity("unknown object kind: " + input.Kind)
				}
				f.Kind = &kind
			}
			if input.ParentID != "" {
				parentID, err := uuid.Parse(input.ParentID)
				if err != nil {
					return nil, huma.Error422UnprocessableEntity("invalid parent_id")
				}
				f.ParentID = &parentID
			}
			f.OrderBy = domain.ParseOrder(input.Order)

			objects, err = store.Objects().Filter(ctx, input.WorkspaceID, f)
			if err != nil {
				return nil, storeError("failed to filter canvas", err)
			}
		} else {
			swept, err := store.Objects().SweepOrphans(ctx, input.WorkspaceID)
			if err != nil {
				return nil, storeError("failed to repair orphaned objects", err)
			}
			if swept > 0 {
				log.Info().
					Stringer("workspace_id", input.WorkspaceID).
					Int64("detached", swept).
					Msg("detached objects with missing parents at load")
			}

			objects, err = store.Objects().ListByWorkspace(ctx, input.WorkspaceID)
			if err != nil {
				return nil, storeError("failed to load canvas", err)
			}
		}

		out := &LoadWorkspaceOutput{}
		out.Body.Workspace = w
		out.Body.Objects = objects
		return out, nil
	})
}

// currentUser resolves the authenticated user. Anonymous writes are
// rejected here, before any backend call is issued.
func currentUser(ctx context.Context) (uuid.UUID, error) {
	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		return uuid.Nil, domain.ErrNotAuthenticated
	}
	return userID, nil
}

// storeError maps repository failures onto transport errors: an
// anonymous caller is a 401, rejected input is a 422, a backend outage
// is a 503 the client can retry, everything else is a 500.
func storeError(msg string, err error) error {
	if errors.Is(err, domain.ErrNotAuthenticated) {
		return huma.Error401Unauthorized(msg, err)
	}
	if errors.Is(err, domain.ErrValidation) {
		return huma.Error422UnprocessableEntity(msg, err)
	}
	if errors.Is(err, domain.ErrUnavailable) {
		return huma.Error503ServiceUnavailable(msg, err)
	}
	return huma.Error500InternalServerError(msg, err)
}
