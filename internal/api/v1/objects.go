package v1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/callboard/callboard/internal/domain"
	"github.com/callboard/callboard/internal/sync"
)

// ObjectBody is the wire shape shared by create and bulk-create. The
// client may supply the id so it can render optimistically before the
// write lands.
type ObjectBody struct {
	ID       *uuid.UUID      `json:"id,omitempty" doc:"Client-generated object ID"`
	Kind     string          `json:"kind" minLength:"1" doc:"Object kind (section, script, shot, note, text, image, group)"`
	X        float64         `json:"x,omitempty" doc:"Canvas X position"`
	Y        float64         `json:"y,omitempty" doc:"Canvas Y position"`
	Width    float64         `json:"width" doc:"Width in canvas units"`
	Height   float64         `json:"height,omitempty" doc:"Height in canvas units; omit for content-sized kinds"`
	Rotation float64         `json:"rotation,omitempty" doc:"Rotation in degrees"`
	Opacity  *float64        `json:"opacity,omitempty" doc:"Opacity in [0,1], defaults to 1"`
	Visible  *bool           `json:"visible,omitempty" doc:"Visibility, defaults to true"`
	Locked   bool            `json:"locked,omitempty" doc:"Locked objects ignore canvas interactions"`
	ZIndex   int             `json:"z_index,omitempty" doc:"Stacking order, lower paints first"`
	ParentID *uuid.UUID      `json:"parent_id,omitempty" doc:"Containing section or group"`
	Data     json.RawMessage `json:"data,omitempty" doc:"Kind-specific payload"`
}

type CreateObjectInput struct {
	WorkspaceID uuid.UUID `path:"workspace_id" doc:"Workspace ID"`
	ClientID    string    `header:"X-Client-ID" doc:"Originating client session, echoed on broadcast events"`
	Body        ObjectBody
}

type CreateObjectOutput struct {
	Status int
	Body   *domain.CanvasObject
}

type GetObjectInput struct {
	WorkspaceID uuid.UUID `path:"workspace_id" doc:"Workspace ID"`
	ID          uuid.UUID `path:"id" doc:"Object ID"`
}

type GetObjectOutput struct {
	Body *domain.CanvasObject
}

type UpdateObjectInput struct {
	WorkspaceID uuid.UUID `path:"workspace_id" doc:"Workspace ID"`
	ID          uuid.UUID `path:"id" doc:"Object ID"`
	ClientID    string    `header:"X-Client-ID" doc:"Originating client session, echoed on broadcast events"`
	Body        struct {
		X           *float64        `json:"x,omitempty"`
		Y           *float64        `json:"y,omitempty"`
		Width       *float64        `json:"width,omitempty"`
		Height      *float64        `json:"height,omitempty"`
		Rotation    *float64        `json:"rotation,omitempty"`
		Opacity     *float64        `json:"opacity,omitempty"`
		Visible     *bool           `json:"visible,omitempty"`
		Locked      *bool           `json:"locked,omitempty"`
		ZIndex      *int            `json:"z_index,omitempty"`
		ParentID    *uuid.UUID      `json:"parent_id,omitempty"`
		ClearParent bool            `json:"clear_parent,omitempty" doc:"Detach from the current parent"`
		Data        json.RawMessage `json:"data,omitempty" doc:"Kind-specific payload; the kind itself is immutable"`
	}
}

type UpdateObjectOutput struct {
	Body *domain.CanvasObject
}

type DeleteObjectInput struct {
	WorkspaceID uuid.UUID `path:"workspace_id" doc:"Workspace ID"`
	ID          uuid.UUID `path:"id" doc:"Object ID"`
	ClientID    string    `header:"X-Client-ID" doc:"Originating client session, echoed on broadcast events"`
}

type BulkCreateObjectsInput struct {
	WorkspaceID uuid.UUID `path:"workspace_id" doc:"Workspace ID"`
	ClientID    string    `header:"X-Client-ID" doc:"Originating client session, echoed on broadcast events"`
	Body        struct {
		Objects []ObjectBody `json:"objects" minItems:"1" maxItems:"100" doc:"Objects to instantiate"`
	}
}

// BulkCreateResult reports one item of a bulk instantiation. The batch
// is not atomic: each item succeeds or fails on its own.
type BulkCreateResult struct {
	Object *domain.CanvasObject `json:"object,omitempty"`
	Error  string               `json:"error,omitempty"`
}

type BulkCreateObjectsOutput struct {
	Status int
	Body   struct {
		Results []BulkCreateResult `json:"results"`
	}
}

func RegisterObjectRoutes(api huma.API, store DataStore, pub Publisher) {
	huma.Register(api, huma.Operation{
		OperationID: "create-object",
		Method:      http.MethodPost,
		Path:        "/workspaces/{workspace_id}/objects",
		Summary:     "Place a new object on the canvas",
		Tags:        []string{"Objects"},
	}, func(ctx context.Context, input *CreateObjectInput) (*CreateObjectOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, storeError("missing user context", err)
		}

		o, err := buildObject(ctx, store, input.WorkspaceID, userID, input.Body)
		if err != nil {
			return nil, err
		}

		if err := store.Objects().Create(ctx, o); err != nil {
			return nil, storeError("failed to create object", err)
		}

		broadcastUpsert(ctx, pub, o, input.ClientID)

		return &CreateObjectOutput{Status: http.StatusCreated, Body: o}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "bulk-create-objects",
		Method:      http.MethodPost,
		Path:        "/workspaces/{workspace_id}/objects/bulk",
		Summary:     "Place several objects in one call",
		Description: "Instantiates a batch of objects, e.g. dropping every shot of a scene onto the canvas. Items are independent: a failed item does not roll back the others.",
		Tags:        []string{"Objects"},
	}, func(ctx context.Context, input *BulkCreateObjectsInput) (*BulkCreateObjectsOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, storeError("missing user context", err)
		}

		out := &BulkCreateObjectsOutput{Status: http.StatusCreated}
		out.Body.Results = make([]BulkCreateResult, 0, len(input.Body.Objects))
		for _, body := range input.Body.Objects {
			o, err := buildObject(ctx, store, input.WorkspaceID, userID, body)
			if err == nil {
				err = store.Objects().Create(ctx, o)
			}
			if err != nil {
				out.Body.Results = append(out.Body.Results, BulkCreateResult{Error: err.Error()})
				continue
			}

			broadcastUpsert(ctx, pub, o, input.ClientID)
			out.Body.Results = append(out.Body.Results, BulkCreateResult{Object: o})
		}

		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-object",
		Method:      http.MethodGet,
		Path:        "/workspaces/{workspace_id}/objects/{id}",
		Summary:     "Get an object by ID",
		Tags:        []string{"Objects"},
	}, func(ctx context.Context, input *GetObjectInput) (*GetObjectOutput, error) {
		o, err := store.Objects().GetByID(ctx, input.WorkspaceID, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("object not found")
			}
			return nil, storeError("failed to get object", err)
		}

		return &GetObjectOutput{Body: o}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-object",
		Method:      http.MethodPatch,
		Path:        "/workspaces/{workspace_id}/objects/{id}",
		Summary:     "Apply a partial update to an object",
		Tags:        []string{"Objects"},
	}, func(ctx context.Context, input *UpdateObjectInput) (*UpdateObjectOutput, error) {
		if _, err := currentUser(ctx); err != nil {
			return nil, storeError("missing user context", err)
		}

		existing, err := store.Objects().GetByID(ctx, input.WorkspaceID, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("object not found")
			}
			return nil, storeError("failed to get object", err)
		}

		patch := domain.ObjectPatch{
			X:           input.Body.X,
			Y:           input.Body.Y,
			Width:       input.Body.Width,
			Height:      input.Body.Height,
			Rotation:    input.Body.Rotation,
			Opacity:     input.Body.Opacity,
			Visible:     input.Body.Visible,
			Locked:      input.Body.Locked,
			ZIndex:      input.Body.ZIndex,
			ParentID:    input.Body.ParentID,
			ClearParent: input.Body.ClearParent,
		}
		if len(input.Body.Data) > 0 {
			payload, err := domain.DecodePayload(existing.Kind, input.Body.Data)
			if err != nil {
				return nil, huma.Error422UnprocessableEntity("invalid payload for kind " + string(existing.Kind))
			}
			patch.Payload = payload
		}

		// Dry-run the patch so an invalid combination never reaches
		// the database.
		preview := existing.Clone()
		patch.Apply(preview)
		if err := preview.Validate(); err != nil {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}

		if patch.ParentID != nil && !patch.ClearParent {
			if err := checkParent(ctx, store, input.WorkspaceID, input.ID, *patch.ParentID); err != nil {
				return nil, err
			}
		}

		updated, err := store.Objects().Update(ctx, input.WorkspaceID, input.ID, patch)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("object not found")
			}
			return nil, storeError("failed to update object", err)
		}

		broadcastUpsert(ctx, pub, updated, input.ClientID)

		return &UpdateObjectOutput{Body: updated}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-object",
		Method:      http.MethodDelete,
		Path:        "/workspaces/{workspace_id}/objects/{id}",
		Summary:     "Delete an object",
		Description: "Idempotent: deleting an object that is already gone succeeds, so two clients racing to delete the same card both get a clean response. Children of a deleted container are detached, not deleted.",
		Tags:        []string{"Objects"},
	}, func(ctx context.Context, input *DeleteObjectInput) (*struct{}, error) {
		if _, err := currentUser(ctx); err != nil {
			return nil, storeError("missing user context", err)
		}

		if err := store.Objects().Delete(ctx, input.WorkspaceID, input.ID); err != nil {
			return nil, storeError("failed to delete object", err)
		}

		broadcast(ctx, pub, sync.Event{
			Type:        sync.EventObjectDeleted,
			WorkspaceID: input.WorkspaceID,
			ObjectID:    input.ID,
			DeletedAt:   time.Now(),
			Origin:      input.ClientID,
		})

		return nil, nil
	})
}

// buildObject turns a wire body into a validated domain object. Returns
// huma errors, so callers pass them straight through.
func buildObject(ctx context.Context, store DataStore, workspaceID, userID uuid.UUID, body ObjectBody) (*domain.CanvasObject, error) {
	kind := domain.ObjectKind(body.Kind)
	if !kind.Valid() {
		return nil, huma.Error422UnprocessableEntity("unknown object kind: " + body.Kind)
	}

	payload, err := domain.DecodePayload(kind, body.Data)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity("invalid payload for kind " + body.Kind)
	}

	id := uuid.New()
	if body.ID != nil && *body.ID != uuid.Nil {
		id = *body.ID
	}
	height := body.Height
	if height == 0 {
		height = domain.HeightAuto
	}
	opacity := 1.0
	if body.Opacity != nil {
		opacity = *body.Opacity
	}
	visible := true
	if body.Visible != nil {
		visible = *body.Visible
	}

	o := &domain.CanvasObject{
		ID:          id,
		WorkspaceID: workspaceID,
		Kind:        kind,
		X:           body.X,
		Y:           body.Y,
		Width:       body.Width,
		Height:      height,
		Rotation:    body.Rotation,
		Opacity:     opacity,
		Visible:     visible,
		Locked:      body.Locked,
		ZIndex:      body.ZIndex,
		ParentID:    body.ParentID,
		Payload:     payload,
		CreatedBy:   userID,
	}
	if err := o.Validate(); err != nil {
		return nil, huma.Error422UnprocessableEntity(err.Error())
	}

	if o.ParentID != nil {
		if err := checkParent(ctx, store, workspaceID, o.ID, *o.ParentID); err != nil {
			return nil, err
		}
	}

	return o, nil
}

// checkParent rejects self-parenting and parents that cannot contain
// children. A parent that does not exist is tolerated: the object lands
// detached at the next orphan sweep, matching delete semantics.
func checkParent(ctx context.Context, store DataStore, workspaceID, id, parentID uuid.UUID) error {
	if parentID == id {
		return huma.Error422UnprocessableEntity("object cannot be its own parent")
	}

	parent, err := store.Objects().GetByID(ctx, workspaceID, parentID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return storeError("failed to validate parent", err)
	}
	if !parent.Kind.CanParent() {
		return huma.Error422UnprocessableEntity("objects of kind " + string(parent.Kind) + " cannot contain children")
	}

	return nil
}

func broadcastUpsert(ctx context.Context, pub Publisher, o *domain.CanvasObject, clientID string) {
	broadcast(ctx, pub, sync.Event{
		Type:        sync.EventObjectUpserted,
		WorkspaceID: o.WorkspaceID,
		ObjectID:    o.ID,
		Object:      o,
		Origin:      clientID,
	})
}

// broadcast is best effort: the write is already durable, and clients
// that miss an event converge at their next full load.
func broadcast(ctx context.Context, pub Publisher, ev sync.Event) {
	if err := sync.PublishEvent(ctx, pub, ev); err != nil {
		log.Warn().Err(err).
			Str("event", string(ev.Type)).
			Stringer("workspace_id", ev.WorkspaceID).
			Msg("failed to broadcast canvas event")
	}
}
