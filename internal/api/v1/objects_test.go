package v1_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/callboard/callboard/internal/api/v1"
	"github.com/callboard/callboard/internal/domain"
	"github.com/callboard/callboard/internal/sync"
)

// ---------------------------------------------------------------------------
// TestCreateObject
// ---------------------------------------------------------------------------

func TestCreateObject(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	workspaceID := uuid.New()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		var created *domain.CanvasObject
		_, api := humatest.New(t)
		pub := &mockPublisher{}
		store := &mockDataStore{
			objects: &mockObjectRepo{
				createFunc: func(_ context.Context, o *domain.CanvasObject) error {
					created = o
					return nil
				},
			},
		}
		v1.RegisterObjectRoutes(api, store, pub)

		ctx := userCtx(userID)
		resp := api.PostCtx(ctx, "/workspaces/"+workspaceID.String()+"/objects",
			"X-Client-ID: session-1",
			map[string]any{
				"kind":  "note",
				"x":     120,
				"y":     80,
				"width": 240,
				"data":  map[string]any{"content": "check continuity", "color": "yellow"},
			})

		require.Equal(t, http.StatusCreated, resp.Code)
		require.NotNil(t, created)
		assert.Equal(t, workspaceID, created.WorkspaceID)
		assert.Equal(t, domain.KindNote, created.Kind)
		assert.Equal(t, userID, created.CreatedBy)
		assert.Equal(t, float64(domain.HeightAuto), created.Height, "omitted height means content-sized")
		assert.Equal(t, 1.0, created.Opacity)
		assert.True(t, created.Visible)
		note, ok := created.Payload.(*domain.NotePayload)
		require.True(t, ok)
		assert.Equal(t, "check continuity", note.Content)

		events := pub.published()
		require.Len(t, events, 1)
		assert.Equal(t, sync.EventObjectUpserted, events[0].Type)
		assert.Equal(t, "session-1", events[0].Origin)
		require.NotNil(t, events[0].Object)
		assert.Equal(t, created.ID, events[0].Object.ID)
	})

	t.Run("client_supplied_id", func(t *testing.T) {
		t.Parallel()

		id := uuid.New()
		var created *domain.CanvasObject
		_, api := humatest.New(t)
		store := &mockDataStore{
			objects: &mockObjectRepo{
				createFunc: func(_ context.Context, o *domain.CanvasObject) error {
					created = o
					return nil
				},
			},
		}
		v1.RegisterObjectRoutes(api, store, &mockPublisher{})

		resp := api.PostCtx(userCtx(userID), "/workspaces/"+workspaceID.String()+"/objects", map[string]any{
			"id":    id.String(),
			"kind":  "text",
			"width": 300,
			"data":  map[string]any{"content": "INT. SOUNDSTAGE - DAY"},
		})

		require.Equal(t, http.StatusCreated, resp.Code)
		require.NotNil(t, created)
		assert.Equal(t, id, created.ID, "client id kept so optimistic rendering matches the stored row")
	})

	t.Run("missing_user", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{objects: &mockObjectRepo{}}
		v1.RegisterObjectRoutes(api, store, &mockPublisher{})

		resp := api.PostCtx(context.Background(), "/workspaces/"+workspaceID.String()+"/objects", map[string]any{
			"kind":  "note",
			"width": 240,
		})

		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("unknown_kind", func(t *testing.T) {
		t.Parallel()

		var createCalled bool
		_, api := humatest.New(t)
		store := &mockDataStore{
			objects: &mockObjectRepo{
				createFunc: func(_ context.Context, _ *domain.CanvasObject) error {
					createCalled = true
					return nil
				},
			},
		}
		v1.RegisterObjectRoutes(api, store, &mockPublisher{})

		resp := api.PostCtx(userCtx(userID), "/workspaces/"+workspaceID.String()+"/objects", map[string]any{
			"kind":  "storyboard",
			"width": 240,
		})

		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
		assert.False(t, createCalled, "invalid kind must never reach the store")

		var errBody map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&errBody))
		assert.Contains(t, errBody["detail"], "unknown object kind")
	})

	t.Run("invalid_width", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{objects: &mockObjectRepo{}}
		v1.RegisterObjectRoutes(api, store, &mockPublisher{})

		resp := api.PostCtx(userCtx(userID), "/workspaces/"+workspaceID.String()+"/objects", map[string]any{
			"kind":  "note",
			"width": -10,
		})

		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})

	t.Run("parent_must_be_container", func(t *testing.T) {
		t.Parallel()

		parentID := uuid.New()
		_, api := humatest.New(t)
		store := &mockDataStore{
			objects: &mockObjectRepo{
				getByIDFunc: func(_ context.Context, _, id uuid.UUID) (*domain.CanvasObject, error) {
					assert.Equal(t, parentID, id)
					return &domain.CanvasObject{ID: parentID, Kind: domain.KindNote}, nil
				},
			},
		}
		v1.RegisterObjectRoutes(api, store, &mockPublisher{})

		resp := api.PostCtx(userCtx(userID), "/workspaces/"+workspaceID.String()+"/objects", map[string]any{
			"kind":      "shot",
			"width":     200,
			"height":    112,
			"parent_id": parentID.String(),
		})

		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)

		var errBody map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&errBody))
		assert.Contains(t, errBody["detail"], "cannot contain children")
	})

	t.Run("missing_parent_tolerated", func(t *testing.T) {
		t.Parallel()

		parentID := uuid.New()
		var created *domain.CanvasObject
		_, api := humatest.New(t)
		store := &mockDataStore{
			objects: &mockObjectRepo{
				getByIDFunc: func(_ context.Context, _, _ uuid.UUID) (*domain.CanvasObject, error) {
					return nil, domain.ErrNotFound
				},
				createFunc: func(_ context.Context, o *domain.CanvasObject) error {
					created = o
					return nil
				},
			},
		}
		v1.RegisterObjectRoutes(api, store, &mockPublisher{})

		resp := api.PostCtx(userCtx(userID), "/workspaces/"+workspaceID.String()+"/objects", map[string]any{
			"kind":      "note",
			"width":     240,
			"parent_id": parentID.String(),
		})

		require.Equal(t, http.StatusCreated, resp.Code)
		require.NotNil(t, created)
		require.NotNil(t, created.ParentID)
		assert.Equal(t, parentID, *created.ParentID)
	})

	t.Run("store_unavailable", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{
			objects: &mockObjectRepo{
				createFunc: func(_ context.Context, _ *domain.CanvasObject) error {
					return domain.ErrUnavailable
				},
			},
		}
		v1.RegisterObjectRoutes(api, store, &mockPublisher{})

		resp := api.PostCtx(userCtx(userID), "/workspaces/"+workspaceID.String()+"/objects", map[string]any{
			"kind":  "note",
			"width": 240,
		})

		assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	})

	t.Run("broadcast_failure_does_not_fail_request", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		pub := &mockPublisher{err: context.DeadlineExceeded}
		store := &mockDataStore{
			objects: &mockObjectRepo{
				createFunc: func(_ context.Context, _ *domain.CanvasObject) error { return nil },
			},
		}
		v1.RegisterObjectRoutes(api, store, pub)

		resp := api.PostCtx(userCtx(userID), "/workspaces/"+workspaceID.String()+"/objects", map[string]any{
			"kind":  "note",
			"width": 240,
		})

		assert.Equal(t, http.StatusCreated, resp.Code, "the write is durable, broadcast is best effort")
	})
}

// ---------------------------------------------------------------------------
// TestBulkCreateObjects
// ---------------------------------------------------------------------------

func TestBulkCreateObjects(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	workspaceID := uuid.New()

	t.Run("partial_failure", func(t *testing.T) {
		t.Parallel()

		var createCount int
		_, api := humatest.New(t)
		pub := &mockPublisher{}
		store := &mockDataStore{
			objects: &mockObjectRepo{
				createFunc: func(_ context.Context, _ *domain.CanvasObject) error {
					createCount++
					return nil
				},
			},
		}
		v1.RegisterObjectRoutes(api, store, pub)

		resp := api.PostCtx(userCtx(userID), "/workspaces/"+workspaceID.String()+"/objects/bulk", map[string]any{
			"objects": []map[string]any{
				{"kind": "shot", "width": 200, "height": 112, "data": map[string]any{"shot_number": "12A"}},
				{"kind": "storyboard", "width": 200},
				{"kind": "shot", "width": 200, "height": 112, "data": map[string]any{"shot_number": "12B"}},
			},
		})

		require.Equal(t, http.StatusCreated, resp.Code)
		assert.Equal(t, 2, createCount, "valid items persist even when a sibling fails")

		var body struct {
			Results []struct {
				Object *domain.CanvasObject `json:"object"`
				Error  string               `json:"error"`
			} `json:"results"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.Len(t, body.Results, 3)
		assert.NotNil(t, body.Results[0].Object)
		assert.Empty(t, body.Results[0].Error)
		assert.Nil(t, body.Results[1].Object)
		assert.Contains(t, body.Results[1].Error, "unknown object kind")
		assert.NotNil(t, body.Results[2].Object)

		assert.Len(t, pub.published(), 2, "only persisted items are broadcast")
	})
}

// ---------------------------------------------------------------------------
// TestUpdateObject
// ---------------------------------------------------------------------------

func TestUpdateObject(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	workspaceID := uuid.New()
	objectID := uuid.New()

	baseObject := func() *domain.CanvasObject {
		return &domain.CanvasObject{
			ID:          objectID,
			WorkspaceID: workspaceID,
			Kind:        domain.KindNote,
			X:           10,
			Y:           20,
			Width:       240,
			Height:      domain.HeightAuto,
			Opacity:     1,
			Visible:     true,
			Payload:     &domain.NotePayload{Content: "original"},
			CreatedBy:   userID,
		}
	}

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		var gotPatch domain.ObjectPatch
		_, api := humatest.New(t)
		pub := &mockPublisher{}
		store := &mockDataStore{
			objects: &mockObjectRepo{
				getByIDFunc: func(_ context.Context, _, _ uuid.UUID) (*domain.CanvasObject, error) {
					return baseObject(), nil
				},
				updateFunc: func(_ context.Context, _, _ uuid.UUID, patch domain.ObjectPatch) (*domain.CanvasObject, error) {
					gotPatch = patch
					o := baseObject()
					patch.Apply(o)
					return o, nil
				},
			},
		}
		v1.RegisterObjectRoutes(api, store, pub)

		resp := api.PatchCtx(userCtx(userID), "/workspaces/"+workspaceID.String()+"/objects/"+objectID.String(),
			"X-Client-ID: session-1",
			map[string]any{
				"x": 100,
				"y": 50,
			})

		require.Equal(t, http.StatusOK, resp.Code)
		require.NotNil(t, gotPatch.X)
		assert.Equal(t, 100.0, *gotPatch.X)
		require.NotNil(t, gotPatch.Y)
		assert.Equal(t, 50.0, *gotPatch.Y)
		assert.Nil(t, gotPatch.Width, "unset fields stay out of the patch")

		var body domain.CanvasObject
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, 100.0, body.X)

		events := pub.published()
		require.Len(t, events, 1)
		assert.Equal(t, sync.EventObjectUpserted, events[0].Type)
		assert.Equal(t, "session-1", events[0].Origin)
	})

	t.Run("payload_decoded_against_stored_kind", func(t *testing.T) {
		t.Parallel()

		var gotPatch domain.ObjectPatch
		_, api := humatest.New(t)
		store := &mockDataStore{
			objects: &mockObjectRepo{
				getByIDFunc: func(_ context.Context, _, _ uuid.UUID) (*domain.CanvasObject, error) {
					return baseObject(), nil
				},
				updateFunc: func(_ context.Context, _, _ uuid.UUID, patch domain.ObjectPatch) (*domain.CanvasObject, error) {
					gotPatch = patch
					o := baseObject()
					patch.Apply(o)
					return o, nil
				},
			},
		}
		v1.RegisterObjectRoutes(api, store, &mockPublisher{})

		resp := api.PatchCtx(userCtx(userID), "/workspaces/"+workspaceID.String()+"/objects/"+objectID.String(), map[string]any{
			"data": map[string]any{"content": "rewritten", "color": "pink"},
		})

		require.Equal(t, http.StatusOK, resp.Code)
		note, ok := gotPatch.Payload.(*domain.NotePayload)
		require.True(t, ok)
		assert.Equal(t, "rewritten", note.Content)
	})

	t.Run("invalid_patch_rejected", func(t *testing.T) {
		t.Parallel()

		var updateCalled bool
		_, api := humatest.New(t)
		store := &mockDataStore{
			objects: &mockObjectRepo{
				getByIDFunc: func(_ context.Context, _, _ uuid.UUID) (*domain.CanvasObject, error) {
					return baseObject(), nil
				},
				updateFunc: func(_ context.Context, _, _ uuid.UUID, _ domain.ObjectPatch) (*domain.CanvasObject, error) {
					updateCalled = true
					return nil, nil
				},
			},
		}
		v1.RegisterObjectRoutes(api, store, &mockPublisher{})

		resp := api.PatchCtx(userCtx(userID), "/workspaces/"+workspaceID.String()+"/objects/"+objectID.String(), map[string]any{
			"opacity": 3.5,
		})

		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
		assert.False(t, updateCalled, "invalid patch must never reach the store")
	})

	t.Run("self_parent_rejected", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{
			objects: &mockObjectRepo{
				getByIDFunc: func(_ context.Context, _, _ uuid.UUID) (*domain.CanvasObject, error) {
					return baseObject(), nil
				},
			},
		}
		v1.RegisterObjectRoutes(api, store, &mockPublisher{})

		resp := api.PatchCtx(userCtx(userID), "/workspaces/"+workspaceID.String()+"/objects/"+objectID.String(), map[string]any{
			"parent_id": objectID.String(),
		})

		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})

	t.Run("not_found", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{
			objects: &mockObjectRepo{
				getByIDFunc: func(_ context.Context, _, _ uuid.UUID) (*domain.CanvasObject, error) {
					return nil, domain.ErrNotFound
				},
			},
		}
		v1.RegisterObjectRoutes(api, store, &mockPublisher{})

		resp := api.PatchCtx(userCtx(userID), "/workspaces/"+workspaceID.String()+"/objects/"+uuid.New().String(), map[string]any{
			"x": 1,
		})

		assert.Equal(t, http.StatusNotFound, resp.Code)
	})
}

// ---------------------------------------------------------------------------
// TestDeleteObject
// ---------------------------------------------------------------------------

func TestDeleteObject(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	workspaceID := uuid.New()
	objectID := uuid.New()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		pub := &mockPublisher{}
		store := &mockDataStore{
			objects: &mockObjectRepo{
				deleteFunc: func(_ context.Context, ws, id uuid.UUID) error {
					assert.Equal(t, workspaceID, ws)
					assert.Equal(t, objectID, id)
					return nil
				},
			},
		}
		v1.RegisterObjectRoutes(api, store, pub)

		resp := api.DeleteCtx(userCtx(userID),
			"/workspaces/"+workspaceID.String()+"/objects/"+objectID.String(),
			"X-Client-ID: session-1")

		assert.Equal(t, http.StatusNoContent, resp.Code)

		events := pub.published()
		require.Len(t, events, 1)
		assert.Equal(t, sync.EventObjectDeleted, events[0].Type)
		assert.Equal(t, objectID, events[0].ObjectID)
		assert.False(t, events[0].DeletedAt.IsZero())
	})

	t.Run("already_gone_succeeds", func(t *testing.T) {
		t.Parallel()

		// The repo treats a missing row as success, so two clients
		// racing to delete the same card both get 204.
		_, api := humatest.New(t)
		store := &mockDataStore{
			objects: &mockObjectRepo{
				deleteFunc: func(_ context.Context, _, _ uuid.UUID) error { return nil },
			},
		}
		v1.RegisterObjectRoutes(api, store, &mockPublisher{})

		resp := api.DeleteCtx(userCtx(userID), "/workspaces/"+workspaceID.String()+"/objects/"+uuid.New().String())

		assert.Equal(t, http.StatusNoContent, resp.Code)
	})

	t.Run("missing_user", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{objects: &mockObjectRepo{}}
		v1.RegisterObjectRoutes(api, store, &mockPublisher{})

		resp := api.DeleteCtx(context.Background(), "/workspaces/"+workspaceID.String()+"/objects/"+objectID.String())

		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})
}
