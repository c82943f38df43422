package canvas_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callboard/callboard/internal/canvas"
	"github.com/callboard/callboard/internal/domain"
)

// ---------------------------------------------------------------------------
// Recording CommitSink
// ---------------------------------------------------------------------------

type sinkCall struct {
	op    string // "create", "update", "delete"
	id    uuid.UUID
	patch domain.ObjectPatch
}

type recordingSink struct {
	calls []sinkCall
}

func (r *recordingSink) Create(o *domain.CanvasObject) {
	r.calls = append(r.calls, sinkCall{op: "create", id: o.ID})
}

func (r *recordingSink) Update(id uuid.UUID, patch domain.ObjectPatch) {
	r.calls = append(r.calls, sinkCall{op: "update", id: id, patch: patch})
}

func (r *recordingSink) Delete(id uuid.UUID) {
	r.calls = append(r.calls, sinkCall{op: "delete", id: id})
}

func (r *recordingSink) ops(op string) []sinkCall {
	var out []sinkCall
	for _, c := range r.calls {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

func setup(t *testing.T) (*canvas.Store, *recordingSink, *canvas.Controller) {
	t.Helper()
	ws := uuid.New()
	store := canvas.NewStore(ws)
	sink := &recordingSink{}
	ctrl := canvas.NewController(store, sink, uuid.New())
	return store, sink, ctrl
}

// ---------------------------------------------------------------------------
// 1. Selection
// ---------------------------------------------------------------------------

func TestController_Selection(t *testing.T) {
	t.Parallel()

	store, _, ctrl := setup(t)
	a := newObject(store.WorkspaceID(), 1)
	b := newObject(store.WorkspaceID(), 2)
	store.Upsert(a)
	store.Upsert(b)

	t.Run("replace", func(t *testing.T) {
		ctrl.SelectObject(a.ID, false)
		assert.Equal(t, []uuid.UUID{a.ID}, ctrl.Selection())

		ctrl.SelectObject(b.ID, false)
		assert.Equal(t, []uuid.UUID{b.ID}, ctrl.Selection())
	})

	t.Run("additive", func(t *testing.T) {
		ctrl.SelectObject(a.ID, false)
		ctrl.SelectObject(b.ID, true)
		assert.Equal(t, []uuid.UUID{a.ID, b.ID}, ctrl.Selection())

		// Re-adding is a no-op.
		ctrl.SelectObject(b.ID, true)
		assert.Len(t, ctrl.Selection(), 2)
	})

	t.Run("unknown id dropped silently", func(t *testing.T) {
		ctrl.SelectObject(a.ID, false)
		ctrl.SelectObject(uuid.New(), true)
		assert.Equal(t, []uuid.UUID{a.ID}, ctrl.Selection())
	})

	t.Run("select all in paint order, deselect all", func(t *testing.T) {
		ctrl.SelectAll()
		assert.Equal(t, []uuid.UUID{a.ID, b.ID}, ctrl.Selection())
		ctrl.DeselectAll()
		assert.Empty(t, ctrl.Selection())
	})
}

// ---------------------------------------------------------------------------
// 2. Drag — optimistic moves, single commit on end, locked skipped.
// ---------------------------------------------------------------------------

func TestController_Drag(t *testing.T) {
	t.Parallel()

	store, sink, ctrl := setup(t)
	o := newObject(store.WorkspaceID(), 1)
	o.X, o.Y = 10, 10
	store.Upsert(o)

	require.True(t, ctrl.BeginDrag(o.ID, canvas.Point{X: 0, Y: 0}))
	ctrl.UpdateDrag(canvas.Point{X: 30, Y: 40})
	ctrl.UpdateDrag(canvas.Point{X: 90, Y: 40})

	// Intermediate moves are optimistic only.
	assert.Empty(t, sink.ops("update"))
	got, _ := store.Get(o.ID)
	assert.Equal(t, 100.0, got.X)
	assert.Equal(t, 50.0, got.Y)

	ctrl.EndDrag()
	updates := sink.ops("update")
	require.Len(t, updates, 1)
	require.NotNil(t, updates[0].patch.X)
	assert.Equal(t, 100.0, *updates[0].patch.X)
	assert.Equal(t, 50.0, *updates[0].patch.Y)

	phase, pending := store.PendingPhase(o.ID)
	require.True(t, pending)
	assert.Equal(t, canvas.EditPending, phase)
}

func TestController_DragLocked(t *testing.T) {
	t.Parallel()

	store, sink, ctrl := setup(t)
	locked := newObject(store.WorkspaceID(), 1)
	locked.Locked = true
	locked.X = 5
	store.Upsert(locked)

	assert.False(t, ctrl.BeginDrag(locked.ID, canvas.Point{}))
	ctrl.UpdateDrag(canvas.Point{X: 100, Y: 100})
	ctrl.EndDrag()

	got, _ := store.Get(locked.ID)
	assert.Equal(t, 5.0, got.X)
	assert.Empty(t, sink.calls)
}

func TestController_DragMixedSelection(t *testing.T) {
	t.Parallel()

	store, sink, ctrl := setup(t)
	free := newObject(store.WorkspaceID(), 1)
	locked := newObject(store.WorkspaceID(), 2)
	locked.Locked = true
	store.Upsert(free)
	store.Upsert(locked)

	ctrl.SelectObject(free.ID, false)
	ctrl.SelectObject(locked.ID, true)

	require.True(t, ctrl.BeginDrag(free.ID, canvas.Point{}))
	ctrl.UpdateDrag(canvas.Point{X: 25, Y: 0})
	ctrl.EndDrag()

	gotFree, _ := store.Get(free.ID)
	gotLocked, _ := store.Get(locked.ID)
	assert.Equal(t, 25.0, gotFree.X)
	assert.Zero(t, gotLocked.X)
	assert.Len(t, sink.ops("update"), 1)
}

func TestController_DragRequiresSelectTool(t *testing.T) {
	t.Parallel()

	store, _, ctrl := setup(t)
	o := newObject(store.WorkspaceID(), 1)
	store.Upsert(o)

	ctrl.SetTool(canvas.ToolHand)
	assert.False(t, ctrl.BeginDrag(o.ID, canvas.Point{}))
}

// ---------------------------------------------------------------------------
// 3. Zoom / pan / tool
// ---------------------------------------------------------------------------

func TestController_ZoomClamp(t *testing.T) {
	t.Parallel()

	_, _, ctrl := setup(t)

	assert.Equal(t, 100.0, ctrl.Zoom())
	assert.Equal(t, 1.0, ctrl.SetZoom(-50))
	assert.Equal(t, 6400.0, ctrl.SetZoom(999999))
	assert.Equal(t, 250.0, ctrl.SetZoom(250))
}

func TestController_ToolMode(t *testing.T) {
	t.Parallel()

	_, _, ctrl := setup(t)

	assert.Equal(t, canvas.ToolSelect, ctrl.Tool())
	assert.Equal(t, canvas.ToolHand, ctrl.SetTool(canvas.ToolHand))
	// Unknown tool is ignored.
	assert.Equal(t, canvas.ToolHand, ctrl.SetTool(canvas.Tool("lasso")))
}

// ---------------------------------------------------------------------------
// 4. Duplicate — the two-unlocked-objects scenario.
// ---------------------------------------------------------------------------

func TestController_Duplicate(t *testing.T) {
	t.Parallel()

	store, sink, ctrl := setup(t)
	a := newObject(store.WorkspaceID(), 1)
	b := newObject(store.WorkspaceID(), 2)
	b.Kind = domain.KindText
	b.Height = 40
	b.Payload = &domain.TextPayload{Content: "title card"}
	store.Upsert(a)
	store.Upsert(b)

	ctrl.SelectObject(a.ID, false)
	ctrl.SelectObject(b.ID, true)

	created := ctrl.Duplicate()
	require.Len(t, created, 2)
	assert.Equal(t, 4, store.Len())

	// New ids, same kind and payload, offset position.
	assert.NotEqual(t, a.ID, created[0].ID)
	assert.Equal(t, domain.KindNote, created[0].Kind)
	assert.Equal(t, a.X+canvas.DuplicateOffset, created[0].X)
	assert.Equal(t, a.Y+canvas.DuplicateOffset, created[0].Y)
	assert.Equal(t, domain.KindText, created[1].Kind)
	assert.Equal(t, "title card", created[1].Payload.(*domain.TextPayload).Content)

	// Selection replaced by the new ids.
	assert.Equal(t, []uuid.UUID{created[0].ID, created[1].ID}, ctrl.Selection())

	// Exactly two creates persisted.
	assert.Len(t, sink.ops("create"), 2)
}

func TestController_DuplicateViaShortcut(t *testing.T) {
	t.Parallel()

	store, sink, ctrl := setup(t)
	a := newObject(store.WorkspaceID(), 1)
	b := newObject(store.WorkspaceID(), 2)
	store.Upsert(a)
	store.Upsert(b)
	ctrl.SelectAll()

	action, handled := ctrl.HandleKey(canvas.KeyChord{Mod: canvas.ModPrimary, Key: "d"}, false)
	require.True(t, handled)
	assert.Equal(t, canvas.ActionDuplicate, action)
	assert.Equal(t, 4, store.Len())
	assert.Len(t, sink.ops("create"), 2)
}

// ---------------------------------------------------------------------------
// 5. Delete — locked objects skipped.
// ---------------------------------------------------------------------------

func TestController_DeleteSelection(t *testing.T) {
	t.Parallel()

	store, sink, ctrl := setup(t)
	free := newObject(store.WorkspaceID(), 1)
	locked := newObject(store.WorkspaceID(), 2)
	locked.Locked = true
	store.Upsert(free)
	store.Upsert(locked)

	ctrl.SelectAll()
	deleted := ctrl.DeleteSelection()

	assert.Equal(t, 1, deleted)
	_, ok := store.Get(free.ID)
	assert.False(t, ok)
	_, ok = store.Get(locked.ID)
	assert.True(t, ok)

	// Locked object stays selected, free one is gone from the selection.
	assert.Equal(t, []uuid.UUID{locked.ID}, ctrl.Selection())
	require.Len(t, sink.ops("delete"), 1)
	assert.Equal(t, free.ID, sink.ops("delete")[0].id)
}

// ---------------------------------------------------------------------------
// 6. Clipboard
// ---------------------------------------------------------------------------

func TestController_CopyPaste(t *testing.T) {
	t.Parallel()

	store, sink, ctrl := setup(t)
	o := newObject(store.WorkspaceID(), 1)
	store.Upsert(o)

	ctrl.SelectObject(o.ID, false)
	ctrl.Copy()

	// Deleting the original does not invalidate the clipboard.
	ctrl.DeleteSelection()
	pasted := ctrl.Paste()

	require.Len(t, pasted, 1)
	assert.NotEqual(t, o.ID, pasted[0].ID)
	assert.Equal(t, o.X+canvas.DuplicateOffset, pasted[0].X)
	assert.Equal(t, []uuid.UUID{pasted[0].ID}, ctrl.Selection())
	assert.Len(t, sink.ops("create"), 1)
}

// ---------------------------------------------------------------------------
// 7. Grouping
// ---------------------------------------------------------------------------

func TestController_GroupUngroup(t *testing.T) {
	t.Parallel()

	store, sink, ctrl := setup(t)
	a := newObject(store.WorkspaceID(), 1)
	a.X, a.Y, a.Height = 0, 0, 100
	b := newObject(store.WorkspaceID(), 2)
	b.X, b.Y, b.Height = 300, 200, 100
	store.Upsert(a)
	store.Upsert(b)

	ctrl.SelectAll()
	group, ok := ctrl.Group()
	require.True(t, ok)

	// Group bounds cover both members.
	assert.Equal(t, 0.0, group.X)
	assert.Equal(t, 540.0, group.Width) // 300 + 240
	assert.Equal(t, 300.0, group.Height)

	gotA, _ := store.Get(a.ID)
	require.NotNil(t, gotA.ParentID)
	assert.Equal(t, group.ID, *gotA.ParentID)
	assert.Equal(t, []uuid.UUID{group.ID}, ctrl.Selection())

	// Ungroup detaches and deletes the group.
	require.True(t, ctrl.Ungroup())
	_, exists := store.Get(group.ID)
	assert.False(t, exists)
	gotA, _ = store.Get(a.ID)
	assert.Nil(t, gotA.ParentID)
	assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, ctrl.Selection())

	assert.NotEmpty(t, sink.ops("create"))
	assert.NotEmpty(t, sink.ops("delete"))
}

func TestController_GroupNeedsTwo(t *testing.T) {
	t.Parallel()

	store, _, ctrl := setup(t)
	o := newObject(store.WorkspaceID(), 1)
	store.Upsert(o)
	ctrl.SelectObject(o.ID, false)

	_, ok := ctrl.Group()
	assert.False(t, ok)
}

// ---------------------------------------------------------------------------
// 8. Z-order
// ---------------------------------------------------------------------------

func TestController_ZOrder(t *testing.T) {
	t.Parallel()

	store, _, ctrl := setup(t)
	a := newObject(store.WorkspaceID(), 1)
	b := newObject(store.WorkspaceID(), 2)
	c := newObject(store.WorkspaceID(), 3)
	store.Upsert(a)
	store.Upsert(b)
	store.Upsert(c)

	ctrl.SelectObject(a.ID, false)
	ctrl.BringToFront()
	got, _ := store.Get(a.ID)
	assert.Equal(t, 4, got.ZIndex)
	assert.Equal(t, a.ID, store.List()[2].ID)

	ctrl.SelectObject(c.ID, false)
	ctrl.SendToBack()
	got, _ = store.Get(c.ID)
	assert.Equal(t, 1, got.ZIndex)
	assert.Equal(t, c.ID, store.List()[0].ID)

	ctrl.SelectObject(b.ID, false)
	ctrl.BringForward()
	got, _ = store.Get(b.ID)
	assert.Equal(t, 3, got.ZIndex)

	ctrl.SendBackward()
	got, _ = store.Get(b.ID)
	assert.Equal(t, 2, got.ZIndex)
}

// ---------------------------------------------------------------------------
// 9. Undo / redo
// ---------------------------------------------------------------------------

func TestController_UndoRedo(t *testing.T) {
	t.Parallel()

	t.Run("move", func(t *testing.T) {
		t.Parallel()

		store, _, ctrl := setup(t)
		o := newObject(store.WorkspaceID(), 1)
		store.Upsert(o)

		require.True(t, ctrl.BeginDrag(o.ID, canvas.Point{}))
		ctrl.UpdateDrag(canvas.Point{X: 40, Y: 0})
		ctrl.EndDrag()

		require.True(t, ctrl.Undo())
		got, _ := store.Get(o.ID)
		assert.Zero(t, got.X)

		require.True(t, ctrl.Redo())
		got, _ = store.Get(o.ID)
		assert.Equal(t, 40.0, got.X)
	})

	t.Run("delete restores object", func(t *testing.T) {
		t.Parallel()

		store, sink, ctrl := setup(t)
		o := newObject(store.WorkspaceID(), 1)
		store.Upsert(o)

		ctrl.SelectObject(o.ID, false)
		ctrl.DeleteSelection()
		_, ok := store.Get(o.ID)
		require.False(t, ok)

		require.True(t, ctrl.Undo())
		_, ok = store.Get(o.ID)
		assert.True(t, ok)
		assert.NotEmpty(t, sink.ops("create"))
	})

	t.Run("duplicate undone removes copies", func(t *testing.T) {
		t.Parallel()

		store, _, ctrl := setup(t)
		o := newObject(store.WorkspaceID(), 1)
		store.Upsert(o)

		ctrl.SelectObject(o.ID, false)
		ctrl.Duplicate()
		require.Equal(t, 2, store.Len())

		require.True(t, ctrl.Undo())
		assert.Equal(t, 1, store.Len())
	})

	t.Run("empty stacks report false", func(t *testing.T) {
		t.Parallel()

		_, _, ctrl := setup(t)
		assert.False(t, ctrl.Undo())
		assert.False(t, ctrl.Redo())
	})
}
