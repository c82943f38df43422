package canvas

import (
	"time"

	"github.com/google/uuid"

	"github.com/callboard/callboard/internal/domain"
)

// CommitSink receives the persistence work produced by optimistic
// mutations. Implementations must not block the caller; the Committer in
// this package queues the work and resolves each write against the store
// (Confirm or Revert) when the backend call returns.
type CommitSink interface {
	Create(o *domain.CanvasObject)
	Update(id uuid.UUID, patch domain.ObjectPatch)
	Delete(id uuid.UUID)
}

// DuplicateOffset is the x/y displacement applied to duplicated and
// pasted cards.
const DuplicateOffset = 16.0

const defaultHistoryLimit = 100

// Controller translates pointer and keyboard input into store mutations
// and view-state changes. All mutations are optimistic: the store is
// updated first and the write handed to the CommitSink.
type Controller struct {
	store  *Store
	sink   CommitSink
	userID uuid.UUID

	view      View
	selection []uuid.UUID
	clipboard []*domain.CanvasObject
	hist      *history
	drag      *dragState

	now func() time.Time
}

type dragTarget struct {
	id   uuid.UUID
	orig *domain.CanvasObject // pre-drag value, rollback base
}

type dragState struct {
	start   Point
	targets []dragTarget
	moved   bool
}

func NewController(store *Store, sink CommitSink, userID uuid.UUID) *Controller {
	return &Controller{
		store:  store,
		sink:   sink,
		userID: userID,
		view:   newView(),
		hist:   newHistory(defaultHistoryLimit),
		now:    time.Now,
	}
}

// View state -----------------------------------------------------------

func (c *Controller) SetZoom(zoom float64) float64 { return c.view.SetZoom(zoom) }
func (c *Controller) Zoom() float64                { return c.view.Zoom() }
func (c *Controller) SetPan(x, y float64)          { c.view.SetPan(x, y) }
func (c *Controller) Pan() (float64, float64)      { return c.view.Pan() }
func (c *Controller) SetTool(t Tool) Tool          { return c.view.SetTool(t) }
func (c *Controller) Tool() Tool                   { return c.view.Tool() }

// Selection ------------------------------------------------------------

// Selection returns the selected ids in selection order.
func (c *Controller) Selection() []uuid.UUID {
	out := make([]uuid.UUID, len(c.selection))
	copy(out, c.selection)
	return out
}

// SelectObject selects id. With additive false the selection is replaced;
// with additive true id is added (shift-click). Unknown ids are dropped
// silently.
func (c *Controller) SelectObject(id uuid.UUID, additive bool) {
	if _, ok := c.store.Get(id); !ok {
		if !additive {
			c.selection = nil
		}
		return
	}
	if !additive {
		c.selection = []uuid.UUID{id}
		return
	}
	for _, sel := range c.selection {
		if sel == id {
			return
		}
	}
	c.selection = append(c.selection, id)
}

func (c *Controller) DeselectAll() { c.selection = nil }

// SelectAll selects every object in paint order.
func (c *Controller) SelectAll() {
	objs := c.store.List()
	c.selection = make([]uuid.UUID, len(objs))
	for i, o := range objs {
		c.selection[i] = o.ID
	}
}

// selectedObjects resolves the selection against the store, dropping ids
// that were deleted remotely while selected.
func (c *Controller) selectedObjects() []*domain.CanvasObject {
	out := make([]*domain.CanvasObject, 0, len(c.selection))
	live := make([]uuid.UUID, 0, len(c.selection))
	for _, id := range c.selection {
		if o, ok := c.store.Get(id); ok {
			out = append(out, o)
			live = append(live, id)
		}
	}
	c.selection = live
	return out
}

// Drag -----------------------------------------------------------------

// BeginDrag starts a move of the dragged object, or of the whole
// selection when the object is part of it. Locked objects never move.
// Only the select tool drags.
func (c *Controller) BeginDrag(id uuid.UUID, start Point) bool {
	if c.view.Tool() != ToolSelect {
		return false
	}
	o, ok := c.store.Get(id)
	if !ok || o.Locked {
		return false
	}

	if !c.isSelected(id) {
		c.SelectObject(id, false)
	}

	var targets []dragTarget
	for _, sel := range c.selectedObjects() {
		if sel.Locked {
			continue
		}
		targets = append(targets, dragTarget{id: sel.ID, orig: sel})
	}
	if len(targets) == 0 {
		return false
	}
	c.drag = &dragState{start: start, targets: targets}
	return true
}

// UpdateDrag applies the pointer delta optimistically on every move. No
// write is issued until EndDrag, to bound write volume.
func (c *Controller) UpdateDrag(current Point) {
	if c.drag == nil {
		return
	}
	dx := current.X - c.drag.start.X
	dy := current.Y - c.drag.start.Y
	if dx != 0 || dy != 0 {
		c.drag.moved = true
	}
	for _, t := range c.drag.targets {
		moved := t.orig.Clone()
		moved.X += dx
		moved.Y += dy
		c.store.Upsert(moved)
	}
}

// EndDrag commits a single persisted update per moved object.
func (c *Controller) EndDrag() {
	d := c.drag
	c.drag = nil
	if d == nil || !d.moved {
		return
	}

	var snaps []snapshot
	for _, t := range d.targets {
		cur, ok := c.store.Get(t.id)
		if !ok {
			continue // deleted remotely mid-drag
		}
		if cur.X == t.orig.X && cur.Y == t.orig.Y {
			continue
		}
		x, y := cur.X, cur.Y
		c.store.MarkPending(t.id, t.orig, c.now())
		c.sink.Update(t.id, domain.ObjectPatch{X: &x, Y: &y})
		snaps = append(snaps, snapshot{id: t.id, before: t.orig, after: cur})
	}
	c.hist.push(action{snaps: snaps})
}

func (c *Controller) isSelected(id uuid.UUID) bool {
	for _, sel := range c.selection {
		if sel == id {
			return true
		}
	}
	return false
}

// Object creation ------------------------------------------------------

// CreateObject adds a card at the given position with kind defaults and
// hands the create to the sink. The new object is selected.
func (c *Controller) CreateObject(kind domain.ObjectKind, pos Point, width, height float64, payload domain.Payload) (*domain.CanvasObject, error) {
	o := &domain.CanvasObject{
		ID:          uuid.New(),
		WorkspaceID: c.store.WorkspaceID(),
		Kind:        kind,
		X:           pos.X,
		Y:           pos.Y,
		Width:       width,
		Height:      height,
		Opacity:     1,
		Visible:     true,
		ZIndex:      c.maxZ() + 1,
		Payload:     payload,
		CreatedBy:   c.userID,
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	c.store.Upsert(o)
	c.store.MarkPending(o.ID, nil, c.now())
	c.sink.Create(o)
	c.selection = []uuid.UUID{o.ID}
	c.hist.push(action{snaps: []snapshot{{id: o.ID, after: o.Clone()}}})
	return o, nil
}

func (c *Controller) maxZ() int {
	max := 0
	for _, o := range c.store.List() {
		if o.ZIndex > max {
			max = o.ZIndex
		}
	}
	return max
}

// Duplicate / clipboard ------------------------------------------------

// Duplicate creates offset copies of the selection with fresh ids and
// replaces the selection with the copies.
func (c *Controller) Duplicate() []*domain.CanvasObject {
	return c.instantiate(c.selectedObjects())
}

// Copy snapshots the selection into the clipboard.
func (c *Controller) Copy() {
	sel := c.selectedObjects()
	c.clipboard = make([]*domain.CanvasObject, len(sel))
	for i, o := range sel {
		c.clipboard[i] = o.Clone()
	}
}

// Paste instantiates the clipboard contents with fresh ids and offset
// positions, and selects the new objects.
func (c *Controller) Paste() []*domain.CanvasObject {
	return c.instantiate(c.clipboard)
}

func (c *Controller) instantiate(src []*domain.CanvasObject) []*domain.CanvasObject {
	if len(src) == 0 {
		return nil
	}
	z := c.maxZ()
	var created []*domain.CanvasObject
	var snaps []snapshot
	ids := make([]uuid.UUID, 0, len(src))
	for _, o := range src {
		z++
		dup := o.Clone()
		dup.ID = uuid.New()
		dup.X += DuplicateOffset
		dup.Y += DuplicateOffset
		dup.ZIndex = z
		dup.Locked = false
		dup.ParentID = nil
		dup.CreatedBy = c.userID
		dup.CreatedAt = time.Time{}
		dup.UpdatedAt = time.Time{}

		c.store.Upsert(dup)
		c.store.MarkPending(dup.ID, nil, c.now())
		c.sink.Create(dup)

		created = append(created, dup)
		snaps = append(snaps, snapshot{id: dup.ID, after: dup.Clone()})
		ids = append(ids, dup.ID)
	}
	c.selection = ids
	c.hist.push(action{snaps: snaps})
	return created
}

// Delete ---------------------------------------------------------------

// DeleteSelection removes every selected unlocked object. Locked objects
// are skipped and stay selected.
func (c *Controller) DeleteSelection() int {
	var snaps []snapshot
	var kept []uuid.UUID
	deleted := 0
	for _, o := range c.selectedObjects() {
		if o.Locked {
			kept = append(kept, o.ID)
			continue
		}
		c.store.Remove(o.ID)
		c.sink.Delete(o.ID)
		snaps = append(snaps, snapshot{id: o.ID, before: o})
		deleted++
	}
	c.selection = kept
	c.hist.push(action{snaps: snaps})
	return deleted
}

// Grouping -------------------------------------------------------------

// Group wraps the selection in a new group object and reparents the
// members onto it. Needs at least two members.
func (c *Controller) Group() (*domain.CanvasObject, bool) {
	members := c.selectedObjects()
	if len(members) < 2 {
		return nil, false
	}

	minX, minY := members[0].X, members[0].Y
	maxX, maxY := minX, minY
	minZ := members[0].ZIndex
	for _, m := range members {
		if m.X < minX {
			minX = m.X
		}
		if m.Y < minY {
			minY = m.Y
		}
		right := m.X + m.Width
		bottom := m.Y
		if m.Height > 0 {
			bottom += m.Height
		}
		if right > maxX {
			maxX = right
		}
		if bottom > maxY {
			maxY = bottom
		}
		if m.ZIndex < minZ {
			minZ = m.ZIndex
		}
	}

	group := &domain.CanvasObject{
		ID:          uuid.New(),
		WorkspaceID: c.store.WorkspaceID(),
		Kind:        domain.KindGroup,
		X:           minX,
		Y:           minY,
		Width:       maxX - minX,
		Height:      maxY - minY,
		Opacity:     1,
		Visible:     true,
		ZIndex:      minZ - 1, // groups paint behind their members
		Payload:     &domain.GroupPayload{},
		CreatedBy:   c.userID,
	}
	if group.Width <= 0 {
		group.Width = 1
	}
	if group.Height <= 0 {
		group.Height = 1
	}

	var snaps []snapshot
	c.store.Upsert(group)
	c.store.MarkPending(group.ID, nil, c.now())
	c.sink.Create(group)
	snaps = append(snaps, snapshot{id: group.ID, after: group.Clone()})

	for _, m := range members {
		before := m.Clone()
		after := m.Clone()
		gid := group.ID
		after.ParentID = &gid
		c.store.Upsert(after)
		c.store.MarkPending(m.ID, before, c.now())
		c.sink.Update(m.ID, domain.ObjectPatch{ParentID: &gid})
		snaps = append(snaps, snapshot{id: m.ID, before: before, after: after})
	}

	c.selection = []uuid.UUID{group.ID}
	c.hist.push(action{snaps: snaps})
	return group, true
}

// Ungroup dissolves every selected group: children are detached, the
// group object is deleted, and the children become the selection.
func (c *Controller) Ungroup() bool {
	var snaps []snapshot
	var freed []uuid.UUID
	did := false
	for _, o := range c.selectedObjects() {
		if o.Kind != domain.KindGroup {
			continue
		}
		did = true
		for _, child := range c.store.List() {
			if child.ParentID == nil || *child.ParentID != o.ID {
				continue
			}
			before := child.Clone()
			after := child.Clone()
			after.ParentID = nil
			c.store.Upsert(after)
			c.store.MarkPending(child.ID, before, c.now())
			c.sink.Update(child.ID, domain.ObjectPatch{ClearParent: true})
			snaps = append(snaps, snapshot{id: child.ID, before: before, after: after})
			freed = append(freed, child.ID)
		}
		c.store.Remove(o.ID)
		c.sink.Delete(o.ID)
		snaps = append(snaps, snapshot{id: o.ID, before: o})
	}
	if !did {
		return false
	}
	c.selection = freed
	c.hist.push(action{snaps: snaps})
	return true
}

// Z-order --------------------------------------------------------------

func (c *Controller) BringForward() { c.shiftZ(1) }
func (c *Controller) SendBackward() { c.shiftZ(-1) }

// BringToFront moves the selection above every other object, preserving
// relative order within the selection.
func (c *Controller) BringToFront() {
	z := c.maxZ()
	var snaps []snapshot
	for _, o := range c.selectedObjects() {
		z++
		snaps = append(snaps, c.setZ(o, z))
	}
	c.hist.push(action{snaps: snaps})
}

// SendToBack moves the selection below every other object.
func (c *Controller) SendToBack() {
	z := c.minZ()
	sel := c.selectedObjects()
	var snaps []snapshot
	for i := len(sel) - 1; i >= 0; i-- {
		z--
		snaps = append(snaps, c.setZ(sel[i], z))
	}
	c.hist.push(action{snaps: snaps})
}

func (c *Controller) shiftZ(delta int) {
	var snaps []snapshot
	for _, o := range c.selectedObjects() {
		snaps = append(snaps, c.setZ(o, o.ZIndex+delta))
	}
	c.hist.push(action{snaps: snaps})
}

func (c *Controller) setZ(o *domain.CanvasObject, z int) snapshot {
	before := o.Clone()
	after := o.Clone()
	after.ZIndex = z
	c.store.Upsert(after)
	c.store.MarkPending(o.ID, before, c.now())
	zc := z
	c.sink.Update(o.ID, domain.ObjectPatch{ZIndex: &zc})
	return snapshot{id: o.ID, before: before, after: after}
}

func (c *Controller) minZ() int {
	objs := c.store.List()
	if len(objs) == 0 {
		return 0
	}
	min := objs[0].ZIndex
	for _, o := range objs {
		if o.ZIndex < min {
			min = o.ZIndex
		}
	}
	return min
}

// Undo / redo ----------------------------------------------------------

func (c *Controller) Undo() bool {
	a, ok := c.hist.popUndo()
	if !ok {
		return false
	}
	for i := len(a.snaps) - 1; i >= 0; i-- {
		c.applySnapshot(a.snaps[i].id, a.snaps[i].before)
	}
	return true
}

func (c *Controller) Redo() bool {
	a, ok := c.hist.popRedo()
	if !ok {
		return false
	}
	for _, s := range a.snaps {
		c.applySnapshot(s.id, s.after)
	}
	return true
}

func (c *Controller) applySnapshot(id uuid.UUID, target *domain.CanvasObject) {
	cur, exists := c.store.Get(id)
	if target == nil {
		if exists {
			c.store.Remove(id)
			c.sink.Delete(id)
		}
		return
	}
	c.store.Upsert(target)
	if exists {
		c.store.MarkPending(id, cur, c.now())
		c.sink.Update(id, fullPatch(target))
	} else {
		c.store.MarkPending(id, nil, c.now())
		c.sink.Create(target.Clone())
	}
}

// fullPatch builds a patch that sets every mutable field from o.
func fullPatch(o *domain.CanvasObject) domain.ObjectPatch {
	x, y := o.X, o.Y
	w, h := o.Width, o.Height
	rot, op := o.Rotation, o.Opacity
	vis, locked := o.Visible, o.Locked
	z := o.ZIndex
	p := domain.ObjectPatch{
		X: &x, Y: &y, Width: &w, Height: &h,
		Rotation: &rot, Opacity: &op,
		Visible: &vis, Locked: &locked, ZIndex: &z,
		Payload: o.Payload,
	}
	if o.ParentID != nil {
		pid := *o.ParentID
		p.ParentID = &pid
	} else {
		p.ClearParent = true
	}
	return p
}

// Keyboard dispatch ----------------------------------------------------

// HandleKey resolves a chord against the shortcut table and runs the
// action. Shortcuts are suppressed while typing except for the allow-list
// (select-all, copy, paste, undo).
func (c *Controller) HandleKey(chord KeyChord, typing bool) (Action, bool) {
	a, ok := LookupShortcut(chord, typing)
	if !ok {
		return "", false
	}
	switch a {
	case ActionDuplicate:
		c.Duplicate()
	case ActionDelete:
		c.DeleteSelection()
	case ActionGroup:
		c.Group()
	case ActionUngroup:
		c.Ungroup()
	case ActionCopy:
		c.Copy()
	case ActionPaste:
		c.Paste()
	case ActionUndo:
		c.Undo()
	case ActionRedo:
		c.Redo()
	case ActionBringForward:
		c.BringForward()
	case ActionSendBackward:
		c.SendBackward()
	case ActionBringToFront:
		c.BringToFront()
	case ActionSendToBack:
		c.SendToBack()
	case ActionSelectAll:
		c.SelectAll()
	case ActionDeselectAll:
		c.DeselectAll()
	case ActionToolSelect:
		c.SetTool(ToolSelect)
	case ActionToolHand:
		c.SetTool(ToolHand)
	case ActionToolZoom:
		c.SetTool(ToolZoom)
	case ActionToolText:
		c.SetTool(ToolText)
	case ActionToolFrame:
		c.SetTool(ToolFrame)
	}
	return a, true
}
