package canvas

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/callboard/callboard/internal/domain"
)

// ChangeKind discriminates store change notifications.
type ChangeKind int

const (
	ChangeUpserted ChangeKind = iota
	ChangeRemoved
)

// Change is delivered to subscribers after every store mutation.
type Change struct {
	Kind   ChangeKind
	ID     uuid.UUID
	Object *domain.CanvasObject // nil for removals
}

type entry struct {
	obj *domain.CanvasObject
	seq uint64 // insertion order, tie-break for equal z-index
}

// Store is the authoritative in-process collection of canvas objects for
// one open workspace. The interaction controller (local intent) and the
// sync engine (remote intent) both mutate it through Upsert/Remove, so a
// single mutex serialises all writes.
type Store struct {
	mu          sync.Mutex
	workspaceID uuid.UUID
	objects     map[uuid.UUID]*entry
	seq         uint64
	pending     map[uuid.UUID]*pendingEdit
	subs        map[int]func(Change)
	nextSub     int
}

func NewStore(workspaceID uuid.UUID) *Store {
	return &Store{
		workspaceID: workspaceID,
		objects:     make(map[uuid.UUID]*entry),
		pending:     make(map[uuid.UUID]*pendingEdit),
		subs:        make(map[int]func(Change)),
	}
}

func (s *Store) WorkspaceID() uuid.UUID { return s.workspaceID }

// Load replaces the store contents with a freshly loaded workspace.
// Pending edit records are discarded along with the old objects.
func (s *Store) Load(objs []*domain.CanvasObject) {
	s.mu.Lock()
	s.objects = make(map[uuid.UUID]*entry, len(objs))
	s.pending = make(map[uuid.UUID]*pendingEdit)
	s.seq = 0
	for _, o := range objs {
		s.seq++
		s.objects[o.ID] = &entry{obj: o.Clone(), seq: s.seq}
	}
	s.mu.Unlock()
}

// Get returns a copy of the object, or false if unknown.
func (s *Store) Get(id uuid.UUID) (*domain.CanvasObject, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.objects[id]
	if !ok {
		return nil, false
	}
	return e.obj.Clone(), true
}

// List returns all objects ordered by ascending z-index, insertion order
// as tie-break. This is the paint and selection-precedence order. The
// sort and clones happen under the lock: Upsert and Confirm swap entry
// object pointers, so reading them unlocked would race with writers.
func (s *Store) List() []*domain.CanvasObject {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]*entry, 0, len(s.objects))
	for _, e := range s.objects {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].obj.ZIndex != entries[j].obj.ZIndex {
			return entries[i].obj.ZIndex < entries[j].obj.ZIndex
		}
		return entries[i].seq < entries[j].seq
	})

	out := make([]*domain.CanvasObject, len(entries))
	for i, e := range entries {
		out[i] = e.obj.Clone()
	}
	return out
}

// Len returns the number of objects in the store.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// Upsert inserts or replaces an object by id. Cross-object invariants are
// not validated here; a dangling parent reference degrades to unparented
// rendering.
func (s *Store) Upsert(o *domain.CanvasObject) {
	c := o.Clone()

	s.mu.Lock()
	if e, ok := s.objects[c.ID]; ok {
		e.obj = c
	} else {
		s.seq++
		s.objects[c.ID] = &entry{obj: c, seq: s.seq}
	}
	subs := s.snapshotSubs()
	s.mu.Unlock()

	notify(subs, Change{Kind: ChangeUpserted, ID: c.ID, Object: c.Clone()})
}

// Remove deletes an object. Children are not cascaded; their parent
// references are repaired at next load, not synchronously.
func (s *Store) Remove(id uuid.UUID) bool {
	s.mu.Lock()
	_, ok := s.objects[id]
	if ok {
		delete(s.objects, id)
		delete(s.pending, id)
	}
	subs := s.snapshotSubs()
	s.mu.Unlock()

	if ok {
		notify(subs, Change{Kind: ChangeRemoved, ID: id})
	}
	return ok
}

// Subscribe registers a change callback and returns an unsubscribe func.
// Callbacks run outside the store lock.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) snapshotSubs() []func(Change) {
	out := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}

func notify(subs []func(Change), c Change) {
	for _, fn := range subs {
		fn(c)
	}
}
