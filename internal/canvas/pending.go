package canvas

import (
	"time"

	"github.com/google/uuid"

	"github.com/callboard/callboard/internal/domain"
)

// EditPhase is the lifecycle of an optimistic local edit: applied to the
// store immediately, confirmed when the backend write resolves, reverted
// when it fails.
type EditPhase int

const (
	EditPending EditPhase = iota
	EditConfirmed
	EditReverted
)

type pendingEdit struct {
	base        *domain.CanvasObject // last confirmed value, nil for creates
	phase       EditPhase
	issuedAt    time.Time // when the local write was applied
	confirmedAt time.Time // server updated_at once confirmed
}

// MarkPending records that a local write for id is in flight. The current
// store value is captured as the rollback base. Call after the optimistic
// Upsert.
func (s *Store) MarkPending(id uuid.UUID, base *domain.CanvasObject, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &pendingEdit{phase: EditPending, issuedAt: at}
	if base != nil {
		e.base = base.Clone()
	}
	s.pending[id] = e
}

// Confirm accepts the server row for a pending edit. The stored object is
// replaced with the server value so read-your-writes reflects the
// server-assigned updated_at.
func (s *Store) Confirm(id uuid.UUID, server *domain.CanvasObject) {
	s.mu.Lock()
	e, ok := s.pending[id]
	if ok {
		e.phase = EditConfirmed
		e.confirmedAt = server.UpdatedAt
	}
	c := server.Clone()
	if ent, exists := s.objects[id]; exists {
		ent.obj = c
	} else {
		s.seq++
		s.objects[id] = &entry{obj: c, seq: s.seq}
	}
	subs := s.snapshotSubs()
	s.mu.Unlock()

	notify(subs, Change{Kind: ChangeUpserted, ID: id, Object: c.Clone()})
}

// Revert rolls a failed write back to the last confirmed value. A revert
// of a pending create removes the object.
func (s *Store) Revert(id uuid.UUID) {
	s.mu.Lock()
	e, ok := s.pending[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	e.phase = EditReverted
	delete(s.pending, id)

	var change Change
	if e.base == nil {
		delete(s.objects, id)
		change = Change{Kind: ChangeRemoved, ID: id}
	} else {
		base := e.base.Clone()
		if ent, exists := s.objects[id]; exists {
			ent.obj = base
		} else {
			s.seq++
			s.objects[id] = &entry{obj: base, seq: s.seq}
		}
		change = Change{Kind: ChangeUpserted, ID: id, Object: base.Clone()}
	}
	subs := s.snapshotSubs()
	s.mu.Unlock()

	notify(subs, change)
}

// PendingPhase reports the edit phase for id, if a record exists.
func (s *Store) PendingPhase(id uuid.UUID) (EditPhase, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.pending[id]
	if !ok {
		return 0, false
	}
	return e.phase, true
}

// ShouldDiscardRemote decides whether a remote change for id is a stale
// echo of this client's own write. A remote event is discarded when a
// local write to the same object was issued within the grace window and
// the remote timestamp is not newer than that write. Outside the window
// the remote change always applies (last-write-wins).
func (s *Store) ShouldDiscardRemote(id uuid.UUID, remote time.Time, window time.Duration, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.pending[id]
	if !ok {
		return false
	}
	if now.Sub(e.issuedAt) > window {
		// Window elapsed; the record is no longer useful.
		delete(s.pending, id)
		return false
	}
	ref := e.issuedAt
	if e.phase == EditConfirmed && !e.confirmedAt.IsZero() {
		ref = e.confirmedAt
	}
	return !remote.After(ref)
}
