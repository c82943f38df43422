package canvas

import (
	"github.com/google/uuid"

	"github.com/callboard/callboard/internal/domain"
)

// snapshot captures one object's state on both sides of an action.
// A nil side means the object does not exist on that side.
type snapshot struct {
	id     uuid.UUID
	before *domain.CanvasObject
	after  *domain.CanvasObject
}

type action struct {
	snaps []snapshot
}

// history is a bounded undo/redo stack of object snapshots. Pushing a new
// action clears the redo side.
type history struct {
	undos []action
	redos []action
	limit int
}

func newHistory(limit int) *history {
	return &history{limit: limit}
}

func (h *history) push(a action) {
	if len(a.snaps) == 0 {
		return
	}
	h.undos = append(h.undos, a)
	if len(h.undos) > h.limit {
		h.undos = h.undos[1:]
	}
	h.redos = nil
}

func (h *history) popUndo() (action, bool) {
	if len(h.undos) == 0 {
		return action{}, false
	}
	a := h.undos[len(h.undos)-1]
	h.undos = h.undos[:len(h.undos)-1]
	h.redos = append(h.redos, a)
	return a, true
}

func (h *history) popRedo() (action, bool) {
	if len(h.redos) == 0 {
		return action{}, false
	}
	a := h.redos[len(h.redos)-1]
	h.redos = h.redos[:len(h.redos)-1]
	h.undos = append(h.undos, a)
	return a, true
}
