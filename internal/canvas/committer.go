package canvas

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/callboard/callboard/internal/domain"
)

// commitTimeout bounds a single backend call so a hung backend cannot
// wedge the worker and back the queue up into the interaction path.
const commitTimeout = 10 * time.Second

type commitKind int

const (
	commitCreate commitKind = iota
	commitUpdate
	commitDelete
)

type commitOp struct {
	kind   commitKind
	id     uuid.UUID
	object *domain.CanvasObject
	patch  domain.ObjectPatch
}

// Committer is the asynchronous persistence path for optimistic edits.
// Controller mutations enqueue work on a bounded queue; a single worker
// issues the backend calls in order (per-client issuance order is
// preserved) and resolves each write against the store: Confirm on
// success, Revert on failure. NotFound on update means the object was
// deleted remotely while the edit was in flight; the local copy is
// dropped rather than reverted.
type Committer struct {
	store *Store
	repo  domain.CanvasObjectRepository
	queue chan commitOp
}

func NewCommitter(store *Store, repo domain.CanvasObjectRepository, queueSize int) *Committer {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Committer{
		store: store,
		repo:  repo,
		queue: make(chan commitOp, queueSize),
	}
}

func (c *Committer) Create(o *domain.CanvasObject) {
	c.enqueue(commitOp{kind: commitCreate, id: o.ID, object: o.Clone()})
}

func (c *Committer) Update(id uuid.UUID, patch domain.ObjectPatch) {
	c.enqueue(commitOp{kind: commitUpdate, id: id, patch: patch})
}

func (c *Committer) Delete(id uuid.UUID) {
	c.enqueue(commitOp{kind: commitDelete, id: id})
}

// enqueue never blocks the caller: controller mutations run on the
// interaction path and must not wait on the backend. A full queue means
// the worker is stalled, so the write is shed and the optimistic state
// rolled back. A shed delete is already gone locally; the next load
// reconciles it, same as a failed delete.
func (c *Committer) enqueue(op commitOp) {
	select {
	case c.queue <- op:
	default:
		log.Warn().Stringer("object_id", op.id).Msg("commit queue full, shedding write")
		if op.kind != commitDelete {
			c.store.Revert(op.id)
		}
	}
}

// Run processes queued writes until ctx is cancelled. Writes still in
// flight at teardown resolve against a store nobody reads anymore; they
// are not rolled back.
func (c *Committer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case op := <-c.queue:
			c.process(ctx, op)
		}
	}
}

func (c *Committer) process(ctx context.Context, op commitOp) {
	ctx, cancel := context.WithTimeout(ctx, commitTimeout)
	defer cancel()

	switch op.kind {
	case commitCreate:
		err := c.repo.Create(ctx, op.object)
		if err != nil {
			log.Warn().Err(err).Stringer("object_id", op.id).Msg("create failed, reverting")
			c.store.Revert(op.id)
			return
		}
		c.store.Confirm(op.id, op.object)

	case commitUpdate:
		updated, err := c.repo.Update(ctx, c.store.WorkspaceID(), op.id, op.patch)
		if errors.Is(err, domain.ErrNotFound) {
			log.Debug().Stringer("object_id", op.id).Msg("update target gone, dropping local copy")
			c.store.Remove(op.id)
			return
		}
		if err != nil {
			log.Warn().Err(err).Stringer("object_id", op.id).Msg("update failed, reverting")
			c.store.Revert(op.id)
			return
		}
		c.store.Confirm(op.id, updated)

	case commitDelete:
		if err := c.repo.Delete(ctx, c.store.WorkspaceID(), op.id); err != nil {
			// Delete is idempotent at the adapter; a failure here is a
			// backend outage. The object is already gone locally and a
			// reload reconciles it.
			log.Warn().Err(err).Stringer("object_id", op.id).Msg("delete failed")
		}
	}
}
