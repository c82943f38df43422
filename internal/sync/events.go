package sync

import (
	"time"

	"github.com/google/uuid"

	"github.com/callboard/callboard/internal/domain"
)

// EventType discriminates realtime workspace events.
type EventType string

const (
	EventObjectUpserted EventType = "object.upserted"
	EventObjectDeleted  EventType = "object.deleted"
	EventPresenceJoin   EventType = "presence.join"
	EventPresenceLeave  EventType = "presence.leave"
	EventPresenceSync   EventType = "presence.sync"
)

// Event is the wire format on a workspace channel. Object events carry
// the full row; presence events carry participant info and are never
// persisted as canvas objects.
type Event struct {
	Type        EventType            `json:"type"`
	WorkspaceID uuid.UUID            `json:"workspace_id"`
	ObjectID    uuid.UUID            `json:"object_id,omitempty"`
	Object      *domain.CanvasObject `json:"object,omitempty"`
	DeletedAt   time.Time            `json:"deleted_at,omitempty"`
	Participant *Participant         `json:"participant,omitempty"`
	Roster      []Participant        `json:"roster,omitempty"`
	// Origin identifies the client session that produced the write, so
	// receivers can recognise echoes of their own writes.
	Origin string `json:"origin,omitempty"`
}
