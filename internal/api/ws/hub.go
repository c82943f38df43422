package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/callboard/callboard/internal/server/middleware"
	redisstore "github.com/callboard/callboard/internal/store/redis"
	canvassync "github.com/callboard/callboard/internal/sync"
)

// Hub bridges workspace WebSocket connections and Redis pub/sub. Every
// event published on a workspace channel is relayed verbatim to each
// connected client; the client-side sync engine does the reconciling.
//
// The hub also keeps a roster of the participants connected to this
// replica so a newcomer gets a presence snapshot immediately: join
// events only reach clients that were already subscribed.
type Hub struct {
	pubsub      *redisstore.PubSub
	presenceTTL time.Duration

	mu      sync.Mutex
	rosters map[uuid.UUID]*canvassync.Roster
}

func NewHub(pubsub *redisstore.PubSub, presenceTTL time.Duration) *Hub {
	return &Hub{
		pubsub:      pubsub,
		presenceTTL: presenceTTL,
		rosters:     make(map[uuid.UUID]*canvassync.Roster),
	}
}

// ServeWorkspace handles a WebSocket connection for one canvas session.
// Subscribes to the workspace channel, announces the participant, and
// relays events until the client goes away. A leave event is published
// on disconnect so other sessions can drop the editor from their roster.
func (h *Hub) ServeWorkspace(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing user", http.StatusUnauthorized)
		return
	}
	name, _ := middleware.UserNameFromContext(r.Context())

	workspaceID, err := uuid.Parse(chi.URLParam(r, "workspaceID"))
	if err != nil {
		http.Error(w, "invalid workspace id", http.StatusBadRequest)
		return
	}

	// The client names its session so it can recognise echoes of its
	// own writes in the event stream.
	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		clientID = uuid.NewString()
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	channel := redisstore.WorkspaceChannel(workspaceID)

	messages, cleanup, err := h.pubsub.Subscribe(ctx, channel)
	if err != nil {
		log.Error().Err(err).Msg("websocket subscribe")
		_ = conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	defer cleanup()

	participant := canvassync.Participant{
		UserID:   userID,
		ClientID: clientID,
		Name:     name,
		JoinedAt: time.Now(),
		LastSeen: time.Now(),
	}

	// Snapshot first, so the client's roster starts complete, then the
	// join broadcast for everyone else.
	h.sendRosterSnapshot(ctx, conn, workspaceID)
	h.joinRoster(workspaceID, participant)
	h.publishPresence(ctx, workspaceID, canvassync.EventPresenceJoin, participant)
	defer h.departPresence(workspaceID, participant)

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
			return
		case msg, msgOK := <-messages:
			if !msgOK {
				_ = conn.Close(websocket.StatusNormalClosure, "channel closed")
				return
			}
			if writeErr := conn.Write(ctx, websocket.MessageText, msg); writeErr != nil {
				log.Debug().Err(writeErr).Msg("websocket write")
				return
			}
		}
	}
}

// sendRosterSnapshot writes a presence sync event with this replica's
// current participants directly to one connection.
func (h *Hub) sendRosterSnapshot(ctx context.Context, conn *websocket.Conn, workspaceID uuid.UUID) {
	h.mu.Lock()
	roster, ok := h.rosters[workspaceID]
	var active []canvassync.Participant
	if ok {
		active = roster.Active(time.Now())
	}
	h.mu.Unlock()

	payload, err := json.Marshal(canvassync.Event{
		Type:        canvassync.EventPresenceSync,
		WorkspaceID: workspaceID,
		Roster:      active,
	})
	if err != nil {
		return
	}
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		log.Debug().Err(err).Msg("roster snapshot write")
	}
}

func (h *Hub) joinRoster(workspaceID uuid.UUID, p canvassync.Participant) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// A workspace whose sessions all timed out without a leave keeps an
	// empty roster behind; reap those here so the map does not accrete
	// one entry per abandoned workspace.
	now := time.Now()
	for id, r := range h.rosters {
		if id != workspaceID && len(r.Active(now)) == 0 {
			delete(h.rosters, id)
		}
	}

	roster, ok := h.rosters[workspaceID]
	if !ok {
		roster = canvassync.NewRoster(h.presenceTTL)
		h.rosters[workspaceID] = roster
	}
	roster.Join(p)
}

func (h *Hub) leaveRoster(workspaceID uuid.UUID, clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	roster, ok := h.rosters[workspaceID]
	if !ok {
		return
	}
	roster.Leave(clientID)
	if len(roster.Active(time.Now())) == 0 {
		delete(h.rosters, workspaceID)
	}
}

func (h *Hub) publishPresence(ctx context.Context, workspaceID uuid.UUID, typ canvassync.EventType, p canvassync.Participant) {
	payload, err := json.Marshal(canvassync.Event{
		Type:        typ,
		WorkspaceID: workspaceID,
		Participant: &p,
		Origin:      p.ClientID,
	})
	if err != nil {
		return
	}
	if err := h.pubsub.Publish(ctx, redisstore.WorkspaceChannel(workspaceID), payload); err != nil {
		log.Debug().Err(err).
			Str("event", string(typ)).
			Stringer("workspace_id", workspaceID).
			Msg("presence publish failed")
	}
}

// departPresence runs after the request context is cancelled, so it
// uses a short detached context. Best effort: the roster TTL sweeps
// entries whose leave event was lost.
func (h *Hub) departPresence(workspaceID uuid.UUID, p canvassync.Participant) {
	h.leaveRoster(workspaceID, p.ClientID)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	h.publishPresence(ctx, workspaceID, canvassync.EventPresenceLeave, p)
}
