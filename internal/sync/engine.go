package sync

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/callboard/callboard/internal/canvas"
	redisstore "github.com/callboard/callboard/internal/store/redis"
)

// State is the subscription lifecycle of an engine.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	default:
		return "disconnected"
	}
}

// Status is surfaced to the UI layer via the OnStatus callback. The
// reconnecting status is only raised after ReconnectWarnAfter
// consecutive failures, as a non-fatal indicator.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusSubscribed   Status = "subscribed"
	StatusReconnecting Status = "reconnecting"
	StatusDisconnected Status = "disconnected"
)

// Publisher is the write half of a Transport, enough to broadcast an
// event without holding a subscription.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Transport carries workspace events. *redisstore.PubSub satisfies it.
type Transport interface {
	Publisher
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error)
}

// Options tune the engine. Zero values fall back to defaults.
type Options struct {
	// GraceWindow absorbs the round-trip of this client's own write
	// echo; remote events for a locally edited object inside the window
	// with a non-newer timestamp are discarded as stale echoes.
	GraceWindow        time.Duration
	BackoffInitial     time.Duration
	BackoffMax         time.Duration
	ReconnectWarnAfter int
	PresenceTTL        time.Duration
	OnStatus           func(Status)
}

const (
	defaultGraceWindow    = time.Second
	defaultBackoffInitial = 500 * time.Millisecond
	defaultBackoffMax     = 30 * time.Second
	defaultWarnAfter      = 3
	defaultPresenceTTL    = 30 * time.Second
)

// Engine keeps a canvas store eventually consistent with every other
// client editing the same workspace. One engine per open workspace; Run
// owns the only goroutine that applies remote changes, so the store sees
// a single remote writer.
type Engine struct {
	store     *canvas.Store
	transport Transport
	self      Participant
	roster    *Roster
	opts      Options
	state     atomic.Int32
	now       func() time.Time
}

func NewEngine(store *canvas.Store, transport Transport, self Participant, opts Options) *Engine {
	if opts.GraceWindow <= 0 {
		opts.GraceWindow = defaultGraceWindow
	}
	if opts.BackoffInitial <= 0 {
		opts.BackoffInitial = defaultBackoffInitial
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = defaultBackoffMax
	}
	if opts.ReconnectWarnAfter <= 0 {
		opts.ReconnectWarnAfter = defaultWarnAfter
	}
	if opts.PresenceTTL <= 0 {
		opts.PresenceTTL = defaultPresenceTTL
	}
	return &Engine{
		store:     store,
		transport: transport,
		self:      self,
		roster:    NewRoster(opts.PresenceTTL),
		opts:      opts,
		now:       time.Now,
	}
}

// State returns the current subscription state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Roster returns the active participants other than this client.
func (e *Engine) Roster() []Participant {
	all := e.roster.Active(e.now())
	out := all[:0]
	for _, p := range all {
		if p.ClientID != e.self.ClientID {
			out = append(out, p)
		}
	}
	return out
}

// Run subscribes to the workspace channel and reconciles inbound events
// until ctx is cancelled. On network loss it retries with capped
// exponential backoff. Returns ctx.Err() on teardown.
func (e *Engine) Run(ctx context.Context) error {
	channel := redisstore.WorkspaceChannel(e.store.WorkspaceID())
	backoff := e.opts.BackoffInitial
	failures := 0

	defer func() {
		e.state.Store(int32(StateDisconnected))
		e.setStatus(StatusDisconnected)
	}()

	for {
		e.state.Store(int32(StateConnecting))
		e.setStatus(StatusConnecting)

		messages, cleanup, err := e.transport.Subscribe(ctx, channel)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			if failures >= e.opts.ReconnectWarnAfter {
				e.setStatus(StatusReconnecting)
			}
			log.Warn().Err(err).
				Stringer("workspace_id", e.store.WorkspaceID()).
				Int("failures", failures).
				Msg("subscribe failed, backing off")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > e.opts.BackoffMax {
				backoff = e.opts.BackoffMax
			}
			continue
		}

		failures = 0
		backoff = e.opts.BackoffInitial
		e.state.Store(int32(StateSubscribed))
		e.setStatus(StatusSubscribed)
		e.announce(ctx, channel)

		if err := e.consume(ctx, messages); err != nil {
			cleanup()
			e.depart(channel)
			return err
		}
		// Channel closed underneath us: connection lost, resubscribe.
		cleanup()
		e.state.Store(int32(StateDisconnected))
	}
}

// consume drains the subscription until ctx is cancelled (returns
// ctx.Err()) or the channel closes (returns nil, caller resubscribes).
// The transport's buffered channel is the bounded inbound queue; this
// loop is its single consumer.
func (e *Engine) consume(ctx context.Context, messages <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal(msg, &ev); err != nil {
				log.Warn().Err(err).Msg("dropping malformed workspace event")
				continue
			}
			e.handle(ev)
		}
	}
}

// handle applies one remote event to the store or roster.
func (e *Engine) handle(ev Event) {
	switch ev.Type {
	case EventObjectUpserted:
		if ev.Object == nil {
			return
		}
		if e.store.ShouldDiscardRemote(ev.Object.ID, ev.Object.UpdatedAt, e.opts.GraceWindow, e.now()) {
			log.Debug().
				Stringer("object_id", ev.Object.ID).
				Str("origin", ev.Origin).
				Msg("discarding stale echo")
			return
		}
		e.store.Upsert(ev.Object)

	case EventObjectDeleted:
		if e.store.ShouldDiscardRemote(ev.ObjectID, ev.DeletedAt, e.opts.GraceWindow, e.now()) {
			return
		}
		e.store.Remove(ev.ObjectID)

	case EventPresenceJoin:
		if ev.Participant != nil {
			e.roster.Join(*ev.Participant)
		}

	case EventPresenceLeave:
		if ev.Participant != nil {
			e.roster.Leave(ev.Participant.ClientID)
		}

	case EventPresenceSync:
		e.roster.Replace(ev.Roster)
	}
}

// announce publishes this client's presence after entering Subscribed.
func (e *Engine) announce(ctx context.Context, channel string) {
	self := e.self
	self.JoinedAt = e.now()
	self.LastSeen = self.JoinedAt
	payload, err := json.Marshal(Event{
		Type:        EventPresenceJoin,
		WorkspaceID: e.store.WorkspaceID(),
		Participant: &self,
		Origin:      e.self.ClientID,
	})
	if err != nil {
		return
	}
	if err := e.transport.Publish(ctx, channel, payload); err != nil {
		log.Debug().Err(err).Msg("presence announce failed")
	}
}

// depart publishes a best-effort leave on teardown. The run context is
// already cancelled, so a short detached context is used.
func (e *Engine) depart(channel string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	payload, err := json.Marshal(Event{
		Type:        EventPresenceLeave,
		WorkspaceID: e.store.WorkspaceID(),
		Participant: &e.self,
		Origin:      e.self.ClientID,
	})
	if err != nil {
		return
	}
	_ = e.transport.Publish(ctx, channel, payload)
}

func (e *Engine) setStatus(s Status) {
	if e.opts.OnStatus != nil {
		e.opts.OnStatus(s)
	}
}

var _ Transport = (*redisstore.PubSub)(nil)

// PublishEvent broadcasts an event on its workspace channel so every
// subscribed client reconciles it.
func PublishEvent(ctx context.Context, t Publisher, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return t.Publish(ctx, redisstore.WorkspaceChannel(ev.WorkspaceID), payload)
}
