package sync

import (
	"sort"
	stdsync "sync"
	"time"

	"github.com/google/uuid"
)

// Participant is an editor currently viewing a workspace. Ephemeral:
// tracked per subscription, never stored.
type Participant struct {
	UserID   uuid.UUID `json:"user_id"`
	ClientID string    `json:"client_id"`
	Name     string    `json:"name,omitempty"`
	JoinedAt time.Time `json:"joined_at"`
	LastSeen time.Time `json:"last_seen"`
}

// Roster tracks who else is editing the workspace. Entries expire after
// ttl without a heartbeat even when the leave event was lost.
type Roster struct {
	mu      stdsync.Mutex
	ttl     time.Duration
	entries map[string]Participant // keyed by client id
}

func NewRoster(ttl time.Duration) *Roster {
	return &Roster{ttl: ttl, entries: make(map[string]Participant)}
}

// Join adds or refreshes a participant.
func (r *Roster) Join(p Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.entries[p.ClientID]; ok {
		p.JoinedAt = existing.JoinedAt
	}
	if p.JoinedAt.IsZero() {
		p.JoinedAt = time.Now()
	}
	if p.LastSeen.IsZero() {
		p.LastSeen = p.JoinedAt
	}
	r.entries[p.ClientID] = p
}

// Leave removes a participant by client id.
func (r *Roster) Leave(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, clientID)
}

// Touch refreshes the heartbeat for a client.
func (r *Roster) Touch(clientID string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.entries[clientID]; ok {
		p.LastSeen = at
		r.entries[clientID] = p
	}
}

// Replace swaps the whole roster, used for presence-sync events.
func (r *Roster) Replace(ps []Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]Participant, len(ps))
	for _, p := range ps {
		r.entries[p.ClientID] = p
	}
}

// Active returns participants seen within the ttl, oldest join first.
// Expired entries are dropped as a side effect.
func (r *Roster) Active(now time.Time) []Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Participant, 0, len(r.entries))
	for id, p := range r.entries {
		if r.ttl > 0 && now.Sub(p.LastSeen) > r.ttl {
			delete(r.entries, id)
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].ClientID < out[j].ClientID
	})
	return out
}
