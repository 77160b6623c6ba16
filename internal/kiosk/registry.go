package kiosk

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Summary struct {
	SessionID string    `json:"session_id"`
	KioskID   string    `json:"kiosk_id"`
	Step      string    `json:"step"`
	Epoch     uint64    `json:"epoch"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
}

// Registry holds the live sessions of this server, keyed by session id.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	deps     Deps
	opts     Options
}

func NewRegistry(deps Deps, opts Options) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		deps:     deps,
		opts:     opts,
	}
}

// Create starts a fresh session for kioskID.
func (r *Registry) Create(kioskID string) *Session {
	s := NewSession(uuid.NewString(), kioskID, r.deps, r.opts)
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	r.deps.Log.Info().Str("session", s.ID).Str("kiosk", kioskID).Msg("session created")
	return s
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Restore returns the session for id, starting a new one on the slideshow
// under the same id when this server does not know it, e.g. after a restart.
func (r *Registry) Restore(id, kioskID string) *Session {
	if s, ok := r.Get(id); ok {
		return s
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s
	}
	s := NewSession(id, kioskID, r.deps, r.opts)
	r.sessions[id] = s
	r.deps.Log.Info().Str("session", id).Str("kiosk", kioskID).Msg("session restored")
	return s
}

func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		s.Close()
	}
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// List summarizes sessions, most recently active first.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	out := make([]Summary, 0, len(sessions))
	for _, s := range sessions {
		snap := s.machine.Snapshot()
		out = append(out, Summary{
			SessionID: s.ID,
			KioskID:   s.KioskID,
			Step:      string(snap.Step),
			Epoch:     snap.Epoch,
			CreatedAt: s.CreatedAt(),
			LastSeen:  s.LastSeen(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeen.After(out[j].LastSeen) })
	return out
}

// Sweep closes sessions idle for longer than maxIdle and returns how many.
func (r *Registry) Sweep(now time.Time, maxIdle time.Duration) int {
	r.mu.Lock()
	var stale []*Session
	for id, s := range r.sessions {
		if now.Sub(s.LastSeen()) > maxIdle {
			stale = append(stale, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()
	for _, s := range stale {
		s.Close()
	}
	if len(stale) > 0 {
		r.deps.Log.Info().Int("count", len(stale)).Msg("idle sessions closed")
	}
	return len(stale)
}

// Close stops every session.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}
