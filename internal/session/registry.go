package session

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nvandessel/alliance/internal/models"
)

// Registry maps simulation ids to live sessions. The lock covers map access
// only; each session synchronizes its own state.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Create validates cfg and registers a new session under a fresh uuid.
func (r *Registry) Create(cfg models.SimulationConfig) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := newSession(uuid.NewString(), cfg, r.now().UTC())

	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()
	return s, nil
}

// Get returns the session with the given id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, models.NewNotFoundError(id)
	}
	return s, nil
}

// Delete removes a session. An in-flight Advance on it still completes, but
// its result is no longer reachable through the registry.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return models.NewNotFoundError(id)
	}
	delete(r.sessions, id)
	return nil
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// ListEntry is one line of List.
type ListEntry struct {
	ID        string        `json:"id"`
	Status    models.Status `json:"status"`
	Round     int           `json:"round"`
	MaxRounds int           `json:"max_rounds"`
	CreatedAt time.Time     `json:"created_at"`
}

// List returns every session ordered by creation time, then id.
func (r *Registry) List() []ListEntry {
	r.mu.RLock()
	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.mu.RUnlock()

	out := make([]ListEntry, 0, len(all))
	for _, s := range all {
		st := s.Status()
		out = append(out, ListEntry{
			ID:        s.id,
			Status:    st.Status,
			Round:     st.CurrentRound,
			MaxRounds: st.MaxRounds,
			CreatedAt: s.createdAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Prune removes complete sessions that have not changed for at least olderThan
// and returns their ids.
func (r *Registry) Prune(olderThan time.Duration) []string {
	cutoff := r.now().UTC().Add(-olderThan)

	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	for id, s := range r.sessions {
		last, status := s.idleSince()
		if status == models.StatusComplete && !last.After(cutoff) {
			delete(r.sessions, id)
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)
	return removed
}
