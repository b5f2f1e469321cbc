package ratelimit

import (
	"context"
	"sync"
	"time"
)

// window tracks admitted request timestamps for one client.
type window struct {
	admitted []time.Time
	lastSeen time.Time
}

// MemoryStore keeps admission windows in process memory. State does not
// survive a restart. Idle clients are removed by the janitor, not on the
// request path.
type MemoryStore struct {
	mu      sync.Mutex
	clients map[string]*window
	quota   int
	span    time.Duration

	// now is replaceable in tests.
	now func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store admitting at most quota requests per client
// within the trailing span.
func NewMemoryStore(quota int, span time.Duration) *MemoryStore {
	return &MemoryStore{
		clients: make(map[string]*window),
		quota:   quota,
		span:    span,
		now:     time.Now,
	}
}

// Admit implements Store.
func (s *MemoryStore) Admit(_ context.Context, clientID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.clients[clientID]
	if !ok {
		w = &window{}
		s.clients[clientID] = w
	}
	w.lastSeen = now

	// Drop entries strictly older than the window; one aged exactly a full
	// window still holds its slot. Entries are appended in time order, so
	// the live suffix starts at the first fresh one.
	cutoff := now.Add(-s.span)
	keep := 0
	for keep < len(w.admitted) && w.admitted[keep].Before(cutoff) {
		keep++
	}
	w.admitted = w.admitted[keep:]

	if len(w.admitted) >= s.quota {
		return false, nil
	}
	w.admitted = append(w.admitted, now)
	return true, nil
}

// EvictIdle removes clients not seen for longer than maxIdle and returns the
// number of identities dropped.
func (s *MemoryStore) EvictIdle(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxIdle)
	evicted := 0
	for id, w := range s.clients {
		if w.lastSeen.Before(cutoff) {
			delete(s.clients, id)
			evicted++
		}
	}
	return evicted
}

// Size returns the number of tracked client identities.
func (s *MemoryStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
