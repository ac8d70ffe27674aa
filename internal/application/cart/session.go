package cart

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/cart"
)

// Session owns the in-memory cart of one user. Holders of a session have
// exclusive access to Cart until Release.
type Session struct {
	mu       sync.Mutex
	Cart     *cart.Cart
	loaded   bool
	evicted  bool
	lastUsed time.Time
}

// Release unlocks the session
func (s *Session) Release() {
	s.mu.Unlock()
}

// Sessions is the registry of live carts, one per user
type Sessions struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewSessions creates a registry. Sessions idle for longer than ttl are
// dropped by Evict; ttl <= 0 disables eviction.
func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{
		sessions: make(map[uuid.UUID]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Acquire returns the user's session locked, creating it when missing
func (r *Sessions) Acquire(userID uuid.UUID) *Session {
	for {
		r.mu.Lock()
		s, ok := r.sessions[userID]
		if !ok {
			s = &Session{Cart: cart.New(userID)}
			r.sessions[userID] = s
		}
		s.lastUsed = r.now()
		r.mu.Unlock()

		s.mu.Lock()
		if !s.evicted {
			return s
		}
		// lost a race with Evict; start over with a fresh session
		s.mu.Unlock()
	}
}

// Evict drops sessions idle for longer than the ttl. Sessions currently held
// are skipped. It returns the number evicted.
func (r *Sessions) Evict() int {
	if r.ttl <= 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.ttl)
	evicted := 0
	for userID, s := range r.sessions {
		if s.lastUsed.After(cutoff) || !s.mu.TryLock() {
			continue
		}
		s.evicted = true
		s.mu.Unlock()
		delete(r.sessions, userID)
		evicted++
	}
	return evicted
}

// Run evicts idle sessions every interval until ctx is done
func (r *Sessions) Run(ctx context.Context, interval time.Duration) {
	if r.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Evict()
		}
	}
}

// Len returns the number of live sessions
func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
