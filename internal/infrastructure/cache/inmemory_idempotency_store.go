package cache

import (
	"context"
	"sync"
	"time"

	"github.com/storefront/backend/internal/domain/shared"
)

const sweepInterval = 5 * time.Minute

// slot is one idempotency key. An empty result marks a claim in progress.
type slot struct {
	result string
	until  time.Time
}

// InMemoryIdempotencyStore keeps claims in process memory, so two replicas
// never see each other's keys. It serves single-instance runs and tests.
type InMemoryIdempotencyStore struct {
	mu    sync.Mutex
	slots map[string]slot

	stop    context.CancelFunc
	stopped chan struct{}
}

// NewInMemoryIdempotencyStore starts a janitor that drops expired keys
// until Close.
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	ctx, cancel := context.WithCancel(context.Background())
	s := &InMemoryIdempotencyStore{
		slots:   make(map[string]slot),
		stop:    cancel,
		stopped: make(chan struct{}),
	}
	go s.janitor(ctx)
	return s
}

func (s *InMemoryIdempotencyStore) Claim(_ context.Context, key string, ttl time.Duration) (bool, string, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.slots[key]; ok && now.Before(cur.until) {
		return false, cur.result, nil
	}
	s.slots[key] = slot{until: now.Add(ttl)}
	return true, "", nil
}

func (s *InMemoryIdempotencyStore) Complete(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	s.slots[key] = slot{result: value, until: time.Now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

func (s *InMemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.slots, key)
	s.mu.Unlock()
	return nil
}

// Close stops the janitor. Calling it again is a no-op.
func (s *InMemoryIdempotencyStore) Close() error {
	s.stop()
	<-s.stopped
	return nil
}

func (s *InMemoryIdempotencyStore) janitor(ctx context.Context) {
	defer close(s.stopped)

	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			s.sweep(now)
		}
	}
}

// sweep drops keys whose ttl ran out before now and reports how many.
func (s *InMemoryIdempotencyStore) sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for key, cur := range s.slots {
		if !now.Before(cur.until) {
			delete(s.slots, key)
			dropped++
		}
	}
	return dropped
}

// Len counts stored keys, including expired ones not yet swept.
func (s *InMemoryIdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
