package event

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/storefront/backend/internal/domain/shared"
)

type memOutbox struct {
	entries   map[uuid.UUID]*shared.OutboxEntry
	updateErr error
}

func newMemOutbox() *memOutbox {
	return &memOutbox{entries: make(map[uuid.UUID]*shared.OutboxEntry)}
}

func (r *memOutbox) Save(ctx context.Context, entries ...*shared.OutboxEntry) error {
	for _, e := range entries {
		r.entries[e.ID] = e
	}
	return nil
}

func (r *memOutbox) FindPending(ctx context.Context, limit int) ([]*shared.OutboxEntry, error) {
	return r.withStatus(shared.OutboxStatusPending), nil
}

func (r *memOutbox) FindRetryable(ctx context.Context, before time.Time, limit int) ([]*shared.OutboxEntry, error) {
	return nil, nil
}

func (r *memOutbox) FindDead(ctx context.Context, limit, offset int) ([]*shared.OutboxEntry, int64, error) {
	dead := r.withStatus(shared.OutboxStatusDead)
	total := int64(len(dead))
	if offset >= len(dead) {
		return nil, total, nil
	}
	end := min(offset+limit, len(dead))
	return dead[offset:end], total, nil
}

func (r *memOutbox) FindByID(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	if e, ok := r.entries[id]; ok {
		return e, nil
	}
	return nil, shared.ErrNotFound
}

func (r *memOutbox) CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error) {
	counts := make(map[shared.OutboxStatus]int64)
	for _, e := range r.entries {
		counts[e.Status]++
	}
	return counts, nil
}

func (r *memOutbox) MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]*shared.OutboxEntry, error) {
	return nil, nil
}

func (r *memOutbox) Update(ctx context.Context, entry *shared.OutboxEntry) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.entries[entry.ID] = entry
	return nil
}

func (r *memOutbox) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func (r *memOutbox) withStatus(status shared.OutboxStatus) []*shared.OutboxEntry {
	var out []*shared.OutboxEntry
	for _, e := range r.entries {
		if e.Status == status {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *memOutbox) add(status shared.OutboxStatus) *shared.OutboxEntry {
	e := &shared.OutboxEntry{
		ID:          uuid.New(),
		EventID:     uuid.New(),
		EventType:   "order.placed",
		AggregateID: uuid.New(),
		Status:      status,
		MaxRetries:  shared.DefaultMaxRetries,
		CreatedAt:   time.Now().Add(time.Duration(len(r.entries)) * time.Millisecond),
	}
	if status == shared.OutboxStatusDead {
		e.RetryCount = e.MaxRetries
		e.LastError = "broker down"
	}
	r.entries[e.ID] = e
	return e
}

func TestOutboxService_DeadLetters(t *testing.T) {
	repo := newMemOutbox()
	for i := 0; i < 3; i++ {
		repo.add(shared.OutboxStatusDead)
	}
	repo.add(shared.OutboxStatusSent)
	svc := NewOutboxService(repo, zap.NewNop())

	entries, total, err := svc.DeadLetters(context.Background(), DeadLetterQuery{Page: 2, PageSize: 2})

	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, entries, 1)
	assert.Equal(t, "broker down", entries[0].LastError)
	assert.Equal(t, "DEAD", entries[0].Status)
}

func TestOutboxService_DeadLetters_DefaultsPaging(t *testing.T) {
	repo := newMemOutbox()
	for i := 0; i < DefaultPageSize+1; i++ {
		repo.add(shared.OutboxStatusDead)
	}

	entries, total, err := NewOutboxService(repo, zap.NewNop()).DeadLetters(context.Background(), DeadLetterQuery{})

	require.NoError(t, err)
	assert.Equal(t, int64(DefaultPageSize+1), total)
	assert.Len(t, entries, DefaultPageSize)
}

func TestOutboxService_Requeue(t *testing.T) {
	repo := newMemOutbox()
	dead := repo.add(shared.OutboxStatusDead)
	sent := repo.add(shared.OutboxStatusSent)
	svc := NewOutboxService(repo, zap.NewNop())

	t.Run("dead entry goes back to pending", func(t *testing.T) {
		resp, err := svc.Requeue(context.Background(), dead.ID)
		require.NoError(t, err)
		assert.Equal(t, "PENDING", resp.Status)
		assert.Zero(t, resp.RetryCount)
		assert.Empty(t, resp.LastError)
		assert.Equal(t, shared.OutboxStatusPending, repo.entries[dead.ID].Status)
	})

	t.Run("entry that is not dead", func(t *testing.T) {
		_, err := svc.Requeue(context.Background(), sent.ID)
		assert.ErrorIs(t, err, ErrNotDead)
	})

	t.Run("unknown entry", func(t *testing.T) {
		_, err := svc.Requeue(context.Background(), uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestOutboxService_RequeueAll(t *testing.T) {
	repo := newMemOutbox()
	for i := 0; i < MaxPageSize+5; i++ {
		repo.add(shared.OutboxStatusDead)
	}
	repo.add(shared.OutboxStatusPending)

	n, err := NewOutboxService(repo, zap.NewNop()).RequeueAll(context.Background())

	require.NoError(t, err)
	assert.Equal(t, MaxPageSize+5, n)
	assert.Empty(t, repo.withStatus(shared.OutboxStatusDead))
}

func TestOutboxService_RequeueAll_StopsWhenNothingMoves(t *testing.T) {
	repo := newMemOutbox()
	for i := 0; i < MaxPageSize; i++ {
		repo.add(shared.OutboxStatusDead)
	}
	repo.updateErr = errors.New("db down")

	n, err := NewOutboxService(repo, zap.NewNop()).RequeueAll(context.Background())

	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOutboxService_Stats(t *testing.T) {
	repo := newMemOutbox()
	repo.add(shared.OutboxStatusPending)
	repo.add(shared.OutboxStatusSent)
	repo.add(shared.OutboxStatusSent)
	repo.add(shared.OutboxStatusDead)

	stats, err := NewOutboxService(repo, zap.NewNop()).Stats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Pending)
	assert.Equal(t, int64(2), stats.Sent)
	assert.Equal(t, int64(1), stats.Dead)
	assert.Equal(t, int64(4), stats.Total)
}
