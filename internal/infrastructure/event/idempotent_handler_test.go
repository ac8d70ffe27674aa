package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/cache"
	"github.com/storefront/backend/tests/testutil"
)

type brokenStore struct{}

func (brokenStore) Claim(context.Context, string, time.Duration) (bool, string, error) {
	return false, "", errors.New("store down")
}
func (brokenStore) Complete(context.Context, string, string, time.Duration) error { return nil }
func (brokenStore) Release(context.Context, string) error                         { return nil }
func (brokenStore) Close() error                                                  { return nil }

func newIdempotent(t *testing.T, inner shared.EventHandler) *IdempotentHandler {
	t.Helper()
	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { store.Close() })
	return NewIdempotentHandler(inner, store, zap.NewNop())
}

func TestIdempotentHandler_SkipsDuplicates(t *testing.T) {
	inner := testutil.NewEventRecorder("order.placed")
	h := newIdempotent(t, inner)
	event := testutil.NewFakeEvent("order.placed")

	require.NoError(t, h.Handle(context.Background(), event))
	require.NoError(t, h.Handle(context.Background(), event))

	assert.Equal(t, 1, inner.Count())
	assert.Equal(t, IdempotencyStats{Processed: 1, Duplicates: 1}, h.Stats())
}

func TestIdempotentHandler_FailureAllowsRetry(t *testing.T) {
	inner := testutil.NewEventRecorder("order.placed")
	inner.FailWith(errors.New("temporary"))
	h := newIdempotent(t, inner)
	event := testutil.NewFakeEvent("order.placed")

	require.Error(t, h.Handle(context.Background(), event))

	inner.FailWith(nil)
	require.NoError(t, h.Handle(context.Background(), event))

	assert.Equal(t, 2, inner.Count())
	assert.Equal(t, IdempotencyStats{Processed: 1, Failed: 1}, h.Stats())
}

func TestIdempotentHandler_StoreErrorProcessesAnyway(t *testing.T) {
	inner := testutil.NewEventRecorder("order.placed")
	h := NewIdempotentHandler(inner, brokenStore{}, zap.NewNop())

	require.NoError(t, h.Handle(context.Background(), testutil.NewFakeEvent("order.placed")))
	assert.Equal(t, 1, inner.Count())
}

func TestIdempotentHandler_DedupWindowExpires(t *testing.T) {
	inner := testutil.NewEventRecorder("order.placed")
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()
	h := NewIdempotentHandler(inner, store, zap.NewNop(), WithDedupWindow(20*time.Millisecond, time.Minute))
	event := testutil.NewFakeEvent("order.placed")

	require.NoError(t, h.Handle(context.Background(), event))
	require.NoError(t, h.Handle(context.Background(), event))
	assert.Equal(t, 1, inner.Count())

	time.Sleep(40 * time.Millisecond)
	require.NoError(t, h.Handle(context.Background(), event))

	assert.Equal(t, 2, inner.Count())
	assert.Equal(t, []string{"order.placed"}, h.EventTypes())
}
