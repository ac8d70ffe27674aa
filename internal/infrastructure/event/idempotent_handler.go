package event

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/storefront/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// IdempotencyStats counts what an IdempotentHandler did with its deliveries
type IdempotencyStats struct {
	Processed  int64 `json:"events_processed"`
	Duplicates int64 `json:"events_duplicate"`
	Failed     int64 `json:"events_failed"`
}

// IdempotentHandler runs the wrapped handler at most once per event ID. The
// outbox delivers at least once, so consumers with side effects sit behind it.
type IdempotentHandler struct {
	handler    shared.EventHandler
	store      shared.IdempotencyStore
	logger     *zap.Logger
	doneTTL    time.Duration
	pendingTTL time.Duration

	processed  atomic.Int64
	duplicates atomic.Int64
	failed     atomic.Int64
}

type IdempotentHandlerOption func(*IdempotentHandler)

// WithDedupWindow sets how long a handled event is remembered and how long an
// unfinished attempt blocks redelivery
func WithDedupWindow(done, pending time.Duration) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.doneTTL, h.pendingTTL = done, pending
	}
}

func NewIdempotentHandler(
	handler shared.EventHandler,
	store shared.IdempotencyStore,
	logger *zap.Logger,
	opts ...IdempotentHandlerOption,
) *IdempotentHandler {
	h := &IdempotentHandler{
		handler:    handler,
		store:      store,
		logger:     logger,
		doneTTL:    24 * time.Hour,
		pendingTTL: time.Minute,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *IdempotentHandler) EventTypes() []string {
	return h.handler.EventTypes()
}

// Handle claims the event ID before running the handler. A failed run releases
// the claim so the next delivery retries; an unreachable store runs the
// handler anyway, preferring a duplicate to a lost event.
func (h *IdempotentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	key := "event:" + event.EventID().String()
	log := h.logger.With(
		zap.String("event_id", event.EventID().String()),
		zap.String("event_type", event.EventType()),
	)

	claimed, _, err := h.store.Claim(ctx, key, h.pendingTTL)
	if err != nil {
		log.Warn("idempotency store unavailable, handling anyway", zap.Error(err))
		return h.run(ctx, event, log)
	}
	if !claimed {
		h.duplicates.Add(1)
		log.Debug("duplicate event skipped")
		return nil
	}

	if err := h.run(ctx, event, log); err != nil {
		if releaseErr := h.store.Release(ctx, key); releaseErr != nil {
			log.Warn("failed to release idempotency claim", zap.Error(releaseErr))
		}
		return err
	}
	if err := h.store.Complete(ctx, key, "done", h.doneTTL); err != nil {
		log.Warn("failed to complete idempotency claim", zap.Error(err))
	}
	return nil
}

func (h *IdempotentHandler) run(ctx context.Context, event shared.DomainEvent, log *zap.Logger) error {
	if err := h.handler.Handle(ctx, event); err != nil {
		h.failed.Add(1)
		log.Error("event handler failed", zap.Error(err))
		return err
	}
	h.processed.Add(1)
	return nil
}

func (h *IdempotentHandler) Stats() IdempotencyStats {
	return IdempotencyStats{
		Processed:  h.processed.Load(),
		Duplicates: h.duplicates.Load(),
		Failed:     h.failed.Load(),
	}
}

var _ shared.EventHandler = (*IdempotentHandler)(nil)
