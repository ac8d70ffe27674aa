package cache

import (
	"fmt"

	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

type storeOptions struct {
	logger       *zap.Logger
	requireRedis bool
}

type StoreOption func(*storeOptions)

func WithLogger(l *zap.Logger) StoreOption {
	return func(o *storeOptions) { o.logger = l }
}

// RequireRedis makes an unreachable Redis an error instead of a fallback
// to the in-memory store.
func RequireRedis() StoreOption {
	return func(o *storeOptions) { o.requireRedis = true }
}

// NewIdempotencyStore picks the checkout idempotency store. Redis is used
// when configured and reachable. Otherwise the in-memory store is returned,
// which only deduplicates retries that reach the same instance.
func NewIdempotencyStore(cfg config.RedisConfig, opts ...StoreOption) (shared.IdempotencyStore, error) {
	o := storeOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.Host == "" {
		o.logger.Info("idempotency keys kept in memory; redis not configured")
		return NewInMemoryIdempotencyStore(), nil
	}

	store, err := NewRedisIdempotencyStore(cfg)
	switch {
	case err == nil:
		o.logger.Info("idempotency keys kept in redis", zap.String("addr", cfg.Addr()))
		return store, nil
	case o.requireRedis:
		return nil, fmt.Errorf("idempotency store: %w", err)
	}

	o.logger.Warn("redis unreachable; idempotency keys kept in memory", zap.Error(err))
	return NewInMemoryIdempotencyStore(), nil
}
