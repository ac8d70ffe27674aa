package event

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/shared"
	"go.uber.org/zap"
)

type OutboxProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
	// Retention is how long SENT entries are kept. Zero keeps them forever.
	Retention       time.Duration
	CleanupInterval time.Duration
}

func DefaultOutboxProcessorConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:       100,
		PollInterval:    5 * time.Second,
		Retention:       7 * 24 * time.Hour,
		CleanupInterval: time.Hour,
	}
}

// OutboxProcessor relays outbox entries to a publisher. Delivery is at least
// once: an entry is marked SENT only after Publish returns nil, so consumers
// must tolerate duplicates.
type OutboxProcessor struct {
	repo       shared.OutboxRepository
	publisher  shared.EventPublisher
	serializer *EventSerializer
	cfg        OutboxProcessorConfig
	log        *zap.Logger

	stop context.CancelFunc
	done sync.WaitGroup
}

func NewOutboxProcessor(
	repo shared.OutboxRepository,
	publisher shared.EventPublisher,
	serializer *EventSerializer,
	cfg OutboxProcessorConfig,
	logger *zap.Logger,
) *OutboxProcessor {
	def := DefaultOutboxProcessorConfig()
	cfg.BatchSize = orDefault(cfg.BatchSize, def.BatchSize)
	cfg.PollInterval = orDefault(cfg.PollInterval, def.PollInterval)
	cfg.CleanupInterval = orDefault(cfg.CleanupInterval, def.CleanupInterval)

	return &OutboxProcessor{
		repo:       repo,
		publisher:  publisher,
		serializer: serializer,
		cfg:        cfg,
		log:        logger.Named("outbox"),
	}
}

func orDefault[T int | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}

// Start runs the relay loop until Stop is called or ctx ends
func (p *OutboxProcessor) Start(ctx context.Context) error {
	ctx, p.stop = context.WithCancel(ctx)

	p.done.Add(1)
	go p.run(ctx)

	p.log.Info("outbox processor started",
		zap.Int("batch_size", p.cfg.BatchSize),
		zap.Duration("poll_interval", p.cfg.PollInterval),
		zap.Duration("retention", p.cfg.Retention),
	)
	return nil
}

// Stop waits for the in-flight batch to finish, or for ctx to end
func (p *OutboxProcessor) Stop(ctx context.Context) error {
	if p.stop != nil {
		p.stop()
	}

	finished := make(chan struct{})
	go func() {
		p.done.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		p.log.Info("outbox processor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *OutboxProcessor) run(ctx context.Context) {
	defer p.done.Done()

	poll := time.NewTicker(p.cfg.PollInterval)
	defer poll.Stop()

	var cleanup <-chan time.Time
	if p.cfg.Retention > 0 {
		t := time.NewTicker(p.cfg.CleanupInterval)
		defer t.Stop()
		cleanup = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			p.ProcessBatch(ctx)
		case <-cleanup:
			p.Cleanup(ctx)
		}
	}
}

// ProcessBatch relays one batch of new entries and one batch of entries due
// for retry, returning how many were published
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) int {
	pending, err := p.repo.FindPending(ctx, p.cfg.BatchSize)
	if err != nil {
		p.log.Error("failed to load pending entries", zap.Error(err))
		return 0
	}
	sent := p.relay(ctx, pending)

	due, err := p.repo.FindRetryable(ctx, time.Now(), p.cfg.BatchSize)
	if err != nil {
		p.log.Error("failed to load retryable entries", zap.Error(err))
		return sent
	}
	return sent + p.relay(ctx, due)
}

// relay claims entries and publishes the ones this processor won, so that
// several replicas can share one outbox table
func (p *OutboxProcessor) relay(ctx context.Context, entries []*shared.OutboxEntry) int {
	if len(entries) == 0 {
		return 0
	}

	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	claimed, err := p.repo.MarkProcessing(ctx, ids)
	if err != nil {
		p.log.Error("failed to claim entries", zap.Error(err))
		return 0
	}

	sent := 0
	for _, entry := range claimed {
		if p.deliver(ctx, entry) {
			sent++
		}
	}
	return sent
}

func (p *OutboxProcessor) deliver(ctx context.Context, entry *shared.OutboxEntry) bool {
	log := p.log.With(
		zap.String("event_id", entry.EventID.String()),
		zap.String("event_type", entry.EventType),
	)

	event, err := p.serializer.Deserialize(entry.EventType, entry.Payload)
	if err == nil {
		err = p.publisher.Publish(ctx, event)
	}
	if err != nil {
		entry.Failed(err.Error())
		if entry.Dead() {
			log.Warn("event moved to dead letter queue",
				zap.String("aggregate_id", entry.AggregateID.String()),
				zap.Int("retry_count", entry.RetryCount),
				zap.Error(err),
			)
		} else {
			log.Error("failed to publish event", zap.Int("retry_count", entry.RetryCount), zap.Error(err))
		}
		if updateErr := p.repo.Update(ctx, entry); updateErr != nil {
			log.Error("failed to record delivery failure", zap.Error(updateErr))
		}
		return false
	}

	entry.Delivered()
	if err := p.repo.Update(ctx, entry); err != nil {
		// published but still PROCESSING; the entry will not be retried
		log.Error("failed to mark entry as sent", zap.Error(err))
	} else {
		log.Debug("event published")
	}
	return true
}

// Cleanup deletes SENT entries older than the retention period
func (p *OutboxProcessor) Cleanup(ctx context.Context) {
	cutoff := time.Now().Add(-p.cfg.Retention)
	deleted, err := p.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		p.log.Error("failed to delete old outbox entries", zap.Error(err))
		return
	}
	if deleted > 0 {
		p.log.Info("deleted old outbox entries", zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
	}
}
