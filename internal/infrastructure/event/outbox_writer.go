package event

import (
	"context"
	"fmt"

	"github.com/storefront/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// OutboxWriter appends domain events to outbox_events inside the caller's
// transaction, so an event exists exactly when the change that raised it does.
type OutboxWriter struct {
	serializer *EventSerializer
	maxRetries int
}

// NewOutboxWriter creates a writer whose entries are given up on after
// maxRetries failed deliveries. Zero keeps shared.DefaultMaxRetries.
func NewOutboxWriter(serializer *EventSerializer, maxRetries int) *OutboxWriter {
	return &OutboxWriter{serializer: serializer, maxRetries: maxRetries}
}

// Append stores events through tx
func (w *OutboxWriter) Append(ctx context.Context, tx *gorm.DB, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}

	entries := make([]*shared.OutboxEntry, len(events))
	for i, event := range events {
		payload, err := w.serializer.Serialize(event)
		if err != nil {
			return fmt.Errorf("serialize %s: %w", event.EventType(), err)
		}
		entries[i] = shared.NewOutboxEntry(event, payload)
		if w.maxRetries > 0 {
			entries[i].MaxRetries = w.maxRetries
		}
	}
	return NewGormOutboxRepository(tx).Save(ctx, entries...)
}
