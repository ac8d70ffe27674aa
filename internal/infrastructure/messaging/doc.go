// Package messaging relays domain events from the outbox to an external
// broker. Both publishers implement shared.EventPublisher and are driven by
// event.OutboxProcessor, so a failed publish is retried from the outbox.
package messaging

import "github.com/storefront/backend/internal/domain/shared"

// Serializer encodes an event body. event.EventSerializer satisfies it.
type Serializer interface {
	Serialize(event shared.DomainEvent) ([]byte, error)
}
