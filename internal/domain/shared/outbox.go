package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OutboxStatus is where an outbox entry is in its delivery lifecycle:
//
//	PENDING → PROCESSING → SENT
//	              ↓
//	           FAILED → PROCESSING ... → DEAD → (requeue) → PENDING
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "PENDING"
	OutboxStatusProcessing OutboxStatus = "PROCESSING"
	OutboxStatusSent       OutboxStatus = "SENT"
	OutboxStatusFailed     OutboxStatus = "FAILED"
	OutboxStatusDead       OutboxStatus = "DEAD"
)

const (
	DefaultMaxRetries  = 5
	DefaultBaseBackoff = time.Second
	MaxBackoff         = 5 * time.Minute
)

// Backoff is the delay before retry attempt n: 1s, 2s, 4s, ... capped at MaxBackoff
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 20 {
		return MaxBackoff
	}
	return min(DefaultBaseBackoff<<uint(attempt-1), MaxBackoff)
}

// ErrNotDead is returned when requeueing an entry that has not been given up on
var ErrNotDead = NewDomainError("INVALID_STATE", "Only dead outbox entries can be requeued")

// OutboxEntry is a domain event waiting to leave the process. It is written
// in the same transaction as the change that raised the event, then relayed
// by the outbox processor at least once.
type OutboxEntry struct {
	ID, EventID, AggregateID uuid.UUID
	EventType, AggregateType string
	Payload                  []byte

	Status                 OutboxStatus
	RetryCount, MaxRetries int
	LastError              string
	NextRetryAt            *time.Time
	ProcessedAt            *time.Time
	CreatedAt, UpdatedAt   time.Time
}

func NewOutboxEntry(event DomainEvent, payload []byte) *OutboxEntry {
	e := &OutboxEntry{
		ID:            uuid.New(),
		EventID:       event.EventID(),
		AggregateID:   event.AggregateID(),
		EventType:     event.EventType(),
		AggregateType: event.AggregateType(),
		Payload:       payload,
		Status:        OutboxStatusPending,
		MaxRetries:    DefaultMaxRetries,
	}
	e.CreatedAt = e.touch()
	return e
}

func (e *OutboxEntry) touch() time.Time {
	e.UpdatedAt = time.Now()
	return e.UpdatedAt
}

// Delivered records a successful publish
func (e *OutboxEntry) Delivered() {
	at := e.touch()
	e.Status, e.ProcessedAt = OutboxStatusSent, &at
}

// Failed records a failed publish. The entry is scheduled for another attempt
// after Backoff, or given up on as DEAD once MaxRetries attempts have failed.
func (e *OutboxEntry) Failed(reason string) {
	at := e.touch()
	e.RetryCount++
	e.LastError = reason

	if e.RetryCount >= e.MaxRetries {
		e.Status, e.NextRetryAt = OutboxStatusDead, nil
		return
	}
	due := at.Add(Backoff(e.RetryCount))
	e.Status, e.NextRetryAt = OutboxStatusFailed, &due
}

// Requeue gives a dead entry a fresh set of attempts
func (e *OutboxEntry) Requeue() error {
	if !e.Dead() {
		return ErrNotDead
	}
	e.touch()
	e.Status, e.RetryCount, e.LastError, e.NextRetryAt = OutboxStatusPending, 0, "", nil
	return nil
}

func (e *OutboxEntry) Dead() bool { return e.Status == OutboxStatusDead }

// OutboxRepository stores outbox entries
type OutboxRepository interface {
	Save(ctx context.Context, entries ...*OutboxEntry) error
	// FindPending returns up to limit PENDING entries, oldest first
	FindPending(ctx context.Context, limit int) ([]*OutboxEntry, error)
	// FindRetryable returns up to limit FAILED entries due before the given time
	FindRetryable(ctx context.Context, before time.Time, limit int) ([]*OutboxEntry, error)
	// FindDead returns a page of DEAD entries, oldest first, and their total count
	FindDead(ctx context.Context, limit, offset int) ([]*OutboxEntry, int64, error)
	// FindByID returns ErrNotFound when no entry has id
	FindByID(ctx context.Context, id uuid.UUID) (*OutboxEntry, error)
	CountByStatus(ctx context.Context) (map[OutboxStatus]int64, error)
	// MarkProcessing claims the PENDING or FAILED entries among ids and returns
	// the ones this caller won
	MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]*OutboxEntry, error)
	Update(ctx context.Context, entry *OutboxEntry) error
	// DeleteOlderThan removes SENT entries processed before the given time
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}
