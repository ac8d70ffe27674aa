// Package event exposes the order event outbox to operators: delivery
// statistics and the dead letter queue.
package event

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storefront/backend/internal/domain/shared"
)

// Dead letter paging
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ErrNotDead is returned when requeueing an entry that is not in the dead letter queue
var ErrNotDead = shared.ErrNotDead

// OutboxService inspects and requeues outbox entries
type OutboxService struct {
	repo   shared.OutboxRepository
	logger *zap.Logger
}

// NewOutboxService creates a new OutboxService
func NewOutboxService(repo shared.OutboxRepository, logger *zap.Logger) *OutboxService {
	return &OutboxService{
		repo:   repo,
		logger: logger.Named("outbox_admin"),
	}
}

// EntryResponse is an outbox entry without its payload
type EntryResponse struct {
	ID          uuid.UUID  `json:"id"`
	EventID     uuid.UUID  `json:"event_id"`
	EventType   string     `json:"event_type"`
	OrderID     uuid.UUID  `json:"order_id"`
	Status      string     `json:"status"`
	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`
	LastError   string     `json:"last_error,omitempty"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// DeadLetterQuery selects a page of the dead letter queue
type DeadLetterQuery struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// StatsResponse counts outbox entries per status
type StatsResponse struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
	Dead       int64 `json:"dead"`
	Total      int64 `json:"total"`
}

// DeadLetters returns a page of entries that exhausted their retries
func (s *OutboxService) DeadLetters(ctx context.Context, q DeadLetterQuery) ([]EntryResponse, int64, error) {
	page, pageSize := normalizePage(q.Page, q.PageSize)

	entries, total, err := s.repo.FindDead(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}

	out := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	return out, total, nil
}

// Requeue moves one dead entry back to PENDING so the processor delivers it again
func (s *OutboxService) Requeue(ctx context.Context, id uuid.UUID) (*EntryResponse, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := entry.Requeue(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, entry); err != nil {
		return nil, err
	}

	s.logger.Info("dead letter requeued",
		zap.String("entry_id", id.String()),
		zap.String("event_type", entry.EventType),
	)
	resp := toEntryResponse(entry)
	return &resp, nil
}

// RequeueAll requeues every dead entry and returns how many were requeued.
// Entries that fail to update are logged and skipped.
func (s *OutboxService) RequeueAll(ctx context.Context) (int, error) {
	requeued := 0
	for {
		// requeued entries leave the dead set, so the first page is always the next one
		entries, _, err := s.repo.FindDead(ctx, MaxPageSize, 0)
		if err != nil {
			return requeued, err
		}

		progressed := false
		for _, entry := range entries {
			if err := entry.Requeue(); err != nil {
				continue
			}
			if err := s.repo.Update(ctx, entry); err != nil {
				s.logger.Warn("failed to requeue dead letter",
					zap.String("entry_id", entry.ID.String()),
					zap.Error(err),
				)
				continue
			}
			requeued++
			progressed = true
		}

		if len(entries) < MaxPageSize || !progressed {
			break
		}
	}

	if requeued > 0 {
		s.logger.Info("dead letters requeued", zap.Int("count", requeued))
	}
	return requeued, nil
}

// Stats counts entries per status
func (s *OutboxService) Stats(ctx context.Context) (*StatsResponse, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	stats := &StatsResponse{
		Pending:    counts[shared.OutboxStatusPending],
		Processing: counts[shared.OutboxStatusProcessing],
		Sent:       counts[shared.OutboxStatusSent],
		Failed:     counts[shared.OutboxStatusFailed],
		Dead:       counts[shared.OutboxStatusDead],
	}
	for _, n := range counts {
		stats.Total += n
	}
	return stats, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

func toEntryResponse(e *shared.OutboxEntry) EntryResponse {
	return EntryResponse{
		ID:          e.ID,
		EventID:     e.EventID,
		EventType:   e.EventType,
		OrderID:     e.AggregateID,
		Status:      string(e.Status),
		RetryCount:  e.RetryCount,
		MaxRetries:  e.MaxRetries,
		LastError:   e.LastError,
		NextRetryAt: e.NextRetryAt,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}
