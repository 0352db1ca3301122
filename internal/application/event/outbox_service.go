package event

import (
	"context"
	"time"

	"github.com/erp/billing/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DeadLetterStore is the part of the outbox store needed to inspect and
// requeue events whose delivery gave up.
type DeadLetterStore interface {
	FindDead(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*shared.OutboxEntry, int64, error)
	Requeue(ctx context.Context, tenantID, id uuid.UUID) error
	CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error)
}

// OutboxService exposes the dead letter queue of the billing outbox
type OutboxService struct {
	store  DeadLetterStore
	logger *zap.Logger
}

// NewOutboxService creates a new outbox service
func NewOutboxService(store DeadLetterStore, logger *zap.Logger) *OutboxService {
	return &OutboxService{store: store, logger: logger}
}

// OutboxEntryDTO is the API form of an outbox entry
type OutboxEntryDTO struct {
	ID            uuid.UUID  `json:"id"`
	EventID       uuid.UUID  `json:"event_id"`
	EventType     string     `json:"event_type"`
	AggregateID   uuid.UUID  `json:"aggregate_id"`
	AggregateType string     `json:"aggregate_type"`
	Status        string     `json:"status"`
	RetryCount    int        `json:"retry_count"`
	LastError     string     `json:"last_error,omitempty"`
	NextRetryAt   *time.Time `json:"next_retry_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// DeadLetterFilter pages the dead letter listing
type DeadLetterFilter struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// OutboxStatsDTO counts outbox entries per status
type OutboxStatsDTO struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
	Dead       int64 `json:"dead"`
}

// ListDeadLetters returns the tenant's dead entries, most recent first
func (s *OutboxService) ListDeadLetters(ctx context.Context, tenantID uuid.UUID, filter DeadLetterFilter) ([]OutboxEntryDTO, int64, error) {
	page := max(filter.Page, 1)
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	entries, total, err := s.store.FindDead(ctx, tenantID, pageSize, (page-1)*pageSize)
	if err != nil {
		s.logger.Error("failed to list dead letters", zap.String("tenant_id", tenantID.String()), zap.Error(err))
		return nil, 0, err
	}
	dtos := make([]OutboxEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toOutboxEntryDTO(e)
	}
	return dtos, total, nil
}

// Requeue puts a dead entry of the tenant back into delivery
func (s *OutboxService) Requeue(ctx context.Context, actor shared.Principal, id uuid.UUID) error {
	if err := s.store.Requeue(ctx, actor.TenantID, id); err != nil {
		return err
	}
	s.logger.Info("dead letter requeued",
		zap.String("tenant_id", actor.TenantID.String()),
		zap.String("user_id", actor.UserID.String()),
		zap.String("entry_id", id.String()),
	)
	return nil
}

// Stats counts entries per delivery status across all tenants
func (s *OutboxService) Stats(ctx context.Context) (*OutboxStatsDTO, error) {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	return &OutboxStatsDTO{
		Pending:    counts[shared.OutboxStatusPending],
		Processing: counts[shared.OutboxStatusProcessing],
		Sent:       counts[shared.OutboxStatusSent],
		Failed:     counts[shared.OutboxStatusFailed],
		Dead:       counts[shared.OutboxStatusDead],
	}, nil
}

func toOutboxEntryDTO(e *shared.OutboxEntry) OutboxEntryDTO {
	return OutboxEntryDTO{
		ID:            e.ID,
		EventID:       e.EventID,
		EventType:     e.EventType,
		AggregateID:   e.AggregateID,
		AggregateType: e.AggregateType,
		Status:        string(e.Status),
		RetryCount:    e.RetryCount,
		LastError:     e.LastError,
		NextRetryAt:   e.NextRetryAt,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}
