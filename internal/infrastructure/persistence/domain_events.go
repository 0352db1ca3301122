package persistence

import (
	"context"
	"fmt"

	"github.com/erp/billing/internal/domain/shared"
	"gorm.io/gorm"
)

// eventSource is an aggregate that buffers domain events until it is persisted
type eventSource interface {
	GetDomainEvents() []shared.DomainEvent
	ClearDomainEvents()
}

// saveDomainEvents writes the pending events of agg to the outbox through tx
// and clears them. Without a saver the events stay on the aggregate.
func saveDomainEvents(ctx context.Context, saver shared.OutboxEventSaver, tx *gorm.DB, agg eventSource) error {
	events := agg.GetDomainEvents()
	if saver == nil || len(events) == 0 {
		return nil
	}
	if err := saver.SaveEvents(ctx, tx, events...); err != nil {
		return fmt.Errorf("failed to save domain events to outbox: %w", err)
	}
	agg.ClearDomainEvents()
	return nil
}
