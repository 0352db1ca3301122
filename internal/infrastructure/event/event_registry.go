package event

import (
	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/finance"
	"github.com/erp/billing/internal/domain/shared"
)

// RegisterBillingEvents registers every event raised by documents and
// payments, so the outbox processor can rebuild them from stored payloads.
func RegisterBillingEvents(s *EventSerializer) {
	s.Register(billing.EventTypeDocumentIssued, func() shared.DomainEvent { return &billing.DocumentIssuedEvent{} })
	s.Register(billing.EventTypeDocumentRevised, func() shared.DomainEvent { return &billing.DocumentRevisedEvent{} })
	s.Register(billing.EventTypeDocumentCancelled, func() shared.DomainEvent { return &billing.DocumentCancelledEvent{} })
	s.Register(billing.EventTypeDocumentDeleted, func() shared.DomainEvent { return &billing.DocumentDeletedEvent{} })
	s.Register(billing.EventTypeDocumentSettlementChanged, func() shared.DomainEvent { return &billing.DocumentSettlementChangedEvent{} })

	s.Register(finance.EventTypePaymentRecorded, func() shared.DomainEvent { return &finance.PaymentRecordedEvent{} })
	s.Register(finance.EventTypePaymentAllocated, func() shared.DomainEvent { return &finance.PaymentAllocatedEvent{} })
	s.Register(finance.EventTypePaymentReversed, func() shared.DomainEvent { return &finance.PaymentReversedEvent{} })
	s.Register(finance.EventTypePaymentDeleted, func() shared.DomainEvent { return &finance.PaymentDeletedEvent{} })
}
