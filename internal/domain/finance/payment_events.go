package finance

import (
	"github.com/erp/billing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event type names
const (
	EventTypePaymentRecorded  = "PaymentRecorded"
	EventTypePaymentAllocated = "PaymentAllocated"
	EventTypePaymentReversed  = "PaymentReversed"
	EventTypePaymentDeleted   = "PaymentDeleted"
)

// AggregateTypePayment is the aggregate type recorded on payment events
const AggregateTypePayment = "Payment"

// AllocationLine is the event form of one allocation
type AllocationLine struct {
	DocumentID     uuid.UUID       `json:"document_id"`
	DocumentNumber string          `json:"document_number"`
	Value          decimal.Decimal `json:"value"`
}

func allocationLines(allocations []PaymentAllocation) []AllocationLine {
	lines := make([]AllocationLine, len(allocations))
	for i, a := range allocations {
		lines[i] = AllocationLine{DocumentID: a.DocumentID, DocumentNumber: a.DocumentNumber, Value: a.Value}
	}
	return lines
}

// PaymentRecordedEvent is raised when a payment is created
type PaymentRecordedEvent struct {
	shared.BaseDomainEvent
	PaymentID      uuid.UUID       `json:"payment_id"`
	Number         string          `json:"number"`
	CounterpartyID uuid.UUID       `json:"counterparty_id"`
	Direction      Direction       `json:"direction"`
	Mode           Mode            `json:"mode"`
	Amount         decimal.Decimal `json:"amount"`
}

// NewPaymentRecordedEvent creates a new PaymentRecordedEvent
func NewPaymentRecordedEvent(p *Payment, actor shared.Principal) *PaymentRecordedEvent {
	return &PaymentRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentRecorded, AggregateTypePayment, p.ID, actor),
		PaymentID:       p.ID,
		Number:          p.Number,
		CounterpartyID:  p.CounterpartyID,
		Direction:       p.Direction,
		Mode:            p.Mode,
		Amount:          p.Amount,
	}
}

// PaymentAllocatedEvent is raised when a set of allocations was applied
type PaymentAllocatedEvent struct {
	shared.BaseDomainEvent
	PaymentID      uuid.UUID        `json:"payment_id"`
	Number         string           `json:"number"`
	AmountUsed     decimal.Decimal  `json:"amount_used"`
	AmountInExcess decimal.Decimal  `json:"amount_in_excess"`
	Allocations    []AllocationLine `json:"allocations"`
}

// NewPaymentAllocatedEvent creates a new PaymentAllocatedEvent
func NewPaymentAllocatedEvent(p *Payment, actor shared.Principal) *PaymentAllocatedEvent {
	return &PaymentAllocatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentAllocated, AggregateTypePayment, p.ID, actor),
		PaymentID:       p.ID,
		Number:          p.Number,
		AmountUsed:      p.AmountUsedForAllocations,
		AmountInExcess:  p.AmountInExcess,
		Allocations:     allocationLines(p.Allocations),
	}
}

// PaymentReversedEvent is raised when the allocations of a payment were undone
type PaymentReversedEvent struct {
	shared.BaseDomainEvent
	PaymentID   uuid.UUID        `json:"payment_id"`
	Number      string           `json:"number"`
	Reversed    decimal.Decimal  `json:"reversed"`
	Allocations []AllocationLine `json:"allocations"`
}

// NewPaymentReversedEvent creates a new PaymentReversedEvent
func NewPaymentReversedEvent(p *Payment, actor shared.Principal, removed []PaymentAllocation, reversed decimal.Decimal) *PaymentReversedEvent {
	return &PaymentReversedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentReversed, AggregateTypePayment, p.ID, actor),
		PaymentID:       p.ID,
		Number:          p.Number,
		Reversed:        reversed,
		Allocations:     allocationLines(removed),
	}
}

// PaymentDeletedEvent is raised when a payment is soft-deleted
type PaymentDeletedEvent struct {
	shared.BaseDomainEvent
	PaymentID      uuid.UUID       `json:"payment_id"`
	Number         string          `json:"number"`
	CounterpartyID uuid.UUID       `json:"counterparty_id"`
	Amount         decimal.Decimal `json:"amount"`
}

// NewPaymentDeletedEvent creates a new PaymentDeletedEvent
func NewPaymentDeletedEvent(p *Payment, actor shared.Principal) *PaymentDeletedEvent {
	return &PaymentDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentDeleted, AggregateTypePayment, p.ID, actor),
		PaymentID:       p.ID,
		Number:          p.Number,
		CounterpartyID:  p.CounterpartyID,
		Amount:          p.Amount,
	}
}
