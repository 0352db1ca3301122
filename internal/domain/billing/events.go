package billing

import (
	"github.com/erp/billing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event type names
const (
	EventTypeDocumentIssued            = "DocumentIssued"
	EventTypeDocumentRevised           = "DocumentRevised"
	EventTypeDocumentCancelled         = "DocumentCancelled"
	EventTypeDocumentDeleted           = "DocumentDeleted"
	EventTypeDocumentSettlementChanged = "DocumentSettlementChanged"
)

// AggregateTypeDocument is the aggregate type recorded on document events
const AggregateTypeDocument = "Document"

// DocumentIssuedEvent is raised when a new document is created
type DocumentIssuedEvent struct {
	shared.BaseDomainEvent
	DocumentID     uuid.UUID       `json:"document_id"`
	DocumentType   DocumentType    `json:"document_type"`
	Number         string          `json:"number"`
	CounterpartyID uuid.UUID       `json:"counterparty_id"`
	Total          decimal.Decimal `json:"total"`
	TaxTotal       decimal.Decimal `json:"tax_total"`
}

// NewDocumentIssuedEvent creates a new DocumentIssuedEvent
func NewDocumentIssuedEvent(d *Document, actor shared.Principal) *DocumentIssuedEvent {
	return &DocumentIssuedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDocumentIssued, AggregateTypeDocument, d.ID, actor),
		DocumentID:      d.ID,
		DocumentType:    d.Type,
		Number:          d.Number,
		CounterpartyID:  d.CounterpartyID,
		Total:           d.Total,
		TaxTotal:        d.TaxTotal,
	}
}

// DocumentRevisedEvent is raised when a document's items were replaced
type DocumentRevisedEvent struct {
	shared.BaseDomainEvent
	DocumentID    uuid.UUID       `json:"document_id"`
	DocumentType  DocumentType    `json:"document_type"`
	Number        string          `json:"number"`
	PreviousTotal decimal.Decimal `json:"previous_total"`
	Total         decimal.Decimal `json:"total"`
	Balance       decimal.Decimal `json:"balance"`
	Status        Status          `json:"status"`
}

// NewDocumentRevisedEvent creates a new DocumentRevisedEvent
func NewDocumentRevisedEvent(d *Document, actor shared.Principal, previousTotal decimal.Decimal) *DocumentRevisedEvent {
	return &DocumentRevisedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDocumentRevised, AggregateTypeDocument, d.ID, actor),
		DocumentID:      d.ID,
		DocumentType:    d.Type,
		Number:          d.Number,
		PreviousTotal:   previousTotal,
		Total:           d.Total,
		Balance:         d.Balance,
		Status:          d.Status,
	}
}

// DocumentCancelledEvent is raised when an open document is voided
type DocumentCancelledEvent struct {
	shared.BaseDomainEvent
	DocumentID   uuid.UUID    `json:"document_id"`
	DocumentType DocumentType `json:"document_type"`
	Number       string       `json:"number"`
	Reason       string       `json:"reason,omitempty"`
}

// NewDocumentCancelledEvent creates a new DocumentCancelledEvent
func NewDocumentCancelledEvent(d *Document, actor shared.Principal, reason string) *DocumentCancelledEvent {
	return &DocumentCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDocumentCancelled, AggregateTypeDocument, d.ID, actor),
		DocumentID:      d.ID,
		DocumentType:    d.Type,
		Number:          d.Number,
		Reason:          reason,
	}
}

// DocumentDeletedEvent is raised when a document is soft-deleted
type DocumentDeletedEvent struct {
	shared.BaseDomainEvent
	DocumentID   uuid.UUID    `json:"document_id"`
	DocumentType DocumentType `json:"document_type"`
	Number       string       `json:"number"`
}

// NewDocumentDeletedEvent creates a new DocumentDeletedEvent
func NewDocumentDeletedEvent(d *Document, actor shared.Principal) *DocumentDeletedEvent {
	return &DocumentDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDocumentDeleted, AggregateTypeDocument, d.ID, actor),
		DocumentID:      d.ID,
		DocumentType:    d.Type,
		Number:          d.Number,
	}
}

// DocumentSettlementChangedEvent is raised whenever an allocation changes the balance.
// Delta is negative when a payment was applied and positive when one was reverted.
type DocumentSettlementChangedEvent struct {
	shared.BaseDomainEvent
	DocumentID     uuid.UUID       `json:"document_id"`
	DocumentType   DocumentType    `json:"document_type"`
	Number         string          `json:"number"`
	Delta          decimal.Decimal `json:"delta"`
	Balance        decimal.Decimal `json:"balance"`
	PreviousStatus Status          `json:"previous_status"`
	Status         Status          `json:"status"`
}

// NewDocumentSettlementChangedEvent creates a new DocumentSettlementChangedEvent
func NewDocumentSettlementChangedEvent(d *Document, actor shared.Principal, previous Status, delta decimal.Decimal) *DocumentSettlementChangedEvent {
	return &DocumentSettlementChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDocumentSettlementChanged, AggregateTypeDocument, d.ID, actor),
		DocumentID:      d.ID,
		DocumentType:    d.Type,
		Number:          d.Number,
		Delta:           delta,
		Balance:         d.Balance,
		PreviousStatus:  previous,
		Status:          d.Status,
	}
}
