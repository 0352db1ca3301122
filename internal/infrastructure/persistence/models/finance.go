package models

import (
	"time"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/finance"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentModel is the persistence model for the Payment aggregate
type PaymentModel struct {
	TenantAggregateModel
	Number                   string                  `gorm:"type:varchar(50);not null"`
	CounterpartyID           uuid.UUID               `gorm:"type:uuid;not null;index"`
	Direction                finance.Direction       `gorm:"type:varchar(20);not null"`
	Mode                     finance.Mode            `gorm:"type:varchar(20);not null;default:'REGULAR'"`
	Method                   finance.PaymentMethod   `gorm:"type:varchar(20);not null"`
	Amount                   decimal.Decimal         `gorm:"type:decimal(18,2);not null"`
	PaymentDate              time.Time               `gorm:"type:date;not null"`
	Reference                string                  `gorm:"type:varchar(100)"`
	Notes                    string                  `gorm:"type:text"`
	AmountUsedForAllocations decimal.Decimal         `gorm:"type:decimal(18,2);not null;default:0"`
	AmountInExcess           decimal.Decimal         `gorm:"type:decimal(18,2);not null;default:0"`
	DeletedAt                *time.Time              `gorm:"index"`
	Allocations              []PaymentAllocationModel `gorm:"foreignKey:PaymentID;references:ID"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment
func (m *PaymentModel) ToDomain() *finance.Payment {
	p := &finance.Payment{
		Number:                   m.Number,
		CounterpartyID:           m.CounterpartyID,
		Direction:                m.Direction,
		Mode:                     m.Mode,
		Method:                   m.Method,
		Amount:                   m.Amount,
		PaymentDate:              m.PaymentDate,
		Reference:                m.Reference,
		Notes:                    m.Notes,
		AmountUsedForAllocations: m.AmountUsedForAllocations,
		AmountInExcess:           m.AmountInExcess,
		DeletedAt:                m.DeletedAt,
	}
	m.PopulateTenantAggregateRoot(&p.TenantAggregateRoot)

	p.Allocations = make([]finance.PaymentAllocation, len(m.Allocations))
	for i := range m.Allocations {
		p.Allocations[i] = m.Allocations[i].ToDomain()
	}
	return p
}

// FromDomain populates the persistence model from a domain Payment
func (m *PaymentModel) FromDomain(p *finance.Payment) {
	m.FromDomainTenantAggregateRoot(p.TenantAggregateRoot)
	m.Number = p.Number
	m.CounterpartyID = p.CounterpartyID
	m.Direction = p.Direction
	m.Mode = p.Mode
	m.Method = p.Method
	m.Amount = p.Amount
	m.PaymentDate = p.PaymentDate
	m.Reference = p.Reference
	m.Notes = p.Notes
	m.AmountUsedForAllocations = p.AmountUsedForAllocations
	m.AmountInExcess = p.AmountInExcess
	m.DeletedAt = p.DeletedAt

	m.Allocations = make([]PaymentAllocationModel, len(p.Allocations))
	for i := range p.Allocations {
		m.Allocations[i] = PaymentAllocationModelFromDomain(&p.Allocations[i])
	}
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment
func PaymentModelFromDomain(p *finance.Payment) *PaymentModel {
	m := &PaymentModel{}
	m.FromDomain(p)
	return m
}

// PaymentAllocationModel links a payment to one settled document
type PaymentAllocationModel struct {
	ID             uuid.UUID            `gorm:"type:uuid;primary_key"`
	TenantID       uuid.UUID            `gorm:"type:uuid;not null;index"`
	PaymentID      uuid.UUID            `gorm:"type:uuid;not null;index"`
	DocumentID     uuid.UUID            `gorm:"type:uuid;not null;index"`
	DocumentType   billing.DocumentType `gorm:"type:varchar(20);not null"`
	DocumentNumber string               `gorm:"type:varchar(50)"`
	Value          decimal.Decimal      `gorm:"type:decimal(18,2);not null"`
	CreatedAt      time.Time            `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentAllocationModel) TableName() string {
	return "payment_allocations"
}

// ToDomain converts the persistence model to a domain PaymentAllocation
func (m *PaymentAllocationModel) ToDomain() finance.PaymentAllocation {
	return finance.PaymentAllocation{
		ID:             m.ID,
		TenantID:       m.TenantID,
		PaymentID:      m.PaymentID,
		DocumentID:     m.DocumentID,
		DocumentType:   m.DocumentType,
		DocumentNumber: m.DocumentNumber,
		Value:          m.Value,
		CreatedAt:      m.CreatedAt,
	}
}

// PaymentAllocationModelFromDomain creates a persistence model from a domain PaymentAllocation
func PaymentAllocationModelFromDomain(a *finance.PaymentAllocation) PaymentAllocationModel {
	return PaymentAllocationModel{
		ID:             a.ID,
		TenantID:       a.TenantID,
		PaymentID:      a.PaymentID,
		DocumentID:     a.DocumentID,
		DocumentType:   a.DocumentType,
		DocumentNumber: a.DocumentNumber,
		Value:          a.Value,
		CreatedAt:      a.CreatedAt,
	}
}

// LedgerEntryModel is one append-only row of a client ledger
type LedgerEntryModel struct {
	ID              uuid.UUID          `gorm:"type:uuid;primary_key"`
	TenantID        uuid.UUID          `gorm:"type:uuid;not null;index:idx_ledger_counterparty,priority:1"`
	CounterpartyID  uuid.UUID          `gorm:"type:uuid;not null;index:idx_ledger_counterparty,priority:2"`
	Kind            finance.LedgerKind `gorm:"type:varchar(20);not null"`
	ReferenceID     *uuid.UUID         `gorm:"type:uuid;index"`
	ReferenceNumber string             `gorm:"type:varchar(50)"`
	EntryDate       time.Time          `gorm:"type:date;not null;index:idx_ledger_counterparty,priority:3"`
	Debit           decimal.Decimal    `gorm:"type:decimal(18,2);not null;default:0"`
	Credit          decimal.Decimal    `gorm:"type:decimal(18,2);not null;default:0"`
	Sequence        int64              `gorm:"not null;index:idx_ledger_counterparty,priority:4"`
	CreatedAt       time.Time          `gorm:"not null"`
	CreatedBy       *uuid.UUID         `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (LedgerEntryModel) TableName() string {
	return "ledger_entries"
}

// ToDomain converts the persistence model to a domain LedgerEntry
func (m *LedgerEntryModel) ToDomain() finance.LedgerEntry {
	return finance.LedgerEntry{
		ID:              m.ID,
		TenantID:        m.TenantID,
		CounterpartyID:  m.CounterpartyID,
		Kind:            m.Kind,
		ReferenceID:     m.ReferenceID,
		ReferenceNumber: m.ReferenceNumber,
		EntryDate:       m.EntryDate,
		Debit:           m.Debit,
		Credit:          m.Credit,
		Sequence:        m.Sequence,
		CreatedAt:       m.CreatedAt,
		CreatedBy:       m.CreatedBy,
	}
}

// LedgerEntryModelFromDomain creates a persistence model from a domain LedgerEntry
func LedgerEntryModelFromDomain(e *finance.LedgerEntry) *LedgerEntryModel {
	return &LedgerEntryModel{
		ID:              e.ID,
		TenantID:        e.TenantID,
		CounterpartyID:  e.CounterpartyID,
		Kind:            e.Kind,
		ReferenceID:     e.ReferenceID,
		ReferenceNumber: e.ReferenceNumber,
		EntryDate:       e.EntryDate,
		Debit:           e.Debit,
		Credit:          e.Credit,
		Sequence:        e.Sequence,
		CreatedAt:       e.CreatedAt,
		CreatedBy:       e.CreatedBy,
	}
}
