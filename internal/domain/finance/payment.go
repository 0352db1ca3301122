package finance

import (
	"fmt"
	"time"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/partner"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction says whether cash came in from a client or went out to a vendor
type Direction string

const (
	DirectionReceived Direction = "RECEIVED"
	DirectionMade     Direction = "MADE"
)

// IsValid checks if the direction is valid
func (d Direction) IsValid() bool {
	return d == DirectionReceived || d == DirectionMade
}

// CounterpartyKind returns the kind of counterparty the direction pairs with
func (d Direction) CounterpartyKind() partner.CounterpartyKind {
	if d == DirectionMade {
		return partner.CounterpartyVendor
	}
	return partner.CounterpartyClient
}

// SettlesType returns the document type a payment in this direction settles
func (d Direction) SettlesType() billing.DocumentType {
	if d == DirectionMade {
		return billing.DocumentTypePurchaseBill
	}
	return billing.DocumentTypeInvoice
}

// Mode distinguishes regular payments from advances paid ahead of any document
type Mode string

const (
	ModeRegular Mode = "REGULAR"
	ModeAdvance Mode = "ADVANCE"
)

// IsValid checks if the mode is valid
func (m Mode) IsValid() bool {
	return m == ModeRegular || m == ModeAdvance
}

// PaymentMethod represents how the cash moved
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCheque       PaymentMethod = "CHEQUE"
	PaymentMethodUPI          PaymentMethod = "UPI"
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodOther        PaymentMethod = "OTHER"
)

// IsValid checks if the payment method is valid
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodCheque,
		PaymentMethodUPI, PaymentMethodCard, PaymentMethodOther:
		return true
	}
	return false
}

// PaymentInput carries the user supplied fields of a payment
type PaymentInput struct {
	Number         string
	CounterpartyID uuid.UUID
	Direction      Direction
	Mode           Mode
	Method         PaymentMethod
	Amount         decimal.Decimal
	PaymentDate    time.Time
	Reference      string
	Notes          string
}

var _ shared.AggregateRoot = (*Payment)(nil)

// Payment records one cash movement and the documents it settles.
// AmountUsedForAllocations is always the sum of Allocations and
// AmountInExcess the rest of Amount.
type Payment struct {
	shared.TenantAggregateRoot
	Number                   string
	CounterpartyID           uuid.UUID
	Direction                Direction
	Mode                     Mode
	Method                   PaymentMethod
	Amount                   decimal.Decimal
	PaymentDate              time.Time
	Reference                string
	Notes                    string
	AmountUsedForAllocations decimal.Decimal
	AmountInExcess           decimal.Decimal
	Allocations              []PaymentAllocation
	DeletedAt                *time.Time
}

// NewPayment creates a payment with no allocations
func NewPayment(actor shared.Principal, in PaymentInput) (*Payment, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	p := &Payment{TenantAggregateRoot: shared.NewTenantAggregateRoot(actor)}
	if in.Number == "" {
		in.Number = fmt.Sprintf("PAY-%s", shared.NextSequence().Base36())
	}
	if err := p.apply(in); err != nil {
		return nil, err
	}
	p.AddDomainEvent(NewPaymentRecordedEvent(p, actor))
	return p, nil
}

func (p *Payment) apply(in PaymentInput) error {
	if in.CounterpartyID == uuid.Nil {
		return shared.NewDomainError("INVALID_COUNTERPARTY", "Counterparty is required")
	}
	if !in.Direction.IsValid() {
		return shared.NewDomainError("INVALID_DIRECTION", fmt.Sprintf("Unknown payment direction %q", in.Direction))
	}
	if in.Mode == "" {
		in.Mode = ModeRegular
	}
	if !in.Mode.IsValid() {
		return shared.NewDomainError("INVALID_MODE", fmt.Sprintf("Unknown payment mode %q", in.Mode))
	}
	if !in.Method.IsValid() {
		return shared.NewDomainError("INVALID_PAYMENT_METHOD", fmt.Sprintf("Unknown payment method %q", in.Method))
	}
	if !in.Amount.IsPositive() {
		return shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}
	if len(in.Number) > 50 {
		return shared.NewDomainError("INVALID_PAYMENT_NUMBER", "Payment number cannot exceed 50 characters")
	}
	if in.PaymentDate.IsZero() {
		in.PaymentDate = time.Now()
	}

	p.Number = in.Number
	p.CounterpartyID = in.CounterpartyID
	p.Direction = in.Direction
	p.Mode = in.Mode
	p.Method = in.Method
	p.Amount = tax.Round2(in.Amount)
	p.PaymentDate = in.PaymentDate
	p.Reference = in.Reference
	p.Notes = in.Notes
	p.setAllocations(nil)
	return nil
}

// Revise replaces the payment fields. Allocations must have been reversed first.
func (p *Payment) Revise(actor shared.Principal, in PaymentInput) error {
	if p.IsDeleted() {
		return shared.NewDomainError("INVALID_STATE", "Cannot revise a deleted payment")
	}
	if len(p.Allocations) > 0 {
		return shared.NewDomainError("INVALID_STATE", "Reverse the allocations of a payment before revising it")
	}
	if in.Number == "" {
		in.Number = p.Number
	}
	if err := p.apply(in); err != nil {
		return err
	}
	p.MarkChanged(actor)
	return nil
}

// Delete soft-deletes a payment whose allocations were reversed
func (p *Payment) Delete(actor shared.Principal) error {
	if p.IsDeleted() {
		return shared.NewDomainError("INVALID_STATE", "Payment is already deleted")
	}
	if len(p.Allocations) > 0 {
		return shared.NewDomainError("INVALID_STATE", "Reverse the allocations of a payment before deleting it")
	}
	now := time.Now()
	p.DeletedAt = &now
	p.MarkChanged(actor)
	p.AddDomainEvent(NewPaymentDeletedEvent(p, actor))
	return nil
}

// setAllocations replaces the allocation set and recomputes the derived amounts
func (p *Payment) setAllocations(allocations []PaymentAllocation) {
	p.Allocations = allocations
	p.AmountUsedForAllocations = SumAllocations(allocations)
	p.AmountInExcess = p.Amount.Sub(p.AmountUsedForAllocations)
}

// IsDeleted reports whether the payment was soft-deleted
func (p *Payment) IsDeleted() bool {
	return p.DeletedAt != nil
}

// HasLedgerEffect reports whether the payment posts to the client ledger
func (p *Payment) HasLedgerEffect() bool {
	return p.Direction == DirectionReceived
}
