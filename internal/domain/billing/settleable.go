package billing

import (
	"fmt"

	"github.com/erp/billing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationPolicy holds tenant-wide rules on which documents may be settled
type AllocationPolicy struct {
	// LockSettled makes fully paid documents reject further allocations
	LockSettled bool
}

// Settleable is the capability the payment distribution engine works
// against, so it is written once for every document type that carries a balance.
type Settleable interface {
	GetID() uuid.UUID
	GetTenantID() uuid.UUID
	GetCounterpartyID() uuid.UUID
	GetType() DocumentType
	GetNumber() string
	GetTotal() decimal.Decimal
	GetBalance() decimal.Decimal
	GetStatus() Status
	IsDeleted() bool
	// CheckAcceptsAllocation reports policy violations independent of balance arithmetic
	CheckAcceptsAllocation(policy AllocationPolicy) error
	// ApplyAllocation reduces the balance by value and recomputes status
	ApplyAllocation(actor shared.Principal, value decimal.Decimal) error
	// RevertAllocation adds value back to the balance and recomputes status
	RevertAllocation(actor shared.Principal, value decimal.Decimal) error
}

func (d *Document) GetTenantID() uuid.UUID       { return d.TenantID }
func (d *Document) GetCounterpartyID() uuid.UUID { return d.CounterpartyID }
func (d *Document) GetType() DocumentType        { return d.Type }
func (d *Document) GetNumber() string            { return d.Number }
func (d *Document) GetTotal() decimal.Decimal    { return d.Total }
func (d *Document) GetBalance() decimal.Decimal  { return d.Balance }
func (d *Document) GetStatus() Status            { return d.Status }

// CheckAcceptsAllocation rejects allocations to locked, cancelled or
// (under LockSettled) already paid documents
func (d *Document) CheckAcceptsAllocation(policy AllocationPolicy) error {
	if !d.IsSettleable() {
		return shared.NewDomainError(shared.CodeDocumentMismatch,
			fmt.Sprintf("%s documents do not accept payments", d.Type))
	}
	if d.Locked {
		return shared.NewDomainError(shared.CodeDocumentLocked,
			fmt.Sprintf("Document %s is locked", d.Number))
	}
	if d.Status == StatusCancelled {
		return shared.NewDomainError(shared.CodeDocumentLocked,
			fmt.Sprintf("Document %s is cancelled", d.Number))
	}
	if policy.LockSettled && d.Status == StatusPaid {
		return shared.NewDomainError(shared.CodeDocumentLocked,
			fmt.Sprintf("Document %s is settled and locked", d.Number))
	}
	return nil
}

// ApplyAllocation settles value against the balance
func (d *Document) ApplyAllocation(actor shared.Principal, value decimal.Decimal) error {
	if !value.IsPositive() {
		return shared.NewDomainError("INVALID_AMOUNT", "Allocation value must be positive")
	}
	if value.GreaterThan(d.Balance) {
		return shared.NewDomainError(shared.CodeOverPayment,
			fmt.Sprintf("Allocation %s exceeds balance %s of document %s",
				value.StringFixed(2), d.Balance.StringFixed(2), d.Number))
	}
	previous := d.Status
	d.Balance = d.Balance.Sub(value)
	if err := d.syncStatus(); err != nil {
		return err
	}
	d.MarkChanged(actor)
	d.AddDomainEvent(NewDocumentSettlementChangedEvent(d, actor, previous, value.Neg()))
	return nil
}

// RevertAllocation restores value to the balance regardless of current
// settlement status. A result above the total means the allocation set is
// inconsistent with the document and the caller must roll back.
func (d *Document) RevertAllocation(actor shared.Principal, value decimal.Decimal) error {
	if !value.IsPositive() {
		return shared.NewDomainError("INVALID_AMOUNT", "Allocation value must be positive")
	}
	restored := d.Balance.Add(value)
	if restored.GreaterThan(d.Total) {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Reverting %s would raise the balance of %s above its total", value.StringFixed(2), d.Number))
	}
	previous := d.Status
	d.Balance = restored
	if err := d.syncStatus(); err != nil {
		return err
	}
	d.MarkChanged(actor)
	d.AddDomainEvent(NewDocumentSettlementChangedEvent(d, actor, previous, value))
	return nil
}

var _ Settleable = (*Document)(nil)
