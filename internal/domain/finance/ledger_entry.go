package finance

import (
	"fmt"
	"time"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerKind names the event a ledger entry was posted for
type LedgerKind string

const (
	LedgerKindOpeningBalance LedgerKind = "OPENING_BALANCE"
	LedgerKindInvoice        LedgerKind = "INVOICE"
	LedgerKindPayment        LedgerKind = "PAYMENT"
	LedgerKindCreditNote     LedgerKind = "CREDIT_NOTE"
	LedgerKindDebitNote      LedgerKind = "DEBIT_NOTE"
)

// IsValid checks if the kind is valid
func (k LedgerKind) IsValid() bool {
	switch k {
	case LedgerKindOpeningBalance, LedgerKindInvoice, LedgerKindPayment,
		LedgerKindCreditNote, LedgerKindDebitNote:
		return true
	}
	return false
}

// LedgerEntry is one append-only row of a client's account.
// Exactly one of Debit and Credit is non-zero.
type LedgerEntry struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	CounterpartyID  uuid.UUID
	Kind            LedgerKind
	ReferenceID     *uuid.UUID
	ReferenceNumber string
	EntryDate       time.Time
	Debit           decimal.Decimal
	Credit          decimal.Decimal
	Sequence        int64
	CreatedAt       time.Time
	CreatedBy       *uuid.UUID
}

// LedgerEntryInput carries the fields of a new ledger entry
type LedgerEntryInput struct {
	CounterpartyID  uuid.UUID
	Kind            LedgerKind
	ReferenceID     *uuid.UUID
	ReferenceNumber string
	EntryDate       time.Time
	Debit           decimal.Decimal
	Credit          decimal.Decimal
}

// NewLedgerEntry validates and stamps a new entry. Sequence comes from the
// node-wide generator so entries on the same date keep insertion order.
func NewLedgerEntry(actor shared.Principal, in LedgerEntryInput) (*LedgerEntry, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if !in.Kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_LEDGER_KIND", fmt.Sprintf("Unknown ledger kind %q", in.Kind))
	}
	if in.CounterpartyID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_COUNTERPARTY", "Counterparty is required")
	}
	if in.Kind != LedgerKindOpeningBalance && (in.ReferenceID == nil || *in.ReferenceID == uuid.Nil) {
		return nil, shared.NewDomainError("INVALID_REFERENCE", fmt.Sprintf("%s entries require a reference", in.Kind))
	}
	debit, credit := tax.Round2(in.Debit), tax.Round2(in.Credit)
	if debit.IsNegative() || credit.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Debit and credit cannot be negative")
	}
	if debit.IsZero() == credit.IsZero() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Exactly one of debit and credit must be non-zero")
	}
	entryDate := in.EntryDate
	if entryDate.IsZero() {
		entryDate = time.Now()
	}

	var createdBy *uuid.UUID
	if actor.UserID != uuid.Nil {
		userID := actor.UserID
		createdBy = &userID
	}
	return &LedgerEntry{
		ID:              uuid.New(),
		TenantID:        actor.TenantID,
		CounterpartyID:  in.CounterpartyID,
		Kind:            in.Kind,
		ReferenceID:     in.ReferenceID,
		ReferenceNumber: in.ReferenceNumber,
		EntryDate:       entryDate,
		Debit:           debit,
		Credit:          credit,
		Sequence:        shared.NextSequence().Int64(),
		CreatedAt:       time.Now(),
		CreatedBy:       createdBy,
	}, nil
}

// Amount is the signed contribution of the entry to the running balance
func (e *LedgerEntry) Amount() decimal.Decimal {
	return e.Debit.Sub(e.Credit)
}

// LedgerKindForDocument maps a document type to its ledger kind.
// ok is false for types that never post to the client ledger.
func LedgerKindForDocument(t billing.DocumentType) (kind LedgerKind, ok bool) {
	switch t {
	case billing.DocumentTypeInvoice:
		return LedgerKindInvoice, true
	case billing.DocumentTypeCreditNote:
		return LedgerKindCreditNote, true
	case billing.DocumentTypeDebitNote:
		return LedgerKindDebitNote, true
	}
	return "", false
}

// DocumentLedgerEntry builds the entry a document posts: invoices and debit
// notes raise what the client owes, credit notes lower it. It returns nil
// when the document has no ledger effect or a zero total.
func DocumentLedgerEntry(actor shared.Principal, d *billing.Document) (*LedgerEntry, error) {
	kind, ok := LedgerKindForDocument(d.Type)
	if !ok || d.IsDeleted() || d.Status == billing.StatusCancelled || d.Total.IsZero() {
		return nil, nil
	}
	in := LedgerEntryInput{
		CounterpartyID:  d.CounterpartyID,
		Kind:            kind,
		ReferenceID:     &d.ID,
		ReferenceNumber: d.Number,
		EntryDate:       d.IssueDate,
	}
	if kind == LedgerKindCreditNote {
		in.Credit = d.Total
	} else {
		in.Debit = d.Total
	}
	return NewLedgerEntry(actor, in)
}

// PaymentLedgerEntry builds the credit a received payment posts for its full
// amount. It returns nil for payments made to vendors.
func PaymentLedgerEntry(actor shared.Principal, p *Payment) (*LedgerEntry, error) {
	if !p.HasLedgerEffect() || p.IsDeleted() {
		return nil, nil
	}
	return NewLedgerEntry(actor, LedgerEntryInput{
		CounterpartyID:  p.CounterpartyID,
		Kind:            LedgerKindPayment,
		ReferenceID:     &p.ID,
		ReferenceNumber: p.Number,
		EntryDate:       p.PaymentDate,
		Credit:          p.Amount,
	})
}

// OpeningBalanceEntry turns a signed opening balance into a ledger entry.
// A positive amount is owed by the client, a negative one is held in credit.
func OpeningBalanceEntry(actor shared.Principal, counterpartyID uuid.UUID, amount decimal.Decimal, date time.Time) (*LedgerEntry, error) {
	in := LedgerEntryInput{
		CounterpartyID: counterpartyID,
		Kind:           LedgerKindOpeningBalance,
		EntryDate:      date,
	}
	if amount.IsNegative() {
		in.Credit = amount.Neg()
	} else {
		in.Debit = amount
	}
	return NewLedgerEntry(actor, in)
}
