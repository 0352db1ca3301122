package billing

import (
	"fmt"
	"time"

	"github.com/erp/billing/internal/domain/catalog"
	"github.com/erp/billing/internal/domain/partner"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Header carries the user supplied, non-line fields of a document
type Header struct {
	Type           DocumentType
	Number         string
	PlaceOfSupply  string
	IssueDate      time.Time
	DueDate        *time.Time
	CessEnabled    bool
	ReverseCharge  bool
	ShippingAmount decimal.Decimal
	ShippingTaxPct decimal.Decimal
	Withholding    []tax.Withholding
	Notes          string
}

// Parties resolves who a document is with and the jurisdiction it is issued from
type Parties struct {
	Counterparty     *partner.Counterparty
	HomeJurisdiction string
}

var _ shared.AggregateRoot = (*Document)(nil)

// Document is the aggregate root shared by all billing document types
type Document struct {
	shared.TenantAggregateRoot
	Type              DocumentType
	Number            string
	CounterpartyID    uuid.UUID
	PlaceOfSupply     string
	HomeJurisdiction  string
	InterJurisdiction bool
	IssueDate         time.Time
	DueDate           *time.Time
	CessEnabled       bool
	ReverseCharge     bool
	Withholding       []tax.Withholding
	Subtotal          decimal.Decimal
	Discount          decimal.Decimal
	TaxableAmount     decimal.Decimal
	CGST              decimal.Decimal
	SGST              decimal.Decimal
	IGST              decimal.Decimal
	Cess              decimal.Decimal
	TaxTotal          decimal.Decimal
	ShippingAmount    decimal.Decimal
	ShippingTaxPct    decimal.Decimal
	ShippingTax       decimal.Decimal
	TDS               decimal.Decimal
	TCS               decimal.Decimal
	Total             decimal.Decimal
	Balance           decimal.Decimal
	Status            Status
	Locked            bool
	Notes             string
	Items             []LineItem
	CancelledAt       *time.Time
	DeletedAt         *time.Time
}

// NewDocument validates the header, computes every line and the totals, and
// opens the document with balance equal to its total.
func NewDocument(
	actor shared.Principal,
	header Header,
	parties Parties,
	lines []LineRequest,
	items map[uuid.UUID]*catalog.Item,
) (*Document, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if !header.Type.IsValid() {
		return nil, shared.NewDomainError("INVALID_DOCUMENT_TYPE", fmt.Sprintf("Unknown document type %q", header.Type))
	}
	if err := validateParties(header.Type, parties); err != nil {
		return nil, err
	}

	doc := &Document{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(actor),
		Type:                header.Type,
		CounterpartyID:      parties.Counterparty.ID,
		Status:              StatusOpen,
	}

	number := header.Number
	if number == "" {
		number = fmt.Sprintf("%s-%s", header.Type.NumberPrefix(), shared.NextSequence().Base36())
	}
	if err := doc.applyHeader(header, number); err != nil {
		return nil, err
	}
	if err := doc.recalculate(parties, lines, items); err != nil {
		return nil, err
	}

	if doc.IsSettleable() {
		doc.Balance = doc.Total
		if err := doc.syncStatus(); err != nil {
			return nil, err
		}
	}

	doc.AddDomainEvent(NewDocumentIssuedEvent(doc, actor))
	return doc, nil
}

func validateParties(t DocumentType, parties Parties) error {
	if parties.Counterparty == nil {
		return shared.NewDomainError("INVALID_COUNTERPARTY", "Counterparty is required")
	}
	if parties.Counterparty.Kind != t.CounterpartyKind() {
		return shared.NewDomainError("INVALID_COUNTERPARTY",
			fmt.Sprintf("%s documents require a %s counterparty", t, t.CounterpartyKind()))
	}
	return nil
}

func (d *Document) applyHeader(h Header, number string) error {
	if len(number) > 50 {
		return shared.NewDomainError("INVALID_DOCUMENT_NUMBER", "Document number cannot exceed 50 characters")
	}
	if len(h.Withholding) > 0 && !d.Type.AllowsWithholding() {
		return shared.NewDomainError(shared.CodeInvalidWithholding,
			fmt.Sprintf("Withholding is only allowed on purchase documents, not %s", d.Type))
	}
	issueDate := h.IssueDate
	if issueDate.IsZero() {
		issueDate = time.Now()
	}
	if h.DueDate != nil && h.DueDate.Before(issueDate) {
		return shared.NewDomainError("INVALID_DUE_DATE", "Due date cannot be before the issue date")
	}

	d.Number = number
	d.PlaceOfSupply = h.PlaceOfSupply
	d.IssueDate = issueDate
	d.DueDate = h.DueDate
	d.CessEnabled = h.CessEnabled
	d.ReverseCharge = h.ReverseCharge
	d.ShippingAmount = h.ShippingAmount
	d.ShippingTaxPct = h.ShippingTaxPct
	d.Withholding = h.Withholding
	d.Notes = h.Notes
	return nil
}

// recalculate rebuilds all line items and totals from scratch
func (d *Document) recalculate(parties Parties, lines []LineRequest, items map[uuid.UUID]*catalog.Item) error {
	if d.PlaceOfSupply == "" {
		d.PlaceOfSupply = parties.Counterparty.Jurisdiction
	}
	d.HomeJurisdiction = parties.HomeJurisdiction
	d.InterJurisdiction = tax.IsInterJurisdiction(d.PlaceOfSupply, d.HomeJurisdiction)

	built, err := BuildLines(d.ID, lines, items, d.CessEnabled, d.InterJurisdiction)
	if err != nil {
		return err
	}

	results := make([]tax.LineResult, len(built))
	for i := range built {
		results[i] = built[i].Result()
	}
	totals, err := tax.Aggregate(tax.TotalsInput{
		Lines:             results,
		ShippingAmount:    d.ShippingAmount,
		ShippingTaxPct:    d.ShippingTaxPct,
		InterJurisdiction: d.InterJurisdiction,
		ReverseCharge:     d.ReverseCharge,
		Withholding:       d.Withholding,
	})
	if err != nil {
		return err
	}

	d.Items = built
	d.Subtotal = totals.Subtotal
	d.Discount = totals.Discount
	d.TaxableAmount = totals.TaxableAmount
	d.CGST = totals.CGST
	d.SGST = totals.SGST
	d.IGST = totals.IGST
	d.Cess = totals.Cess
	d.TaxTotal = totals.TaxTotal
	d.ShippingAmount = totals.ShippingAmount
	d.ShippingTax = totals.ShippingTax
	d.TDS = totals.TDS
	d.TCS = totals.TCS
	d.Total = totals.GrandTotal
	return nil
}

// Revise replaces the header and every line item and recomputes the totals.
// Allocations already applied stay applied: the new balance is the new total
// minus what has been paid, and a total below that amount is rejected.
func (d *Document) Revise(
	actor shared.Principal,
	header Header,
	parties Parties,
	lines []LineRequest,
	items map[uuid.UUID]*catalog.Item,
) error {
	if d.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot revise a %s document", d.Status))
	}
	if d.Locked {
		return shared.NewDomainError(shared.CodeDocumentLocked, "Document is locked against changes")
	}
	if header.Type != "" && header.Type != d.Type {
		return shared.NewDomainError("INVALID_DOCUMENT_TYPE", "Document type cannot be changed")
	}
	if err := validateParties(d.Type, parties); err != nil {
		return err
	}
	if parties.Counterparty.ID != d.CounterpartyID && !d.AppliedAmount().IsZero() {
		return shared.NewDomainError(shared.CodeHasLinkedPayments, "Cannot change the counterparty of a document with linked payments")
	}

	applied := d.AppliedAmount()
	previousTotal := d.Total

	number := header.Number
	if number == "" {
		number = d.Number
	}

	// work on a copy so a rejected revision leaves d untouched
	next := *d
	if err := next.applyHeader(header, number); err != nil {
		return err
	}
	next.CounterpartyID = parties.Counterparty.ID
	if err := next.recalculate(parties, lines, items); err != nil {
		return err
	}

	if next.IsSettleable() {
		if next.Total.LessThan(applied) {
			return shared.NewDomainError(shared.CodeOverPayment,
				fmt.Sprintf("New total %s is below the %s already paid", next.Total.StringFixed(2), applied.StringFixed(2)))
		}
		next.Balance = next.Total.Sub(applied)
		if err := next.syncStatus(); err != nil {
			return err
		}
	}
	*d = next

	d.MarkChanged(actor)
	d.AddDomainEvent(NewDocumentRevisedEvent(d, actor, previousTotal))
	return nil
}

// AppliedAmount is the sum of payment allocations currently applied
func (d *Document) AppliedAmount() decimal.Decimal {
	if !d.IsSettleable() {
		return decimal.Zero
	}
	return d.Total.Sub(d.Balance)
}

// Cancel voids an open document that has not received any payment
func (d *Document) Cancel(actor shared.Principal, reason string) error {
	if d.Status != StatusOpen {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot cancel a %s document", d.Status))
	}
	if !d.AppliedAmount().IsZero() {
		return shared.NewDomainError(shared.CodeHasLinkedPayments, "Cannot cancel a document with linked payments")
	}
	if err := d.transitionTo(StatusCancelled); err != nil {
		return err
	}
	now := time.Now()
	d.CancelledAt = &now
	d.MarkChanged(actor)
	d.AddDomainEvent(NewDocumentCancelledEvent(d, actor, reason))
	return nil
}

// Delete soft-deletes the document together with its items. A document that
// still has active payment allocations must have them reversed first.
func (d *Document) Delete(actor shared.Principal, activeAllocations int64) error {
	if activeAllocations > 0 {
		return shared.NewDomainError(shared.CodeHasLinkedPayments,
			fmt.Sprintf("Document %s has %d linked payment allocation(s)", d.Number, activeAllocations))
	}
	if err := d.transitionTo(StatusDeleted); err != nil {
		return err
	}
	now := time.Now()
	d.DeletedAt = &now
	d.MarkChanged(actor)
	d.AddDomainEvent(NewDocumentDeletedEvent(d, actor))
	return nil
}

// Lock prevents further revisions and allocations
func (d *Document) Lock(actor shared.Principal) {
	d.Locked = true
	d.MarkChanged(actor)
}

func (d *Document) transitionTo(target Status) error {
	if d.Status == target {
		return nil
	}
	if !d.Status.CanTransitionTo(target) {
		return transitionError(d.Status, target)
	}
	d.Status = target
	return nil
}

// syncStatus moves a settleable document to the status its balance implies
func (d *Document) syncStatus() error {
	return d.transitionTo(SettlementStatus(d.Balance, d.Total))
}

// IsDeleted reports whether the document was soft-deleted
func (d *Document) IsDeleted() bool {
	return d.Status == StatusDeleted || d.DeletedAt != nil
}

// IsSettleable reports whether the document carries a balance
func (d *Document) IsSettleable() bool {
	return d.Type.IsSettleable()
}

// HasLedgerEffect reports whether the document posts to the client ledger
func (d *Document) HasLedgerEffect() bool {
	switch d.Type {
	case DocumentTypeInvoice, DocumentTypeCreditNote, DocumentTypeDebitNote:
		return true
	}
	return false
}
