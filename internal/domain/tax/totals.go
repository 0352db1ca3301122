package tax

import (
	"fmt"

	"github.com/erp/billing/internal/domain/shared"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// WithholdingKind distinguishes tax deducted at source from tax collected at source
type WithholdingKind string

const (
	WithholdingTDS WithholdingKind = "TDS"
	WithholdingTCS WithholdingKind = "TCS"
)

// WithholdingBase selects the amount a withholding percentage is applied to
type WithholdingBase string

const (
	WithholdingOnTaxable WithholdingBase = "TAXABLE"
	WithholdingOnTotal   WithholdingBase = "TOTAL"
)

// Withholding is one TDS/TCS adjustment requested on a document
type Withholding struct {
	Percentage decimal.Decimal `json:"percentage"`
	Kind       WithholdingKind `json:"kind"`
	AppliesTo  WithholdingBase `json:"applies_to"`
}

// Validate checks the percentage range and enum values
func (w Withholding) Validate() error {
	if w.Kind != WithholdingTDS && w.Kind != WithholdingTCS {
		return shared.NewDomainError(shared.CodeInvalidWithholding, fmt.Sprintf("Unknown withholding kind %q", w.Kind))
	}
	if w.AppliesTo != WithholdingOnTaxable && w.AppliesTo != WithholdingOnTotal {
		return shared.NewDomainError(shared.CodeInvalidWithholding, fmt.Sprintf("Unknown withholding base %q", w.AppliesTo))
	}
	if w.Percentage.IsNegative() || w.Percentage.GreaterThan(hundred) {
		return shared.NewDomainError(shared.CodeInvalidWithholding, "Withholding percentage must be between 0 and 100")
	}
	return nil
}

// TotalsInput is everything the aggregator folds into document totals
type TotalsInput struct {
	Lines             []LineResult
	ShippingAmount    decimal.Decimal
	ShippingTaxPct    decimal.Decimal
	InterJurisdiction bool
	ReverseCharge     bool
	Withholding       []Withholding
}

// Totals are the document-level amounts. TaxTotal includes shipping tax and
// is reported even for reverse-charge documents, where it is left out of
// PayableTotal because the counterparty self-assesses it.
type Totals struct {
	Subtotal       decimal.Decimal
	Discount       decimal.Decimal
	TaxableAmount  decimal.Decimal
	CGST           decimal.Decimal
	SGST           decimal.Decimal
	IGST           decimal.Decimal
	Cess           decimal.Decimal
	TaxTotal       decimal.Decimal
	ShippingAmount decimal.Decimal
	ShippingTax    decimal.Decimal
	PayableTotal   decimal.Decimal
	TDS            decimal.Decimal
	TCS            decimal.Decimal
	GrandTotal     decimal.Decimal
}

func sumBy(lines []LineResult, pick func(LineResult) decimal.Decimal) decimal.Decimal {
	return lo.Reduce(lines, func(acc decimal.Decimal, l LineResult, _ int) decimal.Decimal {
		return acc.Add(pick(l))
	}, decimal.Zero)
}

// Aggregate folds computed lines, shipping and withholding into document totals.
// The grand total is never negative.
func Aggregate(in TotalsInput) (Totals, error) {
	if in.ShippingAmount.IsNegative() || in.ShippingTaxPct.IsNegative() {
		return Totals{}, shared.NewDomainError(shared.CodeInvalidLineItem, "Shipping amount and tax rate cannot be negative")
	}
	for _, w := range in.Withholding {
		if err := w.Validate(); err != nil {
			return Totals{}, err
		}
	}

	t := Totals{
		Subtotal:       sumBy(in.Lines, func(l LineResult) decimal.Decimal { return l.Base }),
		Discount:       sumBy(in.Lines, func(l LineResult) decimal.Decimal { return l.DiscountAmount }),
		TaxableAmount:  sumBy(in.Lines, func(l LineResult) decimal.Decimal { return l.TaxableAmount }),
		CGST:           sumBy(in.Lines, func(l LineResult) decimal.Decimal { return l.CGST }),
		SGST:           sumBy(in.Lines, func(l LineResult) decimal.Decimal { return l.SGST }),
		IGST:           sumBy(in.Lines, func(l LineResult) decimal.Decimal { return l.IGST }),
		Cess:           sumBy(in.Lines, func(l LineResult) decimal.Decimal { return l.CessAmount }),
		ShippingAmount: Round2(in.ShippingAmount),
	}

	shipCGST, shipSGST, shipIGST := split(t.ShippingAmount, in.ShippingTaxPct, in.InterJurisdiction)
	shipCGST, shipSGST, shipIGST = Round2(shipCGST), Round2(shipSGST), Round2(shipIGST)
	t.CGST = t.CGST.Add(shipCGST)
	t.SGST = t.SGST.Add(shipSGST)
	t.IGST = t.IGST.Add(shipIGST)
	t.ShippingTax = shipCGST.Add(shipSGST).Add(shipIGST)

	t.TaxTotal = t.CGST.Add(t.SGST).Add(t.IGST).Add(t.Cess)

	t.PayableTotal = t.Subtotal.Sub(t.Discount).Add(t.ShippingAmount)
	if !in.ReverseCharge {
		t.PayableTotal = t.PayableTotal.Add(t.TaxTotal)
	}

	t.TDS, t.TCS = decimal.Zero, decimal.Zero
	for _, w := range in.Withholding {
		base := t.TaxableAmount
		if w.AppliesTo == WithholdingOnTotal {
			base = t.PayableTotal
		}
		amount := Round2(base.Mul(w.Percentage).Div(hundred))
		if w.Kind == WithholdingTCS {
			t.TCS = t.TCS.Add(amount)
		} else {
			t.TDS = t.TDS.Add(amount)
		}
	}

	t.GrandTotal = t.PayableTotal.Add(t.TCS).Sub(t.TDS)
	if t.GrandTotal.IsNegative() {
		return Totals{}, shared.NewDomainError(shared.CodeInvalidWithholding, "Withholding cannot exceed the document total")
	}
	return t, nil
}
