// Package tax computes jurisdiction-aware GST splits for line items and
// folds them into document totals. Everything here is pure arithmetic on
// shopspring/decimal values; persistence and catalog lookups live elsewhere.
package tax

import (
	"fmt"

	"github.com/erp/billing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places stored for monetary amounts
const MoneyScale int32 = 2

var (
	hundred    = decimal.NewFromInt(100)
	twoHundred = decimal.NewFromInt(200)
)

// Round2 rounds a monetary value to the stored scale
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// ParseDecimal parses a numeric input field, rejecting non-numeric text as an invalid line item
func ParseDecimal(field, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, shared.NewDomainError(shared.CodeInvalidLineItem,
			fmt.Sprintf("%s must be numeric, got %q", field, raw))
	}
	return d, nil
}

// LineInput carries the arithmetic inputs of one line item
type LineInput struct {
	Quantity          decimal.Decimal
	UnitPrice         decimal.Decimal
	DiscountPct       decimal.Decimal
	TaxPct            decimal.Decimal
	CessPct           decimal.Decimal
	CessEnabled       bool
	InterJurisdiction bool
}

// LineResult is the stored breakdown of one line item, every amount at 2 dp
type LineResult struct {
	Base           decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxableAmount  decimal.Decimal
	CGST           decimal.Decimal
	SGST           decimal.Decimal
	IGST           decimal.Decimal
	CessAmount     decimal.Decimal
	TaxAmount      decimal.Decimal
	TotalAmount    decimal.Decimal
}

// Validate checks quantity, price and rate ranges
func (in LineInput) Validate() error {
	if in.Quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError(shared.CodeInvalidLineItem, "Quantity must be positive")
	}
	if in.UnitPrice.IsNegative() {
		return shared.NewDomainError(shared.CodeInvalidLineItem, "Unit price cannot be negative")
	}
	if in.DiscountPct.IsNegative() || in.DiscountPct.GreaterThan(hundred) {
		return shared.NewDomainError(shared.CodeInvalidLineItem, "Discount percentage must be between 0 and 100")
	}
	if in.TaxPct.IsNegative() || in.CessPct.IsNegative() {
		return shared.NewDomainError(shared.CodeInvalidLineItem, "Tax and cess rates cannot be negative")
	}
	return nil
}

// ComputeLine computes discount, taxable base and the GST split of one line.
//
// The taxable amount is rounded once before tax is applied; tax components are
// derived from that rounded base and rounded when stored. Intra-jurisdiction
// lines split the rate evenly into CGST and SGST, inter-jurisdiction lines
// carry it all as IGST.
func ComputeLine(in LineInput) (LineResult, error) {
	if err := in.Validate(); err != nil {
		return LineResult{}, err
	}

	base := in.Quantity.Mul(in.UnitPrice)
	discount := base.Mul(in.DiscountPct).Div(hundred)
	taxable := Round2(base.Sub(discount))

	cgst, sgst, igst := split(taxable, in.TaxPct, in.InterJurisdiction)

	cess := decimal.Zero
	if in.CessEnabled {
		cess = taxable.Mul(in.CessPct).Div(hundred)
	}

	taxAmount := cgst.Add(sgst).Add(igst).Add(cess)
	roundedBase := Round2(base)

	return LineResult{
		Base:           roundedBase,
		DiscountAmount: roundedBase.Sub(taxable),
		TaxableAmount:  taxable,
		CGST:           Round2(cgst),
		SGST:           Round2(sgst),
		IGST:           Round2(igst),
		CessAmount:     Round2(cess),
		TaxAmount:      Round2(taxAmount),
		TotalAmount:    Round2(taxable.Add(taxAmount)),
	}, nil
}

// split applies rate to amount as either CGST+SGST (half each) or IGST
func split(amount, rate decimal.Decimal, inter bool) (cgst, sgst, igst decimal.Decimal) {
	if inter {
		return decimal.Zero, decimal.Zero, amount.Mul(rate).Div(hundred)
	}
	half := amount.Mul(rate).Div(twoHundred)
	return half, half, decimal.Zero
}
