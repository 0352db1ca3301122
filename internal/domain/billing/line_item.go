package billing

import (
	"fmt"

	"github.com/erp/billing/internal/domain/catalog"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineRequest is one requested line of a document. A nil UnitPrice takes the
// catalog price; a nil DiscountPct means no discount.
type LineRequest struct {
	ItemID      uuid.UUID
	Quantity    decimal.Decimal
	UnitPrice   *decimal.Decimal
	DiscountPct *decimal.Decimal
}

// LineItem is a computed line of a document with a frozen catalog snapshot
type LineItem struct {
	ID             uuid.UUID
	DocumentID     uuid.UUID
	ItemID         uuid.UUID
	Snapshot       catalog.ItemSnapshot
	Quantity       decimal.Decimal
	UnitPrice      decimal.Decimal
	DiscountPct    decimal.Decimal
	TaxRate        decimal.Decimal
	CessRate       decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxableAmount  decimal.Decimal
	CGST           decimal.Decimal
	SGST           decimal.Decimal
	IGST           decimal.Decimal
	CessAmount     decimal.Decimal
	TaxAmount      decimal.Decimal
	TotalAmount    decimal.Decimal
	SortOrder      int
}

// Result returns the tax breakdown stored on the line
func (l *LineItem) Result() tax.LineResult {
	return tax.LineResult{
		Base:           l.TaxableAmount.Add(l.DiscountAmount),
		DiscountAmount: l.DiscountAmount,
		TaxableAmount:  l.TaxableAmount,
		CGST:           l.CGST,
		SGST:           l.SGST,
		IGST:           l.IGST,
		CessAmount:     l.CessAmount,
		TaxAmount:      l.TaxAmount,
		TotalAmount:    l.TotalAmount,
	}
}

// checkCatalog verifies every referenced item exists, is active and has a unit.
// It runs before any arithmetic so a bad reference never yields partial totals.
func checkCatalog(requests []LineRequest, items map[uuid.UUID]*catalog.Item) error {
	for _, req := range requests {
		item, ok := items[req.ItemID]
		if !ok || item == nil || !item.Active {
			return shared.NewDomainError(shared.CodeItemNotFound,
				fmt.Sprintf("Catalog item %s is missing or inactive", req.ItemID))
		}
		if !item.HasUnit() {
			return shared.NewDomainError(shared.CodeMissingUnit,
				fmt.Sprintf("Catalog item %s (%s) has no unit assigned", item.Code, item.ID))
		}
	}
	return nil
}

// BuildLines checks catalog consistency and then computes every line
func BuildLines(
	documentID uuid.UUID,
	requests []LineRequest,
	items map[uuid.UUID]*catalog.Item,
	cessEnabled bool,
	interJurisdiction bool,
) ([]LineItem, error) {
	if len(requests) == 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidLineItem, "Document must have at least one line item")
	}
	if err := checkCatalog(requests, items); err != nil {
		return nil, err
	}

	lines := make([]LineItem, 0, len(requests))
	for i, req := range requests {
		item := items[req.ItemID]

		unitPrice := item.Price
		if req.UnitPrice != nil {
			unitPrice = *req.UnitPrice
		}
		discountPct := decimal.Zero
		if req.DiscountPct != nil {
			discountPct = *req.DiscountPct
		}

		res, err := tax.ComputeLine(tax.LineInput{
			Quantity:          req.Quantity,
			UnitPrice:         unitPrice,
			DiscountPct:       discountPct,
			TaxPct:            item.TaxRate,
			CessPct:           item.CessRate,
			CessEnabled:       cessEnabled,
			InterJurisdiction: interJurisdiction,
		})
		if err != nil {
			return nil, shared.NewDomainError(shared.CodeInvalidLineItem,
				fmt.Sprintf("Line %d (%s): %s", i+1, item.Code, err.Error()))
		}

		lines = append(lines, LineItem{
			ID:             uuid.New(),
			DocumentID:     documentID,
			ItemID:         item.ID,
			Snapshot:       item.Snapshot(),
			Quantity:       req.Quantity,
			UnitPrice:      unitPrice,
			DiscountPct:    discountPct,
			TaxRate:        item.TaxRate,
			CessRate:       item.CessRate,
			DiscountAmount: res.DiscountAmount,
			TaxableAmount:  res.TaxableAmount,
			CGST:           res.CGST,
			SGST:           res.SGST,
			IGST:           res.IGST,
			CessAmount:     res.CessAmount,
			TaxAmount:      res.TaxAmount,
			TotalAmount:    res.TotalAmount,
			SortOrder:      i,
		})
	}
	return lines, nil
}
