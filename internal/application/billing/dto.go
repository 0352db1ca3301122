package billing

import (
	"time"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/catalog"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// LineItemRequest is one requested line of a document
type LineItemRequest struct {
	ItemID      uuid.UUID        `json:"item_id" binding:"required"`
	Quantity    decimal.Decimal  `json:"quantity" binding:"decimal_gt0"`
	UnitPrice   *decimal.Decimal `json:"unit_price" binding:"omitempty,decimal_gte0"`
	DiscountPct *decimal.Decimal `json:"discount_pct" binding:"omitempty,decimal_pct"`
}

// WithholdingRequest is one TDS or TCS entry
type WithholdingRequest struct {
	Percentage decimal.Decimal     `json:"percentage" binding:"decimal_pct"`
	Kind       tax.WithholdingKind `json:"kind" binding:"required,oneof=TDS TCS"`
	AppliesTo  tax.WithholdingBase `json:"applies_to" binding:"required,oneof=TAXABLE TOTAL"`
}

// CreateDocumentRequest represents a request to issue a new document
type CreateDocumentRequest struct {
	Type           string               `json:"type" binding:"required,oneof=INVOICE PURCHASE_BILL PURCHASE_ORDER CREDIT_NOTE DEBIT_NOTE"`
	Number         string               `json:"number" binding:"max=50"`
	CounterpartyID uuid.UUID            `json:"counterparty_id" binding:"required"`
	PlaceOfSupply  string               `json:"place_of_supply" binding:"max=100"`
	IssueDate      *time.Time           `json:"issue_date"`
	DueDate        *time.Time           `json:"due_date"`
	CessEnabled    *bool                `json:"cess_enabled"`
	ReverseCharge  bool                 `json:"reverse_charge"`
	ShippingAmount *decimal.Decimal     `json:"shipping_amount" binding:"omitempty,decimal_gte0"`
	ShippingTaxPct *decimal.Decimal     `json:"shipping_tax_pct" binding:"omitempty,decimal_pct"`
	Withholding    []WithholdingRequest `json:"withholding" binding:"omitempty,dive"`
	Items          []LineItemRequest    `json:"items" binding:"required,min=1,dive"`
	Notes          string               `json:"notes" binding:"max=2000"`
}

// UpdateDocumentRequest replaces every editable field and all line items of a document
type UpdateDocumentRequest struct {
	Number         string               `json:"number" binding:"max=50"`
	CounterpartyID uuid.UUID            `json:"counterparty_id" binding:"required"`
	PlaceOfSupply  string               `json:"place_of_supply" binding:"max=100"`
	IssueDate      *time.Time           `json:"issue_date"`
	DueDate        *time.Time           `json:"due_date"`
	CessEnabled    *bool                `json:"cess_enabled"`
	ReverseCharge  bool                 `json:"reverse_charge"`
	ShippingAmount *decimal.Decimal     `json:"shipping_amount" binding:"omitempty,decimal_gte0"`
	ShippingTaxPct *decimal.Decimal     `json:"shipping_tax_pct" binding:"omitempty,decimal_pct"`
	Withholding    []WithholdingRequest `json:"withholding" binding:"omitempty,dive"`
	Items          []LineItemRequest    `json:"items" binding:"required,min=1,dive"`
	Notes          string               `json:"notes" binding:"max=2000"`
}

// CancelDocumentRequest carries the optional cancellation reason
type CancelDocumentRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// DocumentListFilter represents filter options for listing documents
type DocumentListFilter struct {
	Type           string     `form:"type" binding:"omitempty,oneof=INVOICE PURCHASE_BILL PURCHASE_ORDER CREDIT_NOTE DEBIT_NOTE"`
	Status         string     `form:"status" binding:"omitempty,oneof=OPEN PARTIALLY_PAID PAID CANCELLED DELETED"`
	CounterpartyID *uuid.UUID `form:"counterparty_id"`
	Page           int        `form:"page" binding:"min=0"`
	PageSize       int        `form:"page_size" binding:"min=0,max=100"`
	OrderBy        string     `form:"order_by" binding:"omitempty,oneof=issue_date number total created_at"`
	OrderDir       string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

func (r CreateDocumentRequest) header() billing.Header {
	return buildHeader(billing.DocumentType(r.Type), r.Number, r.PlaceOfSupply, r.IssueDate, r.DueDate,
		r.ReverseCharge, r.ShippingAmount, r.ShippingTaxPct, r.Withholding, r.Notes)
}

func (r UpdateDocumentRequest) header(docType billing.DocumentType) billing.Header {
	return buildHeader(docType, r.Number, r.PlaceOfSupply, r.IssueDate, r.DueDate,
		r.ReverseCharge, r.ShippingAmount, r.ShippingTaxPct, r.Withholding, r.Notes)
}

func buildHeader(
	docType billing.DocumentType,
	number, placeOfSupply string,
	issueDate, dueDate *time.Time,
	reverseCharge bool,
	shippingAmount, shippingTaxPct *decimal.Decimal,
	withholding []WithholdingRequest,
	notes string,
) billing.Header {
	h := billing.Header{
		Type:          docType,
		Number:        number,
		PlaceOfSupply: placeOfSupply,
		DueDate:       dueDate,
		ReverseCharge: reverseCharge,
		Notes:         notes,
		Withholding: lo.Map(withholding, func(w WithholdingRequest, _ int) tax.Withholding {
			return tax.Withholding{Percentage: w.Percentage, Kind: w.Kind, AppliesTo: w.AppliesTo}
		}),
	}
	if issueDate != nil {
		h.IssueDate = *issueDate
	}
	if shippingAmount != nil {
		h.ShippingAmount = *shippingAmount
	}
	if shippingTaxPct != nil {
		h.ShippingTaxPct = *shippingTaxPct
	}
	return h
}

func lineRequests(items []LineItemRequest) []billing.LineRequest {
	return lo.Map(items, func(i LineItemRequest, _ int) billing.LineRequest {
		return billing.LineRequest{ItemID: i.ItemID, Quantity: i.Quantity, UnitPrice: i.UnitPrice, DiscountPct: i.DiscountPct}
	})
}

func itemIDs(items []LineItemRequest) []uuid.UUID {
	return lo.Uniq(lo.Map(items, func(i LineItemRequest, _ int) uuid.UUID { return i.ItemID }))
}

func (f DocumentListFilter) toDomain() billing.DocumentFilter {
	filter := billing.DocumentFilter{
		Filter: shared.Filter{
			Page:     f.Page,
			PageSize: f.PageSize,
			OrderBy:  f.OrderBy,
			OrderDir: f.OrderDir,
		},
		CounterpartyID: f.CounterpartyID,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = shared.DefaultFilter().PageSize
	}
	if f.Type != "" {
		t := billing.DocumentType(f.Type)
		filter.Type = &t
	}
	if f.Status != "" {
		s := billing.Status(f.Status)
		filter.Status = &s
		filter.IncludeDeleted = s == billing.StatusDeleted
	}
	return filter
}

// LineItemResponse is the stored breakdown of one line
type LineItemResponse struct {
	ID             uuid.UUID            `json:"id"`
	ItemID         uuid.UUID            `json:"item_id"`
	Item           catalog.ItemSnapshot `json:"item"`
	Quantity       decimal.Decimal      `json:"quantity"`
	UnitPrice      decimal.Decimal      `json:"unit_price"`
	DiscountPct    decimal.Decimal      `json:"discount_pct"`
	TaxRate        decimal.Decimal      `json:"tax_rate"`
	CessRate       decimal.Decimal      `json:"cess_rate"`
	DiscountAmount decimal.Decimal      `json:"discount_amount"`
	TaxableAmount  decimal.Decimal      `json:"taxable_amount"`
	CGST           decimal.Decimal      `json:"cgst"`
	SGST           decimal.Decimal      `json:"sgst"`
	IGST           decimal.Decimal      `json:"igst"`
	CessAmount     decimal.Decimal      `json:"cess_amount"`
	TaxAmount      decimal.Decimal      `json:"tax_amount"`
	TotalAmount    decimal.Decimal      `json:"total_amount"`
}

// DocumentResponse represents a document with its computed totals
type DocumentResponse struct {
	ID                uuid.UUID          `json:"id"`
	TenantID          uuid.UUID          `json:"tenant_id"`
	Type              string             `json:"type"`
	Number            string             `json:"number"`
	CounterpartyID    uuid.UUID          `json:"counterparty_id"`
	PlaceOfSupply     string             `json:"place_of_supply"`
	InterJurisdiction bool               `json:"inter_jurisdiction"`
	IssueDate         time.Time          `json:"issue_date"`
	DueDate           *time.Time         `json:"due_date,omitempty"`
	CessEnabled       bool               `json:"cess_enabled"`
	ReverseCharge     bool               `json:"reverse_charge"`
	Withholding       []tax.Withholding  `json:"withholding"`
	Subtotal          decimal.Decimal    `json:"subtotal"`
	Discount          decimal.Decimal    `json:"discount"`
	TaxableAmount     decimal.Decimal    `json:"taxable_amount"`
	CGST              decimal.Decimal    `json:"cgst"`
	SGST              decimal.Decimal    `json:"sgst"`
	IGST              decimal.Decimal    `json:"igst"`
	Cess              decimal.Decimal    `json:"cess"`
	TaxTotal          decimal.Decimal    `json:"tax_total"`
	ShippingAmount    decimal.Decimal    `json:"shipping_amount"`
	ShippingTax       decimal.Decimal    `json:"shipping_tax"`
	TDS               decimal.Decimal    `json:"tds"`
	TCS               decimal.Decimal    `json:"tcs"`
	Total             decimal.Decimal    `json:"total"`
	Balance           decimal.Decimal    `json:"balance"`
	Status            string             `json:"status"`
	Locked            bool               `json:"locked"`
	Notes             string             `json:"notes"`
	Items             []LineItemResponse `json:"items"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
	Version           int                `json:"version"`
}

// DocumentListResponse is the list view of a document
type DocumentListResponse struct {
	ID             uuid.UUID       `json:"id"`
	Type           string          `json:"type"`
	Number         string          `json:"number"`
	CounterpartyID uuid.UUID       `json:"counterparty_id"`
	IssueDate      time.Time       `json:"issue_date"`
	DueDate        *time.Time      `json:"due_date,omitempty"`
	Total          decimal.Decimal `json:"total"`
	Balance        decimal.Decimal `json:"balance"`
	Status         string          `json:"status"`
}

// ToDocumentResponse converts a domain document to a response
func ToDocumentResponse(d *billing.Document) DocumentResponse {
	withholding := d.Withholding
	if withholding == nil {
		withholding = []tax.Withholding{}
	}
	return DocumentResponse{
		ID:                d.ID,
		TenantID:          d.TenantID,
		Type:              d.Type.String(),
		Number:            d.Number,
		CounterpartyID:    d.CounterpartyID,
		PlaceOfSupply:     d.PlaceOfSupply,
		InterJurisdiction: d.InterJurisdiction,
		IssueDate:         d.IssueDate,
		DueDate:           d.DueDate,
		CessEnabled:       d.CessEnabled,
		ReverseCharge:     d.ReverseCharge,
		Withholding:       withholding,
		Subtotal:          d.Subtotal,
		Discount:          d.Discount,
		TaxableAmount:     d.TaxableAmount,
		CGST:              d.CGST,
		SGST:              d.SGST,
		IGST:              d.IGST,
		Cess:              d.Cess,
		TaxTotal:          d.TaxTotal,
		ShippingAmount:    d.ShippingAmount,
		ShippingTax:       d.ShippingTax,
		TDS:               d.TDS,
		TCS:               d.TCS,
		Total:             d.Total,
		Balance:           d.Balance,
		Status:            d.Status.String(),
		Locked:            d.Locked,
		Notes:             d.Notes,
		Items: lo.Map(d.Items, func(l billing.LineItem, _ int) LineItemResponse {
			return LineItemResponse{
				ID:             l.ID,
				ItemID:         l.ItemID,
				Item:           l.Snapshot,
				Quantity:       l.Quantity,
				UnitPrice:      l.UnitPrice,
				DiscountPct:    l.DiscountPct,
				TaxRate:        l.TaxRate,
				CessRate:       l.CessRate,
				DiscountAmount: l.DiscountAmount,
				TaxableAmount:  l.TaxableAmount,
				CGST:           l.CGST,
				SGST:           l.SGST,
				IGST:           l.IGST,
				CessAmount:     l.CessAmount,
				TaxAmount:      l.TaxAmount,
				TotalAmount:    l.TotalAmount,
			}
		}),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
		Version:   d.Version,
	}
}

// ToDocumentListResponse converts a domain document to a list item
func ToDocumentListResponse(d *billing.Document) DocumentListResponse {
	return DocumentListResponse{
		ID:             d.ID,
		Type:           d.Type.String(),
		Number:         d.Number,
		CounterpartyID: d.CounterpartyID,
		IssueDate:      d.IssueDate,
		DueDate:        d.DueDate,
		Total:          d.Total,
		Balance:        d.Balance,
		Status:         d.Status.String(),
	}
}
