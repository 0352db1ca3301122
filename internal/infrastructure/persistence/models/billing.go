package models

import (
	"time"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/catalog"
	"github.com/erp/billing/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// BillingDocumentModel is the persistence model for every document type
type BillingDocumentModel struct {
	TenantAggregateModel
	Type              billing.DocumentType                `gorm:"type:varchar(20);not null"`
	Number            string                              `gorm:"type:varchar(50);not null"`
	CounterpartyID    uuid.UUID                           `gorm:"type:uuid;not null;index"`
	PlaceOfSupply     string                              `gorm:"type:varchar(100)"`
	HomeJurisdiction  string                              `gorm:"type:varchar(100)"`
	InterJurisdiction bool                                `gorm:"not null;default:false"`
	IssueDate         time.Time                           `gorm:"type:date;not null"`
	DueDate           *time.Time                          `gorm:"type:date"`
	CessEnabled       bool                                `gorm:"not null;default:false"`
	ReverseCharge     bool                                `gorm:"not null;default:false"`
	Withholding       datatypes.JSONSlice[tax.Withholding] `gorm:"type:jsonb"`
	Subtotal          decimal.Decimal                     `gorm:"type:decimal(18,2);not null;default:0"`
	Discount          decimal.Decimal                     `gorm:"type:decimal(18,2);not null;default:0"`
	TaxableAmount     decimal.Decimal                     `gorm:"type:decimal(18,2);not null;default:0"`
	CGST              decimal.Decimal                     `gorm:"column:cgst;type:decimal(18,2);not null;default:0"`
	SGST              decimal.Decimal                     `gorm:"column:sgst;type:decimal(18,2);not null;default:0"`
	IGST              decimal.Decimal                     `gorm:"column:igst;type:decimal(18,2);not null;default:0"`
	Cess              decimal.Decimal                     `gorm:"type:decimal(18,2);not null;default:0"`
	TaxTotal          decimal.Decimal                     `gorm:"type:decimal(18,2);not null;default:0"`
	ShippingAmount    decimal.Decimal                     `gorm:"type:decimal(18,2);not null;default:0"`
	ShippingTaxPct    decimal.Decimal                     `gorm:"type:decimal(5,2);not null;default:0"`
	ShippingTax       decimal.Decimal                     `gorm:"type:decimal(18,2);not null;default:0"`
	TDS               decimal.Decimal                     `gorm:"column:tds;type:decimal(18,2);not null;default:0"`
	TCS               decimal.Decimal                     `gorm:"column:tcs;type:decimal(18,2);not null;default:0"`
	Total             decimal.Decimal                     `gorm:"type:decimal(18,2);not null;default:0"`
	Balance           decimal.Decimal                     `gorm:"type:decimal(18,2);not null;default:0"`
	Status            billing.Status                      `gorm:"type:varchar(20);not null;default:'OPEN';index"`
	Locked            bool                                `gorm:"not null;default:false"`
	Notes             string                              `gorm:"type:text"`
	CancelledAt       *time.Time
	DeletedAt         *time.Time                  `gorm:"index"`
	Items             []BillingDocumentItemModel `gorm:"foreignKey:DocumentID;references:ID"`
}

// TableName returns the table name for GORM
func (BillingDocumentModel) TableName() string {
	return "billing_documents"
}

// ToDomain converts the persistence model to a domain Document
func (m *BillingDocumentModel) ToDomain() *billing.Document {
	doc := &billing.Document{
		Type:              m.Type,
		Number:            m.Number,
		CounterpartyID:    m.CounterpartyID,
		PlaceOfSupply:     m.PlaceOfSupply,
		HomeJurisdiction:  m.HomeJurisdiction,
		InterJurisdiction: m.InterJurisdiction,
		IssueDate:         m.IssueDate,
		DueDate:           m.DueDate,
		CessEnabled:       m.CessEnabled,
		ReverseCharge:     m.ReverseCharge,
		Withholding:       []tax.Withholding(m.Withholding),
		Subtotal:          m.Subtotal,
		Discount:          m.Discount,
		TaxableAmount:     m.TaxableAmount,
		CGST:              m.CGST,
		SGST:              m.SGST,
		IGST:              m.IGST,
		Cess:              m.Cess,
		TaxTotal:          m.TaxTotal,
		ShippingAmount:    m.ShippingAmount,
		ShippingTaxPct:    m.ShippingTaxPct,
		ShippingTax:       m.ShippingTax,
		TDS:               m.TDS,
		TCS:               m.TCS,
		Total:             m.Total,
		Balance:           m.Balance,
		Status:            m.Status,
		Locked:            m.Locked,
		Notes:             m.Notes,
		CancelledAt:       m.CancelledAt,
		DeletedAt:         m.DeletedAt,
	}
	m.PopulateTenantAggregateRoot(&doc.TenantAggregateRoot)

	doc.Items = make([]billing.LineItem, len(m.Items))
	for i := range m.Items {
		doc.Items[i] = *m.Items[i].ToDomain()
	}
	return doc
}

// FromDomain populates the persistence model from a domain Document
func (m *BillingDocumentModel) FromDomain(d *billing.Document) {
	m.FromDomainTenantAggregateRoot(d.TenantAggregateRoot)
	m.Type = d.Type
	m.Number = d.Number
	m.CounterpartyID = d.CounterpartyID
	m.PlaceOfSupply = d.PlaceOfSupply
	m.HomeJurisdiction = d.HomeJurisdiction
	m.InterJurisdiction = d.InterJurisdiction
	m.IssueDate = d.IssueDate
	m.DueDate = d.DueDate
	m.CessEnabled = d.CessEnabled
	m.ReverseCharge = d.ReverseCharge
	m.Withholding = datatypes.NewJSONSlice(d.Withholding)
	m.Subtotal = d.Subtotal
	m.Discount = d.Discount
	m.TaxableAmount = d.TaxableAmount
	m.CGST = d.CGST
	m.SGST = d.SGST
	m.IGST = d.IGST
	m.Cess = d.Cess
	m.TaxTotal = d.TaxTotal
	m.ShippingAmount = d.ShippingAmount
	m.ShippingTaxPct = d.ShippingTaxPct
	m.ShippingTax = d.ShippingTax
	m.TDS = d.TDS
	m.TCS = d.TCS
	m.Total = d.Total
	m.Balance = d.Balance
	m.Status = d.Status
	m.Locked = d.Locked
	m.Notes = d.Notes
	m.CancelledAt = d.CancelledAt
	m.DeletedAt = d.DeletedAt

	m.Items = make([]BillingDocumentItemModel, len(d.Items))
	for i := range d.Items {
		m.Items[i] = *BillingDocumentItemModelFromDomain(d.TenantID, &d.Items[i])
		m.Items[i].DocumentID = d.ID
	}
}

// BillingDocumentModelFromDomain creates a new persistence model from a domain Document
func BillingDocumentModelFromDomain(d *billing.Document) *BillingDocumentModel {
	m := &BillingDocumentModel{}
	m.FromDomain(d)
	return m
}

// BillingDocumentItemModel is the persistence model for a document line.
// The catalog snapshot is stored as JSON so later catalog edits never
// change what the document printed.
type BillingDocumentItemModel struct {
	ID             uuid.UUID                               `gorm:"type:uuid;primary_key"`
	TenantID       uuid.UUID                               `gorm:"type:uuid;not null;index"`
	DocumentID     uuid.UUID                               `gorm:"type:uuid;not null;index"`
	ItemID         uuid.UUID                               `gorm:"type:uuid;not null"`
	Snapshot       datatypes.JSONType[catalog.ItemSnapshot] `gorm:"type:jsonb;not null"`
	Quantity       decimal.Decimal                         `gorm:"type:decimal(18,4);not null"`
	UnitPrice      decimal.Decimal                         `gorm:"type:decimal(18,4);not null"`
	DiscountPct    decimal.Decimal                         `gorm:"type:decimal(5,2);not null;default:0"`
	TaxRate        decimal.Decimal                         `gorm:"type:decimal(5,2);not null;default:0"`
	CessRate       decimal.Decimal                         `gorm:"type:decimal(5,2);not null;default:0"`
	DiscountAmount decimal.Decimal                         `gorm:"type:decimal(18,2);not null;default:0"`
	TaxableAmount  decimal.Decimal                         `gorm:"type:decimal(18,2);not null;default:0"`
	CGST           decimal.Decimal                         `gorm:"column:cgst;type:decimal(18,2);not null;default:0"`
	SGST           decimal.Decimal                         `gorm:"column:sgst;type:decimal(18,2);not null;default:0"`
	IGST           decimal.Decimal                         `gorm:"column:igst;type:decimal(18,2);not null;default:0"`
	CessAmount     decimal.Decimal                         `gorm:"type:decimal(18,2);not null;default:0"`
	TaxAmount      decimal.Decimal                         `gorm:"type:decimal(18,2);not null;default:0"`
	TotalAmount    decimal.Decimal                         `gorm:"type:decimal(18,2);not null;default:0"`
	SortOrder      int                                     `gorm:"not null;default:0"`
	CreatedAt      time.Time                               `gorm:"not null"`
}

// TableName returns the table name for GORM
func (BillingDocumentItemModel) TableName() string {
	return "billing_document_items"
}

// ToDomain converts the persistence model to a domain LineItem
func (m *BillingDocumentItemModel) ToDomain() *billing.LineItem {
	return &billing.LineItem{
		ID:             m.ID,
		DocumentID:     m.DocumentID,
		ItemID:         m.ItemID,
		Snapshot:       m.Snapshot.Data(),
		Quantity:       m.Quantity,
		UnitPrice:      m.UnitPrice,
		DiscountPct:    m.DiscountPct,
		TaxRate:        m.TaxRate,
		CessRate:       m.CessRate,
		DiscountAmount: m.DiscountAmount,
		TaxableAmount:  m.TaxableAmount,
		CGST:           m.CGST,
		SGST:           m.SGST,
		IGST:           m.IGST,
		CessAmount:     m.CessAmount,
		TaxAmount:      m.TaxAmount,
		TotalAmount:    m.TotalAmount,
		SortOrder:      m.SortOrder,
	}
}

// BillingDocumentItemModelFromDomain creates a new persistence model from a domain LineItem
func BillingDocumentItemModelFromDomain(tenantID uuid.UUID, l *billing.LineItem) *BillingDocumentItemModel {
	return &BillingDocumentItemModel{
		ID:             l.ID,
		TenantID:       tenantID,
		DocumentID:     l.DocumentID,
		ItemID:         l.ItemID,
		Snapshot:       datatypes.NewJSONType(l.Snapshot),
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
		SortOrder:      l.SortOrder,
		CreatedAt:      time.Now(),
	}
}
