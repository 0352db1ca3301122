package billing

import "github.com/erp/billing/internal/domain/partner"

// DocumentType tags the variant of a Document
type DocumentType string

const (
	DocumentTypeInvoice       DocumentType = "INVOICE"
	DocumentTypePurchaseBill  DocumentType = "PURCHASE_BILL"
	DocumentTypePurchaseOrder DocumentType = "PURCHASE_ORDER"
	DocumentTypeCreditNote    DocumentType = "CREDIT_NOTE"
	DocumentTypeDebitNote     DocumentType = "DEBIT_NOTE"
)

// IsValid checks if the document type is known
func (t DocumentType) IsValid() bool {
	switch t {
	case DocumentTypeInvoice, DocumentTypePurchaseBill, DocumentTypePurchaseOrder,
		DocumentTypeCreditNote, DocumentTypeDebitNote:
		return true
	}
	return false
}

// String returns the string representation of DocumentType
func (t DocumentType) String() string {
	return string(t)
}

// IsSettleable reports whether documents of this type carry a balance that payments reduce
func (t DocumentType) IsSettleable() bool {
	return t == DocumentTypeInvoice || t == DocumentTypePurchaseBill
}

// CounterpartyKind returns the kind of party this document is issued to or received from
func (t DocumentType) CounterpartyKind() partner.CounterpartyKind {
	switch t {
	case DocumentTypePurchaseBill, DocumentTypePurchaseOrder:
		return partner.CounterpartyVendor
	default:
		return partner.CounterpartyClient
	}
}

// AllowsWithholding reports whether TDS/TCS adjustments may be recorded (purchase side only)
func (t DocumentType) AllowsWithholding() bool {
	return t == DocumentTypePurchaseBill || t == DocumentTypePurchaseOrder
}

// NumberPrefix is used when a document number has to be generated
func (t DocumentType) NumberPrefix() string {
	switch t {
	case DocumentTypeInvoice:
		return "INV"
	case DocumentTypePurchaseBill:
		return "BILL"
	case DocumentTypePurchaseOrder:
		return "PO"
	case DocumentTypeCreditNote:
		return "CN"
	case DocumentTypeDebitNote:
		return "DN"
	}
	return "DOC"
}
