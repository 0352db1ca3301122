// Package printing lays out billing documents as A4 PDFs with go-pdf/fpdf.
package printing

import (
	"bytes"
	"errors"
	"fmt"

	appprinting "github.com/erp/billing/internal/application/printing"
	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/partner"
	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

const (
	margin   = 12.0
	rowH     = 6.0
	fontBody = "Helvetica"
)

// column widths of the line item table, summing to the printable width
var itemColumns = []struct {
	title string
	width float64
	align string
}{
	{"#", 8, "C"},
	{"Item", 52, "L"},
	{"HSN", 18, "L"},
	{"Qty", 16, "R"},
	{"Rate", 20, "R"},
	{"Disc %", 14, "R"},
	{"Taxable", 24, "R"},
	{"Tax %", 12, "R"},
	{"Amount", 22, "R"},
}

var titles = map[billing.DocumentType]string{
	billing.DocumentTypeInvoice:       "Tax Invoice",
	billing.DocumentTypePurchaseBill:  "Purchase Bill",
	billing.DocumentTypePurchaseOrder: "Purchase Order",
	billing.DocumentTypeCreditNote:    "Credit Note",
	billing.DocumentTypeDebitNote:     "Debit Note",
}

// PDFRenderer renders document sheets
type PDFRenderer struct {
	pageSize string
	creator  string
	compress bool
}

// RendererOption configures the PDFRenderer
type RendererOption func(*PDFRenderer)

// WithPageSize sets the fpdf page size name ("A4", "Letter", ...)
func WithPageSize(size string) RendererOption {
	return func(r *PDFRenderer) { r.pageSize = size }
}

// WithCreator sets the creator recorded in the PDF metadata
func WithCreator(creator string) RendererOption {
	return func(r *PDFRenderer) { r.creator = creator }
}

// WithCompression toggles content stream compression
func WithCompression(enabled bool) RendererOption {
	return func(r *PDFRenderer) { r.compress = enabled }
}

// NewPDFRenderer creates a renderer for A4 pages
func NewPDFRenderer(opts ...RendererOption) *PDFRenderer {
	r := &PDFRenderer{pageSize: "A4", creator: "billing", compress: true}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render implements appprinting.Renderer
func (r *PDFRenderer) Render(sheet appprinting.DocumentSheet) ([]byte, error) {
	doc := sheet.Document
	if doc == nil {
		return nil, errors.New("pdf: sheet has no document")
	}

	pdf := fpdf.New("P", "mm", r.pageSize, "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetCompression(r.compress)
	pdf.SetTitle(fmt.Sprintf("%s %s", titleOf(doc.Type), doc.Number), true)
	pdf.SetCreator(r.creator, true)
	pdf.SetCreationDate(doc.IssueDate)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin+6)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-margin - 2)
		pdf.SetFont(fontBody, "I", 7)
		pdf.CellFormat(0, 4, fmt.Sprintf("%s %s  |  page %d/{nb}", titleOf(doc.Type), tr(doc.Number), pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 2*margin

	r.header(pdf, tr, sheet, contentW)
	r.items(pdf, tr, doc)
	r.totals(pdf, doc, contentW)

	if doc.Notes != "" {
		pdf.Ln(4)
		pdf.SetFont(fontBody, "B", 8)
		pdf.CellFormat(contentW, 5, "Notes", "", 1, "L", false, 0, "")
		pdf.SetFont(fontBody, "", 8)
		pdf.MultiCell(contentW, 4, tr(doc.Notes), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf: write %s: %w", doc.Number, err)
	}
	return buf.Bytes(), nil
}

func (r *PDFRenderer) header(pdf *fpdf.Fpdf, tr func(string) string, sheet appprinting.DocumentSheet, contentW float64) {
	doc := sheet.Document
	half := contentW / 2

	sellerName := "-"
	var sellerLines []string
	if sheet.Seller != nil {
		sellerName = sheet.Seller.Name
		if sheet.Seller.GSTIN != "" {
			sellerLines = append(sellerLines, "GSTIN: "+sheet.Seller.GSTIN)
		}
		if sheet.Seller.Email != "" {
			sellerLines = append(sellerLines, sheet.Seller.Email)
		}
	}
	sellerLines = append(sellerLines, "Jurisdiction: "+doc.HomeJurisdiction)

	pdf.SetFont(fontBody, "B", 14)
	pdf.CellFormat(half, 8, tr(sellerName), "", 0, "L", false, 0, "")
	pdf.CellFormat(half, 8, titleOf(doc.Type), "", 1, "R", false, 0, "")

	right := []string{
		"No. " + doc.Number,
		"Date: " + doc.IssueDate.Format("02 Jan 2006"),
	}
	if doc.DueDate != nil {
		right = append(right, "Due: "+doc.DueDate.Format("02 Jan 2006"))
	}
	right = append(right, "Status: "+doc.Status.String())

	pdf.SetFont(fontBody, "", 8)
	for i := 0; i < max(len(sellerLines), len(right)); i++ {
		pdf.CellFormat(half, 4.5, tr(at(sellerLines, i)), "", 0, "L", false, 0, "")
		pdf.CellFormat(half, 4.5, tr(at(right, i)), "", 1, "R", false, 0, "")
	}

	pdf.Ln(3)
	pdf.Line(margin, pdf.GetY(), margin+contentW, pdf.GetY())
	pdf.Ln(3)

	label := "Bill to"
	if doc.Type.CounterpartyKind() == partner.CounterpartyVendor {
		label = "Vendor"
	}
	pdf.SetFont(fontBody, "B", 9)
	pdf.CellFormat(half, 5, label, "", 0, "L", false, 0, "")
	pdf.CellFormat(half, 5, "Place of supply: "+doc.PlaceOfSupply, "", 1, "R", false, 0, "")
	pdf.SetFont(fontBody, "", 8)
	if b := sheet.Buyer; b != nil {
		pdf.CellFormat(half, 4.5, tr(b.Name), "", 0, "L", false, 0, "")
	} else {
		pdf.CellFormat(half, 4.5, "-", "", 0, "L", false, 0, "")
	}
	supply := "Intra-state supply"
	if doc.InterJurisdiction {
		supply = "Inter-state supply"
	}
	pdf.CellFormat(half, 4.5, supply, "", 1, "R", false, 0, "")
	if b := sheet.Buyer; b != nil && b.GSTIN != "" {
		pdf.CellFormat(half, 4.5, "GSTIN: "+b.GSTIN, "", 0, "L", false, 0, "")
	} else {
		pdf.CellFormat(half, 4.5, "", "", 0, "L", false, 0, "")
	}
	if doc.ReverseCharge {
		pdf.CellFormat(half, 4.5, "Tax payable on reverse charge", "", 1, "R", false, 0, "")
	} else {
		pdf.Ln(4.5)
	}
	pdf.Ln(4)
}

func (r *PDFRenderer) items(pdf *fpdf.Fpdf, tr func(string) string, doc *billing.Document) {
	pdf.SetFont(fontBody, "B", 8)
	pdf.SetFillColor(235, 235, 235)
	for _, col := range itemColumns {
		pdf.CellFormat(col.width, rowH, col.title, "1", 0, col.align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(fontBody, "", 8)
	for i, item := range doc.Items {
		name := item.Snapshot.Name
		if len(name) > 34 {
			name = name[:33] + "."
		}
		values := []string{
			fmt.Sprint(i + 1),
			name,
			item.Snapshot.HSNCode,
			item.Quantity.String() + " " + item.Snapshot.Unit,
			money(item.UnitPrice),
			item.DiscountPct.String(),
			money(item.TaxableAmount),
			item.TaxRate.String(),
			money(item.TotalAmount),
		}
		for c, col := range itemColumns {
			pdf.CellFormat(col.width, rowH, tr(values[c]), "1", 0, col.align, false, 0, "")
		}
		pdf.Ln(-1)
	}
}

func (r *PDFRenderer) totals(pdf *fpdf.Fpdf, doc *billing.Document, contentW float64) {
	labelW, valueW := 40.0, 30.0
	offset := contentW - labelW - valueW

	row := func(label string, value decimal.Decimal, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		pdf.SetFont(fontBody, style, 8)
		pdf.SetX(margin + offset)
		pdf.CellFormat(labelW, 5, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(valueW, 5, money(value), "", 1, "R", false, 0, "")
	}

	pdf.Ln(3)
	row("Subtotal", doc.Subtotal, false)
	if !doc.Discount.IsZero() {
		row("Discount", doc.Discount.Neg(), false)
	}
	row("Taxable amount", doc.TaxableAmount, false)
	if doc.InterJurisdiction {
		row("IGST", doc.IGST, false)
	} else {
		row("CGST", doc.CGST, false)
		row("SGST", doc.SGST, false)
	}
	if doc.CessEnabled {
		row("Cess", doc.Cess, false)
	}
	if !doc.ShippingAmount.IsZero() {
		row("Shipping", doc.ShippingAmount, false)
		row(fmt.Sprintf("Shipping tax (%s%%)", doc.ShippingTaxPct.String()), doc.ShippingTax, false)
	}
	if !doc.TDS.IsZero() {
		row("TDS", doc.TDS.Neg(), false)
	}
	if !doc.TCS.IsZero() {
		row("TCS", doc.TCS, false)
	}
	pdf.SetX(margin + offset)
	pdf.Line(margin+offset, pdf.GetY(), margin+contentW, pdf.GetY())
	row("Total", doc.Total, true)
	if doc.Type.IsSettleable() {
		row("Balance due", doc.Balance, true)
	}
}

func titleOf(t billing.DocumentType) string {
	if title, ok := titles[t]; ok {
		return title
	}
	return t.String()
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func at(lines []string, i int) string {
	if i < len(lines) {
		return lines[i]
	}
	return ""
}
