// Package billing holds the financial documents of a tenant: invoices,
// purchase bills, purchase orders, credit notes and debit notes.
//
// All five share one aggregate, Document, tagged by DocumentType. Invoices
// and purchase bills carry a balance and accept payment allocations through
// the Settleable capability; the others are issued for their totals only.
//
// Document status is an explicit state machine (see status.go). Settlement
// states are derived from balance vs total; CANCELLED and DELETED are
// reached only through Cancel and Delete.
//
// The billing domain integrates with:
//   - Catalog: items are snapshotted onto line items when a document is built
//   - Partner: counterparty and company jurisdictions drive the GST split
//   - Finance: payments settle documents via Settleable
package billing
