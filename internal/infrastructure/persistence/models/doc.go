// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
//   - base.go: shared columns (BaseModel, TenantAggregateModel)
//   - billing.go: billing documents and their line items
//   - finance.go: payments, payment allocations and ledger entries
//   - catalog.go, partner.go: read models of catalog items, counterparties and companies
//   - outbox.go: outbox pattern model for event delivery
package models
