// Package partner exposes read-only views of the parties billing deals with:
// clients and vendors, and the tenant's own registered company.
package partner

import (
	"context"

	"github.com/google/uuid"
)

// CounterpartyKind distinguishes clients (sales side) from vendors (purchase side)
type CounterpartyKind string

const (
	CounterpartyClient CounterpartyKind = "CLIENT"
	CounterpartyVendor CounterpartyKind = "VENDOR"
)

// Counterparty is a client or vendor
type Counterparty struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	Kind         CounterpartyKind
	Name         string
	Email        string
	GSTIN        string
	Jurisdiction string
}

// Company is the tenant's own registered business. Its jurisdiction is the
// reference every place of supply is compared against.
type Company struct {
	TenantID     uuid.UUID
	Name         string
	GSTIN        string
	Jurisdiction string
	Email        string
}

// Reader looks up counterparties and the tenant company inside the caller's transaction
type Reader interface {
	FindCounterparty(ctx context.Context, tenantID, id uuid.UUID) (*Counterparty, error)
	// FindCompany returns shared.ErrNotFound when the tenant has no registered company
	FindCompany(ctx context.Context, tenantID uuid.UUID) (*Company, error)
}
