package finance

import (
	"context"
	"time"

	"github.com/erp/billing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentFilter defines filtering options for payment queries
type PaymentFilter struct {
	shared.Filter
	CounterpartyID *uuid.UUID
	Direction      *Direction
	Mode           *Mode
	FromDate       *time.Time
	ToDate         *time.Time
}

// PaymentRepository defines the interface for payment persistence
type PaymentRepository interface {
	// FindByID finds a live payment with its allocations
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Payment, error)

	// FindByIDForUpdate locks the payment row and loads it with its allocations
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*Payment, error)

	// FindAll lists live payments matching the filter and returns the total count
	FindAll(ctx context.Context, tenantID uuid.UUID, filter PaymentFilter) ([]Payment, int64, error)

	// ExistsByNumber checks number uniqueness per tenant
	ExistsByNumber(ctx context.Context, tenantID uuid.UUID, number string) (bool, error)

	// Save creates or updates the payment and replaces its allocation rows
	Save(ctx context.Context, payment *Payment) error

	// CountAllocationsForDocument counts allocation rows of live payments
	// pointing at a document
	CountAllocationsForDocument(ctx context.Context, tenantID, documentID uuid.UUID) (int64, error)
}

// LedgerRepository is the append-only store of client ledger entries
type LedgerRepository interface {
	// Append inserts entries without touching existing rows
	Append(ctx context.Context, entries ...*LedgerEntry) error

	// FindByCounterparty returns one window of entries ordered by
	// (entry date, sequence) and the number of entries in the date range
	FindByCounterparty(ctx context.Context, tenantID, counterpartyID uuid.UUID, filter LedgerFilter) ([]LedgerEntry, int64, error)

	// OpeningBalance sums every entry that precedes the window selected by
	// filter: entries dated before From and the first Offset entries in range
	OpeningBalance(ctx context.Context, tenantID, counterpartyID uuid.UUID, filter LedgerFilter) (decimal.Decimal, error)

	// Balance sums debit minus credit over all entries of a counterparty
	Balance(ctx context.Context, tenantID, counterpartyID uuid.UUID) (decimal.Decimal, error)

	// DeleteByReference removes the entries posted for one event
	DeleteByReference(ctx context.Context, tenantID uuid.UUID, kind LedgerKind, referenceID uuid.UUID) (int64, error)

	// DeleteOpeningBalance removes the opening balance entry of a counterparty
	DeleteOpeningBalance(ctx context.Context, tenantID, counterpartyID uuid.UUID) (int64, error)
}
