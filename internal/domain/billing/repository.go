package billing

import (
	"context"

	"github.com/erp/billing/internal/domain/shared"
	"github.com/google/uuid"
)

// DocumentFilter defines filtering options for document queries
type DocumentFilter struct {
	shared.Filter
	Type           *DocumentType
	Status         *Status
	CounterpartyID *uuid.UUID
	IncludeDeleted bool
}

// DocumentRepository defines the interface for document persistence
type DocumentRepository interface {
	// FindByID finds a live (not soft-deleted) document with its items
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Document, error)

	// FindByIDForUpdate locks the document row for the rest of the
	// transaction and loads it with its items. Soft-deleted documents are
	// returned too so callers can report them precisely.
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*Document, error)

	// FindAll lists documents matching the filter and returns the total count
	FindAll(ctx context.Context, tenantID uuid.UUID, filter DocumentFilter) ([]Document, int64, error)

	// FindOutstanding lists live settleable documents of one type and
	// counterparty whose balance is above zero
	FindOutstanding(ctx context.Context, tenantID, counterpartyID uuid.UUID, docType DocumentType) ([]Document, error)

	// ExistsByNumber checks number uniqueness per tenant and document type
	ExistsByNumber(ctx context.Context, tenantID uuid.UUID, docType DocumentType, number string) (bool, error)

	// Save creates or updates the document header and replaces its line items
	Save(ctx context.Context, doc *Document) error

	// SaveBalance persists only balance, status and version after an allocation change
	SaveBalance(ctx context.Context, doc *Document) error
}
