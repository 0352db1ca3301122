package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/catalog"
	"github.com/erp/billing/internal/domain/finance"
	"github.com/erp/billing/internal/domain/partner"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Settings are the tenant-independent billing defaults
type Settings struct {
	// HomeJurisdiction is used when the tenant has no company profile
	HomeJurisdiction string
	// CessEnabled is the default when a request does not say
	CessEnabled bool
}

// DocumentService handles the lifecycle of billing documents
type DocumentService struct {
	scope     TransactionScope
	documents billing.DocumentRepository
	items     catalog.ItemReader
	parties   partner.Reader
	settings  Settings
	guard     *RequestGuard
	metrics   *telemetry.BillingMetrics
	logger    *zap.Logger
}

// DocumentServiceOption configures a DocumentService
type DocumentServiceOption func(*DocumentService)

// WithSettings sets the billing defaults
func WithSettings(settings Settings) DocumentServiceOption {
	return func(s *DocumentService) {
		s.settings = settings
	}
}

// WithRequestGuard enables Idempotency-Key handling
func WithRequestGuard(guard *RequestGuard) DocumentServiceOption {
	return func(s *DocumentService) {
		s.guard = guard
	}
}

// WithMetrics sets the billing metrics recorder
func WithMetrics(metrics *telemetry.BillingMetrics) DocumentServiceOption {
	return func(s *DocumentService) {
		s.metrics = metrics
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) DocumentServiceOption {
	return func(s *DocumentService) {
		s.logger = logger
	}
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(
	scope TransactionScope,
	documents billing.DocumentRepository,
	items catalog.ItemReader,
	parties partner.Reader,
	opts ...DocumentServiceOption,
) *DocumentService {
	s := &DocumentService{
		scope:     scope,
		documents: documents,
		items:     items,
		parties:   parties,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create issues a new document and posts its ledger entry
func (s *DocumentService) Create(ctx context.Context, actor shared.Principal, req CreateDocumentRequest, idempotencyKey string) (*DocumentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "document", "create")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, actor.TenantID.String(),
		telemetry.SpanAttrDocumentType, req.Type,
		telemetry.SpanAttrCounterpartyID, req.CounterpartyID.String(),
	)

	if err := actor.Validate(); err != nil {
		return nil, err
	}

	var doc *billing.Document
	err := s.guard.Run(ctx, actor.TenantID, "document.create", idempotencyKey, func() error {
		header := req.header()
		parties, items, err := s.resolve(ctx, actor.TenantID, req.CounterpartyID, req.Items)
		if err != nil {
			return err
		}
		header.CessEnabled = s.cessEnabled(req.CessEnabled)

		doc, err = billing.NewDocument(actor, header, parties, lineRequests(req.Items), items)
		if err != nil {
			return err
		}

		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			exists, err := repos.Documents().ExistsByNumber(ctx, actor.TenantID, doc.Type, doc.Number)
			if err != nil {
				return err
			}
			if exists {
				return shared.NewDomainError("ALREADY_EXISTS", fmt.Sprintf("%s %s already exists", doc.Type, doc.Number))
			}
			if err := repos.Documents().Save(ctx, doc); err != nil {
				return err
			}
			return postDocumentLedger(ctx, repos, actor, doc)
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordFailure(ctx, actor.TenantID, "document.create", err)
		return nil, err
	}

	s.metrics.RecordDocumentIssued(ctx, actor.TenantID, doc.Type.String(), doc.Total)
	s.logger.Info("Document issued",
		zap.String("tenant_id", actor.TenantID.String()),
		zap.String("document_id", doc.ID.String()),
		zap.String("type", doc.Type.String()),
		zap.String("number", doc.Number),
		zap.String("total", doc.Total.StringFixed(2)))

	resp := ToDocumentResponse(doc)
	return &resp, nil
}

// Update replaces the header and all line items of a document. Payments
// already applied stay applied; the new balance is the new total minus them.
func (s *DocumentService) Update(ctx context.Context, actor shared.Principal, id uuid.UUID, req UpdateDocumentRequest) (*DocumentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "document", "update")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, actor.TenantID.String(),
		telemetry.SpanAttrDocumentID, id.String(),
	)

	if err := actor.Validate(); err != nil {
		return nil, err
	}
	parties, items, err := s.resolve(ctx, actor.TenantID, req.CounterpartyID, req.Items)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var doc *billing.Document
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		doc, err = lockLiveDocument(ctx, repos, actor.TenantID, id)
		if err != nil {
			return err
		}

		header := req.header(doc.Type)
		header.CessEnabled = s.cessEnabled(req.CessEnabled)
		if header.Number != "" && header.Number != doc.Number {
			exists, err := repos.Documents().ExistsByNumber(ctx, actor.TenantID, doc.Type, header.Number)
			if err != nil {
				return err
			}
			if exists {
				return shared.NewDomainError("ALREADY_EXISTS", fmt.Sprintf("%s %s already exists", doc.Type, header.Number))
			}
		}

		if err := doc.Revise(actor, header, parties, lineRequests(req.Items), items); err != nil {
			return err
		}
		if err := repos.Documents().Save(ctx, doc); err != nil {
			return err
		}
		if err := removeDocumentLedger(ctx, repos, doc); err != nil {
			return err
		}
		return postDocumentLedger(ctx, repos, actor, doc)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordFailure(ctx, actor.TenantID, "document.update", err)
		return nil, err
	}

	resp := ToDocumentResponse(doc)
	return &resp, nil
}

// Cancel voids an open, unpaid document and removes its ledger entry
func (s *DocumentService) Cancel(ctx context.Context, actor shared.Principal, id uuid.UUID, reason string) (*DocumentResponse, error) {
	return s.transition(ctx, actor, id, "cancel", func(repos TransactionalRepositories, doc *billing.Document) error {
		if err := doc.Cancel(actor, reason); err != nil {
			return err
		}
		if err := repos.Documents().Save(ctx, doc); err != nil {
			return err
		}
		return removeDocumentLedger(ctx, repos, doc)
	})
}

// Delete soft-deletes a document and its items. It fails with
// HAS_LINKED_PAYMENTS while any payment allocation still points at it.
func (s *DocumentService) Delete(ctx context.Context, actor shared.Principal, id uuid.UUID) error {
	_, err := s.transition(ctx, actor, id, "delete", func(repos TransactionalRepositories, doc *billing.Document) error {
		linked, err := repos.Payments().CountAllocationsForDocument(ctx, actor.TenantID, doc.ID)
		if err != nil {
			return err
		}
		if err := doc.Delete(actor, linked); err != nil {
			return err
		}
		if err := repos.Documents().Save(ctx, doc); err != nil {
			return err
		}
		return removeDocumentLedger(ctx, repos, doc)
	})
	return err
}

// Lock freezes a document against revisions and new allocations
func (s *DocumentService) Lock(ctx context.Context, actor shared.Principal, id uuid.UUID) (*DocumentResponse, error) {
	return s.transition(ctx, actor, id, "lock", func(repos TransactionalRepositories, doc *billing.Document) error {
		doc.Lock(actor)
		return repos.Documents().Save(ctx, doc)
	})
}

func (s *DocumentService) transition(
	ctx context.Context,
	actor shared.Principal,
	id uuid.UUID,
	operation string,
	fn func(repos TransactionalRepositories, doc *billing.Document) error,
) (*DocumentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "document", operation)
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, actor.TenantID.String(),
		telemetry.SpanAttrDocumentID, id.String(),
	)

	if err := actor.Validate(); err != nil {
		return nil, err
	}

	var doc *billing.Document
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		doc, err = lockLiveDocument(ctx, repos, actor.TenantID, id)
		if err != nil {
			return err
		}
		return fn(repos, doc)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordFailure(ctx, actor.TenantID, "document."+operation, err)
		return nil, err
	}

	s.logger.Info("Document "+operation,
		zap.String("tenant_id", actor.TenantID.String()),
		zap.String("document_id", id.String()),
		zap.String("status", doc.Status.String()))
	resp := ToDocumentResponse(doc)
	return &resp, nil
}

// GetByID returns a live document
func (s *DocumentService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*DocumentResponse, error) {
	doc, err := s.documents.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	resp := ToDocumentResponse(doc)
	return &resp, nil
}

// List returns one page of documents and the total count
func (s *DocumentService) List(ctx context.Context, tenantID uuid.UUID, filter DocumentListFilter) ([]DocumentListResponse, int64, error) {
	docs, total, err := s.documents.FindAll(ctx, tenantID, filter.toDomain())
	if err != nil {
		return nil, 0, err
	}
	out := make([]DocumentListResponse, len(docs))
	for i := range docs {
		out[i] = ToDocumentListResponse(&docs[i])
	}
	return out, total, nil
}

// resolve loads the counterparty, home jurisdiction and catalog items of a request
func (s *DocumentService) resolve(
	ctx context.Context,
	tenantID, counterpartyID uuid.UUID,
	lines []LineItemRequest,
) (billing.Parties, map[uuid.UUID]*catalog.Item, error) {
	cp, err := s.parties.FindCounterparty(ctx, tenantID, counterpartyID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return billing.Parties{}, nil, shared.NewDomainError("INVALID_COUNTERPARTY", "Counterparty not found")
		}
		return billing.Parties{}, nil, err
	}

	home := s.settings.HomeJurisdiction
	company, err := s.parties.FindCompany(ctx, tenantID)
	switch {
	case err == nil && company.Jurisdiction != "":
		home = company.Jurisdiction
	case err != nil && !errors.Is(err, shared.ErrNotFound):
		return billing.Parties{}, nil, err
	}

	items, err := s.items.FindByIDs(ctx, tenantID, itemIDs(lines))
	if err != nil {
		return billing.Parties{}, nil, err
	}
	return billing.Parties{Counterparty: cp, HomeJurisdiction: home}, items, nil
}

func (s *DocumentService) cessEnabled(requested *bool) bool {
	if requested != nil {
		return *requested
	}
	return s.settings.CessEnabled
}

// lockLiveDocument locks a document row and hides soft-deleted documents
func lockLiveDocument(ctx context.Context, repos TransactionalRepositories, tenantID, id uuid.UUID) (*billing.Document, error) {
	doc, err := repos.Documents().FindByIDForUpdate(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if doc.IsDeleted() {
		return nil, shared.ErrNotFound
	}
	return doc, nil
}

func postDocumentLedger(ctx context.Context, repos TransactionalRepositories, actor shared.Principal, doc *billing.Document) error {
	entry, err := finance.DocumentLedgerEntry(actor, doc)
	if err != nil || entry == nil {
		return err
	}
	return repos.Ledger().Append(ctx, entry)
}

func removeDocumentLedger(ctx context.Context, repos TransactionalRepositories, doc *billing.Document) error {
	kind, ok := finance.LedgerKindForDocument(doc.Type)
	if !ok {
		return nil
	}
	_, err := repos.Ledger().DeleteByReference(ctx, doc.TenantID, kind, doc.ID)
	return err
}
