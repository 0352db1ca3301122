package finance

import (
	"context"
	"errors"
	"fmt"
	"slices"

	appbilling "github.com/erp/billing/internal/application/billing"
	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/finance"
	"github.com/erp/billing/internal/domain/partner"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// PaymentService records payments and distributes them over documents.
//
// Every mutation locks the affected documents in ascending id order and only
// then the payment row, so two requests touching overlapping documents always
// queue on the same first lock instead of deadlocking.
type PaymentService struct {
	scope        appbilling.TransactionScope
	payments     finance.PaymentRepository
	parties      partner.Reader
	distribution *finance.DistributionService
	guard        *appbilling.RequestGuard
	metrics      *telemetry.BillingMetrics
	logger       *zap.Logger
	// maxAllocations caps explicit allocations per request, 0 means unlimited
	maxAllocations int
}

// PaymentServiceOption configures a PaymentService
type PaymentServiceOption func(*PaymentService)

// WithRequestGuard enables Idempotency-Key handling
func WithRequestGuard(guard *appbilling.RequestGuard) PaymentServiceOption {
	return func(s *PaymentService) {
		s.guard = guard
	}
}

// WithMetrics sets the billing metrics recorder
func WithMetrics(metrics *telemetry.BillingMetrics) PaymentServiceOption {
	return func(s *PaymentService) {
		s.metrics = metrics
	}
}

// WithAllocationLimit rejects requests carrying more than limit allocations
func WithAllocationLimit(limit int) PaymentServiceOption {
	return func(s *PaymentService) {
		s.maxAllocations = limit
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) PaymentServiceOption {
	return func(s *PaymentService) {
		s.logger = logger
	}
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	scope appbilling.TransactionScope,
	payments finance.PaymentRepository,
	parties partner.Reader,
	distribution *finance.DistributionService,
	opts ...PaymentServiceOption,
) *PaymentService {
	if distribution == nil {
		distribution = finance.NewDistributionService()
	}
	s := &PaymentService{
		scope:        scope,
		payments:     payments,
		parties:      parties,
		distribution: distribution,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create records a payment, applies its allocations and posts the ledger credit
func (s *PaymentService) Create(ctx context.Context, actor shared.Principal, req PaymentRequest, idempotencyKey string) (*PaymentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "create")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, actor.TenantID.String(),
		telemetry.SpanAttrCounterpartyID, req.CounterpartyID.String(),
	)

	if err := actor.Validate(); err != nil {
		return nil, err
	}

	var (
		payment *finance.Payment
		touched map[uuid.UUID]*billing.Document
	)
	err := s.guard.Run(ctx, actor.TenantID, "payment.create", idempotencyKey, func() error {
		if err := s.checkCounterparty(ctx, actor.TenantID, req); err != nil {
			return err
		}
		var err error
		payment, err = finance.NewPayment(actor, req.input())
		if err != nil {
			return err
		}

		return s.scope.Execute(ctx, func(repos appbilling.TransactionalRepositories) error {
			exists, err := repos.Payments().ExistsByNumber(ctx, actor.TenantID, payment.Number)
			if err != nil {
				return err
			}
			if exists {
				return shared.NewDomainError("ALREADY_EXISTS", fmt.Sprintf("Payment %s already exists", payment.Number))
			}

			plan, err := s.plan(ctx, repos, actor.TenantID, payment, req)
			if err != nil {
				return err
			}
			touched, err = lockDocuments(ctx, repos, actor.TenantID, plan.lockIDs)
			if err != nil {
				return err
			}
			if err := s.distribute(actor, payment, plan, touched); err != nil {
				return err
			}
			return persist(ctx, repos, actor, payment, touched)
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordFailure(ctx, actor.TenantID, "payment.create", err)
		return nil, err
	}

	s.metrics.RecordPaymentApplied(ctx, actor.TenantID, string(payment.Direction), payment.Amount, payment.AmountUsedForAllocations)
	s.logger.Info("Payment recorded",
		zap.String("tenant_id", actor.TenantID.String()),
		zap.String("payment_id", payment.ID.String()),
		zap.String("number", payment.Number),
		zap.String("amount", payment.Amount.StringFixed(2)),
		zap.Int("allocations", len(payment.Allocations)))

	return toResponse(payment, touched), nil
}

// Update reverses every existing allocation, revises the payment and applies
// the new allocation set in one transaction. Any failure leaves the payment
// and all documents exactly as they were.
func (s *PaymentService) Update(ctx context.Context, actor shared.Principal, id uuid.UUID, req PaymentRequest) (*PaymentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "update")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, actor.TenantID.String(),
		telemetry.SpanAttrPaymentID, id.String(),
	)

	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkCounterparty(ctx, actor.TenantID, req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var (
		payment *finance.Payment
		touched map[uuid.UUID]*billing.Document
	)
	err := s.scope.Execute(ctx, func(repos appbilling.TransactionalRepositories) error {
		current, err := repos.Payments().FindByID(ctx, actor.TenantID, id)
		if err != nil {
			return err
		}

		revised := *current
		revised.CounterpartyID = req.CounterpartyID
		revised.Direction = finance.Direction(req.Direction)
		plan, err := s.plan(ctx, repos, actor.TenantID, &revised, req)
		if err != nil {
			return err
		}

		touched, err = lockDocuments(ctx, repos, actor.TenantID, plan.lockIDs)
		if err != nil {
			return err
		}
		payment, err = lockPayment(ctx, repos, actor.TenantID, id, plan.lockIDs)
		if err != nil {
			return err
		}

		if _, err := s.distribution.Reverse(actor, payment, settleables(touched)); err != nil {
			return err
		}

		in := req.input()
		if in.Number != "" && in.Number != payment.Number {
			exists, err := repos.Payments().ExistsByNumber(ctx, actor.TenantID, in.Number)
			if err != nil {
				return err
			}
			if exists {
				return shared.NewDomainError("ALREADY_EXISTS", fmt.Sprintf("Payment %s already exists", in.Number))
			}
		}
		if err := payment.Revise(actor, in); err != nil {
			return err
		}

		if err := s.distribute(actor, payment, plan, touched); err != nil {
			return err
		}
		if _, err := repos.Ledger().DeleteByReference(ctx, actor.TenantID, finance.LedgerKindPayment, payment.ID); err != nil {
			return err
		}
		return persist(ctx, repos, actor, payment, touched)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordFailure(ctx, actor.TenantID, "payment.update", err)
		return nil, err
	}

	s.logger.Info("Payment updated",
		zap.String("tenant_id", actor.TenantID.String()),
		zap.String("payment_id", payment.ID.String()),
		zap.Int("allocations", len(payment.Allocations)))

	return toResponse(payment, touched), nil
}

// Delete reverses every allocation of a payment, removes its ledger entry
// and soft-deletes it
func (s *PaymentService) Delete(ctx context.Context, actor shared.Principal, id uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "delete")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, actor.TenantID.String(),
		telemetry.SpanAttrPaymentID, id.String(),
	)

	if err := actor.Validate(); err != nil {
		return err
	}

	err := s.scope.Execute(ctx, func(repos appbilling.TransactionalRepositories) error {
		current, err := repos.Payments().FindByID(ctx, actor.TenantID, id)
		if err != nil {
			return err
		}
		lockIDs := finance.LockOrder(nil, current.Allocations)
		touched, err := lockDocuments(ctx, repos, actor.TenantID, lockIDs)
		if err != nil {
			return err
		}
		payment, err := lockPayment(ctx, repos, actor.TenantID, id, lockIDs)
		if err != nil {
			return err
		}

		if _, err := s.distribution.Reverse(actor, payment, settleables(touched)); err != nil {
			return err
		}
		if err := payment.Delete(actor); err != nil {
			return err
		}
		if _, err := repos.Ledger().DeleteByReference(ctx, actor.TenantID, finance.LedgerKindPayment, payment.ID); err != nil {
			return err
		}
		if err := repos.Payments().Save(ctx, payment); err != nil {
			return err
		}
		return saveBalances(ctx, repos, touched)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordFailure(ctx, actor.TenantID, "payment.delete", err)
		return err
	}

	s.logger.Info("Payment deleted",
		zap.String("tenant_id", actor.TenantID.String()),
		zap.String("payment_id", id.String()))
	return nil
}

// GetByID returns a live payment with its allocations
func (s *PaymentService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*PaymentResponse, error) {
	payment, err := s.payments.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return toResponse(payment, nil), nil
}

// List returns one page of payments and the total count
func (s *PaymentService) List(ctx context.Context, tenantID uuid.UUID, filter PaymentListFilter) ([]PaymentResponse, int64, error) {
	payments, total, err := s.payments.FindAll(ctx, tenantID, filter.toDomain())
	if err != nil {
		return nil, 0, err
	}
	out := make([]PaymentResponse, len(payments))
	for i := range payments {
		out[i] = ToPaymentResponse(&payments[i])
	}
	return out, total, nil
}

// checkCounterparty verifies the counterparty exists and matches the direction
func (s *PaymentService) checkCounterparty(ctx context.Context, tenantID uuid.UUID, req PaymentRequest) error {
	cp, err := s.parties.FindCounterparty(ctx, tenantID, req.CounterpartyID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NewDomainError("INVALID_COUNTERPARTY", "Counterparty not found")
		}
		return err
	}
	direction := finance.Direction(req.Direction)
	if direction.IsValid() && cp.Kind != direction.CounterpartyKind() {
		return shared.NewDomainError("INVALID_COUNTERPARTY",
			fmt.Sprintf("A %s payment needs a %s counterparty, got %s", direction, direction.CounterpartyKind(), cp.Kind))
	}
	return nil
}

// allocationPlan is what a mutation will lock and apply
type allocationPlan struct {
	requests []finance.AllocationRequest
	// auto lists the documents FIFO allocation may pick from; the values are
	// computed after the locks are held and existing allocations reversed
	auto    []uuid.UUID
	lockIDs []uuid.UUID
}

// plan decides which documents to lock. Explicit allocations win over
// AutoAllocate; advance payments never auto-allocate.
func (s *PaymentService) plan(
	ctx context.Context,
	repos appbilling.TransactionalRepositories,
	tenantID uuid.UUID,
	payment *finance.Payment,
	req PaymentRequest,
) (allocationPlan, error) {
	if s.maxAllocations > 0 && len(req.Allocations) > s.maxAllocations {
		return allocationPlan{}, shared.NewDomainError("INVALID_INPUT",
			fmt.Sprintf("A payment can carry at most %d allocations per request, got %d", s.maxAllocations, len(req.Allocations)))
	}
	plan := allocationPlan{requests: req.allocationRequests()}
	if len(plan.requests) == 0 && req.AutoAllocate && finance.Mode(req.Mode) != finance.ModeAdvance {
		docs, err := repos.Documents().FindOutstanding(ctx, tenantID, payment.CounterpartyID, payment.Direction.SettlesType())
		if err != nil {
			return allocationPlan{}, err
		}
		plan.auto = lo.Map(docs, func(d billing.Document, _ int) uuid.UUID { return d.ID })
		// previously allocated documents may be fully paid and so not outstanding
		plan.auto = lo.Uniq(append(plan.auto, lo.Map(payment.Allocations, func(a finance.PaymentAllocation, _ int) uuid.UUID {
			return a.DocumentID
		})...))
	}

	existing := slices.Clone(payment.Allocations)
	for _, id := range plan.auto {
		existing = append(existing, finance.PaymentAllocation{DocumentID: id})
	}
	plan.lockIDs = finance.LockOrder(plan.requests, existing)
	return plan, nil
}

// distribute applies the planned allocations. Auto allocation is resolved
// here against the locked and already reversed balances.
func (s *PaymentService) distribute(
	actor shared.Principal,
	payment *finance.Payment,
	plan allocationPlan,
	locked map[uuid.UUID]*billing.Document,
) error {
	requests := plan.requests
	if len(plan.auto) > 0 {
		requests = finance.SuggestFIFO(payment.Amount, outstanding(payment, plan.auto, locked))
	}
	return s.distribution.Apply(actor, payment, requests, settleables(locked))
}

// outstanding lists the locked candidates that can still take an allocation
func outstanding(payment *finance.Payment, candidates []uuid.UUID, locked map[uuid.UUID]*billing.Document) []finance.OutstandingDocument {
	out := make([]finance.OutstandingDocument, 0, len(candidates))
	for _, id := range candidates {
		d, ok := locked[id]
		if !ok || d.IsDeleted() || d.Locked || d.Status == billing.StatusCancelled {
			continue
		}
		if d.CounterpartyID != payment.CounterpartyID || d.Type != payment.Direction.SettlesType() {
			continue
		}
		out = append(out, finance.OutstandingDocument{
			ID:        d.ID,
			Type:      d.Type,
			Number:    d.Number,
			Balance:   d.Balance,
			IssueDate: d.IssueDate,
			DueDate:   d.DueDate,
		})
	}
	return out
}

// lockDocuments takes row locks in the given order. Ids that do not resolve
// are left out so the distribution engine reports them as mismatches.
func lockDocuments(
	ctx context.Context,
	repos appbilling.TransactionalRepositories,
	tenantID uuid.UUID,
	ids []uuid.UUID,
) (map[uuid.UUID]*billing.Document, error) {
	locked := make(map[uuid.UUID]*billing.Document, len(ids))
	for _, id := range ids {
		doc, err := repos.Documents().FindByIDForUpdate(ctx, tenantID, id)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				continue
			}
			return nil, err
		}
		locked[id] = doc
	}
	return locked, nil
}

// lockPayment locks the payment row after its documents. If the allocation
// set changed between the unlocked read and the lock, the locks held do not
// cover it and the caller must retry.
func lockPayment(
	ctx context.Context,
	repos appbilling.TransactionalRepositories,
	tenantID, id uuid.UUID,
	lockedIDs []uuid.UUID,
) (*finance.Payment, error) {
	payment, err := repos.Payments().FindByIDForUpdate(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if payment.IsDeleted() {
		return nil, shared.ErrNotFound
	}
	for _, a := range payment.Allocations {
		if !slices.Contains(lockedIDs, a.DocumentID) {
			return nil, shared.ErrAborted
		}
	}
	return payment, nil
}

// persist saves the payment, the new document balances and the ledger credit
func persist(
	ctx context.Context,
	repos appbilling.TransactionalRepositories,
	actor shared.Principal,
	payment *finance.Payment,
	touched map[uuid.UUID]*billing.Document,
) error {
	if err := repos.Payments().Save(ctx, payment); err != nil {
		return err
	}
	if err := saveBalances(ctx, repos, touched); err != nil {
		return err
	}
	entry, err := finance.PaymentLedgerEntry(actor, payment)
	if err != nil || entry == nil {
		return err
	}
	return repos.Ledger().Append(ctx, entry)
}

func saveBalances(ctx context.Context, repos appbilling.TransactionalRepositories, docs map[uuid.UUID]*billing.Document) error {
	ids := lo.Keys(docs)
	slices.SortFunc(ids, compareIDs)
	for _, id := range ids {
		if len(docs[id].GetDomainEvents()) == 0 {
			continue
		}
		if err := repos.Documents().SaveBalance(ctx, docs[id]); err != nil {
			return err
		}
	}
	return nil
}

func settleables(docs map[uuid.UUID]*billing.Document) map[uuid.UUID]billing.Settleable {
	out := make(map[uuid.UUID]billing.Settleable, len(docs))
	for id, d := range docs {
		out[id] = d
	}
	return out
}

func compareIDs(a, b uuid.UUID) int {
	return slices.Compare(a[:], b[:])
}

func toResponse(payment *finance.Payment, touched map[uuid.UUID]*billing.Document) *PaymentResponse {
	resp := ToPaymentResponse(payment)
	ids := lo.Keys(touched)
	slices.SortFunc(ids, compareIDs)
	for _, id := range ids {
		d := touched[id]
		resp.Documents = append(resp.Documents, DocumentBalanceResponse{
			DocumentID: d.ID,
			Number:     d.Number,
			Total:      d.Total,
			Balance:    d.Balance,
			Status:     d.Status.String(),
		})
	}
	return &resp
}
