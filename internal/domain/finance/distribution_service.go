package finance

import (
	"fmt"
	"time"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DistributionService settles a payment against the documents it names.
// It only works on the billing.Settleable capability, so every document type
// that carries a balance is reconciled by the same code.
//
// Callers must load every target with an exclusive row lock (see LockOrder)
// and run Apply and Reverse inside the transaction that persists the result:
// a failure here leaves already mutated targets in memory and the caller is
// expected to roll back.
type DistributionService struct {
	policy billing.AllocationPolicy
}

// DistributionServiceOption configures a DistributionService
type DistributionServiceOption func(*DistributionService)

// WithAllocationPolicy sets the tenant allocation policy
func WithAllocationPolicy(policy billing.AllocationPolicy) DistributionServiceOption {
	return func(s *DistributionService) {
		s.policy = policy
	}
}

// NewDistributionService creates a new distribution service
func NewDistributionService(opts ...DistributionServiceOption) *DistributionService {
	s := &DistributionService{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply validates the whole allocation set against the payment and the
// locked targets, then settles each target. Nothing is mutated unless every
// allocation passes validation.
func (s *DistributionService) Apply(
	actor shared.Principal,
	payment *Payment,
	requests []AllocationRequest,
	targets map[uuid.UUID]billing.Settleable,
) error {
	if err := s.validate(payment, requests, targets); err != nil {
		return err
	}
	if len(requests) == 0 {
		return nil
	}

	now := time.Now()
	allocations := make([]PaymentAllocation, 0, len(requests))
	for _, id := range LockOrder(requests, nil) {
		req := findRequest(requests, id)
		target := targets[id]
		if err := target.ApplyAllocation(actor, req.Value); err != nil {
			return err
		}
		allocations = append(allocations, PaymentAllocation{
			ID:             uuid.New(),
			TenantID:       payment.TenantID,
			PaymentID:      payment.ID,
			DocumentID:     id,
			DocumentType:   target.GetType(),
			DocumentNumber: target.GetNumber(),
			Value:          req.Value,
			CreatedAt:      now,
		})
	}

	payment.setAllocations(allocations)
	payment.MarkChanged(actor)
	payment.AddDomainEvent(NewPaymentAllocatedEvent(payment, actor))
	return nil
}

// validate is the dry-run pass of Apply
func (s *DistributionService) validate(
	payment *Payment,
	requests []AllocationRequest,
	targets map[uuid.UUID]billing.Settleable,
) error {
	if payment == nil {
		return shared.NewDomainError("INVALID_INPUT", "Payment is required")
	}
	if payment.IsDeleted() {
		return shared.NewDomainError("INVALID_STATE", "Cannot allocate a deleted payment")
	}
	if len(payment.Allocations) > 0 {
		return shared.NewDomainError("INVALID_STATE", "Payment allocations must be reversed before a new set is applied")
	}
	if len(requests) > 0 && payment.Mode == ModeAdvance {
		return shared.NewDomainError("INVALID_ALLOCATION", "Advance payments cannot be allocated to documents")
	}

	seen := make(map[uuid.UUID]struct{}, len(requests))
	for _, req := range requests {
		if !req.Value.IsPositive() {
			return shared.NewDomainError("INVALID_ALLOCATION",
				fmt.Sprintf("Allocation to document %s must be positive", req.DocumentID))
		}
		if req.Value.Exponent() < -2 {
			return shared.NewDomainError("INVALID_ALLOCATION",
				fmt.Sprintf("Allocation to document %s has more than 2 decimal places", req.DocumentID))
		}
		if _, dup := seen[req.DocumentID]; dup {
			return shared.NewDomainError("INVALID_ALLOCATION",
				fmt.Sprintf("Document %s is allocated more than once", req.DocumentID))
		}
		seen[req.DocumentID] = struct{}{}
	}

	if total := SumRequests(requests); total.GreaterThan(payment.Amount) {
		return shared.NewDomainError(shared.CodeOverAllocation,
			fmt.Sprintf("Allocations total %s but the payment is %s", total.StringFixed(2), payment.Amount.StringFixed(2)))
	}

	for _, req := range requests {
		target, ok := targets[req.DocumentID]
		if !ok || target == nil || target.IsDeleted() {
			return mismatch(req.DocumentID, "does not exist")
		}
		if target.GetTenantID() != payment.TenantID {
			return mismatch(req.DocumentID, "does not exist")
		}
		if target.GetCounterpartyID() != payment.CounterpartyID {
			return mismatch(req.DocumentID, "belongs to a different counterparty")
		}
		if req.DocumentType != "" && req.DocumentType != target.GetType() {
			return mismatch(req.DocumentID, fmt.Sprintf("is a %s, not a %s", target.GetType(), req.DocumentType))
		}
		if target.GetType() != payment.Direction.SettlesType() {
			return mismatch(req.DocumentID, fmt.Sprintf("is a %s and cannot be settled by a %s payment",
				target.GetType(), payment.Direction))
		}
		if err := target.CheckAcceptsAllocation(s.policy); err != nil {
			return err
		}
		if req.Value.GreaterThan(target.GetBalance()) {
			return shared.NewDomainError(shared.CodeOverPayment,
				fmt.Sprintf("Allocation %s exceeds balance %s of document %s",
					req.Value.StringFixed(2), target.GetBalance().StringFixed(2), target.GetNumber()))
		}
	}
	return nil
}

// Reverse adds every allocation of the payment back to its document,
// whatever the document's current status, and clears the payment's
// allocation set. The removed allocations are returned so the caller can
// delete their rows.
func (s *DistributionService) Reverse(
	actor shared.Principal,
	payment *Payment,
	targets map[uuid.UUID]billing.Settleable,
) ([]PaymentAllocation, error) {
	if payment == nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Payment is required")
	}
	removed := payment.Allocations
	if len(removed) == 0 {
		return nil, nil
	}

	for _, a := range removed {
		if target, ok := targets[a.DocumentID]; !ok || target == nil {
			return nil, mismatch(a.DocumentID, "was not loaded for reversal")
		}
	}

	for _, id := range LockOrder(nil, removed) {
		value := decimal.Zero
		for _, a := range removed {
			if a.DocumentID == id {
				value = value.Add(a.Value)
			}
		}
		if err := targets[id].RevertAllocation(actor, value); err != nil {
			return nil, err
		}
	}

	reversed := SumAllocations(removed)
	payment.setAllocations(nil)
	payment.MarkChanged(actor)
	payment.AddDomainEvent(NewPaymentReversedEvent(payment, actor, removed, reversed))
	return removed, nil
}

func findRequest(requests []AllocationRequest, id uuid.UUID) AllocationRequest {
	for _, r := range requests {
		if r.DocumentID == id {
			return r
		}
	}
	return AllocationRequest{}
}

func mismatch(id uuid.UUID, reason string) error {
	return shared.NewDomainError(shared.CodeDocumentMismatch, fmt.Sprintf("Document %s %s", id, reason))
}
