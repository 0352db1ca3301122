package finance

import (
	"bytes"
	"slices"
	"time"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// AllocationRequest asks for value to be settled against one document
type AllocationRequest struct {
	DocumentID   uuid.UUID
	DocumentType billing.DocumentType
	Value        decimal.Decimal
}

// PaymentAllocation links a payment to a document it settled
type PaymentAllocation struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	PaymentID      uuid.UUID
	DocumentID     uuid.UUID
	DocumentType   billing.DocumentType
	DocumentNumber string
	Value          decimal.Decimal
	CreatedAt      time.Time
}

// SumRequests totals the requested values
func SumRequests(requests []AllocationRequest) decimal.Decimal {
	return lo.Reduce(requests, func(acc decimal.Decimal, r AllocationRequest, _ int) decimal.Decimal {
		return acc.Add(r.Value)
	}, decimal.Zero)
}

// SumAllocations totals the applied values
func SumAllocations(allocations []PaymentAllocation) decimal.Decimal {
	return lo.Reduce(allocations, func(acc decimal.Decimal, a PaymentAllocation, _ int) decimal.Decimal {
		return acc.Add(a.Value)
	}, decimal.Zero)
}

// LockOrder returns every document id touched by the given allocation sets,
// deduplicated and sorted. Rows must be locked in this order, before the
// payment row, so two transactions never wait on each other in a cycle.
func LockOrder(requests []AllocationRequest, existing []PaymentAllocation) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(requests)+len(existing))
	ids = append(ids, lo.Map(requests, func(r AllocationRequest, _ int) uuid.UUID { return r.DocumentID })...)
	ids = append(ids, lo.Map(existing, func(a PaymentAllocation, _ int) uuid.UUID { return a.DocumentID })...)
	ids = lo.Uniq(ids)
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
	return ids
}
