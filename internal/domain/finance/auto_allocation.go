package finance

import (
	"slices"
	"time"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OutstandingDocument is a settleable document still carrying a balance
type OutstandingDocument struct {
	ID        uuid.UUID
	Type      billing.DocumentType
	Number    string
	Balance   decimal.Decimal
	IssueDate time.Time
	DueDate   *time.Time
}

// SuggestFIFO spreads amount over the oldest outstanding documents first:
// earliest due date, documents without one after those, then issue date.
// The result can be fed straight to DistributionService.Apply.
func SuggestFIFO(amount decimal.Decimal, documents []OutstandingDocument) []AllocationRequest {
	if !amount.IsPositive() {
		return nil
	}
	sorted := slices.Clone(documents)
	slices.SortStableFunc(sorted, func(a, b OutstandingDocument) int {
		switch {
		case a.DueDate != nil && b.DueDate != nil:
			if c := a.DueDate.Compare(*b.DueDate); c != 0 {
				return c
			}
		case a.DueDate != nil:
			return -1
		case b.DueDate != nil:
			return 1
		}
		return a.IssueDate.Compare(b.IssueDate)
	})

	remaining := amount
	requests := make([]AllocationRequest, 0, len(sorted))
	for _, doc := range sorted {
		if remaining.IsZero() {
			break
		}
		if !doc.Balance.IsPositive() {
			continue
		}
		value := decimal.Min(remaining, doc.Balance)
		requests = append(requests, AllocationRequest{DocumentID: doc.ID, DocumentType: doc.Type, Value: value})
		remaining = remaining.Sub(value)
	}
	return requests
}
