package billing

import (
	"fmt"

	"github.com/erp/billing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a document
type Status string

const (
	StatusOpen          Status = "OPEN"
	StatusPartiallyPaid Status = "PARTIALLY_PAID"
	StatusPaid          Status = "PAID"
	StatusCancelled     Status = "CANCELLED"
	StatusDeleted       Status = "DELETED"
)

// transitions lists the legal target states of each state
var transitions = map[Status][]Status{
	StatusOpen:          {StatusPartiallyPaid, StatusPaid, StatusCancelled, StatusDeleted},
	StatusPartiallyPaid: {StatusOpen, StatusPaid, StatusDeleted},
	StatusPaid:          {StatusOpen, StatusPartiallyPaid, StatusDeleted},
	StatusCancelled:     {StatusDeleted},
	StatusDeleted:       {},
}

// IsValid checks if the status is known
func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// CanTransitionTo reports whether moving from s to target is allowed
func (s Status) CanTransitionTo(target Status) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true for states a document never leaves by settlement
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusDeleted
}

// IsSettlement returns true for the states derived from balance arithmetic
func (s Status) IsSettlement() bool {
	return s == StatusOpen || s == StatusPartiallyPaid || s == StatusPaid
}

// SettlementStatus derives the settlement state from balance and total:
// nothing left to pay is PAID, untouched is OPEN, anything between is PARTIALLY_PAID.
func SettlementStatus(balance, total decimal.Decimal) Status {
	switch {
	case balance.LessThanOrEqual(decimal.Zero):
		return StatusPaid
	case balance.LessThan(total):
		return StatusPartiallyPaid
	default:
		return StatusOpen
	}
}

func transitionError(from, to Status) error {
	return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot move document from %s to %s", from, to))
}
