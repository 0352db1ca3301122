package billing

import (
	"context"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/finance"
)

// TransactionScope provides transactional access to the billing repositories.
// All repository operations inside fn share one database transaction and are
// committed or rolled back together. A deadline, cancellation, lock timeout
// or serialization failure surfaces as shared.ErrAborted.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all billing repositories within a transaction.
//
// Documents and payments are separate aggregates. Balance changes caused by
// an allocation are written through DocumentRepository.SaveBalance so the
// line items are not rewritten.
type TransactionalRepositories interface {
	// Documents returns the document repository scoped to the current transaction
	Documents() billing.DocumentRepository
	// Payments returns the payment repository scoped to the current transaction
	Payments() finance.PaymentRepository
	// Ledger returns the append-only ledger repository scoped to the current transaction
	Ledger() finance.LedgerRepository
}

// NoOpTransactionScope runs fn against plain repositories without a transaction.
// It is useful for tests.
type NoOpTransactionScope struct {
	documents billing.DocumentRepository
	payments  finance.PaymentRepository
	ledger    finance.LedgerRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	documents billing.DocumentRepository,
	payments finance.PaymentRepository,
	ledger finance.LedgerRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{documents: documents, payments: payments, ledger: ledger}
}

// Execute runs the function without a real transaction.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

func (s *NoOpTransactionScope) Documents() billing.DocumentRepository { return s.documents }
func (s *NoOpTransactionScope) Payments() finance.PaymentRepository   { return s.payments }
func (s *NoOpTransactionScope) Ledger() finance.LedgerRepository      { return s.ledger }

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
