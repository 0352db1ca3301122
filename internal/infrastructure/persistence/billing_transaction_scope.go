package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	appbilling "github.com/erp/billing/internal/application/billing"
	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/finance"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Postgres error codes that mean the transaction lost a race and may be retried
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// GormTransactionScope implements the billing TransactionScope using GORM
// transactions. Every Execute is one database transaction.
type GormTransactionScope struct {
	db          *gorm.DB
	outboxSaver shared.OutboxEventSaver
	lockTimeout time.Duration
}

// TransactionScopeOption configures a GormTransactionScope
type TransactionScopeOption func(*GormTransactionScope)

// WithOutboxEventSaver makes the scoped repositories write domain events to the outbox
func WithOutboxEventSaver(saver shared.OutboxEventSaver) TransactionScopeOption {
	return func(s *GormTransactionScope) {
		s.outboxSaver = saver
	}
}

// WithLockTimeout bounds how long a transaction waits for a row lock (postgres only)
func WithLockTimeout(timeout time.Duration) TransactionScopeOption {
	return func(s *GormTransactionScope) {
		s.lockTimeout = timeout
	}
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB, opts ...TransactionScopeOption) *GormTransactionScope {
	s := &GormTransactionScope{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute runs fn within a database transaction. If fn returns an error the
// transaction is rolled back; otherwise it is committed. Cancellation and
// lock or serialization failures come back as shared.ErrAborted.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appbilling.TransactionalRepositories) error) error {
	if err := ctx.Err(); err != nil {
		return TranslateTxError(err)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.lockTimeout > 0 && tx.Dialector.Name() == "postgres" {
			if err := tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())).Error; err != nil {
				return err
			}
		}
		return fn(&gormTransactionalRepositories{tx: tx, outboxSaver: s.outboxSaver})
	})
	return TranslateTxError(err)
}

// TranslateTxError maps transient transaction failures to shared.ErrAborted
// and passes every other error through unchanged.
func TranslateTxError(err error) error {
	if err == nil {
		return nil
	}
	if shared.ErrorCode(err) != "" {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", shared.ErrAborted, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return fmt.Errorf("%w: %s", shared.ErrAborted, pgErr.Message)
		}
	}
	return err
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx          *gorm.DB
	outboxSaver shared.OutboxEventSaver
}

// Documents returns the document repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Documents() billing.DocumentRepository {
	repo := NewGormDocumentRepository(r.tx)
	repo.SetOutboxEventSaver(r.outboxSaver)
	return repo
}

// Payments returns the payment repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Payments() finance.PaymentRepository {
	repo := NewGormPaymentRepository(r.tx)
	repo.SetOutboxEventSaver(r.outboxSaver)
	return repo
}

// Ledger returns the ledger repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Ledger() finance.LedgerRepository {
	return NewGormLedgerRepository(r.tx)
}

var (
	_ appbilling.TransactionScope          = (*GormTransactionScope)(nil)
	_ appbilling.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
)
