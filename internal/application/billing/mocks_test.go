package billing

import (
	"context"
	"time"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/catalog"
	"github.com/erp/billing/internal/domain/finance"
	"github.com/erp/billing/internal/domain/partner"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockDocumentRepository is a mock implementation of billing.DocumentRepository
type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*billing.Document, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Document), args.Error(1)
}

func (m *MockDocumentRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*billing.Document, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Document), args.Error(1)
}

func (m *MockDocumentRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter billing.DocumentFilter) ([]billing.Document, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]billing.Document), args.Get(1).(int64), args.Error(2)
}

func (m *MockDocumentRepository) FindOutstanding(ctx context.Context, tenantID, counterpartyID uuid.UUID, docType billing.DocumentType) ([]billing.Document, error) {
	args := m.Called(ctx, tenantID, counterpartyID, docType)
	return args.Get(0).([]billing.Document), args.Error(1)
}

func (m *MockDocumentRepository) ExistsByNumber(ctx context.Context, tenantID uuid.UUID, docType billing.DocumentType, number string) (bool, error) {
	args := m.Called(ctx, tenantID, docType, number)
	return args.Bool(0), args.Error(1)
}

func (m *MockDocumentRepository) Save(ctx context.Context, doc *billing.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentRepository) SaveBalance(ctx context.Context, doc *billing.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

// MockPaymentRepository is a mock implementation of finance.PaymentRepository
type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*finance.Payment, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*finance.Payment, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter finance.PaymentFilter) ([]finance.Payment, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]finance.Payment), args.Get(1).(int64), args.Error(2)
}

func (m *MockPaymentRepository) ExistsByNumber(ctx context.Context, tenantID uuid.UUID, number string) (bool, error) {
	args := m.Called(ctx, tenantID, number)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentRepository) Save(ctx context.Context, payment *finance.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) CountAllocationsForDocument(ctx context.Context, tenantID, documentID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID, documentID)
	return args.Get(0).(int64), args.Error(1)
}

// MockLedgerRepository is a mock implementation of finance.LedgerRepository
type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) Append(ctx context.Context, entries ...*finance.LedgerEntry) error {
	args := m.Called(ctx, entries)
	return args.Error(0)
}

func (m *MockLedgerRepository) FindByCounterparty(ctx context.Context, tenantID, counterpartyID uuid.UUID, filter finance.LedgerFilter) ([]finance.LedgerEntry, int64, error) {
	args := m.Called(ctx, tenantID, counterpartyID, filter)
	return args.Get(0).([]finance.LedgerEntry), args.Get(1).(int64), args.Error(2)
}

func (m *MockLedgerRepository) OpeningBalance(ctx context.Context, tenantID, counterpartyID uuid.UUID, filter finance.LedgerFilter) (decimal.Decimal, error) {
	args := m.Called(ctx, tenantID, counterpartyID, filter)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockLedgerRepository) Balance(ctx context.Context, tenantID, counterpartyID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, tenantID, counterpartyID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockLedgerRepository) DeleteByReference(ctx context.Context, tenantID uuid.UUID, kind finance.LedgerKind, referenceID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID, kind, referenceID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerRepository) DeleteOpeningBalance(ctx context.Context, tenantID, counterpartyID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID, counterpartyID)
	return args.Get(0).(int64), args.Error(1)
}

// MockItemReader is a mock implementation of catalog.ItemReader
type MockItemReader struct {
	mock.Mock
}

func (m *MockItemReader) FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]*catalog.Item, error) {
	args := m.Called(ctx, tenantID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]*catalog.Item), args.Error(1)
}

// MockPartnerReader is a mock implementation of partner.Reader
type MockPartnerReader struct {
	mock.Mock
}

func (m *MockPartnerReader) FindCounterparty(ctx context.Context, tenantID, id uuid.UUID) (*partner.Counterparty, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*partner.Counterparty), args.Error(1)
}

func (m *MockPartnerReader) FindCompany(ctx context.Context, tenantID uuid.UUID) (*partner.Company, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*partner.Company), args.Error(1)
}

// MockIdempotencyStore is a mock implementation of shared.IdempotencyStore
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Release(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockIdempotencyStore) Close() error {
	return m.Called().Error(0)
}
