package handler

import (
	"context"

	billingapp "github.com/erp/billing/internal/application/billing"
	eventapp "github.com/erp/billing/internal/application/event"
	financeapp "github.com/erp/billing/internal/application/finance"
	"github.com/erp/billing/internal/application/printing"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockDocuments struct {
	mock.Mock
}

func (m *MockDocuments) Create(ctx context.Context, actor shared.Principal, req billingapp.CreateDocumentRequest, key string) (*billingapp.DocumentResponse, error) {
	args := m.Called(ctx, actor, req, key)
	doc, _ := args.Get(0).(*billingapp.DocumentResponse)
	return doc, args.Error(1)
}

func (m *MockDocuments) Update(ctx context.Context, actor shared.Principal, id uuid.UUID, req billingapp.UpdateDocumentRequest) (*billingapp.DocumentResponse, error) {
	args := m.Called(ctx, actor, id, req)
	doc, _ := args.Get(0).(*billingapp.DocumentResponse)
	return doc, args.Error(1)
}

func (m *MockDocuments) Cancel(ctx context.Context, actor shared.Principal, id uuid.UUID, reason string) (*billingapp.DocumentResponse, error) {
	args := m.Called(ctx, actor, id, reason)
	doc, _ := args.Get(0).(*billingapp.DocumentResponse)
	return doc, args.Error(1)
}

func (m *MockDocuments) Lock(ctx context.Context, actor shared.Principal, id uuid.UUID) (*billingapp.DocumentResponse, error) {
	args := m.Called(ctx, actor, id)
	doc, _ := args.Get(0).(*billingapp.DocumentResponse)
	return doc, args.Error(1)
}

func (m *MockDocuments) Delete(ctx context.Context, actor shared.Principal, id uuid.UUID) error {
	return m.Called(ctx, actor, id).Error(0)
}

func (m *MockDocuments) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*billingapp.DocumentResponse, error) {
	args := m.Called(ctx, tenantID, id)
	doc, _ := args.Get(0).(*billingapp.DocumentResponse)
	return doc, args.Error(1)
}

func (m *MockDocuments) List(ctx context.Context, tenantID uuid.UUID, filter billingapp.DocumentListFilter) ([]billingapp.DocumentListResponse, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	docs, _ := args.Get(0).([]billingapp.DocumentListResponse)
	return docs, args.Get(1).(int64), args.Error(2)
}

type MockPrinter struct {
	mock.Mock
}

func (m *MockPrinter) Render(ctx context.Context, tenantID, documentID uuid.UUID) (*printing.DocumentPDF, error) {
	args := m.Called(ctx, tenantID, documentID)
	pdf, _ := args.Get(0).(*printing.DocumentPDF)
	return pdf, args.Error(1)
}

func (m *MockPrinter) Archive(ctx context.Context, tenantID, documentID uuid.UUID) (*printing.DocumentPDF, error) {
	args := m.Called(ctx, tenantID, documentID)
	pdf, _ := args.Get(0).(*printing.DocumentPDF)
	return pdf, args.Error(1)
}

type MockPayments struct {
	mock.Mock
}

func (m *MockPayments) Create(ctx context.Context, actor shared.Principal, req financeapp.PaymentRequest, key string) (*financeapp.PaymentResponse, error) {
	args := m.Called(ctx, actor, req, key)
	p, _ := args.Get(0).(*financeapp.PaymentResponse)
	return p, args.Error(1)
}

func (m *MockPayments) Update(ctx context.Context, actor shared.Principal, id uuid.UUID, req financeapp.PaymentRequest) (*financeapp.PaymentResponse, error) {
	args := m.Called(ctx, actor, id, req)
	p, _ := args.Get(0).(*financeapp.PaymentResponse)
	return p, args.Error(1)
}

func (m *MockPayments) Delete(ctx context.Context, actor shared.Principal, id uuid.UUID) error {
	return m.Called(ctx, actor, id).Error(0)
}

func (m *MockPayments) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*financeapp.PaymentResponse, error) {
	args := m.Called(ctx, tenantID, id)
	p, _ := args.Get(0).(*financeapp.PaymentResponse)
	return p, args.Error(1)
}

func (m *MockPayments) List(ctx context.Context, tenantID uuid.UUID, filter financeapp.PaymentListFilter) ([]financeapp.PaymentResponse, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	ps, _ := args.Get(0).([]financeapp.PaymentResponse)
	return ps, args.Get(1).(int64), args.Error(2)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) RunningBalance(ctx context.Context, tenantID, counterpartyID uuid.UUID, query financeapp.LedgerQuery) (*financeapp.StatementResponse, error) {
	args := m.Called(ctx, tenantID, counterpartyID, query)
	st, _ := args.Get(0).(*financeapp.StatementResponse)
	return st, args.Error(1)
}

func (m *MockLedger) CurrentBalance(ctx context.Context, tenantID, counterpartyID uuid.UUID) (*financeapp.BalanceResponse, error) {
	args := m.Called(ctx, tenantID, counterpartyID)
	b, _ := args.Get(0).(*financeapp.BalanceResponse)
	return b, args.Error(1)
}

func (m *MockLedger) RecordOpeningBalance(ctx context.Context, actor shared.Principal, counterpartyID uuid.UUID, req financeapp.OpeningBalanceRequest) (*financeapp.LedgerEntryResponse, error) {
	args := m.Called(ctx, actor, counterpartyID, req)
	e, _ := args.Get(0).(*financeapp.LedgerEntryResponse)
	return e, args.Error(1)
}

type MockDeadLetters struct {
	mock.Mock
}

func (m *MockDeadLetters) ListDeadLetters(ctx context.Context, tenantID uuid.UUID, filter eventapp.DeadLetterFilter) ([]eventapp.OutboxEntryDTO, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	entries, _ := args.Get(0).([]eventapp.OutboxEntryDTO)
	return entries, args.Get(1).(int64), args.Error(2)
}

func (m *MockDeadLetters) Requeue(ctx context.Context, actor shared.Principal, id uuid.UUID) error {
	return m.Called(ctx, actor, id).Error(0)
}

func (m *MockDeadLetters) Stats(ctx context.Context) (*eventapp.OutboxStatsDTO, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).(*eventapp.OutboxStatsDTO)
	return s, args.Error(1)
}
