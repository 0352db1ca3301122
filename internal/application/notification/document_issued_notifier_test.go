package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/billing/internal/application/printing"
	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/finance"
	"github.com/erp/billing/internal/domain/partner"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

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

func (m *MockPrinter) ArchiveEnabled() bool {
	return m.Called().Bool(0)
}

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, msg Message) error {
	return m.Called(ctx, msg).Error(0)
}

type MockParties struct {
	mock.Mock
}

func (m *MockParties) FindCounterparty(ctx context.Context, tenantID, id uuid.UUID) (*partner.Counterparty, error) {
	args := m.Called(ctx, tenantID, id)
	cp, _ := args.Get(0).(*partner.Counterparty)
	return cp, args.Error(1)
}

func (m *MockParties) FindCompany(ctx context.Context, tenantID uuid.UUID) (*partner.Company, error) {
	args := m.Called(ctx, tenantID)
	c, _ := args.Get(0).(*partner.Company)
	return c, args.Error(1)
}

type notifierDeps struct {
	printer *MockPrinter
	parties *MockParties
	mailer  *MockMailer
	event   *billing.DocumentIssuedEvent
	client  *partner.Counterparty
}

func newNotifierDeps(docType billing.DocumentType) (*notifierDeps, *DocumentIssuedNotifier) {
	actor := shared.NewPrincipal(uuid.New(), uuid.New())
	doc := &billing.Document{
		Type:           docType,
		Number:         "INV-0042",
		CounterpartyID: uuid.New(),
		Total:          decimal.RequireFromString("1180"),
		TaxTotal:       decimal.RequireFromString("180"),
	}
	doc.ID = uuid.New()
	doc.TenantID = actor.TenantID

	d := &notifierDeps{
		printer: new(MockPrinter),
		parties: new(MockParties),
		mailer:  new(MockMailer),
		event:   billing.NewDocumentIssuedEvent(doc, actor),
		client:  &partner.Counterparty{ID: doc.CounterpartyID, Name: "Globex", Email: "ap@globex.test"},
	}
	return d, NewDocumentIssuedNotifier(d.printer, d.parties, d.mailer, zap.NewNop())
}

func (d *notifierDeps) rendered() *printing.DocumentPDF {
	return &printing.DocumentPDF{FileName: "INVOICE/INV-0042.pdf", Content: []byte("%PDF-")}
}

func TestDocumentIssuedNotifier_EmailsClient(t *testing.T) {
	d, n := newNotifierDeps(billing.DocumentTypeInvoice)
	tenantID := d.event.TenantID()
	d.parties.On("FindCounterparty", mock.Anything, tenantID, d.event.CounterpartyID).Return(d.client, nil)
	d.parties.On("FindCompany", mock.Anything, tenantID).Return(&partner.Company{Name: "Acme", Email: "billing@acme.test"}, nil)
	d.printer.On("ArchiveEnabled").Return(false)
	d.printer.On("Render", mock.Anything, tenantID, d.event.DocumentID).Return(d.rendered(), nil)

	var sent Message
	d.mailer.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(1).(Message)
	}).Return(nil)

	require.NoError(t, n.Handle(context.Background(), d.event))

	assert.Equal(t, []string{"ap@globex.test"}, sent.To)
	assert.Equal(t, "billing@acme.test", sent.ReplyTo)
	assert.Equal(t, "Acme: invoice INV-0042", sent.Subject)
	assert.Contains(t, sent.Text, "Dear Globex")
	assert.Contains(t, sent.Text, "total of 1180.00, including tax of 180.00")
	require.Len(t, sent.Attachments, 1)
	assert.Equal(t, "INV-0042.pdf", sent.Attachments[0].FileName)
	assert.Equal(t, printing.ContentTypePDF, sent.Attachments[0].ContentType)
	d.printer.AssertNotCalled(t, "Archive", mock.Anything, mock.Anything, mock.Anything)
}

func TestDocumentIssuedNotifier_ArchivesAndLinks(t *testing.T) {
	d, n := newNotifierDeps(billing.DocumentTypeCreditNote)
	d.parties.On("FindCounterparty", mock.Anything, mock.Anything, mock.Anything).Return(d.client, nil)
	d.parties.On("FindCompany", mock.Anything, mock.Anything).Return(nil, shared.ErrNotFound)
	archived := d.rendered()
	archived.URL = "https://s3.local/signed"
	d.printer.On("ArchiveEnabled").Return(true)
	d.printer.On("Archive", mock.Anything, mock.Anything, d.event.DocumentID).Return(archived, nil)
	d.mailer.On("Send", mock.Anything, mock.MatchedBy(func(msg Message) bool {
		return msg.Subject == "Your credit note INV-0042" && msg.ReplyTo == ""
	})).Return(nil)

	require.NoError(t, n.Handle(context.Background(), d.event))
	d.mailer.AssertExpectations(t)
	msg := d.mailer.Calls[0].Arguments.Get(1).(Message)
	assert.Contains(t, msg.Text, "https://s3.local/signed")
}

func TestDocumentIssuedNotifier_Skips(t *testing.T) {
	t.Run("vendor document", func(t *testing.T) {
		d, n := newNotifierDeps(billing.DocumentTypePurchaseBill)
		require.NoError(t, n.Handle(context.Background(), d.event))
		d.parties.AssertNotCalled(t, "FindCounterparty", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("client without email", func(t *testing.T) {
		d, n := newNotifierDeps(billing.DocumentTypeInvoice)
		d.client.Email = ""
		d.parties.On("FindCounterparty", mock.Anything, mock.Anything, mock.Anything).Return(d.client, nil)
		require.NoError(t, n.Handle(context.Background(), d.event))
		d.printer.AssertNotCalled(t, "Render", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("document deleted before delivery", func(t *testing.T) {
		d, n := newNotifierDeps(billing.DocumentTypeInvoice)
		d.parties.On("FindCounterparty", mock.Anything, mock.Anything, mock.Anything).Return(d.client, nil)
		d.parties.On("FindCompany", mock.Anything, mock.Anything).Return(nil, shared.ErrNotFound)
		d.printer.On("ArchiveEnabled").Return(false)
		d.printer.On("Render", mock.Anything, mock.Anything, mock.Anything).Return(nil, shared.ErrNotFound)
		require.NoError(t, n.Handle(context.Background(), d.event))
		d.mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})

	t.Run("other event", func(t *testing.T) {
		_, n := newNotifierDeps(billing.DocumentTypeInvoice)
		other := &finance.PaymentDeletedEvent{BaseDomainEvent: shared.NewBaseDomainEvent(finance.EventTypePaymentDeleted, finance.AggregateTypePayment, uuid.New(), shared.NewPrincipal(uuid.New(), uuid.New()))}
		assert.NoError(t, n.Handle(context.Background(), other))
	})
}

func TestDocumentIssuedNotifier_MailFailureIsReturned(t *testing.T) {
	d, n := newNotifierDeps(billing.DocumentTypeInvoice)
	d.parties.On("FindCounterparty", mock.Anything, mock.Anything, mock.Anything).Return(d.client, nil)
	d.parties.On("FindCompany", mock.Anything, mock.Anything).Return(nil, shared.ErrNotFound)
	d.printer.On("ArchiveEnabled").Return(false)
	d.printer.On("Render", mock.Anything, mock.Anything, mock.Anything).Return(d.rendered(), nil)
	d.mailer.On("Send", mock.Anything, mock.Anything).Return(errors.New("421 service not available"))

	err := n.Handle(context.Background(), d.event)
	assert.ErrorContains(t, err, "send INVOICE INV-0042 to ap@globex.test: 421 service not available")
	assert.Equal(t, []string{billing.EventTypeDocumentIssued}, n.EventTypes())
}
