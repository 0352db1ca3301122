// Package notification emails issued documents to their counterparties.
package notification

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/erp/billing/internal/application/printing"
	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/partner"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Attachment is a file attached to an outgoing message
type Attachment struct {
	FileName    string
	ContentType string
	Content     []byte
}

// Message is an outgoing email
type Message struct {
	To          []string
	ReplyTo     string
	Subject     string
	Text        string
	Attachments []Attachment
}

// Mailer delivers messages
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// DocumentPrinter renders, and optionally archives, documents
type DocumentPrinter interface {
	Render(ctx context.Context, tenantID, documentID uuid.UUID) (*printing.DocumentPDF, error)
	Archive(ctx context.Context, tenantID, documentID uuid.UUID) (*printing.DocumentPDF, error)
	ArchiveEnabled() bool
}

// DocumentIssuedNotifier sends the PDF of every newly issued client document
// to the client's email address. Vendor documents are received, not sent, and
// are ignored.
//
// It runs after commit from the outbox, so a returned error schedules a retry
// and never affects the document itself.
type DocumentIssuedNotifier struct {
	printer DocumentPrinter
	parties partner.Reader
	mailer  Mailer
	logger  *zap.Logger
}

// NewDocumentIssuedNotifier creates a new notifier
func NewDocumentIssuedNotifier(printer DocumentPrinter, parties partner.Reader, mailer Mailer, logger *zap.Logger) *DocumentIssuedNotifier {
	return &DocumentIssuedNotifier{
		printer: printer,
		parties: parties,
		mailer:  mailer,
		logger:  logger,
	}
}

// EventTypes implements shared.EventHandler
func (n *DocumentIssuedNotifier) EventTypes() []string {
	return []string{billing.EventTypeDocumentIssued}
}

// Handle implements shared.EventHandler
func (n *DocumentIssuedNotifier) Handle(ctx context.Context, event shared.DomainEvent) error {
	issued, ok := event.(*billing.DocumentIssuedEvent)
	if !ok {
		n.logger.Warn("unexpected event for document notifier", zap.String("event_type", event.EventType()))
		return nil
	}
	if issued.DocumentType.CounterpartyKind() != partner.CounterpartyClient {
		return nil
	}

	tenantID := issued.TenantID()
	log := n.logger.With(
		zap.String("tenant_id", tenantID.String()),
		zap.String("document_id", issued.DocumentID.String()),
		zap.String("number", issued.Number),
	)

	client, err := n.parties.FindCounterparty(ctx, tenantID, issued.CounterpartyID)
	if errors.Is(err, shared.ErrNotFound) {
		log.Warn("counterparty of issued document not found, not notifying")
		return nil
	}
	if err != nil {
		return err
	}
	if client.Email == "" {
		log.Debug("counterparty has no email, not notifying")
		return nil
	}

	company, err := n.parties.FindCompany(ctx, tenantID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return err
	}

	var pdf *printing.DocumentPDF
	if n.printer.ArchiveEnabled() {
		pdf, err = n.printer.Archive(ctx, tenantID, issued.DocumentID)
	} else {
		pdf, err = n.printer.Render(ctx, tenantID, issued.DocumentID)
	}
	if errors.Is(err, shared.ErrNotFound) {
		// deleted before delivery
		log.Info("issued document no longer exists, not notifying")
		return nil
	}
	if err != nil {
		return err
	}

	msg := composeMessage(issued, client, company, pdf)
	if err := n.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s %s to %s: %w", issued.DocumentType, issued.Number, client.Email, err)
	}
	log.Info("issued document emailed", zap.String("to", client.Email))
	return nil
}

func composeMessage(issued *billing.DocumentIssuedEvent, client *partner.Counterparty, company *partner.Company, pdf *printing.DocumentPDF) Message {
	label := strings.ToLower(strings.ReplaceAll(issued.DocumentType.String(), "_", " "))
	sender := "us"
	msg := Message{To: []string{client.Email}}
	if company != nil {
		sender = company.Name
		msg.ReplyTo = company.Email
		msg.Subject = fmt.Sprintf("%s: %s %s", company.Name, label, issued.Number)
	} else {
		msg.Subject = fmt.Sprintf("Your %s %s", label, issued.Number)
	}

	var body strings.Builder
	fmt.Fprintf(&body, "Dear %s,\n\n", client.Name)
	fmt.Fprintf(&body, "Please find attached %s %s from %s for a total of %s, including tax of %s.\n",
		label, issued.Number, sender, issued.Total.StringFixed(2), issued.TaxTotal.StringFixed(2))
	if pdf.URL != "" {
		fmt.Fprintf(&body, "\nYou can also download it here: %s\n", pdf.URL)
	}
	body.WriteString("\nThank you.\n")
	msg.Text = body.String()

	msg.Attachments = []Attachment{{
		FileName:    path.Base(pdf.FileName),
		ContentType: printing.ContentTypePDF,
		Content:     pdf.Content,
	}}
	return msg
}
