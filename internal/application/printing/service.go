// Package printing renders billing documents to PDF and optionally archives
// the result in object storage.
package printing

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/partner"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ContentTypePDF is the media type of every rendered document
const ContentTypePDF = "application/pdf"

// ErrArchiveDisabled is returned by Archive when no object store is configured
var ErrArchiveDisabled = shared.NewDomainError("ARCHIVE_DISABLED", "Document archiving is not configured")

// DocumentSheet is everything printed on a document
type DocumentSheet struct {
	Document *billing.Document
	// Seller is the tenant company; nil when the tenant has none registered
	Seller *partner.Company
	Buyer  *partner.Counterparty
}

// Renderer turns a sheet into a PDF
type Renderer interface {
	Render(sheet DocumentSheet) ([]byte, error)
}

// Archive stores rendered PDFs and hands out temporary download links
type Archive interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// DocumentPDF is a rendered document
type DocumentPDF struct {
	FileName string
	Content  []byte
	// Key and URL are set once the PDF has been archived
	Key string
	URL string
}

// Service prints documents
type Service struct {
	documents  billing.DocumentRepository
	parties    partner.Reader
	renderer   Renderer
	archive    Archive
	linkExpiry time.Duration
	logger     *zap.Logger
}

// Option configures the Service
type Option func(*Service)

// WithArchive enables archiving of rendered documents
func WithArchive(archive Archive, linkExpiry time.Duration) Option {
	return func(s *Service) {
		s.archive = archive
		if linkExpiry > 0 {
			s.linkExpiry = linkExpiry
		}
	}
}

// NewService creates a new printing service
func NewService(documents billing.DocumentRepository, parties partner.Reader, renderer Renderer, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		documents:  documents,
		parties:    parties,
		renderer:   renderer,
		linkExpiry: 15 * time.Minute,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ArchiveEnabled reports whether Archive can be used
func (s *Service) ArchiveEnabled() bool {
	return s.archive != nil
}

// Render loads a document with its parties and renders it
func (s *Service) Render(ctx context.Context, tenantID, documentID uuid.UUID) (*DocumentPDF, error) {
	sheet, err := s.loadSheet(ctx, tenantID, documentID)
	if err != nil {
		return nil, err
	}
	content, err := s.renderer.Render(sheet)
	if err != nil {
		return nil, fmt.Errorf("render %s %s: %w", sheet.Document.Type, sheet.Document.Number, err)
	}
	return &DocumentPDF{
		FileName: FileName(sheet.Document),
		Content:  content,
	}, nil
}

// Archive renders a document, stores it and returns a presigned download link
func (s *Service) Archive(ctx context.Context, tenantID, documentID uuid.UUID) (*DocumentPDF, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}
	pdf, err := s.Render(ctx, tenantID, documentID)
	if err != nil {
		return nil, err
	}

	key := path.Join(tenantID.String(), pdf.FileName)
	if err := s.archive.Put(ctx, key, pdf.Content, ContentTypePDF); err != nil {
		s.logger.Error("failed to archive document",
			zap.String("tenant_id", tenantID.String()),
			zap.String("document_id", documentID.String()),
			zap.Error(err),
		)
		return nil, err
	}
	url, err := s.archive.PresignGet(ctx, key, s.linkExpiry)
	if err != nil {
		return nil, err
	}
	pdf.Key = key
	pdf.URL = url

	s.logger.Info("document archived",
		zap.String("tenant_id", tenantID.String()),
		zap.String("document_id", documentID.String()),
		zap.String("key", key),
	)
	return pdf, nil
}

func (s *Service) loadSheet(ctx context.Context, tenantID, documentID uuid.UUID) (DocumentSheet, error) {
	doc, err := s.documents.FindByID(ctx, tenantID, documentID)
	if err != nil {
		return DocumentSheet{}, err
	}
	buyer, err := s.parties.FindCounterparty(ctx, tenantID, doc.CounterpartyID)
	if err != nil {
		return DocumentSheet{}, err
	}
	seller, err := s.parties.FindCompany(ctx, tenantID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return DocumentSheet{}, err
	}
	return DocumentSheet{Document: doc, Seller: seller, Buyer: buyer}, nil
}

// FileName is the archive and download name of a document, e.g. "INVOICE/INV-0042.pdf"
func FileName(doc *billing.Document) string {
	return path.Join(doc.Type.String(), sanitize(doc.Number)+".pdf")
}

func sanitize(number string) string {
	out := []rune(number)
	for i, r := range out {
		switch r {
		case '/', '\\', ' ', ':', '?', '#', '%':
			out[i] = '-'
		}
	}
	return string(out)
}
