package handler

import (
	"context"
	"fmt"
	"net/http"
	"path"

	billingapp "github.com/erp/billing/internal/application/billing"
	"github.com/erp/billing/internal/application/printing"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DocumentUseCases is the document lifecycle served over HTTP
type DocumentUseCases interface {
	Create(ctx context.Context, actor shared.Principal, req billingapp.CreateDocumentRequest, idempotencyKey string) (*billingapp.DocumentResponse, error)
	Update(ctx context.Context, actor shared.Principal, id uuid.UUID, req billingapp.UpdateDocumentRequest) (*billingapp.DocumentResponse, error)
	Cancel(ctx context.Context, actor shared.Principal, id uuid.UUID, reason string) (*billingapp.DocumentResponse, error)
	Lock(ctx context.Context, actor shared.Principal, id uuid.UUID) (*billingapp.DocumentResponse, error)
	Delete(ctx context.Context, actor shared.Principal, id uuid.UUID) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*billingapp.DocumentResponse, error)
	List(ctx context.Context, tenantID uuid.UUID, filter billingapp.DocumentListFilter) ([]billingapp.DocumentListResponse, int64, error)
}

// DocumentPrinter renders and archives document PDFs
type DocumentPrinter interface {
	Render(ctx context.Context, tenantID, documentID uuid.UUID) (*printing.DocumentPDF, error)
	Archive(ctx context.Context, tenantID, documentID uuid.UUID) (*printing.DocumentPDF, error)
}

// DocumentHandler handles billing document HTTP requests
type DocumentHandler struct {
	BaseHandler
	documents DocumentUseCases
	printer   DocumentPrinter
}

// NewDocumentHandler creates a new DocumentHandler
func NewDocumentHandler(documents DocumentUseCases, printer DocumentPrinter, opts ...HandlerOption) *DocumentHandler {
	return &DocumentHandler{BaseHandler: newBaseHandler(opts), documents: documents, printer: printer}
}

// ArchiveResponse is the result of archiving a document PDF
type ArchiveResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// Create godoc
// @ID           createDocument
// @Summary      Issue a document
// @Description  Price the line items, compute tax and totals, and post the ledger entry
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key header string false "Replay protection key"
// @Param        request body billingapp.CreateDocumentRequest true "Document"
// @Success      201 {object} APIResponse[billingapp.DocumentResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /billing/documents [post]
func (h *DocumentHandler) Create(c *gin.Context) {
	actor, ok := h.principal(c)
	if !ok {
		return
	}
	var req billingapp.CreateDocumentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	doc, err := h.documents.Create(c.Request.Context(), actor, req, c.GetHeader(middleware.IdempotencyKeyHeader))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, doc)
}

// Update godoc
// @ID           updateDocument
// @Summary      Replace a document
// @Description  Recompute a document from new line items; the balance is reduced by payments already allocated
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        id path string true "Document ID" format(uuid)
// @Param        request body billingapp.UpdateDocumentRequest true "Document"
// @Success      200 {object} APIResponse[billingapp.DocumentResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /billing/documents/{id} [put]
func (h *DocumentHandler) Update(c *gin.Context) {
	actor, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req billingapp.UpdateDocumentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	doc, err := h.documents.Update(c.Request.Context(), actor, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// Get godoc
// @ID           getDocument
// @Summary      Get a document
// @Tags         documents
// @Produce      json
// @Param        id path string true "Document ID" format(uuid)
// @Success      200 {object} APIResponse[billingapp.DocumentResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /billing/documents/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	actor, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	doc, err := h.documents.GetByID(c.Request.Context(), actor.TenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// List godoc
// @ID           listDocuments
// @Summary      List documents
// @Tags         documents
// @Produce      json
// @Param        type query string false "Document type"
// @Param        status query string false "Status"
// @Param        counterparty_id query string false "Counterparty ID" format(uuid)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]billingapp.DocumentListResponse]
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /billing/documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	actor, ok := h.principal(c)
	if !ok {
		return
	}
	var filter billingapp.DocumentListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	filter.PageSize = h.pageSize(filter.PageSize)

	docs, total, err := h.documents.List(c.Request.Context(), actor.TenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, docs, total, max(filter.Page, 1), filter.PageSize)
}

// Cancel godoc
// @ID           cancelDocument
// @Summary      Cancel a document
// @Description  Only documents without allocated payments can be cancelled
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        id path string true "Document ID" format(uuid)
// @Param        request body billingapp.CancelDocumentRequest false "Reason"
// @Success      200 {object} APIResponse[billingapp.DocumentResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /billing/documents/{id}/cancel [post]
func (h *DocumentHandler) Cancel(c *gin.Context) {
	actor, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req billingapp.CancelDocumentRequest
	if c.Request.ContentLength > 0 && !h.bindJSON(c, &req) {
		return
	}

	doc, err := h.documents.Cancel(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// Lock godoc
// @ID           lockDocument
// @Summary      Lock a document against further allocations
// @Tags         documents
// @Produce      json
// @Param        id path string true "Document ID" format(uuid)
// @Success      200 {object} APIResponse[billingapp.DocumentResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /billing/documents/{id}/lock [post]
func (h *DocumentHandler) Lock(c *gin.Context) {
	actor, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	doc, err := h.documents.Lock(c.Request.Context(), actor, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// Delete godoc
// @ID           deleteDocument
// @Summary      Delete a document
// @Description  Soft-deletes the document and reverses its ledger entry
// @Tags         documents
// @Param        id path string true "Document ID" format(uuid)
// @Success      204
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /billing/documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	actor, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	if err := h.documents.Delete(c.Request.Context(), actor, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// DownloadPDF godoc
// @ID           downloadDocumentPDF
// @Summary      Download a document as PDF
// @Tags         documents
// @Produce      application/pdf
// @Param        id path string true "Document ID" format(uuid)
// @Success      200 {file} binary
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /billing/documents/{id}/pdf [get]
func (h *DocumentHandler) DownloadPDF(c *gin.Context) {
	actor, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	pdf, err := h.printer.Render(c.Request.Context(), actor.TenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(pdf.FileName)))
	c.Data(http.StatusOK, printing.ContentTypePDF, pdf.Content)
}

// ArchivePDF godoc
// @ID           archiveDocumentPDF
// @Summary      Archive a document PDF
// @Description  Stores the rendered PDF in object storage and returns a temporary download link
// @Tags         documents
// @Produce      json
// @Param        id path string true "Document ID" format(uuid)
// @Success      200 {object} APIResponse[ArchiveResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /billing/documents/{id}/archive [post]
func (h *DocumentHandler) ArchivePDF(c *gin.Context) {
	actor, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	pdf, err := h.printer.Archive(c.Request.Context(), actor.TenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ArchiveResponse{Key: pdf.Key, URL: pdf.URL})
}
