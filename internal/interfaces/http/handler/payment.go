package handler

import (
	"context"

	financeapp "github.com/erp/billing/internal/application/finance"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PaymentUseCases is the payment lifecycle served over HTTP
type PaymentUseCases interface {
	Create(ctx context.Context, actor shared.Principal, req financeapp.PaymentRequest, idempotencyKey string) (*financeapp.PaymentResponse, error)
	Update(ctx context.Context, actor shared.Principal, id uuid.UUID, req financeapp.PaymentRequest) (*financeapp.PaymentResponse, error)
	Delete(ctx context.Context, actor shared.Principal, id uuid.UUID) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*financeapp.PaymentResponse, error)
	List(ctx context.Context, tenantID uuid.UUID, filter financeapp.PaymentListFilter) ([]financeapp.PaymentResponse, int64, error)
}

// PaymentHandler handles payment HTTP requests
type PaymentHandler struct {
	BaseHandler
	payments PaymentUseCases
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(payments PaymentUseCases, opts ...HandlerOption) *PaymentHandler {
	return &PaymentHandler{BaseHandler: newBaseHandler(opts), payments: payments}
}

// Create godoc
// @ID           createPayment
// @Summary      Record a payment
// @Description  Records a payment and distributes it over the given documents, or over the oldest open documents when auto_allocate is set
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key header string false "Replay protection key"
// @Param        request body financeapp.PaymentRequest true "Payment"
// @Success      201 {object} APIResponse[financeapp.PaymentResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /billing/payments [post]
func (h *PaymentHandler) Create(c *gin.Context) {
	actor, ok := h.principal(c)
	if !ok {
		return
	}
	var req financeapp.PaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	payment, err := h.payments.Create(c.Request.Context(), actor, req, c.GetHeader(middleware.IdempotencyKeyHeader))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, payment)
}

// Update godoc
// @ID           updatePayment
// @Summary      Replace a payment and its allocations
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        id path string true "Payment ID" format(uuid)
// @Param        request body financeapp.PaymentRequest true "Payment"
// @Success      200 {object} APIResponse[financeapp.PaymentResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /billing/payments/{id} [put]
func (h *PaymentHandler) Update(c *gin.Context) {
	actor, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req financeapp.PaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	payment, err := h.payments.Update(c.Request.Context(), actor, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payment)
}

// Get godoc
// @ID           getPayment
// @Summary      Get a payment
// @Tags         payments
// @Produce      json
// @Param        id path string true "Payment ID" format(uuid)
// @Success      200 {object} APIResponse[financeapp.PaymentResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /billing/payments/{id} [get]
func (h *PaymentHandler) Get(c *gin.Context) {
	actor, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	payment, err := h.payments.GetByID(c.Request.Context(), actor.TenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payment)
}

// List godoc
// @ID           listPayments
// @Summary      List payments
// @Tags         payments
// @Produce      json
// @Param        counterparty_id query string false "Counterparty ID" format(uuid)
// @Param        direction query string false "RECEIVED or MADE"
// @Param        from_date query string false "From date (YYYY-MM-DD)"
// @Param        to_date query string false "To date (YYYY-MM-DD)"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]financeapp.PaymentResponse]
// @Security     BearerAuth
// @Router       /billing/payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	actor, ok := h.principal(c)
	if !ok {
		return
	}
	var filter financeapp.PaymentListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	filter.PageSize = h.pageSize(filter.PageSize)

	payments, total, err := h.payments.List(c.Request.Context(), actor.TenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, payments, total, max(filter.Page, 1), filter.PageSize)
}

// Delete godoc
// @ID           deletePayment
// @Summary      Delete a payment
// @Description  Releases every allocation back to its document and removes the ledger entry
// @Tags         payments
// @Param        id path string true "Payment ID" format(uuid)
// @Success      204
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /billing/payments/{id} [delete]
func (h *PaymentHandler) Delete(c *gin.Context) {
	actor, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	if err := h.payments.Delete(c.Request.Context(), actor, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
