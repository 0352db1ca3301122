package handler

import (
	"context"

	eventapp "github.com/erp/billing/internal/application/event"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DeadLetters inspects and requeues undeliverable billing events
type DeadLetters interface {
	ListDeadLetters(ctx context.Context, tenantID uuid.UUID, filter eventapp.DeadLetterFilter) ([]eventapp.OutboxEntryDTO, int64, error)
	Requeue(ctx context.Context, actor shared.Principal, id uuid.UUID) error
	Stats(ctx context.Context) (*eventapp.OutboxStatsDTO, error)
}

// OutboxHandler handles outbox management HTTP requests
type OutboxHandler struct {
	BaseHandler
	outbox DeadLetters
}

// NewOutboxHandler creates a new outbox handler
func NewOutboxHandler(outbox DeadLetters, opts ...HandlerOption) *OutboxHandler {
	return &OutboxHandler{BaseHandler: newBaseHandler(opts), outbox: outbox}
}

// ListDeadLetters godoc
// @ID           listOutboxDeadLetters
// @Summary      List dead letter entries
// @Description  Events of the tenant whose delivery was given up after the retry budget
// @Tags         outbox
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]eventapp.OutboxEntryDTO]
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /billing/outbox/dead [get]
func (h *OutboxHandler) ListDeadLetters(c *gin.Context) {
	actor, ok := h.principal(c)
	if !ok {
		return
	}
	var filter eventapp.DeadLetterFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	filter.PageSize = h.pageSize(filter.PageSize)

	entries, total, err := h.outbox.ListDeadLetters(c.Request.Context(), actor.TenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, entries, total, max(filter.Page, 1), filter.PageSize)
}

// Requeue godoc
// @ID           requeueOutboxEntry
// @Summary      Requeue a dead letter
// @Tags         outbox
// @Param        id path string true "Outbox Entry ID" format(uuid)
// @Success      204
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /billing/outbox/dead/{id}/requeue [post]
func (h *OutboxHandler) Requeue(c *gin.Context) {
	actor, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	if err := h.outbox.Requeue(c.Request.Context(), actor, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Stats godoc
// @ID           getOutboxStats
// @Summary      Outbox entries per delivery status
// @Tags         outbox
// @Produce      json
// @Success      200 {object} APIResponse[eventapp.OutboxStatsDTO]
// @Security     BearerAuth
// @Router       /billing/outbox/stats [get]
func (h *OutboxHandler) Stats(c *gin.Context) {
	if _, ok := h.principal(c); !ok {
		return
	}
	stats, err := h.outbox.Stats(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}
