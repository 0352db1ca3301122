package handler

import (
	"context"

	financeapp "github.com/erp/billing/internal/application/finance"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LedgerQueries reads and seeds counterparty ledgers
type LedgerQueries interface {
	RunningBalance(ctx context.Context, tenantID, counterpartyID uuid.UUID, query financeapp.LedgerQuery) (*financeapp.StatementResponse, error)
	CurrentBalance(ctx context.Context, tenantID, counterpartyID uuid.UUID) (*financeapp.BalanceResponse, error)
	RecordOpeningBalance(ctx context.Context, actor shared.Principal, counterpartyID uuid.UUID, req financeapp.OpeningBalanceRequest) (*financeapp.LedgerEntryResponse, error)
}

// LedgerHandler handles counterparty ledger HTTP requests
type LedgerHandler struct {
	BaseHandler
	ledger LedgerQueries
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(ledger LedgerQueries) *LedgerHandler {
	return &LedgerHandler{ledger: ledger}
}

// Statement godoc
// @ID           getLedgerStatement
// @Summary      Ledger statement with running balance
// @Tags         ledger
// @Produce      json
// @Param        counterparty_id path string true "Counterparty ID" format(uuid)
// @Param        from query string false "From date (YYYY-MM-DD)"
// @Param        to query string false "To date (YYYY-MM-DD)"
// @Param        limit query int false "Lines per page" maximum(500)
// @Param        offset query int false "Lines to skip"
// @Success      200 {object} APIResponse[financeapp.StatementResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /billing/ledger/{counterparty_id}/statement [get]
func (h *LedgerHandler) Statement(c *gin.Context) {
	actor, ok := h.principal(c)
	if !ok {
		return
	}
	counterpartyID, ok := h.pathID(c, "counterparty_id")
	if !ok {
		return
	}
	var query financeapp.LedgerQuery
	if !h.bindQuery(c, &query) {
		return
	}

	statement, err := h.ledger.RunningBalance(c.Request.Context(), actor.TenantID, counterpartyID, query)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, statement)
}

// Balance godoc
// @ID           getLedgerBalance
// @Summary      Current balance of a counterparty
// @Tags         ledger
// @Produce      json
// @Param        counterparty_id path string true "Counterparty ID" format(uuid)
// @Success      200 {object} APIResponse[financeapp.BalanceResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /billing/ledger/{counterparty_id}/balance [get]
func (h *LedgerHandler) Balance(c *gin.Context) {
	actor, ok := h.principal(c)
	if !ok {
		return
	}
	counterpartyID, ok := h.pathID(c, "counterparty_id")
	if !ok {
		return
	}

	balance, err := h.ledger.CurrentBalance(c.Request.Context(), actor.TenantID, counterpartyID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, balance)
}

// OpeningBalance godoc
// @ID           setLedgerOpeningBalance
// @Summary      Set the opening balance of a client
// @Tags         ledger
// @Accept       json
// @Produce      json
// @Param        counterparty_id path string true "Counterparty ID" format(uuid)
// @Param        request body financeapp.OpeningBalanceRequest true "Opening balance"
// @Success      200 {object} APIResponse[financeapp.LedgerEntryResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /billing/ledger/{counterparty_id}/opening-balance [put]
func (h *LedgerHandler) OpeningBalance(c *gin.Context) {
	actor, ok := h.principal(c)
	if !ok {
		return
	}
	counterpartyID, ok := h.pathID(c, "counterparty_id")
	if !ok {
		return
	}
	var req financeapp.OpeningBalanceRequest
	if !h.bindJSON(c, &req) {
		return
	}

	entry, err := h.ledger.RecordOpeningBalance(c.Request.Context(), actor, counterpartyID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}
