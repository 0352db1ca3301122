package finance

import (
	"time"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/finance"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// AllocationItemRequest settles part of a payment against one document
type AllocationItemRequest struct {
	DocumentID   uuid.UUID       `json:"document_id" binding:"required"`
	DocumentType string          `json:"document_type" binding:"omitempty,oneof=INVOICE PURCHASE_BILL"`
	Value        decimal.Decimal `json:"value" binding:"decimal_gt0"`
}

// PaymentRequest is the body of both payment creation and update
type PaymentRequest struct {
	Number         string                  `json:"number" binding:"max=50"`
	CounterpartyID uuid.UUID               `json:"counterparty_id" binding:"required"`
	Direction      string                  `json:"direction" binding:"required,oneof=RECEIVED MADE"`
	Mode           string                  `json:"mode" binding:"omitempty,oneof=REGULAR ADVANCE"`
	Method         string                  `json:"method" binding:"required,oneof=CASH BANK_TRANSFER CHEQUE UPI CARD OTHER"`
	Amount         decimal.Decimal         `json:"amount" binding:"decimal_gt0"`
	PaymentDate    *time.Time              `json:"payment_date"`
	Reference      string                  `json:"reference" binding:"max=100"`
	Notes          string                  `json:"notes" binding:"max=2000"`
	Allocations    []AllocationItemRequest `json:"allocations" binding:"omitempty,dive"`
	// AutoAllocate spreads the amount over the oldest outstanding documents
	// when no explicit allocations are given
	AutoAllocate bool `json:"auto_allocate"`
}

func (r PaymentRequest) input() finance.PaymentInput {
	in := finance.PaymentInput{
		Number:         r.Number,
		CounterpartyID: r.CounterpartyID,
		Direction:      finance.Direction(r.Direction),
		Mode:           finance.Mode(r.Mode),
		Method:         finance.PaymentMethod(r.Method),
		Amount:         r.Amount,
		Reference:      r.Reference,
		Notes:          r.Notes,
	}
	if r.PaymentDate != nil {
		in.PaymentDate = *r.PaymentDate
	}
	return in
}

func (r PaymentRequest) allocationRequests() []finance.AllocationRequest {
	return lo.Map(r.Allocations, func(a AllocationItemRequest, _ int) finance.AllocationRequest {
		return finance.AllocationRequest{
			DocumentID:   a.DocumentID,
			DocumentType: billing.DocumentType(a.DocumentType),
			Value:        a.Value,
		}
	})
}

// PaymentListFilter represents filter options for listing payments
type PaymentListFilter struct {
	CounterpartyID *uuid.UUID `form:"counterparty_id"`
	Direction      string     `form:"direction" binding:"omitempty,oneof=RECEIVED MADE"`
	Mode           string     `form:"mode" binding:"omitempty,oneof=REGULAR ADVANCE"`
	FromDate       *time.Time `form:"from_date" time_format:"2006-01-02"`
	ToDate         *time.Time `form:"to_date" time_format:"2006-01-02"`
	Page           int        `form:"page" binding:"min=0"`
	PageSize       int        `form:"page_size" binding:"min=0,max=100"`
	OrderBy        string     `form:"order_by" binding:"omitempty,oneof=payment_date number amount created_at"`
	OrderDir       string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

func (f PaymentListFilter) toDomain() finance.PaymentFilter {
	filter := finance.PaymentFilter{
		Filter: shared.Filter{
			Page:     max(f.Page, 1),
			PageSize: f.PageSize,
			OrderBy:  f.OrderBy,
			OrderDir: f.OrderDir,
		},
		CounterpartyID: f.CounterpartyID,
		FromDate:       f.FromDate,
		ToDate:         f.ToDate,
	}
	if filter.PageSize < 1 {
		filter.PageSize = shared.DefaultFilter().PageSize
	}
	if f.Direction != "" {
		d := finance.Direction(f.Direction)
		filter.Direction = &d
	}
	if f.Mode != "" {
		m := finance.Mode(f.Mode)
		filter.Mode = &m
	}
	return filter
}

// AllocationResponse represents one applied allocation
type AllocationResponse struct {
	DocumentID     uuid.UUID       `json:"document_id"`
	DocumentType   string          `json:"document_type"`
	DocumentNumber string          `json:"document_number"`
	Value          decimal.Decimal `json:"value"`
}

// DocumentBalanceResponse is the settlement state of a document touched by a payment
type DocumentBalanceResponse struct {
	DocumentID uuid.UUID       `json:"document_id"`
	Number     string          `json:"number"`
	Total      decimal.Decimal `json:"total"`
	Balance    decimal.Decimal `json:"balance"`
	Status     string          `json:"status"`
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID                       uuid.UUID                 `json:"id"`
	TenantID                 uuid.UUID                 `json:"tenant_id"`
	Number                   string                    `json:"number"`
	CounterpartyID           uuid.UUID                 `json:"counterparty_id"`
	Direction                string                    `json:"direction"`
	Mode                     string                    `json:"mode"`
	Method                   string                    `json:"method"`
	Amount                   decimal.Decimal           `json:"amount"`
	AmountUsedForAllocations decimal.Decimal           `json:"amount_used_for_allocations"`
	AmountInExcess           decimal.Decimal           `json:"amount_in_excess"`
	PaymentDate              time.Time                 `json:"payment_date"`
	Reference                string                    `json:"reference"`
	Notes                    string                    `json:"notes"`
	Allocations              []AllocationResponse      `json:"allocations"`
	Documents                []DocumentBalanceResponse `json:"documents,omitempty"`
	CreatedAt                time.Time                 `json:"created_at"`
	UpdatedAt                time.Time                 `json:"updated_at"`
	Version                  int                       `json:"version"`
}

// ToPaymentResponse converts a domain payment to a response
func ToPaymentResponse(p *finance.Payment) PaymentResponse {
	return PaymentResponse{
		ID:                       p.ID,
		TenantID:                 p.TenantID,
		Number:                   p.Number,
		CounterpartyID:           p.CounterpartyID,
		Direction:                string(p.Direction),
		Mode:                     string(p.Mode),
		Method:                   string(p.Method),
		Amount:                   p.Amount,
		AmountUsedForAllocations: p.AmountUsedForAllocations,
		AmountInExcess:           p.AmountInExcess,
		PaymentDate:              p.PaymentDate,
		Reference:                p.Reference,
		Notes:                    p.Notes,
		Allocations: lo.Map(p.Allocations, func(a finance.PaymentAllocation, _ int) AllocationResponse {
			return AllocationResponse{
				DocumentID:     a.DocumentID,
				DocumentType:   a.DocumentType.String(),
				DocumentNumber: a.DocumentNumber,
				Value:          a.Value,
			}
		}),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		Version:   p.Version,
	}
}

// LedgerQuery selects a window of a counterparty's ledger
type LedgerQuery struct {
	From   *time.Time `form:"from" time_format:"2006-01-02"`
	To     *time.Time `form:"to" time_format:"2006-01-02"`
	Limit  int        `form:"limit" binding:"min=0,max=500"`
	Offset int        `form:"offset" binding:"min=0"`
}

func (q LedgerQuery) toDomain() finance.LedgerFilter {
	limit := q.Limit
	if limit == 0 {
		limit = 100
	}
	return finance.LedgerFilter{From: q.From, To: q.To, Limit: limit, Offset: q.Offset}
}

// StatementLineResponse is one ledger row with its running balance
type StatementLineResponse struct {
	Date           time.Time       `json:"date"`
	Kind           string          `json:"kind"`
	ReferenceID    *uuid.UUID      `json:"reference_id,omitempty"`
	ReferenceNo    string          `json:"reference_no"`
	Debit          decimal.Decimal `json:"debit"`
	Credit         decimal.Decimal `json:"credit"`
	RunningBalance decimal.Decimal `json:"running_balance"`
}

// StatementResponse is one page of a counterparty's ledger
type StatementResponse struct {
	CounterpartyID uuid.UUID               `json:"counterparty_id"`
	OpeningBalance decimal.Decimal         `json:"opening_balance"`
	ClosingBalance decimal.Decimal         `json:"closing_balance"`
	Classification string                  `json:"classification"`
	Lines          []StatementLineResponse `json:"lines"`
	Total          int64                   `json:"total"`
	Limit          int                     `json:"limit"`
	Offset         int                     `json:"offset"`
}

// BalanceResponse is the current balance of a counterparty
type BalanceResponse struct {
	CounterpartyID uuid.UUID       `json:"counterparty_id"`
	Balance        decimal.Decimal `json:"balance"`
	Classification string          `json:"classification"`
}

// OpeningBalanceRequest sets the opening balance of a client.
// Positive amounts are owed by the client, negative ones are held in credit.
type OpeningBalanceRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Date   *time.Time      `json:"date"`
}

// LedgerEntryResponse represents a stored ledger entry
type LedgerEntryResponse struct {
	ID             uuid.UUID       `json:"id"`
	CounterpartyID uuid.UUID       `json:"counterparty_id"`
	Kind           string          `json:"kind"`
	Date           time.Time       `json:"date"`
	Debit          decimal.Decimal `json:"debit"`
	Credit         decimal.Decimal `json:"credit"`
}

func toStatementResponse(st finance.Statement, filter finance.LedgerFilter) StatementResponse {
	return StatementResponse{
		CounterpartyID: st.CounterpartyID,
		OpeningBalance: st.OpeningBalance,
		ClosingBalance: st.ClosingBalance,
		Classification: string(st.Classification),
		Lines: lo.Map(st.Lines, func(l finance.StatementLine, _ int) StatementLineResponse {
			return StatementLineResponse{
				Date:           l.Entry.EntryDate,
				Kind:           string(l.Entry.Kind),
				ReferenceID:    l.Entry.ReferenceID,
				ReferenceNo:    l.Entry.ReferenceNumber,
				Debit:          l.Entry.Debit,
				Credit:         l.Entry.Credit,
				RunningBalance: l.RunningBalance,
			}
		}),
		Total:  st.Total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
}
