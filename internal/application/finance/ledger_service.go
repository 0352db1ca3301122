package finance

import (
	"context"
	"errors"
	"time"

	appbilling "github.com/erp/billing/internal/application/billing"
	"github.com/erp/billing/internal/domain/finance"
	"github.com/erp/billing/internal/domain/partner"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LedgerService reads client statements and records opening balances
type LedgerService struct {
	scope   appbilling.TransactionScope
	ledger  finance.LedgerRepository
	parties partner.Reader
	logger  *zap.Logger
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(
	scope appbilling.TransactionScope,
	ledger finance.LedgerRepository,
	parties partner.Reader,
	logger *zap.Logger,
) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{scope: scope, ledger: ledger, parties: parties, logger: logger}
}

// RunningBalance returns one window of a client's ledger with the balance
// after every entry. The first line continues from everything before the window.
func (s *LedgerService) RunningBalance(ctx context.Context, tenantID, counterpartyID uuid.UUID, query LedgerQuery) (*StatementResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "running_balance")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrCounterpartyID, counterpartyID.String(),
	)

	if _, err := s.client(ctx, tenantID, counterpartyID); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	filter := query.toDomain()
	entries, total, err := s.ledger.FindByCounterparty(ctx, tenantID, counterpartyID, filter)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	opening, err := s.ledger.OpeningBalance(ctx, tenantID, counterpartyID, filter)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	st := finance.BuildStatement(counterpartyID, opening, entries)
	st.Total = total
	resp := toStatementResponse(st, filter)
	return &resp, nil
}

// CurrentBalance sums the whole ledger of a client
func (s *LedgerService) CurrentBalance(ctx context.Context, tenantID, counterpartyID uuid.UUID) (*BalanceResponse, error) {
	if _, err := s.client(ctx, tenantID, counterpartyID); err != nil {
		return nil, err
	}
	balance, err := s.ledger.Balance(ctx, tenantID, counterpartyID)
	if err != nil {
		return nil, err
	}
	return &BalanceResponse{
		CounterpartyID: counterpartyID,
		Balance:        balance,
		Classification: string(finance.ClassifyBalance(balance)),
	}, nil
}

// RecordOpeningBalance replaces the opening balance of a client. A zero
// amount only removes the previous one and returns nil.
//
// Without a date the entry is dated the day before the client's earliest
// entry so it leads the statement.
func (s *LedgerService) RecordOpeningBalance(ctx context.Context, actor shared.Principal, counterpartyID uuid.UUID, req OpeningBalanceRequest) (*LedgerEntryResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "record_opening_balance")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, actor.TenantID.String(),
		telemetry.SpanAttrCounterpartyID, counterpartyID.String(),
	)

	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.client(ctx, actor.TenantID, counterpartyID); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var entry *finance.LedgerEntry
	err := s.scope.Execute(ctx, func(repos appbilling.TransactionalRepositories) error {
		if _, err := repos.Ledger().DeleteOpeningBalance(ctx, actor.TenantID, counterpartyID); err != nil {
			return err
		}
		if req.Amount.IsZero() {
			return nil
		}

		date, err := s.openingDate(ctx, repos.Ledger(), actor.TenantID, counterpartyID, req.Date)
		if err != nil {
			return err
		}
		entry, err = finance.OpeningBalanceEntry(actor, counterpartyID, req.Amount, date)
		if err != nil {
			return err
		}
		return repos.Ledger().Append(ctx, entry)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Opening balance recorded",
		zap.String("tenant_id", actor.TenantID.String()),
		zap.String("counterparty_id", counterpartyID.String()),
		zap.String("amount", req.Amount.StringFixed(2)))

	if entry == nil {
		return nil, nil
	}
	return &LedgerEntryResponse{
		ID:             entry.ID,
		CounterpartyID: entry.CounterpartyID,
		Kind:           string(entry.Kind),
		Date:           entry.EntryDate,
		Debit:          entry.Debit,
		Credit:         entry.Credit,
	}, nil
}

func (s *LedgerService) openingDate(
	ctx context.Context,
	ledger finance.LedgerRepository,
	tenantID, counterpartyID uuid.UUID,
	requested *time.Time,
) (time.Time, error) {
	if requested != nil && !requested.IsZero() {
		return *requested, nil
	}
	first, _, err := ledger.FindByCounterparty(ctx, tenantID, counterpartyID, finance.LedgerFilter{Limit: 1})
	if err != nil {
		return time.Time{}, err
	}
	if len(first) == 0 {
		return time.Now().UTC().Truncate(24 * time.Hour), nil
	}
	return first[0].EntryDate.UTC().Truncate(24*time.Hour).AddDate(0, 0, -1), nil
}

// client loads a counterparty and rejects vendors, which have no ledger
func (s *LedgerService) client(ctx context.Context, tenantID, counterpartyID uuid.UUID) (*partner.Counterparty, error) {
	cp, err := s.parties.FindCounterparty(ctx, tenantID, counterpartyID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("INVALID_COUNTERPARTY", "Counterparty not found")
		}
		return nil, err
	}
	if cp.Kind != partner.CounterpartyClient {
		return nil, shared.NewDomainError("INVALID_COUNTERPARTY", "Only clients carry a ledger")
	}
	return cp, nil
}
