package persistence

import (
	"context"

	"github.com/erp/billing/internal/domain/finance"
	"github.com/erp/billing/internal/infrastructure/persistence/models"
	"github.com/erp/billing/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormLedgerRepository implements finance.LedgerRepository using GORM.
// Rows are only ever inserted or removed, never updated.
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository creates a new GormLedgerRepository
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx
func (r *GormLedgerRepository) WithTx(tx *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: tx}
}

// Append inserts entries
func (r *GormLedgerRepository) Append(ctx context.Context, entries ...*finance.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]*models.LedgerEntryModel, len(entries))
	for i, e := range entries {
		rows[i] = models.LedgerEntryModelFromDomain(e)
	}
	return r.db.WithContext(ctx).Create(rows).Error
}

func (r *GormLedgerRepository) account(ctx context.Context, tenantID, counterpartyID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.LedgerEntryModel{}).
		Scopes(tenant.TenantScope(tenantID)).
		Where("counterparty_id = ?", counterpartyID)
}

func dateRange(filter finance.LedgerFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if filter.From != nil {
			db = db.Where("entry_date >= ?", *filter.From)
		}
		if filter.To != nil {
			db = db.Where("entry_date <= ?", *filter.To)
		}
		return db
	}
}

type sumResult struct {
	Total decimal.Decimal
}

func ledgerOrder(db *gorm.DB) *gorm.DB {
	return db.Order("entry_date ASC").Order("sequence ASC")
}

// FindByCounterparty returns one window of the ledger in statement order
// together with the number of entries in the date range
func (r *GormLedgerRepository) FindByCounterparty(ctx context.Context, tenantID, counterpartyID uuid.UUID, filter finance.LedgerFilter) ([]finance.LedgerEntry, int64, error) {
	query := r.account(ctx, tenantID, counterpartyID).Scopes(dateRange(filter))

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Scopes(ledgerOrder)
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []models.LedgerEntryModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	entries := make([]finance.LedgerEntry, len(rows))
	for i := range rows {
		entries[i] = rows[i].ToDomain()
	}
	return entries, total, nil
}

// OpeningBalance sums everything that precedes the window: entries dated
// before From plus the first Offset entries inside the range
func (r *GormLedgerRepository) OpeningBalance(ctx context.Context, tenantID, counterpartyID uuid.UUID, filter finance.LedgerFilter) (decimal.Decimal, error) {
	opening := decimal.Zero

	if filter.From != nil {
		var before sumResult
		if err := r.account(ctx, tenantID, counterpartyID).
			Where("entry_date < ?", *filter.From).
			Select("COALESCE(SUM(debit - credit), 0) AS total").
			Scan(&before).Error; err != nil {
			return decimal.Zero, err
		}
		opening = opening.Add(before.Total)
	}

	if filter.Offset > 0 {
		skipped := r.account(ctx, tenantID, counterpartyID).
			Scopes(dateRange(filter), ledgerOrder).
			Select("debit - credit AS amount").
			Limit(filter.Offset)

		var head sumResult
		if err := r.db.WithContext(ctx).
			Table("(?) AS w", skipped).
			Select("COALESCE(SUM(w.amount), 0) AS total").
			Scan(&head).Error; err != nil {
			return decimal.Zero, err
		}
		opening = opening.Add(head.Total)
	}
	return opening, nil
}

// Balance sums debit minus credit over every entry of the counterparty
func (r *GormLedgerRepository) Balance(ctx context.Context, tenantID, counterpartyID uuid.UUID) (decimal.Decimal, error) {
	var balance sumResult
	if err := r.account(ctx, tenantID, counterpartyID).
		Select("COALESCE(SUM(debit - credit), 0) AS total").
		Scan(&balance).Error; err != nil {
		return decimal.Zero, err
	}
	return balance.Total, nil
}

// DeleteByReference removes the entries one document or payment posted
func (r *GormLedgerRepository) DeleteByReference(ctx context.Context, tenantID uuid.UUID, kind finance.LedgerKind, referenceID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Scopes(tenant.TenantScope(tenantID)).
		Where("kind = ? AND reference_id = ?", kind, referenceID).
		Delete(&models.LedgerEntryModel{})
	return result.RowsAffected, result.Error
}

// DeleteOpeningBalance removes the opening balance entry of a counterparty
func (r *GormLedgerRepository) DeleteOpeningBalance(ctx context.Context, tenantID, counterpartyID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Scopes(tenant.TenantScope(tenantID)).
		Where("counterparty_id = ? AND kind = ?", counterpartyID, finance.LedgerKindOpeningBalance).
		Delete(&models.LedgerEntryModel{})
	return result.RowsAffected, result.Error
}

var _ finance.LedgerRepository = (*GormLedgerRepository)(nil)
