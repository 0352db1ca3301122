package telemetry

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormReceivablesProvider sums open balances straight from billing_documents
type GormReceivablesProvider struct {
	db *gorm.DB
}

// NewGormReceivablesProvider creates a GormReceivablesProvider
func NewGormReceivablesProvider(db *gorm.DB) *GormReceivablesProvider {
	return &GormReceivablesProvider{db: db}
}

// OutstandingByType implements ReceivablesProvider
func (p *GormReceivablesProvider) OutstandingByType(ctx context.Context, tenantID uuid.UUID) (map[string]decimal.Decimal, error) {
	var rows []struct {
		Type    string
		Balance decimal.Decimal
	}
	err := p.db.WithContext(ctx).
		Table("billing_documents").
		Select("type, COALESCE(SUM(balance), 0) AS balance").
		Where("tenant_id = ? AND deleted_at IS NULL AND status IN ?", tenantID, []string{"OPEN", "PARTIALLY_PAID"}).
		Group("type").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]decimal.Decimal, len(rows))
	for _, r := range rows {
		out[r.Type] = r.Balance
	}
	return out, nil
}

// GormTenantProvider lists tenants that hold live documents
type GormTenantProvider struct {
	db *gorm.DB
}

// NewGormTenantProvider creates a GormTenantProvider
func NewGormTenantProvider(db *gorm.DB) *GormTenantProvider {
	return &GormTenantProvider{db: db}
}

// GetActiveTenantIDs implements TenantProvider
func (p *GormTenantProvider) GetActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := p.db.WithContext(ctx).
		Table("billing_documents").
		Distinct("tenant_id").
		Where("deleted_at IS NULL").
		Pluck("tenant_id", &ids).Error
	return ids, err
}
