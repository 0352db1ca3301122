package persistence

import (
	"context"
	"errors"

	"github.com/erp/billing/internal/domain/catalog"
	"github.com/erp/billing/internal/domain/partner"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/infrastructure/persistence/models"
	"github.com/erp/billing/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPartyReader implements partner.Reader over the counterparty and company tables
type GormPartyReader struct {
	db *gorm.DB
}

// NewGormPartyReader creates a new GormPartyReader
func NewGormPartyReader(db *gorm.DB) *GormPartyReader {
	return &GormPartyReader{db: db}
}

// FindCounterparty finds a client or vendor by id
func (r *GormPartyReader) FindCounterparty(ctx context.Context, tenantID, id uuid.UUID) (*partner.Counterparty, error) {
	var model models.CounterpartyModel
	if err := r.db.WithContext(ctx).
		Scopes(tenant.TenantScope(tenantID)).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindCompany returns the tenant's registered company
func (r *GormPartyReader) FindCompany(ctx context.Context, tenantID uuid.UUID) (*partner.Company, error) {
	var model models.CompanyModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// GormItemReader implements catalog.ItemReader over the catalog_items table
type GormItemReader struct {
	db *gorm.DB
}

// NewGormItemReader creates a new GormItemReader
func NewGormItemReader(db *gorm.DB) *GormItemReader {
	return &GormItemReader{db: db}
}

// FindByIDs loads the requested items. Inactive items are returned as well;
// the billing domain decides what to do with them.
func (r *GormItemReader) FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]*catalog.Item, error) {
	items := make(map[uuid.UUID]*catalog.Item, len(ids))
	if len(ids) == 0 {
		return items, nil
	}

	var rows []models.CatalogItemModel
	if err := r.db.WithContext(ctx).
		Scopes(tenant.TenantScope(tenantID)).
		Where("id IN ?", ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		items[rows[i].ID] = rows[i].ToDomain()
	}
	return items, nil
}

var (
	_ partner.Reader     = (*GormPartyReader)(nil)
	_ catalog.ItemReader = (*GormItemReader)(nil)
)
