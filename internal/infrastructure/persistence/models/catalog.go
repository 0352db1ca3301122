package models

import (
	"time"

	"github.com/erp/billing/internal/domain/catalog"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CatalogItemModel is the read model of catalog items referenced by document lines
type CatalogItemModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primary_key"`
	TenantID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	Code      string          `gorm:"type:varchar(50);not null"`
	Name      string          `gorm:"type:varchar(200);not null"`
	HSNCode   string          `gorm:"column:hsn_code;type:varchar(20)"`
	Unit      string          `gorm:"type:varchar(20)"`
	Price     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TaxRate   decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	CessRate  decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	Active    bool            `gorm:"not null"`
	CreatedAt time.Time       `gorm:"not null"`
	UpdatedAt time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CatalogItemModel) TableName() string {
	return "catalog_items"
}

// ToDomain converts the persistence model to a domain catalog Item
func (m *CatalogItemModel) ToDomain() *catalog.Item {
	return &catalog.Item{
		ID:       m.ID,
		TenantID: m.TenantID,
		Code:     m.Code,
		Name:     m.Name,
		HSNCode:  m.HSNCode,
		Unit:     m.Unit,
		Price:    m.Price,
		TaxRate:  m.TaxRate,
		CessRate: m.CessRate,
		Active:   m.Active,
	}
}
