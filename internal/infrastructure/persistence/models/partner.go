package models

import (
	"time"

	"github.com/erp/billing/internal/domain/partner"
	"github.com/google/uuid"
)

// CounterpartyModel is the read model of clients and vendors. The rows are
// owned by the partner directory; billing never writes them outside tests.
type CounterpartyModel struct {
	ID           uuid.UUID                `gorm:"type:uuid;primary_key"`
	TenantID     uuid.UUID                `gorm:"type:uuid;not null;index"`
	Kind         partner.CounterpartyKind `gorm:"type:varchar(20);not null"`
	Name         string                   `gorm:"type:varchar(200);not null"`
	Email        string                   `gorm:"type:varchar(200)"`
	GSTIN        string                   `gorm:"column:gstin;type:varchar(15)"`
	Jurisdiction string                   `gorm:"type:varchar(100)"`
	CreatedAt    time.Time                `gorm:"not null"`
	UpdatedAt    time.Time                `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CounterpartyModel) TableName() string {
	return "counterparties"
}

// ToDomain converts the persistence model to a domain Counterparty
func (m *CounterpartyModel) ToDomain() *partner.Counterparty {
	return &partner.Counterparty{
		ID:           m.ID,
		TenantID:     m.TenantID,
		Kind:         m.Kind,
		Name:         m.Name,
		Email:        m.Email,
		GSTIN:        m.GSTIN,
		Jurisdiction: m.Jurisdiction,
	}
}

// CompanyModel is the tenant's registered business profile
type CompanyModel struct {
	TenantID     uuid.UUID `gorm:"type:uuid;primary_key"`
	Name         string    `gorm:"type:varchar(200);not null"`
	GSTIN        string    `gorm:"column:gstin;type:varchar(15)"`
	Jurisdiction string    `gorm:"type:varchar(100);not null"`
	Email        string    `gorm:"type:varchar(200)"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CompanyModel) TableName() string {
	return "companies"
}

// ToDomain converts the persistence model to a domain Company
func (m *CompanyModel) ToDomain() *partner.Company {
	return &partner.Company{
		TenantID:     m.TenantID,
		Name:         m.Name,
		GSTIN:        m.GSTIN,
		Jurisdiction: m.Jurisdiction,
		Email:        m.Email,
	}
}
