// Package tenant holds the GORM scopes that confine queries to one tenant.
//
// The tenant always comes from the caller's principal and is passed in
// explicitly; nothing here reads it from the request context.
package tenant

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrTenantIDRequired is added to the statement when a scope is built for uuid.Nil
var ErrTenantIDRequired = errors.New("tenant_id is required")

// TenantScope restricts a query to rows of tenantID. A nil tenant poisons
// the statement instead of silently matching nothing.
func TenantScope(tenantID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if tenantID == uuid.Nil {
			_ = db.AddError(ErrTenantIDRequired)
			return db
		}
		return db.Where("tenant_id = ?", tenantID)
	}
}

// QualifiedScope is TenantScope for joined queries where the tenant column
// must be prefixed with a table alias
func QualifiedScope(alias string, tenantID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if tenantID == uuid.Nil {
			_ = db.AddError(ErrTenantIDRequired)
			return db
		}
		return db.Where(alias+".tenant_id = ?", tenantID)
	}
}
