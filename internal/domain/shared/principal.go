package shared

import "github.com/google/uuid"

// Principal is the acting user of a mutating call. It is passed explicitly
// into every application service command instead of living in ambient state.
type Principal struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
}

// NewPrincipal builds a principal for the given tenant and user
func NewPrincipal(tenantID, userID uuid.UUID) Principal {
	return Principal{TenantID: tenantID, UserID: userID}
}

// Validate ensures the principal identifies a tenant
func (p Principal) Validate() error {
	if p.TenantID == uuid.Nil {
		return NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	return nil
}
