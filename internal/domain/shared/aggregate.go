package shared

import (
	"time"

	"github.com/google/uuid"
)

// Entity is implemented by everything that has an identity and audit timestamps
type Entity interface {
	GetID() uuid.UUID
	GetCreatedAt() time.Time
	GetUpdatedAt() time.Time
}

// BaseEntity carries identity and timestamps
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (e *BaseEntity) GetID() uuid.UUID        { return e.ID }
func (e *BaseEntity) GetCreatedAt() time.Time { return e.CreatedAt }
func (e *BaseEntity) GetUpdatedAt() time.Time { return e.UpdatedAt }

// NewBaseEntity creates a new base entity with generated ID
func NewBaseEntity() BaseEntity {
	now := time.Now()
	return BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}

// AggregateRoot is the base interface for all aggregate roots
type AggregateRoot interface {
	Entity
	GetVersion() int
	AddDomainEvent(event DomainEvent)
	GetDomainEvents() []DomainEvent
	ClearDomainEvents()
}

// TenantAggregateRoot is a tenant-scoped aggregate with optimistic version,
// pending domain events and the principals that created and last changed it.
type TenantAggregateRoot struct {
	BaseEntity
	TenantID     uuid.UUID
	Version      int
	CreatedBy    *uuid.UUID
	UpdatedBy    *uuid.UUID
	domainEvents []DomainEvent
}

// NewTenantAggregateRoot creates a new aggregate root owned by the principal's tenant
func NewTenantAggregateRoot(actor Principal) TenantAggregateRoot {
	root := TenantAggregateRoot{
		BaseEntity: NewBaseEntity(),
		TenantID:   actor.TenantID,
		Version:    1,
	}
	if actor.UserID != uuid.Nil {
		userID := actor.UserID
		root.CreatedBy = &userID
		root.UpdatedBy = &userID
	}
	return root
}

// GetVersion returns the aggregate version
func (a *TenantAggregateRoot) GetVersion() int {
	return a.Version
}

// MarkChanged records a mutation by actor: bumps the version and update audit fields
func (a *TenantAggregateRoot) MarkChanged(actor Principal) {
	a.Version++
	a.UpdatedAt = time.Now()
	if actor.UserID != uuid.Nil {
		userID := actor.UserID
		a.UpdatedBy = &userID
	}
}

// BelongsTo reports whether the aggregate is owned by tenantID
func (a *TenantAggregateRoot) BelongsTo(tenantID uuid.UUID) bool {
	return a.TenantID == tenantID
}

// AddDomainEvent adds a domain event to be published
func (a *TenantAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.domainEvents = append(a.domainEvents, event)
}

// GetDomainEvents returns all pending domain events
func (a *TenantAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.domainEvents
}

// ClearDomainEvents clears the pending domain events
func (a *TenantAggregateRoot) ClearDomainEvents() {
	a.domainEvents = nil
}
