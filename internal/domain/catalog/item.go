// Package catalog exposes the read-only view of catalog items that billing
// documents reference. Catalog management itself happens outside this service.
package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Item is a catalog item as seen by billing
type Item struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Code     string
	Name     string
	HSNCode  string
	Unit     string
	Price    decimal.Decimal
	TaxRate  decimal.Decimal
	CessRate decimal.Decimal
	Active   bool
}

// HasUnit reports whether the item has a unit of measure assigned
func (i *Item) HasUnit() bool {
	return i.Unit != ""
}

// Snapshot captures the printable fields of the item at the time it is billed
func (i *Item) Snapshot() ItemSnapshot {
	return ItemSnapshot{
		ItemID:  i.ID,
		Code:    i.Code,
		Name:    i.Name,
		HSNCode: i.HSNCode,
		Unit:    i.Unit,
	}
}

// ItemSnapshot is frozen on a line item so that later catalog edits never
// change an issued document
type ItemSnapshot struct {
	ItemID  uuid.UUID `json:"item_id"`
	Code    string    `json:"code"`
	Name    string    `json:"name"`
	HSNCode string    `json:"hsn_code,omitempty"`
	Unit    string    `json:"unit"`
}

// ItemReader looks up catalog items. Implementations must read through the
// caller's transaction so lookups stay consistent for its duration.
type ItemReader interface {
	// FindByIDs returns the requested items keyed by ID; missing IDs are simply absent
	FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]*Item, error)
}
