package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/infrastructure/persistence/models"
	"github.com/erp/billing/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormDocumentRepository implements billing.DocumentRepository using GORM
type GormDocumentRepository struct {
	db          *gorm.DB
	outboxSaver shared.OutboxEventSaver
}

// NewGormDocumentRepository creates a new GormDocumentRepository
func NewGormDocumentRepository(db *gorm.DB) *GormDocumentRepository {
	return &GormDocumentRepository{db: db}
}

// SetOutboxEventSaver makes Save and SaveBalance write pending domain events
// to the outbox in the same transaction
func (r *GormDocumentRepository) SetOutboxEventSaver(saver shared.OutboxEventSaver) {
	r.outboxSaver = saver
}

// WithTx returns a copy of the repository bound to tx
func (r *GormDocumentRepository) WithTx(tx *gorm.DB) *GormDocumentRepository {
	return &GormDocumentRepository{db: tx, outboxSaver: r.outboxSaver}
}

func itemsInOrder(db *gorm.DB) *gorm.DB {
	return db.Order("sort_order ASC")
}

// FindByID finds a live document with its items
func (r *GormDocumentRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*billing.Document, error) {
	var model models.BillingDocumentModel
	if err := r.db.WithContext(ctx).
		Scopes(tenant.TenantScope(tenantID)).
		Preload("Items", itemsInOrder).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate takes a row lock on the document header, then loads the items
func (r *GormDocumentRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*billing.Document, error) {
	db := r.db.WithContext(ctx)

	var model models.BillingDocumentModel
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Scopes(tenant.TenantScope(tenantID)).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	if err := itemsInOrder(db).
		Where("document_id = ?", id).
		Find(&model.Items).Error; err != nil {
		return nil, fmt.Errorf("failed to load document items: %w", err)
	}
	return model.ToDomain(), nil
}

// FindAll lists documents matching the filter with pagination
func (r *GormDocumentRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter billing.DocumentFilter) ([]billing.Document, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.BillingDocumentModel{}).
		Scopes(tenant.TenantScope(tenantID))

	if !filter.IncludeDeleted {
		query = query.Where("deleted_at IS NULL")
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.CounterpartyID != nil {
		query = query.Where("counterparty_id = ?", *filter.CounterpartyID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order(orderClause(filter.OrderBy, filter.OrderDir, DocumentSortFields, "created_at"))
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var rows []models.BillingDocumentModel
	if err := query.Preload("Items", itemsInOrder).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	docs := make([]billing.Document, len(rows))
	for i := range rows {
		docs[i] = *rows[i].ToDomain()
	}
	return docs, total, nil
}

// FindOutstanding lists live, unlocked documents of one type and counterparty
// that still have a balance, oldest due first. Undated documents come last.
// Items are not loaded.
func (r *GormDocumentRepository) FindOutstanding(ctx context.Context, tenantID, counterpartyID uuid.UUID, docType billing.DocumentType) ([]billing.Document, error) {
	var rows []models.BillingDocumentModel
	if err := r.db.WithContext(ctx).
		Scopes(tenant.TenantScope(tenantID)).
		Where("counterparty_id = ? AND type = ?", counterpartyID, docType).
		Where("deleted_at IS NULL AND locked = ?", false).
		Where("status IN ?", []billing.Status{billing.StatusOpen, billing.StatusPartiallyPaid}).
		Where("balance > 0").
		Order("due_date ASC NULLS LAST").
		Order("issue_date ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	docs := make([]billing.Document, len(rows))
	for i := range rows {
		docs[i] = *rows[i].ToDomain()
	}
	return docs, nil
}

// ExistsByNumber checks if a live document with the number exists for the type
func (r *GormDocumentRepository) ExistsByNumber(ctx context.Context, tenantID uuid.UUID, docType billing.DocumentType, number string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.BillingDocumentModel{}).
		Scopes(tenant.TenantScope(tenantID)).
		Where("type = ? AND number = ? AND deleted_at IS NULL", docType, number).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save upserts the header and replaces every line item. Soft deletion keeps
// the item rows so the document can still be printed for audit.
func (r *GormDocumentRepository) Save(ctx context.Context, doc *billing.Document) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := models.BillingDocumentModelFromDomain(doc)

		if err := tx.Omit("Items").Save(model).Error; err != nil {
			return err
		}

		if !doc.IsDeleted() {
			if err := tx.Where("document_id = ?", doc.ID).
				Delete(&models.BillingDocumentItemModel{}).Error; err != nil {
				return err
			}
			if len(model.Items) > 0 {
				if err := tx.Create(&model.Items).Error; err != nil {
					return err
				}
			}
		}

		return saveDomainEvents(ctx, r.outboxSaver, tx, doc)
	})
}

// SaveBalance writes the settlement columns only. The row must already be
// locked by the caller's transaction.
func (r *GormDocumentRepository) SaveBalance(ctx context.Context, doc *billing.Document) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.BillingDocumentModel{}).
			Scopes(tenant.TenantScope(doc.TenantID)).
			Where("id = ?", doc.ID).
			Updates(map[string]any{
				"balance":    doc.Balance,
				"status":     doc.Status,
				"version":    doc.Version,
				"updated_by": doc.UpdatedBy,
				"updated_at": doc.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return saveDomainEvents(ctx, r.outboxSaver, tx, doc)
	})
}

var _ billing.DocumentRepository = (*GormDocumentRepository)(nil)
