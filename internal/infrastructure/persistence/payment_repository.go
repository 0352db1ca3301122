package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/billing/internal/domain/finance"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/infrastructure/persistence/models"
	"github.com/erp/billing/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPaymentRepository implements finance.PaymentRepository using GORM
type GormPaymentRepository struct {
	db          *gorm.DB
	outboxSaver shared.OutboxEventSaver
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// SetOutboxEventSaver sets the outbox event saver used by Save
func (r *GormPaymentRepository) SetOutboxEventSaver(saver shared.OutboxEventSaver) {
	r.outboxSaver = saver
}

// WithTx returns a copy of the repository bound to tx
func (r *GormPaymentRepository) WithTx(tx *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: tx, outboxSaver: r.outboxSaver}
}

func allocationsInOrder(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC").Order("id ASC")
}

// FindByID finds a live payment with its allocations
func (r *GormPaymentRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*finance.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).
		Scopes(tenant.TenantScope(tenantID)).
		Preload("Allocations", allocationsInOrder).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate locks the payment row, then loads its allocations
func (r *GormPaymentRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*finance.Payment, error) {
	db := r.db.WithContext(ctx)

	var model models.PaymentModel
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Scopes(tenant.TenantScope(tenantID)).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	if err := allocationsInOrder(db).
		Where("payment_id = ?", id).
		Find(&model.Allocations).Error; err != nil {
		return nil, fmt.Errorf("failed to load payment allocations: %w", err)
	}
	return model.ToDomain(), nil
}

// FindAll lists live payments matching the filter with pagination
func (r *GormPaymentRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter finance.PaymentFilter) ([]finance.Payment, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Scopes(tenant.TenantScope(tenantID)).
		Where("deleted_at IS NULL")

	if filter.CounterpartyID != nil {
		query = query.Where("counterparty_id = ?", *filter.CounterpartyID)
	}
	if filter.Direction != nil {
		query = query.Where("direction = ?", *filter.Direction)
	}
	if filter.Mode != nil {
		query = query.Where("mode = ?", *filter.Mode)
	}
	if filter.FromDate != nil {
		query = query.Where("payment_date >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("payment_date <= ?", *filter.ToDate)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order(orderClause(filter.OrderBy, filter.OrderDir, PaymentSortFields, "payment_date"))
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var rows []models.PaymentModel
	if err := query.Preload("Allocations", allocationsInOrder).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	payments := make([]finance.Payment, len(rows))
	for i := range rows {
		payments[i] = *rows[i].ToDomain()
	}
	return payments, total, nil
}

// ExistsByNumber checks if a live payment with the number exists
func (r *GormPaymentRepository) ExistsByNumber(ctx context.Context, tenantID uuid.UUID, number string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Scopes(tenant.TenantScope(tenantID)).
		Where("number = ? AND deleted_at IS NULL", number).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save upserts the payment and replaces its allocation rows
func (r *GormPaymentRepository) Save(ctx context.Context, payment *finance.Payment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := models.PaymentModelFromDomain(payment)

		if err := tx.Omit("Allocations").Save(model).Error; err != nil {
			return err
		}
		if err := tx.Where("payment_id = ?", payment.ID).
			Delete(&models.PaymentAllocationModel{}).Error; err != nil {
			return err
		}
		if len(model.Allocations) > 0 {
			if err := tx.Create(&model.Allocations).Error; err != nil {
				return err
			}
		}

		return saveDomainEvents(ctx, r.outboxSaver, tx, payment)
	})
}

// CountAllocationsForDocument counts allocation rows of live payments that
// point at the document
func (r *GormPaymentRepository) CountAllocationsForDocument(ctx context.Context, tenantID, documentID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Table("payment_allocations AS a").
		Joins("JOIN payments AS p ON p.id = a.payment_id").
		Scopes(tenant.QualifiedScope("a", tenantID)).
		Where("a.document_id = ? AND p.deleted_at IS NULL", documentID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

var _ finance.PaymentRepository = (*GormPaymentRepository)(nil)
