package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/erp/billing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when no meter is supplied
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// ReceivablesProvider reports outstanding balances for the periodic gauges
type ReceivablesProvider interface {
	// OutstandingByType sums the open balance of live documents per document type
	OutstandingByType(ctx context.Context, tenantID uuid.UUID) (map[string]decimal.Decimal, error)
}

// TenantProvider lists tenants to collect gauges for
type TenantProvider interface {
	GetActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// BillingMetricsConfig configures BillingMetrics
type BillingMetricsConfig struct {
	Meter       metric.Meter
	Logger      *zap.Logger
	Receivables ReceivablesProvider
}

// BillingMetrics records billing activity. A nil *BillingMetrics is valid
// and records nothing, so services can run without metrics.
type BillingMetrics struct {
	logger      *zap.Logger
	receivables ReceivablesProvider

	documentsIssued  *Counter
	documentAmount   *Histogram
	paymentsRecorded *Counter
	paymentAllocated *Histogram
	failures         *Counter
	outstanding      *FloatGauge

	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once
}

// NewBillingMetrics creates the billing instruments
func NewBillingMetrics(cfg BillingMetricsConfig) (*BillingMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	bm := &BillingMetrics{
		logger:      logger,
		receivables: cfg.Receivables,
		stopChan:    make(chan struct{}),
	}

	var err error
	if bm.documentsIssued, err = NewCounter(cfg.Meter,
		"billing_documents_issued_total", "Billing documents issued", "{documents}"); err != nil {
		return nil, err
	}
	if bm.documentAmount, err = NewHistogram(cfg.Meter,
		"billing_document_total_amount", "Grand total of issued documents", "{currency}",
		100, 1000, 10000, 100000, 1000000); err != nil {
		return nil, err
	}
	if bm.paymentsRecorded, err = NewCounter(cfg.Meter,
		"billing_payments_recorded_total", "Payments recorded", "{payments}"); err != nil {
		return nil, err
	}
	if bm.paymentAllocated, err = NewHistogram(cfg.Meter,
		"billing_payment_allocated_ratio", "Share of a payment allocated to documents", "1",
		0, 0.25, 0.5, 0.75, 1); err != nil {
		return nil, err
	}
	if bm.failures, err = NewCounter(cfg.Meter,
		"billing_operation_failures_total", "Failed billing operations by error code", "{failures}"); err != nil {
		return nil, err
	}
	if bm.outstanding, err = NewFloatGauge(cfg.Meter,
		"billing_outstanding_balance", "Open balance of live settleable documents", "{currency}"); err != nil {
		return nil, err
	}
	return bm, nil
}

// RecordDocumentIssued counts an issued document and its total
func (bm *BillingMetrics) RecordDocumentIssued(ctx context.Context, tenantID uuid.UUID, docType string, total decimal.Decimal) {
	if bm == nil {
		return
	}
	attrs := []attribute.KeyValue{AttrTenantID.String(tenantID.String()), AttrDocumentType.String(docType)}
	bm.documentsIssued.Inc(ctx, attrs...)
	bm.documentAmount.Record(ctx, total.InexactFloat64(), attrs...)
}

// RecordPaymentApplied counts a payment and how much of it went to documents
func (bm *BillingMetrics) RecordPaymentApplied(ctx context.Context, tenantID uuid.UUID, direction string, amount, allocated decimal.Decimal) {
	if bm == nil {
		return
	}
	attrs := []attribute.KeyValue{AttrTenantID.String(tenantID.String()), AttrDirection.String(direction)}
	bm.paymentsRecorded.Inc(ctx, attrs...)
	if amount.IsPositive() {
		bm.paymentAllocated.Record(ctx, allocated.Div(amount).InexactFloat64(), attrs...)
	}
}

// RecordFailure counts a failed operation by its domain error code
func (bm *BillingMetrics) RecordFailure(ctx context.Context, tenantID uuid.UUID, operation string, err error) {
	if bm == nil || err == nil {
		return
	}
	code := shared.ErrorCode(err)
	if code == "" {
		code = "INTERNAL"
	}
	bm.failures.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrOperation.String(operation),
		AttrErrorCode.String(code))
}

// StartPeriodicCollection refreshes the outstanding balance gauges every
// interval until Stop is called or ctx ends
func (bm *BillingMetrics) StartPeriodicCollection(ctx context.Context, tenants TenantProvider, interval time.Duration) {
	if bm == nil || bm.receivables == nil {
		return
	}
	bm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		go bm.runCollection(ctx, tenants, interval)
	})
}

func (bm *BillingMetrics) runCollection(ctx context.Context, tenants TenantProvider, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	bm.collect(ctx, tenants)
	for {
		select {
		case <-bm.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			bm.collect(ctx, tenants)
		}
	}
}

func (bm *BillingMetrics) collect(ctx context.Context, tenants TenantProvider) {
	ids, err := tenants.GetActiveTenantIDs(ctx)
	if err != nil {
		bm.logger.Error("Failed to list tenants for metrics collection", zap.Error(err))
		return
	}
	for _, tenantID := range ids {
		byType, err := bm.receivables.OutstandingByType(ctx, tenantID)
		if err != nil {
			bm.logger.Warn("Failed to collect outstanding balances",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err))
			continue
		}
		for docType, balance := range byType {
			bm.outstanding.Record(ctx, balance.InexactFloat64(),
				AttrTenantID.String(tenantID.String()),
				AttrDocumentType.String(docType))
		}
	}
}

// Stop ends periodic collection
func (bm *BillingMetrics) Stop() {
	if bm == nil {
		return
	}
	bm.stopOnce.Do(func() {
		close(bm.stopChan)
	})
}
