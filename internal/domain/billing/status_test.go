package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSettlementStatus(t *testing.T) {
	tests := []struct {
		balance string
		total   string
		want    Status
	}{
		{"1000", "1000", StatusOpen},
		{"600", "1000", StatusPartiallyPaid},
		{"0.01", "1000", StatusPartiallyPaid},
		{"0", "1000", StatusPaid},
		{"-5", "1000", StatusPaid},
		{"0", "0", StatusPaid},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SettlementStatus(dec(tt.balance), dec(tt.total)), "balance=%s total=%s", tt.balance, tt.total)
	}
}

func TestStatus_Transitions(t *testing.T) {
	assert.True(t, StatusOpen.CanTransitionTo(StatusPaid))
	assert.True(t, StatusPaid.CanTransitionTo(StatusOpen))
	assert.True(t, StatusCancelled.CanTransitionTo(StatusDeleted))
	assert.False(t, StatusCancelled.CanTransitionTo(StatusOpen))
	assert.False(t, StatusPartiallyPaid.CanTransitionTo(StatusCancelled))
	assert.False(t, StatusDeleted.CanTransitionTo(StatusOpen))

	for s := range transitions {
		assert.True(t, s.IsValid())
		assert.False(t, s.CanTransitionTo(s), "%s must not list itself", s)
	}
	assert.False(t, Status("ARCHIVED").IsValid())
}

func TestDocumentType(t *testing.T) {
	assert.True(t, DocumentTypeInvoice.IsSettleable())
	assert.True(t, DocumentTypePurchaseBill.IsSettleable())
	assert.False(t, DocumentTypePurchaseOrder.IsSettleable())
	assert.False(t, DocumentTypeCreditNote.IsSettleable())
	assert.False(t, DocumentTypeDebitNote.IsSettleable())

	assert.True(t, DocumentTypePurchaseOrder.AllowsWithholding())
	assert.False(t, DocumentTypeInvoice.AllowsWithholding())
	assert.False(t, DocumentType("QUOTE").IsValid())
}
