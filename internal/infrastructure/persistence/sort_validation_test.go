package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSortOrder(t *testing.T) {
	for input, want := range map[string]string{
		"":          "DESC",
		"asc":       "ASC",
		"  ASC ":    "ASC",
		"desc":      "DESC",
		"ascending": "DESC",
		"ASC; --":   "DESC",
	} {
		assert.Equal(t, want, ValidateSortOrder(input), "input %q", input)
	}
}

func TestValidateSortField_Documents(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "issue_date"},
		{"balance", "balance"},
		{" due_date ", "due_date"},
		{"TOTAL", "issue_date"},
		{"counterparty_id", "issue_date"},
		{"total desc", "issue_date"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidateSortField(tt.input, DocumentSortFields, "issue_date"), "input %q", tt.input)
	}
}

func TestValidateSortField_EmptyDefault(t *testing.T) {
	assert.Equal(t, "amount", ValidateSortField("amount", PaymentSortFields, ""))
	assert.Equal(t, "", ValidateSortField("tax_rate", PaymentSortFields, ""))
}

func TestSortWhitelists_ShareAuditColumns(t *testing.T) {
	for name, fields := range map[string]map[string]bool{
		"documents": DocumentSortFields,
		"payments":  PaymentSortFields,
	} {
		for _, col := range []string{"id", "number", "created_at", "updated_at"} {
			assert.True(t, fields[col], "%s should allow %s", name, col)
		}
	}
}

func TestSortInput_RejectsInjection(t *testing.T) {
	payloads := []string{
		"amount; DROP TABLE billing_payments;--",
		"total' OR '1'='1",
		"balance UNION SELECT secret FROM tenants",
		"(SELECT 1)",
		"issue_date/**/;DELETE FROM ledger_entries",
		"number\n; TRUNCATE allocations",
	}
	for _, p := range payloads {
		assert.Equal(t, "created_at", ValidateSortField(p, DocumentSortFields, "created_at"), p)
		assert.Equal(t, "DESC", ValidateSortOrder(p), p)
	}
}

func TestOrderClause(t *testing.T) {
	assert.Equal(t, "issue_date ASC", orderClause("issue_date", "asc", DocumentSortFields, "created_at"))
	assert.Equal(t, "created_at DESC", orderClause("password", "asc; --", DocumentSortFields, "created_at"))
	assert.Equal(t, "payment_date DESC", orderClause("", "", PaymentSortFields, "payment_date"))
}
