package shared

import "errors"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target carries the same code, so errors.Is matches
// a sentinel even when the message was specialised.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Error codes raised by the billing and reconciliation core
const (
	CodeInvalidLineItem    = "INVALID_LINE_ITEM"
	CodeItemNotFound       = "ITEM_NOT_FOUND"
	CodeMissingUnit        = "MISSING_UNIT"
	CodeInvalidWithholding = "INVALID_WITHHOLDING"
	CodeOverAllocation     = "OVER_ALLOCATION"
	CodeOverPayment        = "OVER_PAYMENT"
	CodeDocumentMismatch   = "DOCUMENT_MISMATCH"
	CodeDocumentLocked     = "DOCUMENT_LOCKED"
	CodeHasLinkedPayments  = "HAS_LINKED_PAYMENTS"
	CodeAborted            = "ABORTED"
	CodeDuplicateRequest   = "DUPLICATE_REQUEST"
)

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrUnauthorized        = NewDomainError("UNAUTHORIZED", "Not authorized to perform this action")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")

	ErrInvalidLineItem   = NewDomainError(CodeInvalidLineItem, "Line item quantity or price is invalid")
	ErrItemNotFound      = NewDomainError(CodeItemNotFound, "Referenced catalog item is missing or inactive")
	ErrMissingUnit       = NewDomainError(CodeMissingUnit, "Catalog item has no unit assigned")
	ErrOverAllocation    = NewDomainError(CodeOverAllocation, "Allocated total exceeds payment amount")
	ErrOverPayment       = NewDomainError(CodeOverPayment, "Allocation exceeds document balance")
	ErrDocumentMismatch  = NewDomainError(CodeDocumentMismatch, "Document does not belong to the payment counterparty")
	ErrDocumentLocked    = NewDomainError(CodeDocumentLocked, "Document does not accept new allocations")
	ErrHasLinkedPayments = NewDomainError(CodeHasLinkedPayments, "Document has linked payment allocations")
	ErrAborted           = NewDomainError(CodeAborted, "Transaction aborted, safe to retry")
	ErrDuplicateRequest  = NewDomainError(CodeDuplicateRequest, "Request with this idempotency key is already being processed")
)

// ErrorCode extracts the domain error code from err, or "" when err is not a DomainError
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
