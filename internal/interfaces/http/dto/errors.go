package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeValidationRequired is used when a required field is missing
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	// ErrCodeValidationFormat is used when a field has invalid format
	ErrCodeValidationFormat = "ERR_VALIDATION_FORMAT"
	// ErrCodeValidationRange is used when a value is out of range
	ErrCodeValidationRange = "ERR_VALIDATION_RANGE"
	// ErrCodeValidationLength is used when a field length is invalid
	ErrCodeValidationLength = "ERR_VALIDATION_LENGTH"
)

// Authentication error codes
const (
	// ErrCodeUnauthorized is used when authentication is required but missing/invalid
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeForbidden is used when the user lacks permission
	ErrCodeForbidden = "ERR_FORBIDDEN"
	// ErrCodeTokenExpired is used when the auth token has expired
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	// ErrCodeTokenInvalid is used when the auth token is invalid
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists is used when trying to create a duplicate resource
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	// ErrCodeConflict is used for general resource conflicts
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeConcurrencyConflict is used when optimistic locking fails
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Business rule error codes
const (
	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeBusinessRule is used for generic business rule violations
	ErrCodeBusinessRule = "ERR_BUSINESS_RULE"
)

// Billing error codes
const (
	ErrCodeInvalidLineItem    = "ERR_INVALID_LINE_ITEM"
	ErrCodeInvalidWithholding = "ERR_INVALID_WITHHOLDING"
	ErrCodeItemNotFound       = "ERR_ITEM_NOT_FOUND"
	ErrCodeMissingUnit        = "ERR_MISSING_UNIT"
	// ErrCodeOverAllocation is used when allocations exceed the payment amount
	ErrCodeOverAllocation = "ERR_OVER_ALLOCATION"
	// ErrCodeOverPayment is used when an allocation exceeds a document balance
	ErrCodeOverPayment       = "ERR_OVER_PAYMENT"
	ErrCodeDocumentMismatch  = "ERR_DOCUMENT_MISMATCH"
	ErrCodeDocumentLocked    = "ERR_DOCUMENT_LOCKED"
	ErrCodeHasLinkedPayments = "ERR_HAS_LINKED_PAYMENTS"
	// ErrCodeAborted is used when a transaction was rolled back and may be retried
	ErrCodeAborted          = "ERR_ABORTED"
	ErrCodeDuplicateRequest = "ERR_DUPLICATE_REQUEST"
	ErrCodeArchiveDisabled  = "ERR_ARCHIVE_DISABLED"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
)

// Rate limiting error codes
const (
	// ErrCodeRateLimited is used when rate limit is exceeded
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
	// ErrCodeTooManyRequests is an alias for rate limiting
	ErrCodeTooManyRequests = "ERR_TOO_MANY_REQUESTS"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	// Validation errors -> 400 Bad Request
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeValidationRequired: http.StatusBadRequest,
	ErrCodeValidationFormat:   http.StatusBadRequest,
	ErrCodeValidationRange:    http.StatusBadRequest,
	ErrCodeValidationLength:   http.StatusBadRequest,

	// Auth errors
	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,

	// Resource errors
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInvalidState: http.StatusUnprocessableEntity,
	ErrCodeBusinessRule: http.StatusUnprocessableEntity,

	// Billing errors
	ErrCodeInvalidLineItem:    http.StatusBadRequest,
	ErrCodeInvalidWithholding: http.StatusBadRequest,
	ErrCodeItemNotFound:       http.StatusUnprocessableEntity,
	ErrCodeMissingUnit:        http.StatusUnprocessableEntity,
	ErrCodeOverAllocation:     http.StatusUnprocessableEntity,
	ErrCodeOverPayment:        http.StatusUnprocessableEntity,
	ErrCodeDocumentMismatch:   http.StatusUnprocessableEntity,
	ErrCodeDocumentLocked:     http.StatusConflict,
	ErrCodeHasLinkedPayments:  http.StatusConflict,
	ErrCodeAborted:            http.StatusConflict,
	ErrCodeDuplicateRequest:   http.StatusConflict,
	ErrCodeArchiveDisabled:    http.StatusServiceUnavailable,

	// Input errors -> 400 Bad Request
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,

	// Rate limiting -> 429 Too Many Requests
	ErrCodeRateLimited:     http.StatusTooManyRequests,
	ErrCodeTooManyRequests: http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// LegacyErrorCodeMapping maps domain error codes to the API codes
var LegacyErrorCodeMapping = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"ALREADY_EXISTS":       ErrCodeAlreadyExists,
	"INVALID_INPUT":        ErrCodeInvalidInput,
	"INVALID_STATE":        ErrCodeInvalidState,
	"UNAUTHORIZED":         ErrCodeUnauthorized,
	"FORBIDDEN":            ErrCodeForbidden,
	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,
	"VALIDATION_ERROR":     ErrCodeValidation,
	"BAD_REQUEST":          ErrCodeBadRequest,
	"INTERNAL_ERROR":       ErrCodeInternal,
	"INVALID_LINE_ITEM":    ErrCodeInvalidLineItem,
	"INVALID_WITHHOLDING":  ErrCodeInvalidWithholding,
	"ITEM_NOT_FOUND":       ErrCodeItemNotFound,
	"MISSING_UNIT":         ErrCodeMissingUnit,
	"OVER_ALLOCATION":      ErrCodeOverAllocation,
	"OVER_PAYMENT":         ErrCodeOverPayment,
	"DOCUMENT_MISMATCH":    ErrCodeDocumentMismatch,
	"DOCUMENT_LOCKED":      ErrCodeDocumentLocked,
	"HAS_LINKED_PAYMENTS":  ErrCodeHasLinkedPayments,
	"ABORTED":              ErrCodeAborted,
	"DUPLICATE_REQUEST":    ErrCodeDuplicateRequest,
	"ARCHIVE_DISABLED":     ErrCodeArchiveDisabled,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Codes already in the API format or unknown are returned as-is.
func NormalizeErrorCode(code string) string {
	if newCode, ok := LegacyErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
