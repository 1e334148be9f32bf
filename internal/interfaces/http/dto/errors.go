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
	// ErrCodeForbidden is used when the caller lacks permission
	ErrCodeForbidden = "ERR_FORBIDDEN"
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
	// ErrCodeAdmissionDenied is used when a member fails an activity admission check
	ErrCodeAdmissionDenied = "ERR_ADMISSION_DENIED"
	// ErrCodeSoldOut is used when activity stock is exhausted
	ErrCodeSoldOut = "ERR_SOLD_OUT"
	// ErrCodeIllegalTransition is used when an instance status transition is not allowed
	ErrCodeIllegalTransition = "ERR_ILLEGAL_TRANSITION"
	// ErrCodeLockContention is used when the per-instance lock is held by another request
	ErrCodeLockContention = "ERR_LOCK_CONTENTION"
	// ErrCodeSettlementFailure is used when settlement of a completed instance failed
	ErrCodeSettlementFailure = "ERR_SETTLEMENT_FAILURE"
	// ErrCodeInvalidRules is used when an activity rule bag fails validation
	ErrCodeInvalidRules = "ERR_INVALID_RULES"
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

	// Resource errors
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInvalidState:      http.StatusUnprocessableEntity,
	ErrCodeBusinessRule:      http.StatusUnprocessableEntity,
	ErrCodeAdmissionDenied:   http.StatusUnprocessableEntity,
	ErrCodeIllegalTransition: http.StatusUnprocessableEntity,
	ErrCodeInvalidRules:      http.StatusBadRequest,

	// Contention -> 409 Conflict; retryable by the client
	ErrCodeSoldOut:        http.StatusConflict,
	ErrCodeLockContention: http.StatusConflict,

	// Settlement failures surface as 500; the transition itself committed
	ErrCodeSettlementFailure: http.StatusInternalServerError,

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

// LegacyErrorCodeMapping maps old error codes to new standardized codes
// This is for backward compatibility with existing domain errors
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
	"ADMISSION_DENIED":     ErrCodeAdmissionDenied,
	"SOLD_OUT":             ErrCodeSoldOut,
	"ILLEGAL_TRANSITION":   ErrCodeIllegalTransition,
	"LOCK_CONTENTION":      ErrCodeLockContention,
	"SETTLEMENT_FAILURE":   ErrCodeSettlementFailure,
	"INVALID_RULES":        ErrCodeInvalidRules,
	"INVALID_STATUS":       ErrCodeInvalidInput,
	"INVALID_CONFIG":       ErrCodeInvalidInput,
	"INVALID_MEMBER":       ErrCodeInvalidInput,
	"INVALID_TEMPLATE":     ErrCodeInvalidInput,
}

// NormalizeErrorCode converts a legacy error code to the standardized format
// If the code is already in the new format or unknown, returns it as-is
func NormalizeErrorCode(code string) string {
	if newCode, ok := LegacyErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
