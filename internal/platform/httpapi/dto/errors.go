package dto

import "net/http"

// Error codes returned in ErrorInfo.Code.
const (
	ErrCodeInternal            = "ERR_INTERNAL"
	ErrCodeValidation          = "ERR_VALIDATION"
	ErrCodeBadRequest          = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput        = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON         = "ERR_INVALID_JSON"
	ErrCodeUnauthorized        = "ERR_UNAUTHORIZED"
	ErrCodeForbidden           = "ERR_FORBIDDEN"
	ErrCodeTokenExpired        = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid        = "ERR_TOKEN_INVALID"
	ErrCodeTokenRevoked        = "ERR_TOKEN_REVOKED"
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeInvalidState        = "ERR_INVALID_STATE"
	ErrCodeInsufficientStock   = "ERR_INSUFFICIENT_STOCK"
	ErrCodeRequestTooLarge     = "ERR_REQUEST_TOO_LARGE"
	ErrCodeUnavailable         = "ERR_SERVICE_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:            http.StatusInternalServerError,
	ErrCodeValidation:          http.StatusBadRequest,
	ErrCodeBadRequest:          http.StatusBadRequest,
	ErrCodeInvalidInput:        http.StatusBadRequest,
	ErrCodeInvalidJSON:         http.StatusBadRequest,
	ErrCodeUnauthorized:        http.StatusUnauthorized,
	ErrCodeForbidden:           http.StatusForbidden,
	ErrCodeTokenExpired:        http.StatusUnauthorized,
	ErrCodeTokenInvalid:        http.StatusUnauthorized,
	ErrCodeTokenRevoked:        http.StatusUnauthorized,
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeInvalidState:        http.StatusUnprocessableEntity,
	ErrCodeInsufficientStock:   http.StatusUnprocessableEntity,
	ErrCodeRequestTooLarge:     http.StatusRequestEntityTooLarge,
	ErrCodeUnavailable:         http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// domainCodes maps sharedkernel.DomainError codes to API codes.
var domainCodes = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"ALREADY_EXISTS":       ErrCodeAlreadyExists,
	"INVALID_INPUT":        ErrCodeInvalidInput,
	"INVALID_STATE":        ErrCodeInvalidState,
	"UNAUTHORIZED":         ErrCodeUnauthorized,
	"FORBIDDEN":            ErrCodeForbidden,
	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,
	"INSUFFICIENT_STOCK":   ErrCodeInsufficientStock,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Unknown codes are returned unchanged.
func NormalizeErrorCode(code string) string {
	if c, ok := domainCodes[code]; ok {
		return c
	}
	return code
}
