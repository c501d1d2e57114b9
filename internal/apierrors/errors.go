package apierrors

import (
	"fmt"
	"net/http"
)

// Machine-readable error codes returned to API clients.
const (
	CodeInvalidInput         = "INVALID_INPUT"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeForbidden            = "FORBIDDEN"
	CodeNotFound             = "NOT_FOUND"
	CodeProgramNotFound      = "PROGRAM_NOT_FOUND"
	CodeProgramInactive      = "PROGRAM_INACTIVE"
	CodeOfferNotFound        = "OFFER_NOT_FOUND"
	CodeCreativeNotFound     = "CREATIVE_NOT_FOUND"
	CodeAffiliateNotFound    = "AFFILIATE_NOT_FOUND"
	CodeAlreadyApplied       = "ALREADY_APPLIED"
	CodeInvalidRate          = "INVALID_RATE"
	CodeLedgerNotFound       = "LEDGER_ACCOUNT_NOT_FOUND"
	CodeNoPendingEarnings    = "NO_PENDING_EARNINGS"
	CodePaymentProviderError = "PAYMENT_PROVIDER_ERROR"
	CodeUploadFailed         = "UPLOAD_FAILED"
	CodeInternalError        = "INTERNAL_ERROR"
)

// APIError is a typed error carrying an HTTP status, a machine-readable code
// and a client-safe message. Authorization and validation failures are
// classified by type, never by message content.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	internal   error
}

func (e *APIError) Error() string {
	if e.internal != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.internal)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the internal error for errors.Is/As chains.
func (e *APIError) Unwrap() error {
	return e.internal
}

// NotFound creates a 404 APIError
func NotFound(code, message string) *APIError {
	return &APIError{StatusCode: http.StatusNotFound, Code: code, Message: message}
}

// BadRequest creates a 400 APIError
func BadRequest(code, message string) *APIError {
	return &APIError{StatusCode: http.StatusBadRequest, Code: code, Message: message}
}

// Unauthorized creates a 401 APIError
func Unauthorized(message string) *APIError {
	return &APIError{StatusCode: http.StatusUnauthorized, Code: CodeUnauthorized, Message: message}
}

// Forbidden creates a 403 APIError
func Forbidden(message string) *APIError {
	return &APIError{StatusCode: http.StatusForbidden, Code: CodeForbidden, Message: message}
}

// Conflict creates a 409 APIError
func Conflict(code, message string) *APIError {
	return &APIError{StatusCode: http.StatusConflict, Code: code, Message: message}
}

// ServiceUnavailable creates a 503 APIError wrapping the internal cause
func ServiceUnavailable(code, message string, internalErr error) *APIError {
	return &APIError{
		StatusCode: http.StatusServiceUnavailable,
		Code:       code,
		Message:    message,
		internal:   internalErr,
	}
}

// InternalError creates a sanitized 500 APIError - never exposes internal details
func InternalError(internalErr error) *APIError {
	return &APIError{
		StatusCode: http.StatusInternalServerError,
		Code:       CodeInternalError,
		Message:    "An internal error occurred. Please try again later.",
		internal:   internalErr,
	}
}
