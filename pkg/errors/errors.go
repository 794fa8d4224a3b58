package errors

import (
	"errors"
	"net/http"
)

// Standard error types
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("resource conflict")
	ErrInternal           = errors.New("internal server error")
	ErrTemporaryFailure   = errors.New("temporary failure")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("timeout")
	ErrRateLimited        = errors.New("rate limited")

	// Order and inventory failures
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidState      = errors.New("invalid order state")
	ErrAlreadyTerminal   = errors.New("order is in a terminal state")
	ErrStockConflict     = errors.New("stock conflict")
	ErrPaymentFailure    = errors.New("payment failure")
)

// Stable kind identifiers surfaced to API clients.
const (
	KindNotFound           = "NotFound"
	KindValidation         = "ValidationError"
	KindUnauthorized       = "Unauthorized"
	KindForbidden          = "Forbidden"
	KindConflict           = "Conflict"
	KindInsufficientStock  = "InsufficientStock"
	KindInvalidState       = "InvalidState"
	KindAlreadyTerminal    = "AlreadyTerminal"
	KindStockConflict      = "StockConflict"
	KindPaymentFailure     = "PaymentFailure"
	KindServiceUnavailable = "ServiceUnavailable"
	KindTimeout            = "Timeout"
	KindRateLimited        = "RateLimited"
	KindInternal           = "Internal"
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrNotFound, KindNotFound},
	{ErrInvalidInput, KindValidation},
	{ErrUnauthorized, KindUnauthorized},
	{ErrForbidden, KindForbidden},
	{ErrInsufficientStock, KindInsufficientStock},
	{ErrInvalidState, KindInvalidState},
	{ErrAlreadyTerminal, KindAlreadyTerminal},
	{ErrStockConflict, KindStockConflict},
	{ErrPaymentFailure, KindPaymentFailure},
	{ErrConflict, KindConflict},
	{ErrServiceUnavailable, KindServiceUnavailable},
	{ErrTemporaryFailure, KindServiceUnavailable},
	{ErrTimeout, KindTimeout},
	{ErrRateLimited, KindRateLimited},
}

// AppError represents a structured application error with context
type AppError struct {
	Err        error
	StatusCode int
	Message    string
	Retryable  bool
	Context    map[string]interface{}
}

// Error returns the error message
func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithContext adds additional context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new AppError with the given parameters
func NewAppError(err error, message string, statusCode int, retryable bool) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Context:    make(map[string]interface{}),
	}
}

// Kind returns the stable kind name of err. Unclassified errors are Internal.
func Kind(err error) string {
	if err == nil {
		return ""
	}

	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}

	return KindInternal
}

// StatusCode returns the HTTP status carried by err, or 500.
func StatusCode(err error) int {
	var appErr *AppError

	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}

	return http.StatusInternalServerError
}

// IsRetryable checks if the error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError

	if errors.As(err, &appErr) {
		return appErr.Retryable
	}

	return errors.Is(err, ErrTemporaryFailure) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrStockConflict)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(message string) *AppError {
	return NewAppError(ErrNotFound, message, http.StatusNotFound, false)
}

// NewValidationError creates an error for malformed input
func NewValidationError(message string) *AppError {
	return NewAppError(ErrInvalidInput, message, http.StatusBadRequest, false)
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(message string) *AppError {
	return NewAppError(ErrUnauthorized, message, http.StatusUnauthorized, false)
}

// NewForbiddenError creates a forbidden error
func NewForbiddenError(message string) *AppError {
	return NewAppError(ErrForbidden, message, http.StatusForbidden, false)
}

// NewConflictError creates a conflict error
func NewConflictError(message string) *AppError {
	return NewAppError(ErrConflict, message, http.StatusConflict, false)
}

// NewInsufficientStockError reports that a requested quantity exceeds available stock
func NewInsufficientStockError(message string) *AppError {
	return NewAppError(ErrInsufficientStock, message, http.StatusConflict, false)
}

// NewInvalidStateError reports a disallowed status transition
func NewInvalidStateError(message string) *AppError {
	return NewAppError(ErrInvalidState, message, http.StatusConflict, false)
}

// NewAlreadyTerminalError reports a change attempted on a terminal order
func NewAlreadyTerminalError(message string) *AppError {
	return NewAppError(ErrAlreadyTerminal, message, http.StatusConflict, false)
}

// NewStockConflictError reports a stock adjustment that lost a race or would underflow
func NewStockConflictError(message string) *AppError {
	return NewAppError(ErrStockConflict, message, http.StatusConflict, true)
}

// NewPaymentFailureError reports a non-successful payment
func NewPaymentFailureError(message string) *AppError {
	return NewAppError(ErrPaymentFailure, message, http.StatusPaymentRequired, false)
}

// NewInternalError creates an internal server error
func NewInternalError(message string) *AppError {
	return NewAppError(ErrInternal, message, http.StatusInternalServerError, true)
}

// NewInternalErrorWithCause creates an internal error that still matches cause with errors.Is
func NewInternalErrorWithCause(message string, cause error) *AppError {
	return NewAppError(errors.Join(ErrInternal, cause), message, http.StatusInternalServerError, true)
}

// NewTemporaryError creates a temporary error
func NewTemporaryError(message string) *AppError {
	return NewAppError(ErrTemporaryFailure, message, http.StatusServiceUnavailable, true)
}

// NewServiceUnavailableError creates an error for a dependency that refuses calls
func NewServiceUnavailableError(message string) *AppError {
	return NewAppError(ErrServiceUnavailable, message, http.StatusServiceUnavailable, true)
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(message string) *AppError {
	return NewAppError(ErrTimeout, message, http.StatusGatewayTimeout, true)
}

// NewRateLimitedError creates a rate limited error
func NewRateLimitedError(message string) *AppError {
	return NewAppError(ErrRateLimited, message, http.StatusTooManyRequests, true)
}
