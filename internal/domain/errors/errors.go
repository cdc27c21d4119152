package errors

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
)

// Domain errors
var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrBadRequest    = errors.New("bad request")

	// Camera and capture
	ErrDeviceUnavailable     = errors.New("capture device unavailable")
	ErrResourceReleased      = errors.New("capture resource already released")
	ErrCapabilityUnsupported = errors.New("capability not supported by device")
	ErrInvalidCaptureState   = errors.New("operation not allowed in current capture state")
	ErrCaptureCancelled      = errors.New("capture cancelled")

	// Onboarding
	ErrTerminalStep  = errors.New("onboarding already complete")
	ErrInitialStep   = errors.New("no step before consent")
	ErrUnknownIntent = errors.New("unknown intent")
	ErrSessionClosed = errors.New("onboarding session closed")
	ErrStepChanged   = errors.New("onboarding step changed while verifying")

	// Ledger
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrWalletNotCreated    = errors.New("wallet not created")
)

// Error codes returned to API clients
const (
	CodeNotFound            = "NOT_FOUND"
	CodeBadRequest          = "BAD_REQUEST"
	CodeInternalError       = "INTERNAL_ERROR"
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeWalletNotCreated    = "WALLET_NOT_CREATED"
	CodeDeviceUnavailable   = "DEVICE_UNAVAILABLE"
	CodeResourceReleased    = "RESOURCE_RELEASED"
	CodeInvalidCaptureState = "INVALID_CAPTURE_STATE"
	CodeInvalidTransition   = "INVALID_TRANSITION"
	CodeSessionClosed       = "SESSION_CLOSED"
	CodeIdempotencyConflict = "IDEMPOTENCY_CONFLICT"
	CodeConflict            = "CONFLICT"
	CodeRequestCancelled    = "REQUEST_CANCELLED"
	CodeRequestTimeout      = "REQUEST_TIMEOUT"
)

// StatusClientClosedRequest is reported when the caller went away before the
// request finished.
const StatusClientClosedRequest = 499

// FieldErrors maps a field name to a human readable validation message.
// It is returned as an error value by the onboarding machine so callers can
// render inline messages per field.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+f[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records msg for field, keeping the first message if one exists.
func (f FieldErrors) Add(field, msg string) {
	if _, ok := f[field]; !ok {
		f[field] = msg
	}
}

// OrNil returns nil when no field failed.
func (f FieldErrors) OrNil() error {
	if len(f) == 0 {
		return nil
	}
	return f
}

// AsFieldErrors extracts FieldErrors from err.
func AsFieldErrors(err error) (FieldErrors, bool) {
	var fe FieldErrors
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// AppError represents application error with HTTP status
type AppError struct {
	Status  int               `json:"-"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Err     error             `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new app error
func NewAppError(status int, code, message string, err error) *AppError {
	return &AppError{
		Status:  status,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func NotFound(message string) *AppError {
	return NewAppError(http.StatusNotFound, CodeNotFound, message, ErrNotFound)
}

func BadRequest(message string) *AppError {
	return NewAppError(http.StatusBadRequest, CodeBadRequest, message, ErrInvalidInput)
}

func Conflict(code, message string, err error) *AppError {
	return NewAppError(http.StatusConflict, code, message, err)
}

func Unavailable(code, message string, err error) *AppError {
	return NewAppError(http.StatusServiceUnavailable, code, message, err)
}

func InternalError(err error) *AppError {
	return NewAppError(http.StatusInternalServerError, CodeInternalError, "internal server error", err)
}

// Validation wraps field errors into a 422 response error.
func Validation(fields FieldErrors) *AppError {
	appErr := NewAppError(http.StatusUnprocessableEntity, CodeValidationFailed, "validation failed", fields)
	appErr.Fields = fields
	return appErr
}

// FromDomain maps a domain error onto its HTTP representation.
func FromDomain(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if fields, ok := AsFieldErrors(err); ok {
		return Validation(fields)
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return NewAppError(http.StatusNotFound, CodeNotFound, err.Error(), err)
	case errors.Is(err, ErrInsufficientBalance):
		return Conflict(CodeInsufficientBalance, "not enough points to redeem this reward", err)
	case errors.Is(err, ErrWalletNotCreated):
		return Conflict(CodeWalletNotCreated, "wallet is created when onboarding completes", err)
	case errors.Is(err, ErrDeviceUnavailable):
		return Unavailable(CodeDeviceUnavailable, "camera unavailable, retry or upload instead", err)
	case errors.Is(err, ErrResourceReleased):
		return Conflict(CodeResourceReleased, "camera was released, start the capture again", err)
	case errors.Is(err, ErrInvalidCaptureState), errors.Is(err, ErrCaptureCancelled):
		return Conflict(CodeInvalidCaptureState, err.Error(), err)
	case errors.Is(err, ErrTerminalStep), errors.Is(err, ErrInitialStep), errors.Is(err, ErrStepChanged):
		return Conflict(CodeInvalidTransition, err.Error(), err)
	case errors.Is(err, ErrSessionClosed):
		return NewAppError(http.StatusGone, CodeSessionClosed, err.Error(), err)
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrUnknownIntent),
		errors.Is(err, ErrInvalidInput), errors.Is(err, ErrBadRequest):
		return NewAppError(http.StatusBadRequest, CodeBadRequest, err.Error(), err)
	case errors.Is(err, ErrAlreadyExists):
		return Conflict(CodeConflict, err.Error(), err)
	case errors.Is(err, context.DeadlineExceeded):
		return NewAppError(http.StatusGatewayTimeout, CodeRequestTimeout, "request timed out", err)
	case errors.Is(err, context.Canceled):
		return NewAppError(StatusClientClosedRequest, CodeRequestCancelled, "request cancelled", err)
	}
	return InternalError(err)
}
