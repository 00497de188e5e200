package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"
)

// ErrorType represents the category of an error
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeInternal     ErrorType = "INTERNAL"
	ErrorTypeUnavailable  ErrorType = "UNAVAILABLE"
	ErrorTypeStore        ErrorType = "STORE"
	ErrorTypeRateLimited  ErrorType = "RATE_LIMITED"
)

// Error codes used across the diary service
const (
	CodeEntryNotFound       = "ENTRY_NOT_FOUND"
	CodeUserNotFound        = "USER_NOT_FOUND"
	CodeSessionNotFound     = "SESSION_NOT_FOUND"
	CodeDuplicateEntry      = "DUPLICATE_ENTRY"
	CodeInvalidDate         = "INVALID_DATE"
	CodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	CodeStoreError          = "STORE_ERROR"
	CodeRateLimited         = "RATE_LIMITED"
)

// AppError represents an application-specific error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Retryable  bool                   `json:"retryable,omitempty"`
	Cause      error                  `json:"-"`
	StackTrace string                 `json:"-"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetail adds a single detail entry
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithCause wraps an underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

func captureStackTrace() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var b strings.Builder
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&b, "%s:%d %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			break
		}
	}
	return b.String()
}

func newError(t ErrorType, status int, message string) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		HTTPStatus: status,
		StackTrace: captureStackTrace(),
	}
}

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return newError(ErrorTypeValidation, http.StatusBadRequest, message)
}

// NewNotFoundError creates a not found error for the named resource
func NewNotFoundError(resource string) *AppError {
	return newError(ErrorTypeNotFound, http.StatusNotFound, fmt.Sprintf("%s not found", resource))
}

// NewConflictError creates a conflict error
func NewConflictError(message string) *AppError {
	return newError(ErrorTypeConflict, http.StatusConflict, message)
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(message string) *AppError {
	if message == "" {
		message = "unauthorized"
	}
	return newError(ErrorTypeUnauthorized, http.StatusUnauthorized, message)
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return newError(ErrorTypeInternal, http.StatusInternalServerError, message)
}

// NewUnavailableError creates a service unavailable error
func NewUnavailableError(service string) *AppError {
	return newError(ErrorTypeUnavailable, http.StatusServiceUnavailable,
		fmt.Sprintf("service '%s' is unavailable", service))
}

// NewProviderUnavailableError reports a failed or timed out call to the
// analysis provider. It is always retryable.
func NewProviderUnavailableError(operation string, err error) *AppError {
	e := newError(ErrorTypeUnavailable, http.StatusServiceUnavailable,
		fmt.Sprintf("analysis provider call '%s' failed", operation))
	e.Code = CodeProviderUnavailable
	e.Retryable = true
	e.Cause = err
	return e
}

// NewStoreError reports a failed persistence operation
func NewStoreError(operation string, err error) *AppError {
	e := newError(ErrorTypeStore, http.StatusInternalServerError,
		fmt.Sprintf("store operation '%s' failed", operation))
	e.Code = CodeStoreError
	e.Cause = err
	return e
}

// NewRateLimitedError rejects a request that exceeded its quota
func NewRateLimitedError(retryAfter time.Duration) *AppError {
	e := newError(ErrorTypeRateLimited, http.StatusTooManyRequests, "too many requests")
	e.Code = CodeRateLimited
	e.Retryable = true
	return e.WithDetail("retry_after_seconds", retryAfterSeconds(retryAfter))
}

// retryAfterSeconds rounds up so clients never retry early
func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// NewEntryNotFoundError is returned when no entry matches the lookup
func NewEntryNotFoundError() *AppError {
	return NewNotFoundError("entry").WithCode(CodeEntryNotFound)
}

// NewUserNotFoundError is returned when the user does not exist
func NewUserNotFoundError() *AppError {
	return NewNotFoundError("user").WithCode(CodeUserNotFound)
}

// GetAppError extracts AppError from an error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == errType
}

// HasCode checks if an error carries the given code
func HasCode(err error, code string) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Code == code
}

func IsNotFound(err error) bool     { return IsType(err, ErrorTypeNotFound) }
func IsValidation(err error) bool   { return IsType(err, ErrorTypeValidation) }
func IsConflict(err error) bool     { return IsType(err, ErrorTypeConflict) }
func IsUnauthorized(err error) bool { return IsType(err, ErrorTypeUnauthorized) }
func IsStoreError(err error) bool   { return IsType(err, ErrorTypeStore) }
func IsRateLimited(err error) bool  { return IsType(err, ErrorTypeRateLimited) }

// IsProviderUnavailable reports whether the analysis provider could not be reached
func IsProviderUnavailable(err error) bool {
	return HasCode(err, CodeProviderUnavailable)
}

// IsRetryable reports whether the caller may retry the failed operation
func IsRetryable(err error) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Retryable
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	if appErr := GetAppError(err); appErr != nil {
		appErr.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		return appErr
	}

	return NewInternalError(message).WithCause(err)
}

// Wrapf wraps an error with formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}
