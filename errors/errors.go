package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// ErrorType classifies an error for callers and for HTTP mapping.
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeInvalidState ErrorType = "invalid_state"
	ErrorTypeLoad         ErrorType = "load_error"
	ErrorTypeLockTimeout  ErrorType = "lock_timeout"
	ErrorTypeInternal     ErrorType = "internal"
	ErrorTypeUnknown      ErrorType = "unknown"
)

// Error codes exposed in API responses.
const (
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeInvalidState     = "INVALID_STATE"
	CodeLoadFailed       = "LOAD_FAILED"
	CodeLockTimeout      = "LOCK_TIMEOUT"
	CodeInternalError    = "INTERNAL_ERROR"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType      `json:"type"`
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	InnerError error          `json:"-"`
	Stack      []string       `json:"-"`
	HTTPStatus int            `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.InnerError != nil {
		return e.InnerError.Error()
	}
	return string(e.Type)
}

// Unwrap returns the inner error
func (e *AppError) Unwrap() error {
	return e.InnerError
}

// Is matches any *AppError of the same type, so errors.Is(err, NotFound) works
// against the sentinels below.
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok {
		return e.Type == t.Type
	}
	return false
}

// WithMessage replaces the message.
func (e *AppError) WithMessage(msg string) *AppError {
	e.Message = msg
	return e
}

// WithDetail adds a detail to the error
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithInnerError sets the inner error
func (e *AppError) WithInnerError(err error) *AppError {
	e.InnerError = err
	return e
}

// WithStack captures the call stack
func (e *AppError) WithStack() *AppError {
	e.Stack = captureStack(3)
	return e
}

// Status returns the HTTP status, falling back to 500.
func (e *AppError) Status() int {
	if e.HTTPStatus > 0 {
		return e.HTTPStatus
	}
	return http.StatusInternalServerError
}

// Sentinels for errors.Is comparisons.
var (
	NotFound     = &AppError{Type: ErrorTypeNotFound}
	Conflict     = &AppError{Type: ErrorTypeConflict}
	InvalidState = &AppError{Type: ErrorTypeInvalidState}
	LoadFailed   = &AppError{Type: ErrorTypeLoad}
	LockTimeout  = &AppError{Type: ErrorTypeLockTimeout}
	Internal     = &AppError{Type: ErrorTypeInternal}
)

func newError(errType ErrorType, code string, status int, message string) *AppError {
	return &AppError{
		Type:       errType,
		Code:       code,
		Message:    message,
		HTTPStatus: status,
	}
}

func NewValidation(message string) *AppError {
	return newError(ErrorTypeValidation, CodeValidationFailed, http.StatusBadRequest, message)
}

func NewNotFound(resource string, id any) *AppError {
	return newError(ErrorTypeNotFound, CodeNotFound, http.StatusNotFound,
		fmt.Sprintf("%s %v not found", resource, id)).
		WithDetail("resource", resource).
		WithDetail("id", id)
}

func NewConflict(resource string, id any) *AppError {
	return newError(ErrorTypeConflict, CodeConflict, http.StatusConflict,
		fmt.Sprintf("%s %v already exists", resource, id)).
		WithDetail("resource", resource).
		WithDetail("id", id)
}

func NewInvalidState(message string) *AppError {
	return newError(ErrorTypeInvalidState, CodeInvalidState, http.StatusConflict, message)
}

// NewLoadError reports a plugin that failed to mount. It is recoverable:
// the lifecycle state is still committed.
func NewLoadError(plugin, stage string, cause error) *AppError {
	msg := fmt.Sprintf("plugin %s failed to load during %s", plugin, stage)
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return newError(ErrorTypeLoad, CodeLoadFailed, http.StatusUnprocessableEntity, msg).
		WithDetail("plugin", plugin).
		WithDetail("stage", stage).
		WithInnerError(cause)
}

func NewLockTimeout(plugin string, cause error) *AppError {
	return newError(ErrorTypeLockTimeout, CodeLockTimeout, http.StatusLocked,
		fmt.Sprintf("timed out waiting for plugin %s", plugin)).
		WithDetail("plugin", plugin).
		WithInnerError(cause)
}

func NewInternal(message string) *AppError {
	return newError(ErrorTypeInternal, CodeInternalError, http.StatusInternalServerError, message)
}

// WrapInternal wraps a storage or infrastructure failure.
func WrapInternal(err error, message string) *AppError {
	return NewInternal(message + ": " + err.Error()).WithInnerError(err)
}

// FromError converts any error to an *AppError. Plain errors become
// ErrorTypeUnknown with status 500.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return &AppError{
		Type:       ErrorTypeUnknown,
		Code:       CodeInternalError,
		Message:    err.Error(),
		InnerError: err,
		HTTPStatus: http.StatusInternalServerError,
	}
}

// TypeOf returns the ErrorType of err, or "" for nil.
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	return FromError(err).Type
}

func IsNotFound(err error) bool     { return errors.Is(err, NotFound) }
func IsConflict(err error) bool     { return errors.Is(err, Conflict) }
func IsInvalidState(err error) bool { return errors.Is(err, InvalidState) }
func IsLoadError(err error) bool    { return errors.Is(err, LoadFailed) }
func IsLockTimeout(err error) bool  { return errors.Is(err, LockTimeout) }
func IsInternal(err error) bool     { return errors.Is(err, Internal) }

// Recover converts a recovered panic value into an error.
func Recover(r any) error {
	switch v := r.(type) {
	case nil:
		return nil
	case error:
		return v
	case string:
		return errors.New(v)
	default:
		return fmt.Errorf("%v", v)
	}
}

func captureStack(skip int) []string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var stack []string
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			stack = append(stack, fmt.Sprintf("%s:%d %s", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}
	return stack
}
