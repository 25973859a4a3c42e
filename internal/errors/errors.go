package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeDecode indicates a malformed token or corrupt stored record.
	// Decode errors are recovered locally and read as "not authenticated".
	ErrCodeDecode ErrorCode = "decode"
	// ErrCodeMissingField indicates a required field was absent from an
	// upstream payload (e.g. no resolvable user id in a login response).
	ErrCodeMissingField ErrorCode = "missing_field"
	// ErrCodeNetwork indicates the request never reached the upstream API.
	ErrCodeNetwork ErrorCode = "network"
	// ErrCodeUpstream indicates the upstream API rejected the request (4xx/5xx).
	ErrCodeUpstream ErrorCode = "upstream"
	// ErrCodeAuthExpired indicates the session could not be refreshed and
	// was invalidated.
	ErrCodeAuthExpired ErrorCode = "auth_expired"
	// ErrCodeNotFound indicates a resource (e.g. a session record) was not found.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeValidation indicates invalid input data.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "internal"
	// ErrCodeTimeout indicates a timeout occurred.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "canceled"
)

// AppError represents a structured application error with a code, message, and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Field is the specific field that caused the error (optional, for missing-field errors)
	Field string
	// StatusCode is the upstream HTTP status, when the error came from an upstream response.
	StatusCode int
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Decode creates a new Decode error.
func Decode(message string) *AppError {
	return &AppError{Code: ErrCodeDecode, Message: message}
}

// Decodef creates a new Decode error with formatted message.
func Decodef(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeDecode, Message: fmt.Sprintf(format, args...)}
}

// MissingField creates a new MissingField error for a specific field.
func MissingField(field, message string) *AppError {
	return &AppError{Code: ErrCodeMissingField, Message: message, Field: field}
}

// Network creates a new Network error wrapping the transport failure.
func Network(message string, cause error) *AppError {
	return &AppError{Code: ErrCodeNetwork, Message: message, Cause: cause}
}

// Upstream creates a new Upstream error carrying the upstream status code.
func Upstream(status int, message string) *AppError {
	return &AppError{Code: ErrCodeUpstream, Message: message, StatusCode: status}
}

// AuthExpired creates a new AuthExpired error.
func AuthExpired(message string) *AppError {
	return &AppError{Code: ErrCodeAuthExpired, Message: message}
}

// NotFound creates a new NotFound error.
func NotFound(message string) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: message}
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message}
}

// Internal creates a new Internal error.
func Internal(message string) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: message}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsDecode checks if an error is a Decode error.
func IsDecode(err error) bool {
	return isCode(err, ErrCodeDecode)
}

// IsMissingField checks if an error is a MissingField error.
func IsMissingField(err error) bool {
	return isCode(err, ErrCodeMissingField)
}

// IsNetwork checks if an error is a Network error.
func IsNetwork(err error) bool {
	return isCode(err, ErrCodeNetwork)
}

// IsUpstream checks if an error is an Upstream error.
func IsUpstream(err error) bool {
	return isCode(err, ErrCodeUpstream)
}

// IsAuthExpired checks if an error is an AuthExpired error.
func IsAuthExpired(err error) bool {
	return isCode(err, ErrCodeAuthExpired)
}

// IsNotFound checks if an error is a NotFound error.
func IsNotFound(err error) bool {
	return isCode(err, ErrCodeNotFound)
}

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool {
	return isCode(err, ErrCodeValidation)
}

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField returns the Field from an error, or empty string if not an AppError or no field set.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}

// UserMessage returns the message a user-facing notification should carry:
// the upstream-provided message when available, a connectivity message when
// the request never reached the upstream, and a generic message otherwise.
func UserMessage(err error) string {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return "Something went wrong. Please try again."
	}
	switch appErr.Code {
	case ErrCodeNetwork:
		return "Could not reach the server. Check your connection and try again."
	case ErrCodeUpstream, ErrCodeMissingField, ErrCodeValidation:
		if appErr.Message != "" {
			return appErr.Message
		}
	case ErrCodeAuthExpired:
		return "Your session has expired. Please sign in again."
	}
	return "Something went wrong. Please try again."
}
