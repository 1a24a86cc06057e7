// Package contextutils provides error handling utilities and standardized error types
// shared by services and handlers.
package contextutils

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is the machine readable code of an API error
type ErrorCode string

// Storage
const (
	ErrorCodeDatabaseConnection  ErrorCode = "DATABASE_CONNECTION_ERROR"
	ErrorCodeDatabaseQuery       ErrorCode = "DATABASE_QUERY_ERROR"
	ErrorCodeDatabaseTransaction ErrorCode = "DATABASE_TRANSACTION_ERROR"
	ErrorCodeRecordNotFound      ErrorCode = "RECORD_NOT_FOUND"
	ErrorCodeRecordExists        ErrorCode = "RECORD_ALREADY_EXISTS"
)

// Request validation and authentication
const (
	ErrorCodeInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrorCodeMissingRequired    ErrorCode = "MISSING_REQUIRED_FIELD"
	ErrorCodeInvalidFormat      ErrorCode = "INVALID_FORMAT"
	ErrorCodeValidationFailed   ErrorCode = "VALIDATION_FAILED"
	ErrorCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrorCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
)

// Service and AI provider failures
const (
	ErrorCodeServiceUnavailable    ErrorCode = "SERVICE_UNAVAILABLE"
	ErrorCodeTimeout               ErrorCode = "REQUEST_TIMEOUT"
	ErrorCodeRateLimit             ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrorCodeInternalError         ErrorCode = "INTERNAL_SERVER_ERROR"
	ErrorCodeAIProviderUnavailable ErrorCode = "AI_PROVIDER_UNAVAILABLE"
	ErrorCodeAIRequestFailed       ErrorCode = "AI_REQUEST_FAILED"
	ErrorCodeAIResponseInvalid     ErrorCode = "AI_RESPONSE_INVALID"
)

var codeStatus = map[ErrorCode]int{
	ErrorCodeInvalidInput:          http.StatusBadRequest,
	ErrorCodeMissingRequired:       http.StatusBadRequest,
	ErrorCodeInvalidFormat:         http.StatusBadRequest,
	ErrorCodeValidationFailed:      http.StatusBadRequest,
	ErrorCodeUnauthorized:          http.StatusUnauthorized,
	ErrorCodeInvalidCredentials:    http.StatusUnauthorized,
	ErrorCodeRecordNotFound:        http.StatusNotFound,
	ErrorCodeRecordExists:          http.StatusConflict,
	ErrorCodeRateLimit:             http.StatusTooManyRequests,
	ErrorCodeTimeout:               http.StatusRequestTimeout,
	ErrorCodeServiceUnavailable:    http.StatusServiceUnavailable,
	ErrorCodeDatabaseConnection:    http.StatusServiceUnavailable,
	ErrorCodeAIProviderUnavailable: http.StatusServiceUnavailable,
}

// HTTPStatus returns the response status for the code; unknown codes are 500
func (c ErrorCode) HTTPStatus() int {
	if status, ok := codeStatus[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// CodeForStatus picks the code and severity used when a handler answers with a bare status
func CodeForStatus(status int) (ErrorCode, SeverityLevel) {
	switch status {
	case http.StatusBadRequest:
		return ErrorCodeInvalidInput, SeverityWarn
	case http.StatusUnauthorized:
		return ErrorCodeUnauthorized, SeverityWarn
	case http.StatusNotFound:
		return ErrorCodeRecordNotFound, SeverityInfo
	case http.StatusConflict:
		return ErrorCodeRecordExists, SeverityInfo
	case http.StatusServiceUnavailable:
		return ErrorCodeServiceUnavailable, SeverityError
	default:
		return ErrorCodeInternalError, SeverityError
	}
}

// SeverityLevel controls how an error is logged and whether its cause is exposed
type SeverityLevel string

const (
	SeverityDebug SeverityLevel = "debug"
	SeverityInfo  SeverityLevel = "info"
	SeverityWarn  SeverityLevel = "warn"
	SeverityError SeverityLevel = "error"
	SeverityFatal SeverityLevel = "fatal"
)

// AppError represents a structured error with code, severity, and context
type AppError struct {
	Code     ErrorCode
	Severity SeverityLevel
	Message  string
	Details  string
	Cause    error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AppError with the same code
func (e *AppError) Is(target error) bool {
	if appErr, ok := target.(*AppError); ok {
		return e.Code == appErr.Code
	}
	return false
}

func sentinel(code ErrorCode, severity SeverityLevel, message string) *AppError {
	return &AppError{Code: code, Severity: severity, Message: message}
}

// Sentinels wrapped by services with WrapError / WrapErrorf
var (
	ErrDatabaseConnection  = sentinel(ErrorCodeDatabaseConnection, SeverityError, "Database connection failed")
	ErrDatabaseQuery       = sentinel(ErrorCodeDatabaseQuery, SeverityError, "Database query failed")
	ErrDatabaseTransaction = sentinel(ErrorCodeDatabaseTransaction, SeverityError, "Database transaction failed")
	ErrRecordNotFound      = sentinel(ErrorCodeRecordNotFound, SeverityInfo, "Record not found")
	ErrRecordExists        = sentinel(ErrorCodeRecordExists, SeverityInfo, "Record already exists")

	ErrInvalidInput       = sentinel(ErrorCodeInvalidInput, SeverityWarn, "Invalid input")
	ErrMissingRequired    = sentinel(ErrorCodeMissingRequired, SeverityWarn, "Missing required field")
	ErrInvalidFormat      = sentinel(ErrorCodeInvalidFormat, SeverityWarn, "Invalid format")
	ErrValidationFailed   = sentinel(ErrorCodeValidationFailed, SeverityWarn, "Validation failed")
	ErrInvalidCredentials = sentinel(ErrorCodeInvalidCredentials, SeverityWarn, "Invalid credentials")

	ErrRateLimit         = sentinel(ErrorCodeRateLimit, SeverityWarn, "Rate limit exceeded")
	ErrInternalError     = sentinel(ErrorCodeInternalError, SeverityError, "Internal server error")
	ErrAIRequestFailed   = sentinel(ErrorCodeAIRequestFailed, SeverityError, "AI request failed")
	ErrAIResponseInvalid = sentinel(ErrorCodeAIResponseInvalid, SeverityError, "AI response invalid")
)

// NewAppError creates a new AppError with the specified code, severity, message and details
func NewAppError(code ErrorCode, severity SeverityLevel, message, details string) *AppError {
	return &AppError{Code: code, Severity: severity, Message: message, Details: details}
}

// NewAppErrorWithCause creates a new AppError with an underlying cause
func NewAppErrorWithCause(code ErrorCode, severity SeverityLevel, message, details string, cause error) *AppError {
	return &AppError{Code: code, Severity: severity, Message: message, Details: details, Cause: cause}
}

// WrapError replaces the message of err, keeping its code and severity when err is an AppError.
// Any other error becomes an internal error.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return wrap(err, message, err)
}

// WrapErrorf is WrapError with a formatted message. A %w verb in format wraps the listed
// error; without one, err itself becomes the cause.
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	if strings.Contains(format, "%w") {
		wrapped := fmt.Errorf(format, args...)
		return wrap(err, wrapped.Error(), wrapped)
	}
	return wrap(err, fmt.Sprintf(format, args...), err)
}

func wrap(err error, message string, cause error) *AppError {
	code, severity := ErrorCodeInternalError, SeverityError
	var appErr *AppError
	if errors.As(err, &appErr) {
		code, severity = appErr.Code, appErr.Severity
	}
	return &AppError{
		Code:     code,
		Severity: severity,
		Message:  message,
		Details:  err.Error(),
		Cause:    cause,
	}
}

// ErrorWithContextf creates a new internal error with formatted context
func ErrorWithContextf(format string, args ...interface{}) error {
	return sentinel(ErrorCodeInternalError, SeverityError, fmt.Sprintf(format, args...))
}

// IsError checks if an error matches a specific AppError type
func IsError(err error, target *AppError) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == target.Code
}

// GetErrorCode returns the code of the first AppError in the chain, or INTERNAL_SERVER_ERROR
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrorCodeInternalError
}

// IsRetryable reports whether a client may retry the request unchanged
func IsRetryable(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Severity == SeverityFatal {
		return false
	}
	switch appErr.Code {
	case ErrorCodeTimeout, ErrorCodeServiceUnavailable, ErrorCodeDatabaseConnection,
		ErrorCodeRateLimit, ErrorCodeAIProviderUnavailable:
		return true
	}
	return false
}

// ToJSON renders the error body: {code, message, severity, error, retryable, details?, cause?}.
// The cause is only exposed for error and fatal severities.
func (e *AppError) ToJSON() map[string]interface{} {
	result := map[string]interface{}{
		"code":      string(e.Code),
		"message":   e.Message,
		"severity":  string(e.Severity),
		"error":     e.Message,
		"retryable": IsRetryable(e),
	}
	if e.Details != "" {
		result["details"] = e.Details
	}
	if e.Cause != nil && (e.Severity == SeverityError || e.Severity == SeverityFatal) {
		result["cause"] = e.Cause.Error()
	}
	return result
}

type contextKey string

const userIDKey contextKey = "userID"

// GetUserIDFromContext returns the session user stored on ctx, or ""
func GetUserIDFromContext(ctx context.Context) string {
	if userID, ok := ctx.Value(userIDKey).(string); ok {
		return userID
	}
	return ""
}

// WithUserID returns a new context carrying the session user
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}
