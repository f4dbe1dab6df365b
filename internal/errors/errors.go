package errors

import (
	stderrors "errors"
	"fmt"
)

// VectorError is the structured error type for mcpvector.
// It carries enough context for logging, retry decisions and user presentation.
type VectorError struct {
	// Code is the unique error code (e.g., "ERR_201_FILE_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	Category Category
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable hint for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *VectorError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *VectorError) Unwrap() error {
	return e.Cause
}

// Is matches another VectorError by code, so errors.Is works against the
// exported sentinels below.
func (e *VectorError) Is(target error) bool {
	if t, ok := target.(*VectorError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *VectorError) WithDetail(key, value string) *VectorError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *VectorError) WithSuggestion(suggestion string) *VectorError {
	e.Suggestion = suggestion
	return e
}

// New creates a VectorError. Category, severity and the retryable flag are
// derived from the code.
func New(code string, message string, cause error) *VectorError {
	return &VectorError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a VectorError from an existing error.
func Wrap(code string, err error) *VectorError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Sentinels for errors.Is comparisons. Only the code is compared.
var (
	ErrNotInitialized   = &VectorError{Code: ErrCodeNotInitialized}
	ErrQueryEmpty       = &VectorError{Code: ErrCodeQueryEmpty}
	ErrInvalidTopK      = &VectorError{Code: ErrCodeInvalidTopK}
	ErrDimension        = &VectorError{Code: ErrCodeDimensionMismatch}
	ErrCapacityExceeded = &VectorError{Code: ErrCodeCapacityExceeded}
	ErrStorageLocked    = &VectorError{Code: ErrCodeStorageLocked}
)

// ConfigError creates a configuration error.
func ConfigError(message string, cause error) *VectorError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates an input validation error.
func ValidationError(message string, cause error) *VectorError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *VectorError {
	return New(ErrCodeInternal, message, cause)
}

// As returns the first VectorError in err's chain.
func As(err error) (*VectorError, bool) {
	var ve *VectorError
	if stderrors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// IsRetryable reports whether err (or anything it wraps) is a retryable VectorError.
func IsRetryable(err error) bool {
	if ve, ok := As(err); ok {
		return ve.Retryable
	}
	return false
}

// IsFatal reports whether err has fatal severity.
func IsFatal(err error) bool {
	if ve, ok := As(err); ok {
		return ve.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code, or "" if err is not a VectorError.
func GetCode(err error) string {
	if ve, ok := As(err); ok {
		return ve.Code
	}
	return ""
}

// GetCategory extracts the category, or "" if err is not a VectorError.
func GetCategory(err error) Category {
	if ve, ok := As(err); ok {
		return ve.Category
	}
	return ""
}
