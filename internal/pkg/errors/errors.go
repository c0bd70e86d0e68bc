// Package errors provides custom error types and error handling utilities.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Error codes.
const (
	// Caller errors.
	CodeValidation    = "VALIDATION_ERROR"
	CodeNotFound      = "NOT_FOUND"
	CodeNotFitted     = "NOT_FITTED"
	CodeAlreadyFitted = "ALREADY_FITTED"
	CodeUnsupported   = "UNSUPPORTED"

	// Environment and internal errors.
	CodeResource    = "RESOURCE_ERROR"
	CodeStorage     = "STORAGE_ERROR"
	CodeMLError     = "ML_ERROR"
	CodeInternal    = "INTERNAL_ERROR"
	CodeUnavailable = "SERVICE_UNAVAILABLE"
)

// AppError represents an application error with code and details.
type AppError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with an AppError.
func Wrap(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetails adds details to the error.
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// WithDetail adds a single detail to the error.
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// Convenience constructors.

// ValidationError creates a validation error.
func ValidationError(message string) *AppError {
	return New(CodeValidation, message)
}

// NotFoundError creates a not found error.
func NotFoundError(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

// NotFittedError reports use of a component before it was fitted.
func NotFittedError(component string) *AppError {
	return New(CodeNotFitted, fmt.Sprintf("%s has not been fitted", component))
}

// AlreadyFittedError reports an attempt to refit a frozen component.
func AlreadyFittedError(component string) *AppError {
	return New(CodeAlreadyFitted, fmt.Sprintf("%s is already fitted", component))
}

// UnsupportedError reports an operation a model kind does not provide.
func UnsupportedError(operation, kind string) *AppError {
	return New(CodeUnsupported, fmt.Sprintf("%s is not supported by %s", operation, kind))
}

// ResourceError creates a language resource setup error.
func ResourceError(message string, err error) *AppError {
	return Wrap(CodeResource, message, err)
}

// StorageError creates a model storage error.
func StorageError(message string, err error) *AppError {
	return Wrap(CodeStorage, message, err)
}

// InternalError creates an internal error.
func InternalError(message string, err error) *AppError {
	return Wrap(CodeInternal, message, err)
}

// MLError creates a model fitting error.
func MLError(message string, err error) *AppError {
	return Wrap(CodeMLError, message, err)
}

// ServiceUnavailableError creates a service unavailable error.
func ServiceUnavailableError(service string) *AppError {
	message := "service unavailable"
	if service != "" {
		message = fmt.Sprintf("%s is unavailable", service)
	}
	return New(CodeUnavailable, message)
}

// CodeOf returns the code of the first AppError in err's chain, or "".
func CodeOf(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsNotFound checks if error is a not found error.
func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}

// IsValidation checks if error is a validation error.
func IsValidation(err error) bool {
	return CodeOf(err) == CodeValidation
}

// IsNotFitted checks if error reports a missing fit.
func IsNotFitted(err error) bool {
	return CodeOf(err) == CodeNotFitted
}

// IsUnsupported checks if error reports a missing model capability.
func IsUnsupported(err error) bool {
	return CodeOf(err) == CodeUnsupported
}

// IsResource checks if error is a resource setup error.
func IsResource(err error) bool {
	return CodeOf(err) == CodeResource
}
