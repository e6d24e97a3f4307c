package errors

import (
	stderrors "errors"
	"fmt"
	"io/fs"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeDuplicateRegistration ErrorType = "DUPLICATE_REGISTRATION"
	ErrTypeMissingDiscriminator  ErrorType = "MISSING_DISCRIMINATOR"
	ErrTypeUnknownDiscriminator  ErrorType = "UNKNOWN_DISCRIMINATOR"
	ErrTypeParameterValidation   ErrorType = "PARAMETER_VALIDATION"
	ErrTypeInvalidChainElement   ErrorType = "INVALID_CHAIN_ELEMENT"
	ErrTypeUnsupportedComponent  ErrorType = "UNSUPPORTED_COMPONENT"
	ErrTypeSchemaViolation       ErrorType = "SCHEMA_VIOLATION"
	ErrTypeConfig                ErrorType = "CONFIG"
	ErrTypePrimaryKeyMismatch    ErrorType = "PRIMARY_KEY_MISMATCH"
	ErrTypeDuplicateKey          ErrorType = "DUPLICATE_KEY"
	ErrTypeUnsupportedFileType   ErrorType = "UNSUPPORTED_FILE_TYPE"
	ErrTypeFileNotFound          ErrorType = "FILE_NOT_FOUND"
	ErrTypeNotImplemented        ErrorType = "NOT_IMPLEMENTED"
	ErrTypeParsing               ErrorType = "PARSING"
	ErrTypeStorage               ErrorType = "STORAGE"
	ErrTypeNetwork               ErrorType = "NETWORK"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// IsType reports whether any AppError in err's chain has the given type
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	for err != nil {
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Type == errType {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// TypeOf returns the type of the outermost AppError in err's chain, or "" if there is none
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// Helper functions for common error types

// NewDuplicateRegistrationError reports a kind registered twice in one namespace
func NewDuplicateRegistrationError(namespace, kind string) *AppError {
	return NewAppError(ErrTypeDuplicateRegistration,
		fmt.Sprintf("kind %q already registered in namespace %q", kind, namespace), nil).
		WithContext("namespace", namespace).
		WithContext("kind", kind)
}

// NewMissingDiscriminatorError reports a config without a usable "kind"
func NewMissingDiscriminatorError(message string) *AppError {
	return NewAppError(ErrTypeMissingDiscriminator, message, nil)
}

// NewUnknownDiscriminatorError reports a kind that no namespace knows
func NewUnknownDiscriminatorError(kind string) *AppError {
	return NewAppError(ErrTypeUnknownDiscriminator,
		fmt.Sprintf("kind %q is not registered", kind), nil).
		WithContext("kind", kind)
}

// NewParameterValidationError reports parameters that failed to bind or validate
func NewParameterValidationError(kind, message string, cause error) *AppError {
	return NewAppError(ErrTypeParameterValidation,
		fmt.Sprintf("invalid parameters for %q: %s", kind, message), cause).
		WithContext("kind", kind)
}

// NewInvalidChainElementError reports a chain element that is not a mapping
func NewInvalidChainElementError(index int, value interface{}) *AppError {
	return NewAppError(ErrTypeInvalidChainElement,
		fmt.Sprintf("chain element %d must be a mapping, got %T", index, value), nil).
		WithContext("index", index)
}

// NewUnsupportedComponentError reports a chain step with neither fit/transform nor transform
func NewUnsupportedComponentError(kind string) *AppError {
	return NewAppError(ErrTypeUnsupportedComponent,
		fmt.Sprintf("component %q implements neither fit+transform nor transform", kind), nil).
		WithContext("kind", kind)
}

// NewSchemaViolationError reports a column failing a schema constraint
func NewSchemaViolationError(column, constraint, message string) *AppError {
	return NewAppError(ErrTypeSchemaViolation,
		fmt.Sprintf("column %q failed %s check: %s", column, constraint, message), nil).
		WithContext("column", column).
		WithContext("constraint", constraint)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// NewPrimaryKeyMismatchError reports primary keys absent from one side of a reconciling write
func NewPrimaryKeyMismatchError(side string, keys []string, path string) *AppError {
	return NewAppError(ErrTypePrimaryKeyMismatch,
		fmt.Sprintf("primary keys %v not found in %s data", keys, side), nil).
		WithContext("primary_keys", keys).
		WithContext("path", path)
}

// NewDuplicateKeyError reports duplicate primary-key tuples in an upsert input
func NewDuplicateKeyError(keys []string, duplicates int) *AppError {
	return NewAppError(ErrTypeDuplicateKey,
		fmt.Sprintf("found %d duplicated rows in new data on primary keys %v, upsert aborted", duplicates, keys), nil).
		WithContext("primary_keys", keys)
}

// NewUnsupportedFileTypeError reports a file whose suffix cannot be handled
func NewUnsupportedFileTypeError(path, suffix string) *AppError {
	return NewAppError(ErrTypeUnsupportedFileType,
		fmt.Sprintf("unsupported file type %q", suffix), nil).
		WithContext("path", path)
}

// NewFileNotFoundError reports a missing file; it unwraps to fs.ErrNotExist
func NewFileNotFoundError(path string) *AppError {
	return NewAppError(ErrTypeFileNotFound,
		fmt.Sprintf("file not found: %s", path), fs.ErrNotExist).
		WithContext("path", path)
}

// NewNotImplementedError reports a declared but unimplemented feature
func NewNotImplementedError(feature string) *AppError {
	return NewAppError(ErrTypeNotImplemented,
		fmt.Sprintf("%s is not implemented", feature), nil)
}

// NewParsingError creates a parsing-related error
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewNetworkError creates a network-related error
func NewNetworkError(message string, cause error) *AppError {
	return NewAppError(ErrTypeNetwork, message, cause)
}
