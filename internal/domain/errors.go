// Package domain defines the core types, enums, and errors shared by the
// voter filtering and analytics services.
package domain

import "fmt"

// ValidationError indicates malformed or disallowed filter input. It carries
// a machine-readable code alongside the human message.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError indicates a valid request that matched no entity.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// QueryExecutionError indicates the underlying store call failed. The wrapped
// error holds the full context for logging; Message is what callers may see.
type QueryExecutionError struct {
	Message string
	Err     error
}

func (e *QueryExecutionError) Error() string { return e.Message }

func (e *QueryExecutionError) Unwrap() error { return e.Err }

// ConfigurationError indicates missing or inconsistent configuration, or a
// programming error such as compiling a non-allow-listed field. Never caused
// by user input.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string { return e.Message }

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(code, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrQueryExecution wraps a store error with a caller-safe message.
func ErrQueryExecution(err error, format string, args ...interface{}) *QueryExecutionError {
	return &QueryExecutionError{Message: fmt.Sprintf(format, args...), Err: err}
}

// ErrConfiguration creates a ConfigurationError with a formatted message.
func ErrConfiguration(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}
