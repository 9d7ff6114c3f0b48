package db

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the adapter. Translation errors come from the
// sqlgen package; persistence errors from the engine package.
var (
	// ErrConfiguration marks read-only violations and invalid payload or
	// adapter configuration. Fatal to the current call, raised before any
	// engine interaction.
	ErrConfiguration = errors.New("configuration error")

	// ErrExecution marks statements the embedded engine rejected. The
	// engine message is attached; this layer never retries.
	ErrExecution = errors.New("execution error")
)

// ConfigError carries a human-readable configuration failure.
type ConfigError struct {
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Is reports whether the error matches ErrConfiguration.
func (e *ConfigError) Is(target error) bool { return target == ErrConfiguration }

func configErrorf(format string, args ...any) error {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}

// ExecutionError wraps an engine rejection together with the statement
// that caused it.
type ExecutionError struct {
	SQL   string
	Cause error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution error: %v (statement: %s)", e.Cause, e.SQL)
}

// Unwrap returns the underlying engine error.
func (e *ExecutionError) Unwrap() error { return e.Cause }

// Is reports whether the error matches ErrExecution.
func (e *ExecutionError) Is(target error) bool { return target == ErrExecution }
