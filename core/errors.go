package core

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for comparison using errors.Is()
// These are generic errors that can be wrapped with additional context
var (
	// Connection/store errors
	ErrConnectionFailed   = errors.New("connection failed")
	ErrCircuitOpen        = errors.New("circuit breaker is open")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")

	// Configuration errors
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrMissingConfiguration = errors.New("missing required configuration")

	// Operation errors
	ErrUnknownOperation = errors.New("unknown operation")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrTimeout          = errors.New("operation timeout")

	// Serialization errors
	ErrSerialization     = errors.New("serialization failed")
	ErrTypeNotRegistered = errors.New("type not registered")

	// Task errors
	ErrTaskNotFound       = errors.New("task not found")
	ErrTaskNotCancellable = errors.New("task not cancellable")
	ErrProcessorClosed    = errors.New("task processor closed")
)

// EngineError provides structured error information with context.
// It implements the error interface and supports error wrapping.
type EngineError struct {
	Op      string // Operation that failed (e.g., "connection.Execute")
	Kind    string // Error kind (e.g., "connection", "serialization", "task")
	ID      string // Optional ID of the entity involved
	Message string // Human-readable message
	Err     error  // Underlying error for wrapping
}

// Error returns the string representation of the error
func (e *EngineError) Error() string {
	if e.Op != "" && e.Err != nil {
		if e.ID != "" {
			return fmt.Sprintf("%s [%s]: %v", e.Op, e.ID, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

// Unwrap returns the underlying error for use with errors.Is/As
func (e *EngineError) Unwrap() error {
	return e.Err
}

// NewEngineError creates a new EngineError
func NewEngineError(op, kind string, err error) *EngineError {
	return &EngineError{
		Op:   op,
		Kind: kind,
		Err:  err,
	}
}

// IsRetryable checks if an error is retryable.
// Retryable errors are typically transient network or availability issues.
// Usage errors (unknown operations, malformed arguments, configuration
// problems) must never be retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnknownOperation) ||
		errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrCircuitOpen) ||
		errors.Is(err, ErrTypeNotRegistered) ||
		errors.Is(err, ErrSerialization) {
		return false
	}
	if IsConfigurationError(err) {
		return false
	}
	return errors.Is(err, ErrConnectionFailed) || errors.Is(err, ErrTimeout)
}

// IsConfigurationError checks if an error is configuration-related
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrMissingConfiguration)
}

// IsUsageError checks if an error represents a caller mistake rather than a
// store fault. Usage errors propagate immediately and never count toward the
// circuit breaker.
func IsUsageError(err error) bool {
	return errors.Is(err, ErrUnknownOperation) ||
		errors.Is(err, ErrInvalidArgument) ||
		IsConfigurationError(err)
}
