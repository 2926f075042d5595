package dispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedOperation matches every *UnsupportedOperationError.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrInvalidArguments matches every *ArgumentError.
	ErrInvalidArguments = errors.New("invalid arguments")
)

// UnsupportedOperationError names an operation with no registered handler.
type UnsupportedOperationError struct {
	Operation string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("unsupported operation %q", e.Operation)
}

func (e *UnsupportedOperationError) Is(target error) bool {
	return target == ErrUnsupportedOperation
}

// ArgumentError reports arguments that do not fit an operation.
type ArgumentError struct {
	Operation string
	Reason    string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Operation, e.Reason)
}

func (e *ArgumentError) Is(target error) bool {
	return target == ErrInvalidArguments
}

// BadArgument builds an *ArgumentError with a formatted reason.
func BadArgument(operation, format string, args ...any) error {
	return &ArgumentError{Operation: operation, Reason: fmt.Sprintf(format, args...)}
}

// OperationError wraps a failure returned by a handler.
type OperationError struct {
	Operation string
	Err       error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}
