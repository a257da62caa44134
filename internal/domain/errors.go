package domain

import (
	"errors"
	"fmt"
)

// Error types for domain-specific errors
type ErrorType string

const (
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeConfig         ErrorType = "config"
	ErrorTypeIO             ErrorType = "io"
	ErrorTypeUnreadable     ErrorType = "unreadable"
	ErrorTypeEngine         ErrorType = "engine"
	ErrorTypeSliceExhausted ErrorType = "slice_exhausted"
	ErrorTypeTimeout        ErrorType = "timeout"
	ErrorTypeUnhandled      ErrorType = "unhandled"
)

var (
	// ErrInputNotFound is returned when the batch input path does not exist.
	ErrInputNotFound = errors.New("input not found")
	// ErrUnknownEngine is returned by the registry for unregistered engine names.
	ErrUnknownEngine = errors.New("unknown engine")
)

// DomainError represents a domain-specific error with context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewError creates a new domain error
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// IsType reports whether err carries a DomainError of the given type anywhere in its chain.
func IsType(err error, errType ErrorType) bool {
	var de *DomainError
	for err != nil {
		if !errors.As(err, &de) {
			return false
		}
		if de.Type == errType {
			return true
		}
		err = de.Err
	}
	return false
}

// Common error constructors
func ValidationError(message string, err error) *DomainError {
	return NewError(ErrorTypeValidation, message, err)
}

func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfig, message, err)
}

func IOError(message string, err error) *DomainError {
	return NewError(ErrorTypeIO, message, err)
}

// UnreadableDocumentError marks a document the opener could not parse.
func UnreadableDocumentError(path string, err error) *DomainError {
	return NewError(ErrorTypeUnreadable, fmt.Sprintf("cannot open document %s", path), err)
}

// EngineFailure marks a conversion engine that reported failure.
func EngineFailure(message string, err error) *DomainError {
	return NewError(ErrorTypeEngine, message, err)
}

// SliceExhaustedError marks a heavy conversion that failed at the minimum slice size.
func SliceExhaustedError(r PageRange, sliceSize int, err error) *DomainError {
	return NewError(ErrorTypeSliceExhausted,
		fmt.Sprintf("slice %s failed at minimum slice size %d", r, sliceSize), err)
}

func TimeoutError(message string, err error) *DomainError {
	return NewError(ErrorTypeTimeout, message, err)
}

func UnhandledError(message string, err error) *DomainError {
	return NewError(ErrorTypeUnhandled, message, err)
}
