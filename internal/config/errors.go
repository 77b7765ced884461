package config

import (
	"errors"
	"fmt"
)

// Errors returned by configuration decoding.
var (
	// ErrUnsupportedValue indicates a value of a type the key cannot hold.
	ErrUnsupportedValue = errors.New("unsupported value type")

	// ErrInvalidKeymap indicates a malformed keymap entry.
	ErrInvalidKeymap = errors.New("invalid keymap")
)

// FieldError describes a value that could not be decoded.
// The field keeps its default value when this happens.
type FieldError struct {
	// Key is the dot-separated setting path.
	Key string
	// Value is the offending value.
	Value any
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid value for %s (%v): %v", e.Key, e.Value, e.Err)
}

// Unwrap returns the underlying error.
func (e *FieldError) Unwrap() error {
	return e.Err
}
