package invoice

import (
	"errors"
	"fmt"
)

// Common invoice composition errors
var (
	// ErrDuplicateItem is returned when a product is already part of the draft.
	ErrDuplicateItem = errors.New("product already added to invoice")

	// ErrIndexOutOfRange is returned when a line item index does not exist.
	// Indices shift after a remove, so callers must not cache them.
	ErrIndexOutOfRange = errors.New("line item index out of range")

	// ErrUnknownField is returned when an update names a field that cannot be edited.
	ErrUnknownField = errors.New("unknown field")

	// ErrEmptyInvoice is returned when submitting a draft without line items.
	ErrEmptyInvoice = errors.New("invoice has no line items")

	// ErrMissingID is returned when the backend accepted a sale but returned no id.
	ErrMissingID = errors.New("created sale has no id")
)

// SubmitError wraps a failed submission with the step that failed.
type SubmitError struct {
	// Op is the step that failed (e.g., "Validate", "CreateSale").
	Op string

	// Err is the underlying error.
	Err error

	// InvoiceNumber identifies the draft, when known.
	InvoiceNumber string
}

// Error implements the error interface.
func (e *SubmitError) Error() string {
	if e.InvoiceNumber != "" {
		return fmt.Sprintf("invoice: %s failed (invoice: %s): %v", e.Op, e.InvoiceNumber, e.Err)
	}
	return fmt.Sprintf("invoice: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *SubmitError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *SubmitError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// ValidationError represents a rejected draft field or line item value.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}
