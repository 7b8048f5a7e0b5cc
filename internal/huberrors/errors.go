// Package huberrors provides sentinel and custom error types shared by the pipeline, the stores and the API.
package huberrors

// ErrNotFound matches any NotFoundError via errors.Is.
// Use when a video source, video record or highlight doesn't exist.
var ErrNotFound = &NotFoundError{}

// NotFoundError is returned for missing sources and records.
type NotFoundError struct {
	Resource string
	Message  string
}

// NewNotFoundError creates a NotFoundError for resource with a custom message.
func NewNotFoundError(resource, message string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		Message:  message,
	}
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Resource != "" {
		return e.Resource + " not found"
	}

	return "resource not found"
}

// Is reports whether target is a NotFoundError.
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)

	return ok
}

// ErrValidation matches any ValidationError via errors.Is.
var ErrValidation = &ValidationError{}

// ValidationError is returned when a value violates a record invariant
// (e.g. a highlight whose end is not after its start) or client input is invalid.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Field != "" {
		return "validation failed for field: " + e.Field
	}

	return "validation error"
}

// Is reports whether target is a ValidationError.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)

	return ok
}
