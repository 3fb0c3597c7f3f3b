package shared

// DomainError represents a domain-level error classified into the
// error taxonomy the ports surface to callers.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	cause   error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is matches domain errors by code, so errors.Is works across wrapping:
// errors.Is(WrapDomainError("NOT_FOUND", ...), ErrNotFound) == true
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WrapDomainError creates a domain error that carries the original cause.
// Adapters use it to classify engine faults before they cross a port boundary.
func WrapDomainError(code, message string, cause error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Common domain errors
var (
	ErrNotFound           = NewDomainError("NOT_FOUND", "Resource not found")
	ErrValidation         = NewDomainError("VALIDATION_ERROR", "Invalid input provided")
	ErrStorageUnavailable = NewDomainError("STORAGE_UNAVAILABLE", "Storage is temporarily unavailable")
	ErrStorageConflict    = NewDomainError("STORAGE_CONFLICT", "Resource was modified by another process")
	ErrPublishFailure     = NewDomainError("PUBLISH_FAILURE", "Event could not be published")
	ErrMalformedRecord    = NewDomainError("MALFORMED_CHANGE_RECORD", "Change record violates its invariants")
)
