// Package apperror defines the error kinds shared by the stores, the coordinators and the HTTP layer.
//
// Every kind is a sentinel error. Constructors return an *AppError that carries the sentinel, a
// human-readable message and (optionally) the underlying cause. Because Unwrap returns both, callers
// can match the kind with errors.Is(err, apperror.ErrStoreUnavailable) and still reach the driver
// error for logging.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("Validation Error")

	// Primary store failures.
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrIntegrityViolation = errors.New("integrity violation")

	// Search index failures. ErrDocumentNotFound is non-fatal: deleting a document that is
	// already gone is treated as success by every caller.
	ErrIndexUnavailable = errors.New("index unavailable")
	ErrDocumentNotFound = errors.New("document not found")

	// Coordinator outcomes.
	ErrSearchSyncFailed       = errors.New("search sync failed")
	ErrCriticalInconsistency  = errors.New("critical inconsistency")
	ErrNotFoundOrUnauthorized = errors.New("not found or unauthorized")
)

type AppError struct {
	Err     error  // kind (one of the sentinels above)
	Cause   error  // underlying error, may be nil
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// StoreUnavailable reports that the primary store could not serve op.
func StoreUnavailable(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrStoreUnavailable,
		Cause:   cause,
		Message: fmt.Sprintf("primary store unavailable while %s", op),
	}
}

// IntegrityViolation reports a constraint breach (foreign key, unique, not null).
func IntegrityViolation(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrIntegrityViolation,
		Cause:   cause,
		Message: fmt.Sprintf("integrity violation while %s", op),
	}
}

func IndexUnavailable(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrIndexUnavailable,
		Cause:   cause,
		Message: fmt.Sprintf("search index unavailable while %s", op),
	}
}

func DocumentNotFound(id string) *AppError {
	return &AppError{
		Err:     ErrDocumentNotFound,
		Message: fmt.Sprintf("search document %s not found", id),
	}
}

// SearchSyncFailed is returned by the create path when the index write failed and the
// compensating delete removed the primary row. Nothing was saved.
func SearchSyncFailed(cause error) *AppError {
	return &AppError{
		Err:     ErrSearchSyncFailed,
		Cause:   cause,
		Message: "Search engine sync failed, the snippet was not saved",
	}
}

// CriticalInconsistency is returned when the compensating delete itself failed: the row exists
// durably but is not searchable.
func CriticalInconsistency(id string, cause error) *AppError {
	return &AppError{
		Err:     ErrCriticalInconsistency,
		Cause:   cause,
		Message: fmt.Sprintf("snippet %s could not be saved and the rollback failed", id),
	}
}

// NotFoundOrUnauthorized deliberately does not say which of the two happened.
func NotFoundOrUnauthorized() *AppError {
	return &AppError{
		Err:     ErrNotFoundOrUnauthorized,
		Message: "Snippet not found or unauthorized",
	}
}
