// Package pipeerr carries the pipeline error taxonomy. Stages return these
// errors; only the orchestrator decides retry versus terminal transition.
package pipeerr

import (
	"errors"
	"fmt"

	"plantao-pipeline/pkg/models"
)

// Error is a classified pipeline error with an optional wrapped cause.
type Error struct {
	Kind    models.ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Validation marks structurally invalid input. Never retried.
func Validation(message string) *Error {
	return &Error{Kind: models.ErrorKindValidation, Message: message}
}

// Validationf is Validation with a formatted message.
func Validationf(format string, args ...any) *Error {
	return Validation(fmt.Sprintf(format, args...))
}

// Transient marks a timeout or rate limit from an external collaborator.
// Retried with backoff up to the configured attempt budget.
func Transient(message string) *Error {
	return &Error{Kind: models.ErrorKindTransientExternal, Message: message}
}

// NotFound marks a lookup miss. A normal branch, not a failure.
func NotFound(message string) *Error {
	return &Error{Kind: models.ErrorKindNotFound, Message: message}
}

// Internal marks an unexpected local failure. Routed to terminal error.
func Internal(message string) *Error {
	return &Error{Kind: models.ErrorKindInternal, Message: message}
}

// Wrap classifies an existing error, preserving it as the cause.
func Wrap(err error, kind models.ErrorKind, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Cause: err}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, kind models.ErrorKind, format string, args ...any) *Error {
	return Wrap(err, kind, fmt.Sprintf(format, args...))
}

// KindOf extracts the error kind, defaulting to internal for unclassified
// errors so nothing is ever silently dropped.
func KindOf(err error) models.ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return models.ErrorKindInternal
}

func isKind(err error, kind models.ErrorKind) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == kind
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return isKind(err, models.ErrorKindValidation) }

// IsTransient reports whether err is a retryable external failure.
func IsTransient(err error) bool { return isKind(err, models.ErrorKindTransientExternal) }

// IsNotFound reports whether err is a lookup miss.
func IsNotFound(err error) bool { return isKind(err, models.ErrorKindNotFound) }

// IsInternal reports whether err is an unexpected local failure.
func IsInternal(err error) bool { return isKind(err, models.ErrorKindInternal) }
