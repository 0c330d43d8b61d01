package nautobot

import (
	"errors"
	"fmt"
)

// ErrorClass classifies an API call outcome for retry and recovery logic.
type ErrorClass string

const (
	// ClassTransient indicates a temporary failure that may succeed on retry.
	// Examples: connection failures, 429/5xx statuses on the retry allow-list.
	ClassTransient ErrorClass = "transient"

	// ClassConflict indicates the inventory already holds an equivalent
	// resource. Never retried; callers may treat it as already satisfied.
	ClassConflict ErrorClass = "conflict"

	// ClassClient indicates a non-recoverable request error.
	// Examples: validation failures, permission denied, not found.
	ClassClient ErrorClass = "client"
)

// Error is a classified API call failure.
type Error struct {
	// Class is the error classification for retry logic.
	Class ErrorClass

	// Method and Path identify the failed call.
	Method string
	Path   string

	// StatusCode is the last HTTP status observed, 0 for transport failures.
	StatusCode int

	// Body is a truncated copy of the response body, for diagnostics.
	Body string

	// Attempts is the number of attempts made before giving up.
	Attempts int

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s %s", e.Class, e.Method, e.Path)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status=%d)", e.StatusCode)
	}
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" (attempts=%d)", e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	} else if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsTransient returns true if the error is classified as transient.
func IsTransient(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ClassTransient
	}
	return false
}

// IsConflict returns true if the error is classified as a conflict.
func IsConflict(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ClassConflict
	}
	return false
}

// IsClient returns true if the error is classified as a client error.
func IsClient(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ClassClient
	}
	return false
}

// IsRetryable returns true if a call failing with this error may be retried.
// Conflicts are terminal: retrying a create that already exists cannot help.
func IsRetryable(err error) bool {
	return IsTransient(err)
}
