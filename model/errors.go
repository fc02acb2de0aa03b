package model

import (
	"errors"
	"fmt"
)

// TransientError marks a model call failure that is worth retrying (network
// failures, timeouts, rate limits, server-side errors).
type TransientError struct {
	Cause error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient model error: %v", e.Cause) }

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *TransientError) Unwrap() error { return e.Cause }

// FatalError marks a model call failure that retrying cannot fix (invalid
// credentials, malformed request, unsupported model).
type FatalError struct {
	Cause error
}

func (e *FatalError) Error() string { return fmt.Sprintf("fatal model error: %v", e.Cause) }

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *FatalError) Unwrap() error { return e.Cause }

// Transient wraps err as a TransientError.
func Transient(err error) error { return &TransientError{Cause: err} }

// Fatal wraps err as a FatalError.
func Fatal(err error) error { return &FatalError{Cause: err} }

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsFatal reports whether err is (or wraps) a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
