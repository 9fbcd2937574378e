package identitystore

import (
	"github.com/pkg/errors"
)

// TransientError marks a backend failure worth retrying: the store was
// unreachable, throttled, or failed on its side.
type TransientError struct {
	cause error
}

// NewTransientError wraps the given error as transient.
func NewTransientError(cause error) error {
	if cause == nil {
		return nil
	}
	return &TransientError{cause: cause}
}

func (e *TransientError) Error() string {
	return e.cause.Error()
}

// Cause returns the underlying error.
func (e *TransientError) Cause() error {
	return e.cause
}

// IsTransient determines whether the given error indicates a retryable
// backend failure.
func IsTransient(err error) bool {
	transientErr := &TransientError{}
	return errors.As(err, &transientErr)
}

// DataError marks a single malformed identity record. It is never retried;
// the record is skipped and counted by the caller.
type DataError struct {
	Identifier string
	cause      error
}

// NewDataError wraps the given error as a data error on the given identity.
func NewDataError(identifier string, cause error) error {
	if cause == nil {
		return nil
	}
	return &DataError{Identifier: identifier, cause: cause}
}

func (e *DataError) Error() string {
	return errors.Wrapf(e.cause, "identity %s", e.Identifier).Error()
}

// Cause returns the underlying error.
func (e *DataError) Cause() error {
	return e.cause
}

// IsDataError determines whether the given error indicates a malformed
// record rather than a backend failure.
func IsDataError(err error) bool {
	dataErr := &DataError{}
	return errors.As(err, &dataErr)
}
