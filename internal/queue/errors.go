package queue

import (
	"errors"
	"fmt"
)

// ErrorClassifier allows errors to declare their classification so callers can
// decide between surfacing, skipping, or retrying without string matching.
type ErrorClassifier interface {
	// ErrorKind returns a string classification of the error.
	// Known kinds: "validation", "not_found", "storage".
	ErrorKind() string
}

var (
	// ErrInvalidArgument reports a caller value outside the declared domain,
	// for example a page identifier that is not an integer.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound reports that an exact-identity lookup matched no row.
	ErrNotFound = errors.New("queue entry not found")
)

type kindError struct {
	kind string
	err  error
	msg  string
}

func (e *kindError) Error() string     { return e.msg }
func (e *kindError) Unwrap() error     { return e.err }
func (e *kindError) ErrorKind() string { return e.kind }

func invalidArgument(format string, args ...any) error {
	return &kindError{
		kind: "validation",
		err:  ErrInvalidArgument,
		msg:  fmt.Sprintf("%s: %s", ErrInvalidArgument, fmt.Sprintf(format, args...)),
	}
}

func notFound(format string, args ...any) error {
	return &kindError{
		kind: "not_found",
		err:  ErrNotFound,
		msg:  fmt.Sprintf("%s: %s", ErrNotFound, fmt.Sprintf(format, args...)),
	}
}

// StorageError wraps a record store failure (connectivity, constraint
// violation, driver error). The store never retries beyond SQLite busy
// backoff; retry policy belongs to the caller.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ErrorKind implements ErrorClassifier.
func (e *StorageError) ErrorKind() string { return "storage" }

func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *StorageError
	if errors.As(err, &existing) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// Kind returns the classification of err, or "" when err does not implement
// ErrorClassifier.
func Kind(err error) string {
	var classifier ErrorClassifier
	if errors.As(err, &classifier) {
		return classifier.ErrorKind()
	}
	return ""
}
