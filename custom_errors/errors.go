package custom_errors

import (
	"errors"
	"fmt"
)

var (
	ErrJobNotFound           = errors.New("job not found")
	ErrScheduledPostNotFound = errors.New("scheduled post not found")
	ErrPostNotFound          = errors.New("post content not found")
	// ErrNotConnected means the user has no usable connection for a platform.
	ErrNotConnected = errors.New("account not connected")
	ErrLockNotHeld  = errors.New("lock is held by another owner")
)

type DuplicateJobError struct {
	JobID string
}

func (e *DuplicateJobError) Error() string {
	return fmt.Sprintf("job %s already exists", e.JobID)
}

// InvalidStateError is returned when an operation needs a status the record no longer has.
type InvalidStateError struct {
	ID       string
	Current  string
	Expected string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s is %s, expected %s", e.ID, e.Current, e.Expected)
}

// StoreError wraps a failure of the underlying storage backend.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}
