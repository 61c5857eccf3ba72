package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated indicates there is no active session identity
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrProfileMissing indicates an authenticated identity without a profile record.
	// Not transient: the user cannot proceed without a role.
	ErrProfileMissing = errors.New("profile not provisioned for this user")

	// ErrNotAccessible indicates a building outside the principal's accessible set
	ErrNotAccessible = errors.New("building is not accessible")

	// ErrBuildingNotFound indicates the building id does not exist in the catalog
	ErrBuildingNotFound = errors.New("building not found")

	// ErrForbidden indicates the principal's role may not perform the action
	ErrForbidden = errors.New("principal not authorized for this action")
)

// FetchError is a transient failure talking to the backing store.
// Callers keep their last good state and may retry.
type FetchError struct {
	Op  string
	Err error
}

// NewFetchError wraps err as a FetchError for operation op.
func NewFetchError(op string, err error) *FetchError {
	return &FetchError{Op: op, Err: err}
}

// Error implements the error interface
func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: fetch failed", e.Op)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap implements error unwrapping
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable is always true for fetch errors.
func (e *FetchError) Retryable() bool {
	return true
}

// IsFetchError checks if an error is a FetchError and returns it
func IsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
