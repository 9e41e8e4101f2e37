package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for the engine's failure taxonomy. Typed errors below
// unwrap to these so callers can branch with errors.Is.
var (
	// ErrNetwork covers timeouts, unreachable hosts, transport failures and an open circuit.
	ErrNetwork = errors.New("network error")
	// ErrBackendRejected is returned when the backend answers with status != "success".
	ErrBackendRejected = errors.New("backend rejected request")
	// ErrValidation is returned when a local precondition fails before any network call.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when a lookup by ID misses.
	ErrNotFound = errors.New("not found")
)

// NetworkError wraps a transport-level failure for one backend operation.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() []error { return []error{ErrNetwork, e.Err} }

// BackendError is a non-success envelope or HTTP status returned by the backend.
type BackendError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: backend rejected request (HTTP %d)", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: backend rejected request: %s", e.Op, e.Message)
}

func (e *BackendError) Unwrap() error { return ErrBackendRejected }

// ValidationError names the field that failed a local precondition.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
