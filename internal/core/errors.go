package core

import "fmt"

// ErrorKind classifies a dispatch failure for reporting and retry
// decisions.
type ErrorKind string

const (
	// KindTimeout covers request deadline and read timeouts. Retryable.
	KindTimeout ErrorKind = "timeout"
	// KindConnection covers dial, reset and DNS failures. Retryable.
	KindConnection ErrorKind = "connection_failure"
	// KindCircuitOpen means the breaker rejected the request before any
	// network attempt. Never retried.
	KindCircuitOpen ErrorKind = "circuit_open"
	// KindServerError is an HTTP status in the retryable set (5xx/429 by
	// default).
	KindServerError ErrorKind = "server_error"
	// KindUnexpected is any failure the classifier could not place.
	KindUnexpected ErrorKind = "unexpected_failure"
)

// DispatchError is a classified dispatch failure. It wraps the underlying
// cause so callers can still errors.Is/As through it.
type DispatchError struct {
	Kind   ErrorKind
	Status int // HTTP status for KindServerError, 0 otherwise
	Cause  error
}

func (e *DispatchError) Error() string {
	switch {
	case e.Kind == KindServerError:
		return fmt.Sprintf("server error: status %d", e.Status)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	default:
		return string(e.Kind)
	}
}

func (e *DispatchError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the error kind may be retried under the
// backoff policy. Circuit-open and unexpected failures are terminal.
func (e *DispatchError) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindConnection, KindServerError:
		return true
	}
	return false
}
